package service

import (
	"context"
	"log"
	"strings"
	"time"

	"mission-board/internal/model"
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title       string
	Description *string
	Column      model.Column
	ParentID    *uint
	Week        *string
}

// TaskEdit holds manual edits to a card.
type TaskEdit struct {
	Title       model.Opt[string]
	Description model.Opt[*string]
}

// BoardService wraps the board's business rules.
type BoardService struct {
	tx       Transactor
	tasks    TaskStore
	ordering *Ordering
	now      func() time.Time
}

func NewBoardService(tx Transactor, tasks TaskStore, now func() time.Time) *BoardService {
	if now == nil {
		now = time.Now
	}
	return &BoardService{tx: tx, tasks: tasks, ordering: NewOrdering(tasks), now: now}
}

func (s *BoardService) ListTasks(ctx context.Context, userID uint) ([]model.Task, error) {
	return s.tasks.ListByUser(ctx, userID)
}

func (s *BoardService) GetTask(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	return s.mustFind(ctx, taskID, userID)
}

// CreateTask appends a task to the end of its column.
func (s *BoardService) CreateTask(ctx context.Context, userID uint, input TaskInput) (*model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, invalidf("title is required")
	}

	task := model.Task{
		UserID:      userID,
		Title:       title,
		Description: trimmedOrNil(input.Description),
		ColumnName:  input.Column,
	}

	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		if input.ParentID != nil {
			parent, err := s.mustFind(ctx, *input.ParentID, userID)
			if err != nil {
				return err
			}
			if !parent.ColumnName.IsDoor() || parent.ParentID != nil {
				return invalidf("subtasks can only be added to a Door task")
			}
			door := model.LabelDoor
			task.ParentID = &parent.ID
			task.ColumnName = model.Door
			task.WeekStartDate = parent.WeekStartDate
			task.Label = &door
		} else {
			if task.ColumnName.IsZero() {
				task.ColumnName = model.HotList
			}
			switch {
			case task.ColumnName.IsWeekly():
				week, err := s.resolveWeek(input.Week)
				if err != nil {
					return err
				}
				task.WeekStartDate = week
			case task.ColumnName.IsDone():
				week, err := optionalWeek(input.Week)
				if err != nil {
					return err
				}
				task.WeekStartDate = week
				now := s.now()
				task.Completed, task.CompletedAt = true, &now
			}
			task.Label = defaultLabel(task.ColumnName)
			if err := s.checkCapacity(ctx, task.Partition(), true); err != nil {
				return err
			}
		}

		count, err := s.tasks.CountInPartition(ctx, task.Partition())
		if err != nil {
			return err
		}
		task.Position = int(count)
		return s.tasks.Insert(ctx, &task)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[info] task created id=%d user=%d column=%s", task.ID, userID, task.ColumnName)
	return &task, nil
}

// UpdateTask edits title and description, mirroring them onto a linked partner.
func (s *BoardService) UpdateTask(ctx context.Context, userID, taskID uint, edit TaskEdit) (*model.Task, error) {
	upd := model.TaskUpdate{}
	if edit.Title.Set {
		title := strings.TrimSpace(edit.Title.Value)
		if title == "" {
			return nil, invalidf("title is required")
		}
		upd.Title = model.Some(title)
	}
	if edit.Description.Set {
		upd.Description = model.Some(trimmedOrNil(edit.Description.Value))
	}

	var task *model.Task
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		task, err = s.mustFind(ctx, taskID, userID)
		if err != nil {
			return err
		}
		if upd.IsEmpty() {
			return nil
		}
		if err := s.tasks.Update(ctx, task.ID, userID, upd); err != nil {
			return err
		}
		upd.Apply(task)

		if task.LinkedTaskID == nil {
			return nil
		}
		partner, err := s.tasks.FindByID(ctx, *task.LinkedTaskID, userID)
		if err != nil || partner == nil {
			return err
		}
		return s.tasks.Update(ctx, partner.ID, userID, upd)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task together with its subtasks. Links pointing at the
// removed rows are cleared and the gaps they leave are closed.
func (s *BoardService) DeleteTask(ctx context.Context, userID, taskID uint) error {
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		task, err := s.mustFind(ctx, taskID, userID)
		if err != nil {
			return err
		}
		children, err := s.tasks.FindChildren(ctx, userID, task.ID)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := s.deleteOne(ctx, userID, child.ID); err != nil {
				return err
			}
		}
		return s.deleteOne(ctx, userID, task.ID)
	})
	if err != nil {
		return err
	}
	log.Printf("[info] task deleted id=%d user=%d", taskID, userID)
	return nil
}

// deleteOne re-reads the row since earlier deletes may have shifted it.
func (s *BoardService) deleteOne(ctx context.Context, userID, taskID uint) error {
	task, err := s.mustFind(ctx, taskID, userID)
	if err != nil {
		return err
	}
	if task.LinkedTaskID != nil {
		partner, err := s.tasks.FindByID(ctx, *task.LinkedTaskID, userID)
		if err != nil {
			return err
		}
		if partner != nil && partner.LinkedTaskID != nil && *partner.LinkedTaskID == task.ID {
			if err := s.tasks.Update(ctx, partner.ID, userID, model.TaskUpdate{
				LinkedTaskID:     model.Some[*uint](nil),
				IsMovedToHitList: model.Some(false),
			}); err != nil {
				return err
			}
		}
	}
	if err := s.tasks.Delete(ctx, task.ID, userID); err != nil {
		return err
	}
	return s.ordering.RemoveAt(ctx, task.Partition(), task.Position, task.ID)
}

// SetCompleted checks a Hit List task off (or back on) without moving it.
func (s *BoardService) SetCompleted(ctx context.Context, userID, taskID uint, completed bool) (*model.Task, error) {
	var task *model.Task
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		task, err = s.mustFind(ctx, taskID, userID)
		if err != nil {
			return err
		}
		if !task.ColumnName.IsHitList() {
			return invalidf("only Hit List tasks can be checked off in place; move it to Done instead")
		}
		upd := model.TaskUpdate{Completed: model.Some(completed), CompletedAt: model.Some[*time.Time](nil)}
		if completed {
			now := s.now()
			upd.CompletedAt = model.Some(&now)
		}
		if err := s.tasks.Update(ctx, task.ID, userID, upd); err != nil {
			return err
		}
		upd.Apply(task)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// RestoreTask moves a Done task back to the column it was completed from.
func (s *BoardService) RestoreTask(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	var restored *model.Task
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		task, err := s.mustFind(ctx, taskID, userID)
		if err != nil {
			return err
		}
		if !task.ColumnName.IsDone() {
			return invalidf("only Done tasks can be restored")
		}
		dest := model.HotList
		if task.OriginColumn != nil && !task.OriginColumn.IsZero() && !task.OriginColumn.IsDone() {
			dest = *task.OriginColumn
		}
		if err := s.transfer(ctx, task, MoveRequest{TaskID: task.ID, Column: dest, Week: task.WeekStartDate}); err != nil {
			return err
		}
		restored, err = s.mustFind(ctx, taskID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[info] task restored id=%d user=%d to=%s", taskID, userID, restored.ColumnName)
	return restored, nil
}

// ReorderAdjacent swaps a task with its neighbour.
func (s *BoardService) ReorderAdjacent(ctx context.Context, userID, taskID uint, dir Direction) error {
	return s.tx.Transaction(ctx, func(ctx context.Context) error {
		task, err := s.mustFind(ctx, taskID, userID)
		if err != nil {
			return err
		}
		return s.ordering.SwapAdjacent(ctx, task.Partition(), task.ID, dir)
	})
}

// ReorderToPosition drops taskID right before overTaskID in the same column.
func (s *BoardService) ReorderToPosition(ctx context.Context, userID, taskID, overTaskID uint) error {
	return s.tx.Transaction(ctx, func(ctx context.Context) error {
		task, err := s.mustFind(ctx, taskID, userID)
		if err != nil {
			return err
		}
		over, err := s.mustFind(ctx, overTaskID, userID)
		if err != nil {
			return err
		}
		if task.ColumnName != over.ColumnName {
			return invalidf("tasks are in different columns")
		}
		return s.ordering.ReorderWithin(ctx, task.Partition(), task.ID, over.ID)
	})
}

func (s *BoardService) mustFind(ctx context.Context, taskID, userID uint) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, notFound(taskID)
	}
	return task, nil
}

func defaultLabel(column model.Column) *model.Label {
	var label model.Label
	switch {
	case column.Kind == model.KindHotList:
		label = model.LabelTodo
	case column.IsDoor():
		label = model.LabelDoor
	case column.IsHitList():
		label = model.LabelHit
	case column.IsMission():
		label = model.LabelMission
	default:
		return nil
	}
	return &label
}

func optionalWeek(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	return ParseWeek(*raw)
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
