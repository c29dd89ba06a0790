package service

import (
	"context"
	"log"

	"mission-board/internal/model"
)

const (
	doorCapacity    = 1
	hitListCapacity = 4
)

// MoveRequest asks for a task to land at Position of Column.
// Week is optional; weekly columns default to the current Monday.
type MoveRequest struct {
	TaskID   uint
	Column   model.Column
	Position int
	Week     *string
}

// MoveResult tells the caller what the move turned into.
type MoveResult struct {
	// CopyID is set when the move created (or found) a linked copy.
	CopyID *uint
	// Merged is set when a Hit List copy was folded back into its original.
	Merged bool
}

type moveKind int

const (
	moveTransfer moveKind = iota
	moveMerge
	moveCopy
)

func classifyMove(task *model.Task, dest model.Column) moveKind {
	switch {
	case task.ColumnName.IsHitList() && dest.IsDoor() && task.IsLinked():
		return moveMerge
	case task.IsDoorSubtask() && task.ColumnName.IsDoor() && dest.IsHitList():
		return moveCopy
	default:
		return moveTransfer
	}
}

// MoveTask applies the board's movement rules to one task.
func (s *BoardService) MoveTask(ctx context.Context, userID uint, req MoveRequest) (MoveResult, error) {
	if req.Column.IsZero() {
		return MoveResult{}, invalidf("destination column is required")
	}

	var result MoveResult
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		task, err := s.mustFind(ctx, req.TaskID, userID)
		if err != nil {
			return err
		}

		switch classifyMove(task, req.Column) {
		case moveMerge:
			result.Merged = true
			return s.merge(ctx, task)
		case moveCopy:
			week, err := s.resolveWeek(req.Week)
			if err != nil {
				return err
			}
			copyID, err := s.copyInto(ctx, task, req.Column, req.Position, week)
			if err != nil {
				return err
			}
			result.CopyID = &copyID
			return nil
		default:
			return s.transfer(ctx, task, req)
		}
	})
	if err != nil {
		return MoveResult{}, err
	}

	log.Printf("[info] task moved id=%d user=%d to=%s merged=%t copy=%v", req.TaskID, userID, req.Column, result.Merged, result.CopyID != nil)
	return result, nil
}

// CopyTask places a linked copy of a Hot List task on the Door or a Hit List
// day, or of a Door subtask on a Hit List day. It returns the copy's id.
func (s *BoardService) CopyTask(ctx context.Context, userID uint, req MoveRequest) (uint, error) {
	var copyID uint
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		task, err := s.mustFind(ctx, req.TaskID, userID)
		if err != nil {
			return err
		}

		fromHotList := task.ColumnName.Kind == model.KindHotList && (req.Column.IsDoor() || req.Column.IsHitList())
		fromDoor := task.IsDoorSubtask() && task.ColumnName.IsDoor() && req.Column.IsHitList()
		if !fromHotList && !fromDoor {
			return invalidf("only Hot List tasks and Door subtasks can be copied to %s", req.Column)
		}

		week, err := s.resolveWeek(req.Week)
		if err != nil {
			return err
		}
		copyID, err = s.copyInto(ctx, task, req.Column, req.Position, week)
		return err
	})
	if err != nil {
		return 0, err
	}
	log.Printf("[info] task copied id=%d user=%d to=%s copy=%d", req.TaskID, userID, req.Column, copyID)
	return copyID, nil
}

// merge folds a Hit List copy back into its original and deletes the copy.
func (s *BoardService) merge(ctx context.Context, dup *model.Task) error {
	original, err := s.tasks.FindByID(ctx, *dup.LinkedTaskID, dup.UserID)
	if err != nil {
		return err
	}
	if original != nil && original.LinkedTaskID != nil && *original.LinkedTaskID == dup.ID {
		if err := s.tasks.Update(ctx, original.ID, original.UserID, model.TaskUpdate{
			LinkedTaskID:     model.Some[*uint](nil),
			IsMovedToHitList: model.Some(false),
		}); err != nil {
			return err
		}
	}

	if err := s.tasks.Delete(ctx, dup.ID, dup.UserID); err != nil {
		return err
	}
	return s.ordering.RemoveAt(ctx, dup.Partition(), dup.Position, dup.ID)
}

// copyInto creates the linked copy of original in target, or returns the copy
// that already lives there.
func (s *BoardService) copyInto(ctx context.Context, original *model.Task, target model.Column, pos int, week *string) (uint, error) {
	if !target.IsDoor() && !target.IsHitList() {
		return 0, invalidf("copies can only go to the Door or a Hit List day")
	}

	existing, err := s.tasks.FindCopy(ctx, original.UserID, original.ID, target, week)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}
	if err := s.unlinkPartner(ctx, original); err != nil {
		return 0, err
	}

	dest := model.Partition{UserID: original.UserID, Column: target, Week: week}
	if err := s.checkCapacity(ctx, dest, true); err != nil {
		return 0, err
	}

	slot, err := s.ordering.InsertAt(ctx, dest, pos, nil)
	if err != nil {
		return 0, err
	}

	label := model.LabelHit
	if target.IsDoor() {
		label = model.LabelDoor
	}
	originalID := original.ID
	dup := model.Task{
		UserID:        original.UserID,
		Title:         original.Title,
		Description:   original.Description,
		Label:         &label,
		ColumnName:    target,
		Position:      slot,
		WeekStartDate: week,
		LinkedTaskID:  &originalID,
	}
	if err := s.tasks.Insert(ctx, &dup); err != nil {
		return 0, err
	}

	link := model.TaskUpdate{LinkedTaskID: model.Some(&dup.ID)}
	if original.ColumnName.IsDoor() && target.IsHitList() {
		link.IsMovedToHitList = model.Some(true)
	}
	if err := s.tasks.Update(ctx, original.ID, original.UserID, link); err != nil {
		return 0, err
	}
	return dup.ID, nil
}

// unlinkPartner clears the back-link of the copy original points at, so the
// original can be re-pointed at a new copy.
func (s *BoardService) unlinkPartner(ctx context.Context, original *model.Task) error {
	if !original.IsLinked() {
		return nil
	}
	partner, err := s.tasks.FindByID(ctx, *original.LinkedTaskID, original.UserID)
	if err != nil {
		return err
	}
	if partner == nil || partner.LinkedTaskID == nil || *partner.LinkedTaskID != original.ID {
		return nil
	}
	return s.tasks.Update(ctx, partner.ID, partner.UserID, model.TaskUpdate{LinkedTaskID: model.Some[*uint](nil)})
}

// transfer moves the row itself and recomputes its derived fields.
func (s *BoardService) transfer(ctx context.Context, task *model.Task, req MoveRequest) error {
	src, dest := task.ColumnName, req.Column

	if task.IsDoorSubtask() && src.IsDoor() && !dest.IsDoor() {
		return invalidf("Door subtasks stay on the Door; drag one onto a Hit List day to schedule it")
	}
	if src.IsDoor() && task.ParentID == nil && dest.IsDone() {
		children, err := s.tasks.FindChildren(ctx, task.UserID, task.ID)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return invalidf("a Door task with subtasks can't go straight to Done")
		}
	}

	origin := task.OriginColumn
	switch {
	case src.Kind == model.KindHotList && dest.IsHitList():
		hot := model.HotList
		origin = &hot
	case dest.IsDone() && !src.IsDone():
		from := src
		origin = &from
	case src.IsDone() && !dest.IsDone():
		origin = nil
	}

	week := task.WeekStartDate
	switch {
	case dest.IsWeekly():
		resolved, err := s.resolveWeek(req.Week)
		if err != nil {
			return err
		}
		week = resolved
	case dest.IsDone():
		// Done keeps the week the task was archived from.
	case src.IsWeekly(), src.IsDone():
		week = nil
	}

	label := task.Label
	switch {
	case dest.IsHitList():
		hit := model.LabelHit
		label = &hit
	case dest.IsDoor():
		door := model.LabelDoor
		label = &door
	}

	completed, completedAt := task.Completed, task.CompletedAt
	switch {
	case dest.IsDone() && !src.IsDone():
		now := s.now()
		completed, completedAt = true, &now
	case src.IsDone() && !dest.IsDone():
		completed, completedAt = false, nil
	}

	destPartition := model.Partition{UserID: task.UserID, Column: dest, Week: week}
	if !destPartition.Same(task.Partition()) {
		if err := s.checkCapacity(ctx, destPartition, task.ParentID == nil); err != nil {
			return err
		}
	}

	if err := s.ordering.RemoveAt(ctx, task.Partition(), task.Position, task.ID); err != nil {
		return err
	}
	slot, err := s.ordering.InsertAt(ctx, destPartition, req.Position, task)
	if err != nil {
		return err
	}

	return s.tasks.Update(ctx, task.ID, task.UserID, model.TaskUpdate{
		ColumnName:    model.Some(dest),
		Position:      model.Some(slot),
		WeekStartDate: model.Some(week),
		Label:         model.Some(label),
		OriginColumn:  model.Some(origin),
		Completed:     model.Some(completed),
		CompletedAt:   model.Some(completedAt),
	})
}

// checkCapacity rejects an arrival in a full Door or Hit List day.
// parent reports whether the arriving task counts against the Door limit.
func (s *BoardService) checkCapacity(ctx context.Context, p model.Partition, parent bool) error {
	switch {
	case p.Column.IsDoor() && parent:
		count, err := s.tasks.CountParentsInPartition(ctx, p)
		if err != nil {
			return err
		}
		if count >= doorCapacity {
			return invalidf("The Door already has a task this week")
		}
	case p.Column.IsHitList():
		count, err := s.tasks.CountInPartition(ctx, p)
		if err != nil {
			return err
		}
		if count >= hitListCapacity {
			return invalidf("%s already has %d tasks this week", p.Column, hitListCapacity)
		}
	}
	return nil
}

// resolveWeek validates an explicit week or falls back to the current Monday.
func (s *BoardService) resolveWeek(explicit *string) (*string, error) {
	if explicit != nil {
		week, err := ParseWeek(*explicit)
		if err != nil {
			return nil, err
		}
		if week != nil {
			return week, nil
		}
	}
	monday := CurrentWeekMonday(s.now())
	return &monday, nil
}
