package service

import (
	"context"
	"fmt"
	"strings"

	"mission-board/internal/model"
)

// Direction is the way a card moves in a pairwise swap.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case DirectionUp:
		return DirectionUp, nil
	case DirectionDown:
		return DirectionDown, nil
	}
	return "", invalidf("direction must be up or down, got %q", raw)
}

// Ordering keeps positions dense within a (user, column, week) partition.
// Callers run it inside the transaction that read the target position.
type Ordering struct {
	tasks TaskStore
}

func NewOrdering(tasks TaskStore) *Ordering {
	return &Ordering{tasks: tasks}
}

// InsertAt opens a slot at pos and returns the slot actually reserved.
// pos is clamped to the partition bounds. moving is the task that will fill the
// slot, or nil for a new row; it is never shifted itself.
func (o *Ordering) InsertAt(ctx context.Context, p model.Partition, pos int, moving *model.Task) (int, error) {
	count, err := o.tasks.CountInPartition(ctx, p)
	if err != nil {
		return 0, err
	}
	size := int(count)
	var excludeID uint
	if moving != nil {
		excludeID = moving.ID
		if moving.Partition().Same(p) {
			size--
		}
	}
	if pos < 0 {
		pos = 0
	}
	if pos > size {
		pos = size
	}
	if pos == size {
		return pos, nil
	}
	if err := o.tasks.ShiftPositions(ctx, p, pos, 1, excludeID); err != nil {
		return 0, err
	}
	return pos, nil
}

// RemoveAt closes the gap left by a row leaving pos.
func (o *Ordering) RemoveAt(ctx context.Context, p model.Partition, pos int, leavingID uint) error {
	return o.tasks.ShiftPositions(ctx, p, pos+1, -1, leavingID)
}

// ReorderWithin moves taskID immediately before overTaskID and renumbers the
// whole partition.
func (o *Ordering) ReorderWithin(ctx context.Context, p model.Partition, taskID, overTaskID uint) error {
	tasks, err := o.tasks.FindByPartition(ctx, p)
	if err != nil {
		return err
	}

	from := indexOf(tasks, taskID)
	if from < 0 {
		return notFound(taskID)
	}
	moving := tasks[from]
	rest := append(tasks[:from:from], tasks[from+1:]...)

	to := indexOf(rest, overTaskID)
	if to < 0 {
		return notFound(overTaskID)
	}

	ordered := make([]model.Task, 0, len(tasks))
	ordered = append(ordered, rest[:to]...)
	ordered = append(ordered, moving)
	ordered = append(ordered, rest[to:]...)

	return o.rewrite(ctx, ordered, true)
}

// SwapAdjacent exchanges positions with the neighbour above or below.
// It does nothing at the partition boundary.
func (o *Ordering) SwapAdjacent(ctx context.Context, p model.Partition, taskID uint, dir Direction) error {
	tasks, err := o.tasks.FindByPartition(ctx, p)
	if err != nil {
		return err
	}
	idx := indexOf(tasks, taskID)
	if idx < 0 {
		return notFound(taskID)
	}

	other := idx - 1
	if dir == DirectionDown {
		other = idx + 1
	}
	if other < 0 || other >= len(tasks) {
		return nil
	}

	a, b := tasks[idx], tasks[other]
	if err := o.tasks.Update(ctx, a.ID, a.UserID, model.TaskUpdate{Position: model.Some(b.Position)}); err != nil {
		return err
	}
	if err := o.tasks.Update(ctx, b.ID, b.UserID, model.TaskUpdate{Position: model.Some(a.Position)}); err != nil {
		return err
	}
	return nil
}

// rewrite persists index i as the position of ordered[i]. With all set, every
// row is written even when its position already matches.
func (o *Ordering) rewrite(ctx context.Context, ordered []model.Task, all bool) error {
	for i, task := range ordered {
		if !all && task.Position == i {
			continue
		}
		if err := o.tasks.Update(ctx, task.ID, task.UserID, model.TaskUpdate{Position: model.Some(i)}); err != nil {
			return fmt.Errorf("renumber task %d: %w", task.ID, err)
		}
	}
	return nil
}

func indexOf(tasks []model.Task, id uint) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}
