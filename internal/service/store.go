package service

import (
	"context"

	"mission-board/internal/model"
)

// TaskStore is the persistence the board needs. Lookups return nil, nil for
// missing rows.
type TaskStore interface {
	FindByID(ctx context.Context, id, userID uint) (*model.Task, error)
	FindByPartition(ctx context.Context, p model.Partition) ([]model.Task, error)
	FindCopy(ctx context.Context, userID, originalID uint, column model.Column, week *string) (*model.Task, error)
	FindChildren(ctx context.Context, userID, parentID uint) ([]model.Task, error)
	FindByColumnPrefix(ctx context.Context, userID uint, prefix string) ([]model.Task, error)
	ListByUser(ctx context.Context, userID uint) ([]model.Task, error)
	CountInPartition(ctx context.Context, p model.Partition) (int64, error)
	CountParentsInPartition(ctx context.Context, p model.Partition) (int64, error)
	Insert(ctx context.Context, task *model.Task) error
	Update(ctx context.Context, id, userID uint, upd model.TaskUpdate) error
	Delete(ctx context.Context, id, userID uint) error
	ShiftPositions(ctx context.Context, p model.Partition, from, delta int, excludeID uint) error
	BulkUpdateByColumnPrefix(ctx context.Context, userID uint, prefix string, upd model.TaskUpdate) (int64, error)
}

type SettingsStore interface {
	LastWeeklyReset(ctx context.Context, userID uint) (int64, error)
	SetLastWeeklyReset(ctx context.Context, userID uint, unix int64) error
}

type UserLister interface {
	ListAll(ctx context.Context) ([]model.User, error)
}

// Transactor runs fn in one store transaction carried by the context.
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}
