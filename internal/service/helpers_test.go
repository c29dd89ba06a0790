package service

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mission-board/internal/model"
	"mission-board/internal/repository"
)

// Wednesday; the week starts on 2025-06-02.
var wednesday = time.Date(2025, time.June, 4, 10, 0, 0, 0, time.UTC)

const thisWeek = "2025-06-02"

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fixture struct {
	ctx      context.Context
	clock    *fakeClock
	tasks    *repository.TaskRepository
	settings *repository.SettingsRepository
	users    *repository.UserRepository
	board    *BoardService
	resets   *ResetService
	subtasks *SubtaskService
	userID   uint
}

func newFixture(t *testing.T, suggester Suggester) *fixture {
	t.Helper()

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "board.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ctx := context.Background()
	clock := &fakeClock{now: wednesday}
	tx := repository.NewTransactor(db)
	tasks := repository.NewTaskRepository(db)
	settings := repository.NewSettingsRepository(db)
	users := repository.NewUserRepository(db)

	user, err := users.Create(ctx, "tester")
	require.NoError(t, err)

	return &fixture{
		ctx:      ctx,
		clock:    clock,
		tasks:    tasks,
		settings: settings,
		users:    users,
		board:    NewBoardService(tx, tasks, clock.Now),
		resets:   NewResetService(tx, tasks, settings, users, clock.Now),
		subtasks: NewSubtaskService(tx, tasks, suggester),
		userID:   user.ID,
	}
}

func (f *fixture) create(t *testing.T, title string, column model.Column) *model.Task {
	t.Helper()
	task, err := f.board.CreateTask(f.ctx, f.userID, TaskInput{Title: title, Column: column})
	require.NoError(t, err)
	return task
}

func (f *fixture) get(t *testing.T, id uint) *model.Task {
	t.Helper()
	task, err := f.tasks.FindByID(f.ctx, id, f.userID)
	require.NoError(t, err)
	require.NotNil(t, task, "task %d", id)
	return task
}

func (f *fixture) titles(t *testing.T, column model.Column, week *string) []string {
	t.Helper()
	tasks, err := f.tasks.FindByPartition(f.ctx, model.Partition{UserID: f.userID, Column: column, Week: week})
	require.NoError(t, err)
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.Title)
	}
	return out
}

// requireDense asserts the partition's positions are exactly 0..n-1.
func (f *fixture) requireDense(t *testing.T, column model.Column, week *string) {
	t.Helper()
	tasks, err := f.tasks.FindByPartition(f.ctx, model.Partition{UserID: f.userID, Column: column, Week: week})
	require.NoError(t, err)
	positions := make([]int, 0, len(tasks))
	for _, task := range tasks {
		positions = append(positions, task.Position)
	}
	sort.Ints(positions)
	for i, pos := range positions {
		require.Equal(t, i, pos, "positions in %s: %v", column, positions)
	}
}

// requireCompletionConsistent asserts completed and completed_at agree for every task.
func (f *fixture) requireCompletionConsistent(t *testing.T) {
	t.Helper()
	tasks, err := f.tasks.ListByUser(f.ctx, f.userID)
	require.NoError(t, err)
	for _, task := range tasks {
		require.Equal(t, task.Completed, task.CompletedAt != nil, "task %d %q", task.ID, task.Title)
	}
}

func weekPtr(s string) *string { return &s }

func isInvalidOperation(err error) bool {
	var target *InvalidOperationError
	return errors.As(err, &target)
}
