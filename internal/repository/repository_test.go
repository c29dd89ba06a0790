package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mission-board/internal/model"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "nested", "board.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func insertTask(t *testing.T, repo *TaskRepository, userID uint, title string, column model.Column, week *string, pos int) *model.Task {
	t.Helper()
	task := &model.Task{UserID: userID, Title: title, ColumnName: column, WeekStartDate: week, Position: pos}
	require.NoError(t, repo.Insert(context.Background(), task))
	return task
}

func TestTaskRepository_PartitionQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(openTestDB(t))
	w1, w2 := "2025-06-02", "2025-06-09"

	insertTask(t, repo, 1, "b", model.HitList(model.Mon), &w1, 1)
	insertTask(t, repo, 1, "a", model.HitList(model.Mon), &w1, 0)
	insertTask(t, repo, 1, "other week", model.HitList(model.Mon), &w2, 0)
	insertTask(t, repo, 1, "hot", model.HotList, nil, 0)
	insertTask(t, repo, 2, "other user", model.HitList(model.Mon), &w1, 0)

	tasks, err := repo.FindByPartition(ctx, model.Partition{UserID: 1, Column: model.HitList(model.Mon), Week: &w1})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].Title)
	assert.Equal(t, "b", tasks[1].Title)

	hot, err := repo.FindByPartition(ctx, model.Partition{UserID: 1, Column: model.HotList})
	require.NoError(t, err)
	require.Len(t, hot, 1)
	assert.Nil(t, hot[0].WeekStartDate)

	count, err := repo.CountInPartition(ctx, model.Partition{UserID: 1, Column: model.HitList(model.Mon), Week: &w2})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	hits, err := repo.FindByColumnPrefix(ctx, 1, model.HitListPrefix)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestTaskRepository_FindByIDScopesUser(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(openTestDB(t))
	task := insertTask(t, repo, 1, "mine", model.HotList, nil, 0)

	got, err := repo.FindByID(ctx, task.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.HotList, got.ColumnName)

	got, err = repo.FindByID(ctx, task.ID, 2)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTaskRepository_UpdateWritesNulls(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(openTestDB(t))
	other := insertTask(t, repo, 1, "partner", model.HotList, nil, 0)
	task := insertTask(t, repo, 1, "task", model.HotList, nil, 1)

	origin := model.HotList
	require.NoError(t, repo.Update(ctx, task.ID, 1, model.TaskUpdate{
		LinkedTaskID: model.Some(&other.ID),
		OriginColumn: model.Some(&origin),
		ColumnName:   model.Some(model.Done),
	}))
	got, err := repo.FindByID(ctx, task.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, other.ID, *got.LinkedTaskID)
	assert.Equal(t, model.HotList, *got.OriginColumn)
	assert.Equal(t, model.Done, got.ColumnName)

	require.NoError(t, repo.Update(ctx, task.ID, 1, model.TaskUpdate{
		LinkedTaskID: model.Some[*uint](nil),
		OriginColumn: model.Some[*model.Column](nil),
	}))
	got, err = repo.FindByID(ctx, task.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, got.LinkedTaskID)
	assert.Nil(t, got.OriginColumn)

	err = repo.Update(ctx, 999, 1, model.TaskUpdate{Title: model.Some("x")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestTaskRepository_ShiftPositions(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(openTestDB(t))
	p := model.Partition{UserID: 1, Column: model.HotList}
	a := insertTask(t, repo, 1, "a", model.HotList, nil, 0)
	b := insertTask(t, repo, 1, "b", model.HotList, nil, 1)
	c := insertTask(t, repo, 1, "c", model.HotList, nil, 2)

	require.NoError(t, repo.ShiftPositions(ctx, p, 1, 1, c.ID))

	positions := map[uint]int{}
	tasks, err := repo.FindByPartition(ctx, p)
	require.NoError(t, err)
	for _, task := range tasks {
		positions[task.ID] = task.Position
	}
	assert.Equal(t, 0, positions[a.ID])
	assert.Equal(t, 2, positions[b.ID])
	assert.Equal(t, 2, positions[c.ID], "excluded row is untouched")
}

func TestTaskRepository_FindCopyAndChildren(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(openTestDB(t))
	week := "2025-06-02"
	parent := insertTask(t, repo, 1, "parent", model.Door, &week, 0)

	child := &model.Task{UserID: 1, Title: "child", ColumnName: model.Door, WeekStartDate: &week, Position: 1, ParentID: &parent.ID}
	require.NoError(t, repo.Insert(ctx, child))
	dup := &model.Task{UserID: 1, Title: "child", ColumnName: model.HitList(model.Tue), WeekStartDate: &week, LinkedTaskID: &child.ID}
	require.NoError(t, repo.Insert(ctx, dup))

	children, err := repo.FindChildren(ctx, 1, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)

	parents, err := repo.CountParentsInPartition(ctx, parent.Partition())
	require.NoError(t, err)
	assert.EqualValues(t, 1, parents)

	found, err := repo.FindCopy(ctx, 1, child.ID, model.HitList(model.Tue), &week)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, dup.ID, found.ID)

	found, err = repo.FindCopy(ctx, 1, child.ID, model.HitList(model.Wed), &week)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestTaskRepository_BulkUpdateByColumnPrefix(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(openTestDB(t))
	week := "2025-06-02"
	insertTask(t, repo, 1, "mon", model.HitList(model.Mon), &week, 0)
	insertTask(t, repo, 1, "fri", model.HitList(model.Fri), &week, 0)
	insertTask(t, repo, 1, "hot", model.HotList, nil, 0)
	insertTask(t, repo, 2, "theirs", model.HitList(model.Mon), &week, 0)

	n, err := repo.BulkUpdateByColumnPrefix(ctx, 1, model.HitListPrefix, model.TaskUpdate{
		ColumnName: model.Some(model.Done),
		Completed:  model.Some(true),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	done, err := repo.FindByPartition(ctx, model.Partition{UserID: 1, Column: model.Done, Week: &week})
	require.NoError(t, err)
	assert.Len(t, done, 2)

	theirs, err := repo.FindByColumnPrefix(ctx, 2, model.HitListPrefix)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}

func TestSettingsRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(openTestDB(t))

	last, err := repo.LastWeeklyReset(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, last)

	require.NoError(t, repo.SetLastWeeklyReset(ctx, 1, 100))
	require.NoError(t, repo.SetLastWeeklyReset(ctx, 1, 200))
	require.NoError(t, repo.SetLastWeeklyReset(ctx, 2, 50))

	last, err = repo.LastWeeklyReset(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 200, last)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(openTestDB(t))

	user, err := repo.Create(ctx, "ada")
	require.NoError(t, err)
	require.NotNil(t, user.APIToken)

	found, err := repo.FindByAPIToken(ctx, *user.APIToken)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)

	missing, err := repo.FindByAPIToken(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	tg, err := repo.UpsertFromTelegram(ctx, 42, "Grace", "", "grace")
	require.NoError(t, err)
	again, err := repo.UpsertFromTelegram(ctx, 42, "Grace", "Hopper", "grace")
	require.NoError(t, err)
	assert.Equal(t, tg.ID, again.ID)
	assert.Equal(t, "Hopper", again.LastName)

	users, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestTransactorRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	tx := NewTransactor(db)
	repo := NewTaskRepository(db)
	boom := errors.New("boom")

	err := tx.Transaction(ctx, func(ctx context.Context) error {
		if err := repo.Insert(ctx, &model.Task{UserID: 1, Title: "inside", ColumnName: model.HotList}); err != nil {
			return err
		}
		return tx.Transaction(ctx, func(ctx context.Context) error {
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	tasks, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTransactorRetriesBusyErrors(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	tx := NewTransactor(db)
	repo := NewTaskRepository(db)

	attempts := 0
	err := tx.Transaction(ctx, func(ctx context.Context) error {
		attempts++
		if err := repo.Insert(ctx, &model.Task{UserID: 1, Title: "retried", ColumnName: model.HotList}); err != nil {
			return err
		}
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	tasks, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "retried", tasks[0].Title)
}

func TestTransactorDoesNotRetryOtherErrors(t *testing.T) {
	tx := NewTransactor(openTestDB(t))
	boom := errors.New("boom")

	attempts := 0
	err := tx.Transaction(context.Background(), func(ctx context.Context) error {
		attempts++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestTransactorStopsRetryingOnCancel(t *testing.T) {
	tx := NewTransactor(openTestDB(t))
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := tx.Transaction(ctx, func(ctx context.Context) error {
		attempts++
		cancel()
		return errors.New("database is locked")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithPragmas(t *testing.T) {
	assert.Equal(t, "file::memory:?cache=shared", withPragmas("file::memory:?cache=shared"))
	assert.Equal(t, "board.db?_busy_timeout=5000&_journal_mode=WAL", withPragmas("board.db"))
	assert.Equal(t, "board.db?_busy_timeout=100&_journal_mode=WAL", withPragmas("board.db?_busy_timeout=100"))
	assert.True(t, isBusyError(errors.New("database is locked")))
	assert.False(t, isBusyError(errors.New("no such table")))
}
