package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"mission-board/internal/model"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// TaskRepository handles persistence for board tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// FindByID returns the task owned by userID, or nil when there is none.
func (r *TaskRepository) FindByID(ctx context.Context, id, userID uint) (*model.Task, error) {
	var task model.Task
	err := conn(ctx, r.db).Where("id = ? AND user_id = ?", id, userID).First(&task).Error
	switch {
	case err == nil:
		return &task, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find task %d: %w", id, err)
	}
}

// FindByPartition lists a partition ordered by position.
func (r *TaskRepository) FindByPartition(ctx context.Context, p model.Partition) ([]model.Task, error) {
	var tasks []model.Task
	if err := conn(ctx, r.db).Scopes(inPartition(p)).
		Order("position ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list partition %s: %w", p.Column, err)
	}
	return tasks, nil
}

// FindCopy returns the copy of originalID living in the given column and week.
func (r *TaskRepository) FindCopy(ctx context.Context, userID, originalID uint, column model.Column, week *string) (*model.Task, error) {
	var task model.Task
	err := conn(ctx, r.db).
		Scopes(inPartition(model.Partition{UserID: userID, Column: column, Week: week})).
		Where("linked_task_id = ?", originalID).
		First(&task).Error
	switch {
	case err == nil:
		return &task, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find copy of %d: %w", originalID, err)
	}
}

func (r *TaskRepository) FindChildren(ctx context.Context, userID, parentID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := conn(ctx, r.db).Where("user_id = ? AND parent_id = ?", userID, parentID).
		Order("position ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list subtasks of %d: %w", parentID, err)
	}
	return tasks, nil
}

// FindByColumnPrefix lists every task of the user whose column starts with prefix.
func (r *TaskRepository) FindByColumnPrefix(ctx context.Context, userID uint, prefix string) ([]model.Task, error) {
	var tasks []model.Task
	if err := conn(ctx, r.db).Scopes(columnPrefix(userID, prefix)).
		Order("week_start_date ASC, column_name ASC, position ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list %s* tasks: %w", prefix, err)
	}
	return tasks, nil
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := conn(ctx, r.db).Where("user_id = ?", userID).
		Order("column_name ASC, week_start_date ASC, position ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) CountInPartition(ctx context.Context, p model.Partition) (int64, error) {
	var count int64
	if err := conn(ctx, r.db).Model(&model.Task{}).Scopes(inPartition(p)).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count partition %s: %w", p.Column, err)
	}
	return count, nil
}

// CountParentsInPartition counts top-level tasks, ignoring subtasks.
func (r *TaskRepository) CountParentsInPartition(ctx context.Context, p model.Partition) (int64, error) {
	var count int64
	if err := conn(ctx, r.db).Model(&model.Task{}).Scopes(inPartition(p)).
		Where("parent_id IS NULL").
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count parents in %s: %w", p.Column, err)
	}
	return count, nil
}

func (r *TaskRepository) Insert(ctx context.Context, task *model.Task) error {
	if err := conn(ctx, r.db).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Update writes the set fields of upd in one parameterized statement.
func (r *TaskRepository) Update(ctx context.Context, id, userID uint, upd model.TaskUpdate) error {
	cols := upd.Columns()
	if len(cols) == 0 {
		return nil
	}
	res := conn(ctx, r.db).Model(&model.Task{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("update task %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update task %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id, userID uint) error {
	if err := conn(ctx, r.db).Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.Task{}).Error; err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}

// ShiftPositions adds delta to every position >= from in the partition,
// skipping excludeID (0 skips nothing).
func (r *TaskRepository) ShiftPositions(ctx context.Context, p model.Partition, from, delta int, excludeID uint) error {
	db := conn(ctx, r.db).Model(&model.Task{}).Scopes(inPartition(p)).Where("position >= ?", from)
	if excludeID != 0 {
		db = db.Where("id <> ?", excludeID)
	}
	if err := db.UpdateColumn("position", gorm.Expr("position + ?", delta)).Error; err != nil {
		return fmt.Errorf("shift positions in %s: %w", p.Column, err)
	}
	return nil
}

// BulkUpdateByColumnPrefix applies upd to every task of the user whose column
// starts with prefix.
func (r *TaskRepository) BulkUpdateByColumnPrefix(ctx context.Context, userID uint, prefix string, upd model.TaskUpdate) (int64, error) {
	cols := upd.Columns()
	if len(cols) == 0 {
		return 0, nil
	}
	res := conn(ctx, r.db).Model(&model.Task{}).Scopes(columnPrefix(userID, prefix)).Updates(cols)
	if res.Error != nil {
		return 0, fmt.Errorf("bulk update %s*: %w", prefix, res.Error)
	}
	return res.RowsAffected, nil
}

func inPartition(p model.Partition) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ? AND column_name = ?", p.UserID, p.Column)
		if p.Week == nil {
			return db.Where("week_start_date IS NULL")
		}
		return db.Where("week_start_date = ?", *p.Week)
	}
}

func columnPrefix(userID uint, prefix string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(`user_id = ? AND column_name LIKE ? ESCAPE '\'`, userID, likeEscaper.Replace(prefix)+"%")
	}
}
