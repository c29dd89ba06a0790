package model

import "time"

// Label is the semantic category of a task.
type Label string

const (
	LabelDoor    Label = "Door"
	LabelHit     Label = "Hit"
	LabelTodo    Label = "To-Do"
	LabelMission Label = "Mission"
)

// Task represents a single card on the board.
type Task struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"index:idx_task_partition,priority:1;not null" json:"user_id"`
	Title            string     `gorm:"not null" json:"title"`
	Description      *string    `json:"description"`
	Label            *Label     `json:"label"`
	ColumnName       Column     `gorm:"column:column_name;index:idx_task_partition,priority:2;not null" json:"column_name"`
	Position         int        `gorm:"not null;default:0" json:"position"`
	ParentID         *uint      `gorm:"index" json:"parent_id"`
	WeekStartDate    *string    `gorm:"size:10;index:idx_task_partition,priority:3" json:"week_start_date"`
	LinkedTaskID     *uint      `gorm:"index" json:"linked_task_id"`
	OriginColumn     *Column    `json:"origin_column"`
	Completed        bool       `gorm:"default:false" json:"completed"`
	CompletedAt      *time.Time `json:"completed_at"`
	IsMovedToHitList bool       `gorm:"column:is_moved_to_hitlist;default:false" json:"is_moved_to_hitlist"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsDoorSubtask reports whether the task is an AI-generated child of a Door task.
func (t *Task) IsDoorSubtask() bool {
	return t.ParentID != nil && t.Label != nil && *t.Label == LabelDoor
}

// IsLinked reports whether the task currently has a linked partner.
func (t *Task) IsLinked() bool {
	return t.LinkedTaskID != nil
}

// Partition returns the ordering partition the task belongs to.
func (t *Task) Partition() Partition {
	return Partition{UserID: t.UserID, Column: t.ColumnName, Week: t.WeekStartDate}
}

// Partition identifies one independently ordered list of tasks.
type Partition struct {
	UserID uint
	Column Column
	Week   *string
}

// Same reports whether both partitions address the same list.
func (p Partition) Same(other Partition) bool {
	if p.UserID != other.UserID || p.Column != other.Column {
		return false
	}
	if p.Week == nil || other.Week == nil {
		return p.Week == nil && other.Week == nil
	}
	return *p.Week == *other.Week
}

// Settings holds per-user bookkeeping such as the weekly reset gate.
type Settings struct {
	UserID          uint `gorm:"primaryKey;autoIncrement:false"`
	LastWeeklyReset int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
