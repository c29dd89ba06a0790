package model

import (
	"encoding/json"
	"time"
)

// Opt is a field that is either left alone or set to Value.
type Opt[T any] struct {
	Set   bool
	Value T
}

// Some marks a field as set.
func Some[T any](v T) Opt[T] {
	return Opt[T]{Set: true, Value: v}
}

// UnmarshalJSON marks the field as set whenever the key is present, so an
// explicit null sets Value to its zero value.
func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Set, o.Value = true, v
	return nil
}

// TaskUpdate is a sparse set of task fields for a partial update.
// Pointer-typed fields set to nil are written as NULL.
type TaskUpdate struct {
	Title            Opt[string]
	Description      Opt[*string]
	Label            Opt[*Label]
	ColumnName       Opt[Column]
	Position         Opt[int]
	WeekStartDate    Opt[*string]
	LinkedTaskID     Opt[*uint]
	OriginColumn     Opt[*Column]
	Completed        Opt[bool]
	CompletedAt      Opt[*time.Time]
	IsMovedToHitList Opt[bool]
}

// Columns renders the set fields as a column map for a single UPDATE.
func (u TaskUpdate) Columns() map[string]any {
	cols := make(map[string]any)
	if u.Title.Set {
		cols["title"] = u.Title.Value
	}
	if u.Description.Set {
		cols["description"] = nullable(u.Description.Value)
	}
	if u.Label.Set {
		cols["label"] = nullable(u.Label.Value)
	}
	if u.ColumnName.Set {
		cols["column_name"] = u.ColumnName.Value
	}
	if u.Position.Set {
		cols["position"] = u.Position.Value
	}
	if u.WeekStartDate.Set {
		cols["week_start_date"] = nullable(u.WeekStartDate.Value)
	}
	if u.LinkedTaskID.Set {
		cols["linked_task_id"] = nullable(u.LinkedTaskID.Value)
	}
	if u.OriginColumn.Set {
		cols["origin_column"] = nullable(u.OriginColumn.Value)
	}
	if u.Completed.Set {
		cols["completed"] = u.Completed.Value
	}
	if u.CompletedAt.Set {
		cols["completed_at"] = nullable(u.CompletedAt.Value)
	}
	if u.IsMovedToHitList.Set {
		cols["is_moved_to_hitlist"] = u.IsMovedToHitList.Value
	}
	return cols
}

// IsEmpty reports whether no field is set.
func (u TaskUpdate) IsEmpty() bool {
	return len(u.Columns()) == 0
}

// Apply copies the set fields onto t.
func (u TaskUpdate) Apply(t *Task) {
	if u.Title.Set {
		t.Title = u.Title.Value
	}
	if u.Description.Set {
		t.Description = u.Description.Value
	}
	if u.Label.Set {
		t.Label = u.Label.Value
	}
	if u.ColumnName.Set {
		t.ColumnName = u.ColumnName.Value
	}
	if u.Position.Set {
		t.Position = u.Position.Value
	}
	if u.WeekStartDate.Set {
		t.WeekStartDate = u.WeekStartDate.Value
	}
	if u.LinkedTaskID.Set {
		t.LinkedTaskID = u.LinkedTaskID.Value
	}
	if u.OriginColumn.Set {
		t.OriginColumn = u.OriginColumn.Value
	}
	if u.Completed.Set {
		t.Completed = u.Completed.Value
	}
	if u.CompletedAt.Set {
		t.CompletedAt = u.CompletedAt.Value
	}
	if u.IsMovedToHitList.Set {
		t.IsMovedToHitList = u.IsMovedToHitList.Value
	}
}

// nullable turns a typed nil pointer into an untyped nil so the driver writes NULL.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
