package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// ColumnKind identifies a board column independently of its day.
type ColumnKind int

const (
	KindHotList ColumnKind = iota + 1
	KindDoor
	KindHitList
	KindDone
	KindMissionList
	KindWorkingOn
	KindCompleted
	KindYearlyTargets
)

// Day is a Hit List weekday bucket.
type Day int

const (
	Mon Day = iota + 1
	Tue
	Wed
	Thu
	Fri
)

var dayNames = map[Day]string{Mon: "mon", Tue: "tue", Wed: "wed", Thu: "thu", Fri: "fri"}

// Days lists the Hit List buckets in board order.
var Days = []Day{Mon, Tue, Wed, Thu, Fri}

func (d Day) String() string {
	if name, ok := dayNames[d]; ok {
		return name
	}
	return fmt.Sprintf("day(%d)", int(d))
}

// ParseDay accepts "mon".."fri" in any case.
func ParseDay(raw string) (Day, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	for day, name := range dayNames {
		if name == value {
			return day, nil
		}
	}
	return 0, fmt.Errorf("unknown day %q", raw)
}

// Column is a board column. Day is only meaningful for KindHitList.
type Column struct {
	Kind ColumnKind
	Day  Day
}

var (
	HotList       = Column{Kind: KindHotList}
	Door          = Column{Kind: KindDoor}
	Done          = Column{Kind: KindDone}
	MissionList   = Column{Kind: KindMissionList}
	WorkingOn     = Column{Kind: KindWorkingOn}
	Completed     = Column{Kind: KindCompleted}
	YearlyTargets = Column{Kind: KindYearlyTargets}
)

// HitListPrefix is the storage prefix shared by every Hit List day.
const HitListPrefix = "hit_list_"

// HitList returns the Hit List column for the given day.
func HitList(day Day) Column {
	return Column{Kind: KindHitList, Day: day}
}

var fixedColumns = map[ColumnKind]string{
	KindHotList:       "hot_list",
	KindDoor:          "the_door",
	KindDone:          "done",
	KindMissionList:   "mission_list",
	KindWorkingOn:     "working_on",
	KindCompleted:     "completed",
	KindYearlyTargets: "yearly_targets",
}

// ParseColumn converts a stored column name into a Column.
func ParseColumn(raw string) (Column, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(value, HitListPrefix) {
		day, err := ParseDay(strings.TrimPrefix(value, HitListPrefix))
		if err != nil {
			return Column{}, fmt.Errorf("unknown column %q", raw)
		}
		return HitList(day), nil
	}
	for kind, name := range fixedColumns {
		if name == value {
			return Column{Kind: kind}, nil
		}
	}
	return Column{}, fmt.Errorf("unknown column %q", raw)
}

func (c Column) String() string {
	if c.Kind == KindHitList {
		return HitListPrefix + c.Day.String()
	}
	if name, ok := fixedColumns[c.Kind]; ok {
		return name
	}
	return ""
}

func (c Column) IsZero() bool { return c.Kind == 0 }

func (c Column) IsHitList() bool { return c.Kind == KindHitList }

func (c Column) IsDoor() bool { return c.Kind == KindDoor }

func (c Column) IsDone() bool { return c.Kind == KindDone }

// IsWeekly reports whether tasks in the column are bucketed by week.
func (c Column) IsWeekly() bool { return c.Kind == KindDoor || c.Kind == KindHitList }

// IsMission reports whether the column belongs to the Mission Board.
func (c Column) IsMission() bool {
	switch c.Kind {
	case KindMissionList, KindWorkingOn, KindCompleted, KindYearlyTargets:
		return true
	}
	return false
}

// Value stores the column by name.
func (c Column) Value() (driver.Value, error) {
	if c.IsZero() {
		return nil, nil
	}
	return c.String(), nil
}

// Scan reads a column name from the database.
func (c *Column) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*c = Column{}
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scan column: unsupported type %T", src)
	}
	parsed, err := ParseColumn(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// GormDataType keeps the column as text in the schema.
func (Column) GormDataType() string { return "string" }

func (c Column) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Column) UnmarshalText(text []byte) error {
	parsed, err := ParseColumn(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
