package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"mission-board/internal/model"
)

// ResetService archives the Hit List into Done once a week.
type ResetService struct {
	tx       Transactor
	tasks    TaskStore
	settings SettingsStore
	users    UserLister
	ordering *Ordering
	now      func() time.Time
}

func NewResetService(tx Transactor, tasks TaskStore, settings SettingsStore, users UserLister, now func() time.Time) *ResetService {
	if now == nil {
		now = time.Now
	}
	return &ResetService{
		tx:       tx,
		tasks:    tasks,
		settings: settings,
		users:    users,
		ordering: NewOrdering(tasks),
		now:      now,
	}
}

// RunWeeklyResetIfDue archives the user's Hit List when today is Monday and a
// full week has passed since the last reset. It reports whether it ran.
func (s *ResetService) RunWeeklyResetIfDue(ctx context.Context, userID uint) (bool, error) {
	var ran bool
	var archived int
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		now := s.now()
		last, err := s.settings.LastWeeklyReset(ctx, userID)
		if err != nil {
			return err
		}
		if now.Weekday() != time.Monday || now.Unix()-last < weekSeconds {
			return nil
		}

		hitList, err := s.tasks.FindByColumnPrefix(ctx, userID, model.HitListPrefix)
		if err != nil {
			return err
		}
		sortByBoardOrder(hitList)

		// Snapshot Done before the bulk update so archived cards land below it.
		done := make(map[string][]model.Task)
		for _, task := range hitList {
			key := weekKey(task.WeekStartDate)
			if _, ok := done[key]; ok {
				continue
			}
			existing, err := s.tasks.FindByPartition(ctx, model.Partition{UserID: userID, Column: model.Done, Week: task.WeekStartDate})
			if err != nil {
				return err
			}
			done[key] = existing
		}

		if _, err := s.tasks.BulkUpdateByColumnPrefix(ctx, userID, model.HitListPrefix, model.TaskUpdate{
			ColumnName:  model.Some(model.Done),
			Completed:   model.Some(true),
			CompletedAt: model.Some(&now),
		}); err != nil {
			return err
		}

		for _, task := range hitList {
			key := weekKey(task.WeekStartDate)
			done[key] = append(done[key], task)
		}
		for _, ordered := range done {
			if err := s.ordering.rewrite(ctx, ordered, false); err != nil {
				return err
			}
		}

		if err := s.settings.SetLastWeeklyReset(ctx, userID, now.Unix()); err != nil {
			return err
		}
		ran, archived = true, len(hitList)
		return nil
	})
	if err != nil {
		return false, err
	}
	if ran {
		log.Printf("[info] weekly reset user=%d archived=%d", userID, archived)
	}
	return ran, nil
}

// RunAll applies the weekly reset gate to every known user.
func (s *ResetService) RunAll(ctx context.Context) error {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := s.RunWeeklyResetIfDue(ctx, user.ID); err != nil {
			log.Printf("weekly reset for user %d: %v", user.ID, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sortByBoardOrder orders Hit List cards Monday first, then by position.
func sortByBoardOrder(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if wa, wb := weekKey(a.WeekStartDate), weekKey(b.WeekStartDate); wa != wb {
			return wa < wb
		}
		if a.ColumnName.Day != b.ColumnName.Day {
			return a.ColumnName.Day < b.ColumnName.Day
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.ID < b.ID
	})
}

func weekKey(week *string) string {
	if week == nil {
		return ""
	}
	return *week
}
