package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"mission-board/internal/model"
)

const missingCredentialsHint = "set ANTHROPIC_API_KEY to enable subtask suggestions"

// Suggestion is one proposed subtask.
type Suggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SuggestRequest carries the parent task and optional feedback on a previous attempt.
type SuggestRequest struct {
	Title           string
	Description     string
	PreviousAttempt []Suggestion
	Feedback        string
}

// Suggester produces subtask suggestions. It is not retried by the board.
type Suggester interface {
	SuggestSubtasks(ctx context.Context, req SuggestRequest) ([]Suggestion, error)
}

// SubtaskService breaks Door tasks into child tasks.
type SubtaskService struct {
	tx        Transactor
	tasks     TaskStore
	suggester Suggester
}

func NewSubtaskService(tx Transactor, tasks TaskStore, suggester Suggester) *SubtaskService {
	return &SubtaskService{tx: tx, tasks: tasks, suggester: suggester}
}

// Suggest asks the suggester for subtasks of a Door task.
func (s *SubtaskService) Suggest(ctx context.Context, userID, parentID uint, previous []Suggestion, feedback string) ([]Suggestion, error) {
	parent, err := s.doorParent(ctx, userID, parentID)
	if err != nil {
		return nil, err
	}
	if s.suggester == nil {
		return nil, &GenerationError{Err: ErrMissingCredentials, Hint: missingCredentialsHint}
	}

	req := SuggestRequest{
		Title:           parent.Title,
		PreviousAttempt: previous,
		Feedback:        strings.TrimSpace(feedback),
	}
	if parent.Description != nil {
		req.Description = *parent.Description
	}

	suggestions, err := s.suggester.SuggestSubtasks(ctx, req)
	if err != nil {
		var genErr *GenerationError
		if errors.As(err, &genErr) {
			return nil, genErr
		}
		wrapped := &GenerationError{Err: err}
		if errors.Is(err, ErrMissingCredentials) {
			wrapped.Hint = missingCredentialsHint
		}
		return nil, wrapped
	}
	return suggestions, nil
}

// Accept stores the chosen suggestions as subtasks below the parent's existing
// Door cards. Blank titles are skipped.
func (s *SubtaskService) Accept(ctx context.Context, userID, parentID uint, accepted []Suggestion) ([]model.Task, error) {
	var created []model.Task
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		parent, err := s.doorParent(ctx, userID, parentID)
		if err != nil {
			return err
		}
		count, err := s.tasks.CountInPartition(ctx, parent.Partition())
		if err != nil {
			return err
		}

		position := int(count)
		for _, suggestion := range accepted {
			title := strings.TrimSpace(suggestion.Title)
			if title == "" {
				continue
			}
			door := model.LabelDoor
			parentRef := parent.ID
			child := model.Task{
				UserID:        userID,
				Title:         title,
				Description:   trimmedOrNil(&suggestion.Description),
				Label:         &door,
				ColumnName:    parent.ColumnName,
				Position:      position,
				ParentID:      &parentRef,
				WeekStartDate: parent.WeekStartDate,
			}
			if err := s.tasks.Insert(ctx, &child); err != nil {
				return err
			}
			created = append(created, child)
			position++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[info] subtasks created parent=%d user=%d count=%d", parentID, userID, len(created))
	return created, nil
}

func (s *SubtaskService) doorParent(ctx context.Context, userID, parentID uint) (*model.Task, error) {
	parent, err := s.tasks.FindByID(ctx, parentID, userID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, notFound(parentID)
	}
	if !parent.ColumnName.IsDoor() || parent.ParentID != nil {
		return nil, invalidf("subtasks can only be generated for a Door task")
	}
	return parent, nil
}
