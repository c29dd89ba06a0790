package bot

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID
	b.ack(cb)

	prefix, taskID, ok := splitCallback(data)
	if !ok {
		return nil
	}
	log.Printf("[info] callback %s user=%d task=%d", strings.TrimSuffix(prefix, ":"), cb.From.ID, taskID)

	switch prefix {
	case cbDonePrefix:
		return b.askDoneConfirmation(ctx, chatID, cb.From, taskID)
	case cbDeletePrefix:
		return b.askDeleteConfirmation(ctx, chatID, cb.From, taskID)
	case cbCheckPrefix:
		user, err := b.ensureUser(ctx, cb.From)
		if err != nil {
			return err
		}
		return b.toggleCheck(ctx, chatID, user, taskID)
	case cbRestorePrefix:
		user, err := b.ensureUser(ctx, cb.From)
		if err != nil {
			return err
		}
		return b.restoreAndRefresh(ctx, chatID, user, taskID)
	case cbAcceptPrefix:
		return b.acceptSuggestions(ctx, chatID, cb.From, taskID)
	case cbRetryPrefix:
		pending, ok := b.takeSuggestions(cb.From.ID, taskID)
		if !ok {
			return b.sendText(chatID, "That proposal expired. Run /subtasks again.")
		}
		b.setConversation(cb.From.ID, &conversationState{
			stage:    stageFeedback,
			parentID: taskID,
			previous: pending.suggestions,
		})
		return b.sendWithReplyMarkup(chatID, "💬 What should be different this time?", cancelKeyboard())
	case cbDiscardPrefix:
		b.takeSuggestions(cb.From.ID, taskID)
		return b.sendMenuPlaceholder(chatID)
	default:
		return nil
	}
}

func (b *Bot) acceptSuggestions(ctx context.Context, chatID int64, from *tgbotapi.User, parentID uint) error {
	pending, ok := b.takeSuggestions(from.ID, parentID)
	if !ok {
		return b.sendText(chatID, "That proposal expired. Run /subtasks again.")
	}
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	created, err := b.subtasks.Accept(ctx, user.ID, parentID, pending.suggestions)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if err := b.sendText(chatID, fmt.Sprintf("🧩 Added %d subtasks to The Door.", len(created))); err != nil {
		return err
	}
	return b.sendBoard(ctx, chatID, user)
}

func (b *Bot) askDoneConfirmation(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.board.GetTask(ctx, user.ID, taskID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if task.ColumnName.IsDone() {
		return b.sendText(chatID, "That task is already done.")
	}

	text := fmt.Sprintf("Move «%s» (#%d) to Done?", escape(normalizeTitle(task.Title)), task.ID)
	b.setConfirmation(from.ID, confirmationRequest{taskID: task.ID, action: actionDone})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.board.GetTask(ctx, user.ID, taskID)
	if err != nil {
		return b.sendError(chatID, err)
	}

	text := fmt.Sprintf("Delete «%s» (#%d) and its subtasks?", escape(normalizeTitle(task.Title)), task.ID)
	b.setConfirmation(from.ID, confirmationRequest{taskID: task.ID, action: actionDelete})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) finishTaskAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.board.GetTask(ctx, user.ID, taskID)
	if err != nil {
		return b.sendTextWithRemove(chatID, userMessage(err))
	}
	if _, err := b.board.MoveTask(ctx, user.ID, moveToDone(taskID)); err != nil {
		return b.sendTextWithRemove(chatID, userMessage(err))
	}

	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("🏁 «%s» is done.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendBoard(ctx, chatID, user)
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.board.GetTask(ctx, user.ID, taskID)
	if err != nil {
		return b.sendTextWithRemove(chatID, userMessage(err))
	}
	if err := b.board.DeleteTask(ctx, user.ID, taskID); err != nil {
		return b.sendTextWithRemove(chatID, userMessage(err))
	}

	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("\U0001F5D1 «%s» deleted.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendBoard(ctx, chatID, user)
}
