package bot

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mission-board/internal/model"
	"mission-board/internal/service"
)

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>This is your Mission Board.</b>\n\n"+
			"Capture ideas on the Hot List, pick one big rock for The Door, "+
			"and plan up to four tasks per day on the Hit List. Every Monday the "+
			"Hit List is archived into Done.\n\nSee /help for the commands.",
		escape(name),
	)

	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /board — show this week's board\n" +
		"• /add &lt;title&gt; — add to the Hot List (no title starts a dialog)\n" +
		"• /mission &lt;title&gt; — add to the Mission List\n" +
		"• /door &lt;id&gt; — put a Hot List task on The Door\n" +
		"• /hit &lt;id&gt; &lt;mon..fri&gt; — schedule a task on a Hit List day\n" +
		"• /move &lt;id&gt; &lt;column&gt; [position] — move a card anywhere\n" +
		"• /up &lt;id&gt;, /down &lt;id&gt; — nudge a card within its column\n" +
		"• /check &lt;id&gt; — tick a Hit List task on or off\n" +
		"• /done &lt;id&gt; — move a task to Done\n" +
		"• /restore &lt;id&gt; — bring a Done task back\n" +
		"• /delete &lt;id&gt; — delete a task and its subtasks\n" +
		"• /subtasks &lt;id&gt; — suggest subtasks for The Door task\n" +
		"• /cancel — stop the current input\n\n" +
		"Columns: hot, door, mon, tue, wed, thu, fri, done, mission, working, completed, targets."
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleBoard(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	log.Printf("[info] show board for user=%d", user.ID)
	return b.sendBoard(ctx, msg.Chat.ID, user)
}

func (b *Bot) sendBoard(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.board.ListTasks(ctx, user.ID)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Couldn't load the board: %s", escape(err.Error())))
	}

	week := service.CurrentWeekMonday(b.now())
	msg := tgbotapi.NewMessage(chatID, renderBoard(tasks, week))
	msg.ParseMode = tgbotapi.ModeHTML
	if buttons := boardButtons(tasks, week); len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	} else {
		msg.ReplyMarkup = mainMenuKeyboard()
	}
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleAdd(ctx context.Context, msg *tgbotapi.Message, column model.Column) error {
	title := strings.TrimSpace(msg.CommandArguments())
	if title == "" {
		return b.startNewTaskConversation(ctx, msg, column)
	}
	return b.finishTaskCreation(ctx, msg.From, service.TaskInput{Title: title, Column: column}, msg.Chat.ID)
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message, column model.Column) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	log.Printf("[info] start new task conversation user=%d column=%s", msg.From.ID, column)
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle, column: column})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The title can't be empty.", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Add a short description (or press Skip).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.input.Description = &text
		}
		state.input.Column = state.column
		err := b.finishTaskCreation(ctx, msg.From, state.input, msg.Chat.ID)
		b.clearConversation(msg.From.ID)
		return err
	case stageFeedback:
		b.clearConversation(msg.From.ID)
		user, err := b.ensureUser(ctx, msg.From)
		if err != nil {
			return err
		}
		return b.suggestAndShow(ctx, msg.Chat.ID, msg.From.ID, user, state.parentID, state.previous, text)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Dialog reset. Try /add again.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, from *tgbotapi.User, input service.TaskInput, chatID int64) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.board.CreateTask(ctx, user.ID, input)
	if err != nil {
		return b.sendError(chatID, err)
	}

	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(normalizeTitle(task.Title))))
	if task.Description != nil {
		summary.WriteString(fmt.Sprintf("• <b>Description:</b> %s\n", escape(*task.Description)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Column:</b> %s\n", columnTitle(task.ColumnName)))

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(summary.String()))
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return err
	}
	return b.sendBoard(ctx, chatID, user)
}

func (b *Bot) handleDoor(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		return b.sendText(msg.Chat.ID, "Give me a task ID: /door 12")
	}
	taskID, err := parseTaskID(args[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, "The task ID must be a number.")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	if _, err := b.board.CopyTask(ctx, user.ID, service.MoveRequest{TaskID: taskID, Column: model.Door}); err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	return b.sendBoard(ctx, msg.Chat.ID, user)
}

func (b *Bot) handleHit(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		return b.sendText(msg.Chat.ID, "Usage: /hit 12 tue")
	}
	taskID, err := parseTaskID(args[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, "The task ID must be a number.")
	}
	day, err := model.ParseDay(args[1])
	if err != nil {
		return b.sendText(msg.Chat.ID, "The day must be one of mon, tue, wed, thu, fri.")
	}

	return b.moveAndReport(ctx, msg, service.MoveRequest{TaskID: taskID, Column: model.HitList(day)})
}

func (b *Bot) handleMove(ctx context.Context, msg *tgbotapi.Message) error {
	req, err := parseMoveArgs(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	return b.moveAndReport(ctx, msg, req)
}

func (b *Bot) moveAndReport(ctx context.Context, msg *tgbotapi.Message, req service.MoveRequest) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	result, err := b.board.MoveTask(ctx, user.ID, req)
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}

	switch {
	case result.Merged:
		if err := b.sendText(msg.Chat.ID, "🔗 The copy went back to The Door."); err != nil {
			return err
		}
	case result.CopyID != nil:
		if err := b.sendText(msg.Chat.ID, fmt.Sprintf("📌 Scheduled as #%d on %s.", *result.CopyID, columnTitle(req.Column))); err != nil {
			return err
		}
	}
	return b.sendBoard(ctx, msg.Chat.ID, user)
}

func (b *Bot) handleSwap(ctx context.Context, msg *tgbotapi.Message, dir service.Direction) error {
	taskID, err := parseTaskID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Give me a task ID: /%s 12", dir))
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	if err := b.board.ReorderAdjacent(ctx, user.ID, taskID, dir); err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	return b.sendBoard(ctx, msg.Chat.ID, user)
}

func (b *Bot) handleCheck(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give me a task ID: /check 12")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.toggleCheck(ctx, msg.Chat.ID, user, taskID)
}

func (b *Bot) toggleCheck(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	task, err := b.board.GetTask(ctx, user.ID, taskID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if _, err := b.board.SetCompleted(ctx, user.ID, taskID, !task.Completed); err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendBoard(ctx, chatID, user)
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give me a task ID: /done 12")
	}
	return b.askDoneConfirmation(ctx, msg.Chat.ID, msg.From, taskID)
}

func (b *Bot) handleRestore(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give me a task ID: /restore 12")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.restoreAndRefresh(ctx, msg.Chat.ID, user, taskID)
}

func (b *Bot) restoreAndRefresh(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	task, err := b.board.RestoreTask(ctx, user.ID, taskID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if err := b.sendText(chatID, fmt.Sprintf("↩️ «%s» is back on %s.", escape(normalizeTitle(task.Title)), columnTitle(task.ColumnName))); err != nil {
		return err
	}
	return b.sendBoard(ctx, chatID, user)
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give me a task ID: /delete 12")
	}
	return b.askDeleteConfirmation(ctx, msg.Chat.ID, msg.From, taskID)
}

func (b *Bot) handleSubtasks(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give me the ID of The Door task: /subtasks 12")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.suggestAndShow(ctx, msg.Chat.ID, msg.From.ID, user, taskID, nil, "")
}

// suggestAndShow asks for subtasks and offers them with accept, retry and discard buttons.
func (b *Bot) suggestAndShow(ctx context.Context, chatID, telegramID int64, user *model.User, parentID uint, previous []service.Suggestion, feedback string) error {
	if err := b.sendText(chatID, "🤔 Thinking about subtasks..."); err != nil {
		return err
	}

	suggestions, err := b.subtasks.Suggest(ctx, user.ID, parentID, previous, feedback)
	if err != nil {
		return b.sendError(chatID, err)
	}
	b.setSuggestions(telegramID, pendingSuggestions{parentID: parentID, suggestions: suggestions})

	msg := tgbotapi.NewMessage(chatID, renderSuggestions(suggestions))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Add them", fmt.Sprintf("%s%d", cbAcceptPrefix, parentID)),
			tgbotapi.NewInlineKeyboardButtonData("🔁 Try again", fmt.Sprintf("%s%d", cbRetryPrefix, parentID)),
			tgbotapi.NewInlineKeyboardButtonData("✖️ Discard", fmt.Sprintf("%s%d", cbDiscardPrefix, parentID)),
		),
	)
	_, err = b.api.Send(msg)
	return err
}
