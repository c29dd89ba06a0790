package bot

import (
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mission-board/internal/model"
	"mission-board/internal/service"
)

var columnAliases = map[string]model.Column{
	"hot":       model.HotList,
	"door":      model.Door,
	"done":      model.Done,
	"mission":   model.MissionList,
	"working":   model.WorkingOn,
	"completed": model.Completed,
	"targets":   model.YearlyTargets,
}

var columnTitles = map[model.ColumnKind]string{
	model.KindHotList:       "🔥 Hot List",
	model.KindDoor:          "🚪 The Door",
	model.KindDone:          "🏁 Done",
	model.KindMissionList:   "🧭 Mission List",
	model.KindWorkingOn:     "🛠 Working On",
	model.KindCompleted:     "🏆 Completed",
	model.KindYearlyTargets: "🎯 Yearly Targets",
}

var missionColumns = []model.Column{model.MissionList, model.WorkingOn, model.Completed, model.YearlyTargets}

// parseColumnAlias accepts stored names, short names and bare weekdays.
func parseColumnAlias(raw string) (model.Column, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if column, ok := columnAliases[value]; ok {
		return column, nil
	}
	if day, err := model.ParseDay(value); err == nil {
		return model.HitList(day), nil
	}
	return model.ParseColumn(value)
}

func parseTaskID(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || value == 0 {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return uint(value), nil
}

// parseMoveArgs reads "<id> <column> [position] [week]".
func parseMoveArgs(args string) (service.MoveRequest, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 || len(fields) > 4 {
		return service.MoveRequest{}, errors.New("usage: /move 12 tue [position] [2025-06-02]")
	}
	taskID, err := parseTaskID(fields[0])
	if err != nil {
		return service.MoveRequest{}, err
	}
	column, err := parseColumnAlias(fields[1])
	if err != nil {
		return service.MoveRequest{}, err
	}
	req := service.MoveRequest{TaskID: taskID, Column: column}
	if len(fields) > 2 {
		pos, err := strconv.Atoi(fields[2])
		if err != nil || pos < 0 {
			return service.MoveRequest{}, fmt.Errorf("position must be a non-negative number, got %q", fields[2])
		}
		req.Position = pos
	}
	if len(fields) > 3 {
		week := fields[3]
		req.Week = &week
	}
	return req, nil
}

func moveToDone(taskID uint) service.MoveRequest {
	return service.MoveRequest{TaskID: taskID, Column: model.Done}
}

// splitCallback parses "<prefix><id>" callback data.
func splitCallback(data string) (string, uint, bool) {
	for _, prefix := range []string{cbDonePrefix, cbCheckPrefix, cbDeletePrefix, cbRestorePrefix, cbAcceptPrefix, cbRetryPrefix, cbDiscardPrefix} {
		if !strings.HasPrefix(data, prefix) {
			continue
		}
		id, err := parseTaskID(strings.TrimPrefix(data, prefix))
		if err != nil {
			return "", 0, false
		}
		return prefix, id, true
	}
	return "", 0, false
}

// userMessage turns a service error into chat text.
func userMessage(err error) string {
	var invalid *service.InvalidOperationError
	var genErr *service.GenerationError
	switch {
	case errors.Is(err, service.ErrNotFound):
		return "Task not found."
	case errors.As(err, &invalid):
		return "⚠️ " + escape(invalid.Reason)
	case errors.As(err, &genErr):
		text := "Couldn't suggest subtasks: " + escape(genErr.Err.Error())
		if genErr.Hint != "" {
			text += "\n💡 " + escape(genErr.Hint)
		}
		return text
	default:
		return "Error: " + escape(err.Error())
	}
}

func columnTitle(column model.Column) string {
	if column.IsHitList() {
		name := column.Day.String()
		return "📌 Hit List · " + strings.ToUpper(name[:1]) + name[1:]
	}
	if title, ok := columnTitles[column.Kind]; ok {
		return title
	}
	return escape(column.String())
}

// renderBoard prints every column for the given week.
func renderBoard(tasks []model.Task, week string) string {
	byColumn := make(map[model.Column][]model.Task)
	for _, task := range tasks {
		if !visibleInWeek(task, week) {
			continue
		}
		byColumn[task.ColumnName] = append(byColumn[task.ColumnName], task)
	}

	columns := []model.Column{model.HotList, model.Door}
	for _, day := range model.Days {
		columns = append(columns, model.HitList(day))
	}
	columns = append(columns, model.Done)
	columns = append(columns, missionColumns...)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 <b>Board</b> · week of %s\n", week))
	for _, column := range columns {
		if column == model.MissionList {
			b.WriteString("\n<b>Mission Board</b>\n")
		}
		b.WriteString(fmt.Sprintf("\n<b>%s</b>\n", columnTitle(column)))
		section := byColumn[column]
		if len(section) == 0 {
			b.WriteString("   <i>empty</i>\n")
			continue
		}
		for _, line := range sectionLines(section) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return strings.TrimSpace(b.String())
}

// sectionLines lists parents in position order with their subtasks under them.
func sectionLines(section []model.Task) []string {
	children := make(map[uint][]model.Task)
	present := make(map[uint]bool)
	for _, task := range section {
		present[task.ID] = true
	}
	var top []model.Task
	for _, task := range section {
		if task.ParentID != nil && present[*task.ParentID] {
			children[*task.ParentID] = append(children[*task.ParentID], task)
			continue
		}
		top = append(top, task)
	}

	lines := make([]string, 0, len(section))
	for _, task := range top {
		lines = append(lines, "• "+formatTask(task))
		for _, child := range children[task.ID] {
			lines = append(lines, "   ↳ "+formatTask(child))
		}
	}
	return lines
}

func formatTask(task model.Task) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>#%d</b> %s", task.ID, escape(normalizeTitle(task.Title))))
	if task.Completed {
		b.WriteString(" ✅")
	}
	if task.LinkedTaskID != nil {
		b.WriteString(" 🔗")
	}
	return b.String()
}

// boardButtons offers tick and finish buttons for this week's Hit List and
// restore buttons for this week's Done column.
func boardButtons(tasks []model.Task, week string) [][]tgbotapi.InlineKeyboardButton {
	var hits, done []model.Task
	for _, task := range tasks {
		if !visibleInWeek(task, week) {
			continue
		}
		switch {
		case task.ColumnName.IsHitList():
			hits = append(hits, task)
		case task.ColumnName.IsDone():
			done = append(done, task)
		}
	}
	sortHitList(hits)

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, task := range hits {
		icon := "☑️"
		if task.Completed {
			icon = "✅"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s #%d · %s", icon, task.ID, shortTitle(task.Title, 20)), fmt.Sprintf("%s%d", cbCheckPrefix, task.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🏁 Done", fmt.Sprintf("%s%d", cbDonePrefix, task.ID)),
		))
	}
	for _, task := range done {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("↩️ #%d · %s", task.ID, shortTitle(task.Title, 24)), fmt.Sprintf("%s%d", cbRestorePrefix, task.ID)),
		))
	}
	if len(rows) > maxButtonsPerMsg {
		rows = rows[:maxButtonsPerMsg]
	}
	return rows
}

func sortHitList(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.ColumnName.Day != b.ColumnName.Day {
			return a.ColumnName.Day < b.ColumnName.Day
		}
		return a.Position < b.Position
	})
}

// visibleInWeek hides other weeks' Door, Hit List and Done cards.
// Undated Done cards stay visible.
func visibleInWeek(task model.Task, week string) bool {
	column := task.ColumnName
	if !column.IsWeekly() && !column.IsDone() {
		return true
	}
	if task.WeekStartDate == nil {
		return column.IsDone()
	}
	return *task.WeekStartDate == week
}

func renderSuggestions(suggestions []service.Suggestion) string {
	var b strings.Builder
	b.WriteString("🧩 <b>Suggested subtasks</b>\n")
	for i, s := range suggestions {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, escape(normalizeTitle(s.Title))))
		if s.Description != "" {
			b.WriteString(fmt.Sprintf("   📝 %s\n", escape(s.Description)))
		}
	}
	return strings.TrimSpace(b.String())
}

func escape(s string) string {
	return html.EscapeString(s)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
