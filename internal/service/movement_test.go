package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mission-board/internal/model"
)

func TestCopyHotListToDoor(t *testing.T) {
	f := newFixture(t, nil)
	t1 := f.create(t, "Write report", model.HotList)
	assert.Nil(t, t1.WeekStartDate)
	assert.Equal(t, 0, t1.Position)

	copyID, err := f.board.CopyTask(f.ctx, f.userID, MoveRequest{TaskID: t1.ID, Column: model.Door, Week: weekPtr(thisWeek)})
	require.NoError(t, err)

	original := f.get(t, t1.ID)
	require.NotNil(t, original.LinkedTaskID)
	assert.Equal(t, copyID, *original.LinkedTaskID)
	assert.False(t, original.IsMovedToHitList)
	assert.Equal(t, model.HotList, original.ColumnName)

	dup := f.get(t, copyID)
	require.NotNil(t, dup.Label)
	assert.Equal(t, model.LabelDoor, *dup.Label)
	assert.Equal(t, model.Door, dup.ColumnName)
	assert.Nil(t, dup.ParentID)
	require.NotNil(t, dup.LinkedTaskID)
	assert.Equal(t, t1.ID, *dup.LinkedTaskID)
	assert.Equal(t, thisWeek, *dup.WeekStartDate)
	assert.Equal(t, "Write report", dup.Title)
}

func TestCopyIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	t1 := f.create(t, "Write report", model.HotList)
	req := MoveRequest{TaskID: t1.ID, Column: model.Door, Week: weekPtr(thisWeek)}

	first, err := f.board.CopyTask(f.ctx, f.userID, req)
	require.NoError(t, err)
	second, err := f.board.CopyTask(f.ctx, f.userID, req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"Write report"}, f.titles(t, model.Door, weekPtr(thisWeek)))
}

func TestCopyRepointsLinkedOriginal(t *testing.T) {
	f := newFixture(t, nil)
	t1 := f.create(t, "Write report", model.HotList)
	doorID, err := f.board.CopyTask(f.ctx, f.userID, MoveRequest{TaskID: t1.ID, Column: model.Door, Week: weekPtr(thisWeek)})
	require.NoError(t, err)

	hitID, err := f.board.CopyTask(f.ctx, f.userID, MoveRequest{TaskID: t1.ID, Column: model.HitList(model.Mon), Week: weekPtr(thisWeek)})
	require.NoError(t, err)
	assert.NotEqual(t, doorID, hitID)

	assert.Equal(t, hitID, *f.get(t, t1.ID).LinkedTaskID)
	assert.Equal(t, t1.ID, *f.get(t, hitID).LinkedTaskID)
	assert.Nil(t, f.get(t, doorID).LinkedTaskID)
	assert.Equal(t, []string{"Write report"}, f.titles(t, model.Door, weekPtr(thisWeek)))
}

func TestCopyAgainAfterWeeklyReset(t *testing.T) {
	const nextWeek = "2025-06-09"
	f := newFixture(t, nil)
	review := f.create(t, "Weekly review", model.HotList)
	firstID, err := f.board.CopyTask(f.ctx, f.userID, MoveRequest{TaskID: review.ID, Column: model.HitList(model.Mon), Week: weekPtr(thisWeek)})
	require.NoError(t, err)

	f.clock.now = nextMonday
	ran, err := f.resets.RunWeeklyResetIfDue(f.ctx, f.userID)
	require.NoError(t, err)
	require.True(t, ran)
	require.Equal(t, model.Done, f.get(t, firstID).ColumnName)

	secondID, err := f.board.CopyTask(f.ctx, f.userID, MoveRequest{TaskID: review.ID, Column: model.HitList(model.Mon), Week: weekPtr(nextWeek)})
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID)
	assert.Equal(t, []string{"Weekly review"}, f.titles(t, model.HitList(model.Mon), weekPtr(nextWeek)))
	assert.Equal(t, secondID, *f.get(t, review.ID).LinkedTaskID)
	assert.Nil(t, f.get(t, firstID).LinkedTaskID)
}

func TestDoorSubtaskCopiedAgainAfterWeeklyReset(t *testing.T) {
	const nextWeek = "2025-06-09"
	f := newFixture(t, nil)
	parent := f.create(t, "Ship release", model.Door)
	sub, err := f.board.CreateTask(f.ctx, f.userID, TaskInput{Title: "Tag build", ParentID: &parent.ID})
	require.NoError(t, err)

	first, err := f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: sub.ID, Column: model.HitList(model.Tue), Week: weekPtr(thisWeek)})
	require.NoError(t, err)
	require.NotNil(t, first.CopyID)

	f.clock.now = nextMonday
	_, err = f.resets.RunWeeklyResetIfDue(f.ctx, f.userID)
	require.NoError(t, err)

	second, err := f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: sub.ID, Column: model.HitList(model.Tue), Week: weekPtr(nextWeek)})
	require.NoError(t, err)
	require.NotNil(t, second.CopyID)
	assert.NotEqual(t, *first.CopyID, *second.CopyID)

	original := f.get(t, sub.ID)
	assert.Equal(t, *second.CopyID, *original.LinkedTaskID)
	assert.True(t, original.IsMovedToHitList)
	assert.Nil(t, f.get(t, *first.CopyID).LinkedTaskID)
}

func TestCopyRejectsUnsupportedSource(t *testing.T) {
	f := newFixture(t, nil)
	mission := f.create(t, "Learn Go", model.MissionList)

	_, err := f.board.CopyTask(f.ctx, f.userID, MoveRequest{TaskID: mission.ID, Column: model.Door})
	require.Error(t, err)
	assert.True(t, isInvalidOperation(err))
}

func TestMoveDoorCopyToHitListIsTransfer(t *testing.T) {
	f := newFixture(t, nil)
	t1 := f.create(t, "Write report", model.HotList)
	copyID, err := f.board.CopyTask(f.ctx, f.userID, MoveRequest{TaskID: t1.ID, Column: model.Door, Week: weekPtr(thisWeek)})
	require.NoError(t, err)

	result, err := f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: copyID, Column: model.HitList(model.Tue), Week: weekPtr(thisWeek)})
	require.NoError(t, err)
	assert.False(t, result.Merged)
	assert.Nil(t, result.CopyID)

	moved := f.get(t, copyID)
	assert.Equal(t, model.HitList(model.Tue), moved.ColumnName)
	assert.Equal(t, model.LabelHit, *moved.Label)
	assert.Nil(t, moved.OriginColumn)
	assert.Equal(t, thisWeek, *moved.WeekStartDate)
	assert.Empty(t, f.titles(t, model.Door, weekPtr(thisWeek)))
}

func TestMoveDoorSubtaskCopiesAndMergesBack(t *testing.T) {
	f := newFixture(t, nil)
	parent := f.create(t, "Ship release", model.Door)
	require.Equal(t, thisWeek, *parent.WeekStartDate)

	sub, err := f.board.CreateTask(f.ctx, f.userID, TaskInput{Title: "Tag build", ParentID: &parent.ID})
	require.NoError(t, err)
	assert.Equal(t, model.Door, sub.ColumnName)
	assert.Equal(t, model.LabelDoor, *sub.Label)
	assert.Equal(t, thisWeek, *sub.WeekStartDate)

	// Week unset resolves to the current Monday.
	result, err := f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: sub.ID, Column: model.HitList(model.Wed)})
	require.NoError(t, err)
	require.NotNil(t, result.CopyID)

	dup := f.get(t, *result.CopyID)
	assert.Equal(t, model.HitList(model.Wed), dup.ColumnName)
	assert.Equal(t, model.LabelHit, *dup.Label)
	assert.Nil(t, dup.ParentID)
	assert.Equal(t, thisWeek, *dup.WeekStartDate)
	assert.Equal(t, sub.ID, *dup.LinkedTaskID)

	original := f.get(t, sub.ID)
	assert.Equal(t, dup.ID, *original.LinkedTaskID)
	assert.True(t, original.IsMovedToHitList)
	assert.Equal(t, model.Door, original.ColumnName)

	result, err = f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: dup.ID, Column: model.Door})
	require.NoError(t, err)
	assert.True(t, result.Merged)

	original = f.get(t, sub.ID)
	assert.Nil(t, original.LinkedTaskID)
	assert.False(t, original.IsMovedToHitList)

	gone, err := f.tasks.FindByID(f.ctx, dup.ID, f.userID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	f.requireDense(t, model.HitList(model.Wed), weekPtr(thisWeek))
}

func TestDoorCapacity(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, "Big rock", model.Door)

	_, err := f.board.CreateTask(f.ctx, f.userID, TaskInput{Title: "Second rock", Column: model.Door})
	require.Error(t, err)
	assert.True(t, isInvalidOperation(err))
	assert.Contains(t, err.Error(), "The Door already has a task this week")

	hot := f.create(t, "Another", model.HotList)
	_, err = f.board.CopyTask(f.ctx, f.userID, MoveRequest{TaskID: hot.ID, Column: model.Door})
	require.Error(t, err)
	assert.True(t, isInvalidOperation(err))
	assert.Nil(t, f.get(t, hot.ID).LinkedTaskID)

	// Another week has its own Door.
	_, err = f.board.CopyTask(f.ctx, f.userID, MoveRequest{TaskID: hot.ID, Column: model.Door, Week: weekPtr("2025-06-09")})
	require.NoError(t, err)
}

func TestDoorCapacityIgnoresSubtasks(t *testing.T) {
	f := newFixture(t, nil)
	parent := f.create(t, "Big rock", model.Door)
	for _, title := range []string{"a", "b", "c"} {
		_, err := f.board.CreateTask(f.ctx, f.userID, TaskInput{Title: title, ParentID: &parent.ID})
		require.NoError(t, err)
	}
	assert.Len(t, f.titles(t, model.Door, weekPtr(thisWeek)), 4)
	f.requireDense(t, model.Door, weekPtr(thisWeek))
}

func TestHitListCapacity(t *testing.T) {
	f := newFixture(t, nil)
	monday := model.HitList(model.Mon)
	for _, title := range []string{"one", "two", "three", "four"} {
		f.create(t, title, monday)
	}

	_, err := f.board.CreateTask(f.ctx, f.userID, TaskInput{Title: "five", Column: monday})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hit_list_mon already has 4 tasks this week")

	hot := f.create(t, "five", model.HotList)
	_, err = f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: hot.ID, Column: monday})
	require.Error(t, err)
	assert.True(t, isInvalidOperation(err))
	assert.Equal(t, model.HotList, f.get(t, hot.ID).ColumnName)

	_, err = f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: hot.ID, Column: model.HitList(model.Tue)})
	require.NoError(t, err)
}

func TestReorderInsideFullHitListIsAllowed(t *testing.T) {
	f := newFixture(t, nil)
	monday := model.HitList(model.Mon)
	var last *model.Task
	for _, title := range []string{"one", "two", "three", "four"} {
		last = f.create(t, title, monday)
	}

	_, err := f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: last.ID, Column: monday, Position: 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"four", "one", "two", "three"}, f.titles(t, monday, weekPtr(thisWeek)))
}

func TestMoveIntoDoneAndRestore(t *testing.T) {
	f := newFixture(t, nil)
	thursday := model.HitList(model.Thu)
	task := f.create(t, "Call bank", thursday)

	_, err := f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: task.ID, Column: model.Done})
	require.NoError(t, err)

	done := f.get(t, task.ID)
	assert.Equal(t, model.Done, done.ColumnName)
	assert.True(t, done.Completed)
	require.NotNil(t, done.CompletedAt)
	require.NotNil(t, done.OriginColumn)
	assert.Equal(t, thursday, *done.OriginColumn)
	assert.Equal(t, thisWeek, *done.WeekStartDate)
	f.requireCompletionConsistent(t)

	restored, err := f.board.RestoreTask(f.ctx, f.userID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, thursday, restored.ColumnName)
	assert.False(t, restored.Completed)
	assert.Nil(t, restored.CompletedAt)
	assert.Nil(t, restored.OriginColumn)
	assert.Equal(t, thisWeek, *restored.WeekStartDate)
	f.requireCompletionConsistent(t)
}

func TestRestoreFromDoneToHotListDropsWeek(t *testing.T) {
	f := newFixture(t, nil)
	task := f.create(t, "Idea", model.HotList)

	_, err := f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: task.ID, Column: model.Done})
	require.NoError(t, err)
	restored, err := f.board.RestoreTask(f.ctx, f.userID, task.ID)
	require.NoError(t, err)

	assert.Equal(t, model.HotList, restored.ColumnName)
	assert.Nil(t, restored.WeekStartDate)
	assert.False(t, restored.Completed)
}

func TestRestoreRequiresDone(t *testing.T) {
	f := newFixture(t, nil)
	task := f.create(t, "Idea", model.HotList)

	_, err := f.board.RestoreTask(f.ctx, f.userID, task.ID)
	require.Error(t, err)
	assert.True(t, isInvalidOperation(err))
}

func TestHotListToHitListRecordsOrigin(t *testing.T) {
	f := newFixture(t, nil)
	task := f.create(t, "Groceries", model.HotList)

	_, err := f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: task.ID, Column: model.HitList(model.Fri)})
	require.NoError(t, err)

	moved := f.get(t, task.ID)
	assert.Equal(t, model.HotList, *moved.OriginColumn)
	assert.Equal(t, model.LabelHit, *moved.Label)
	assert.Equal(t, thisWeek, *moved.WeekStartDate)

	_, err = f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: task.ID, Column: model.HotList})
	require.NoError(t, err)
	back := f.get(t, task.ID)
	assert.Nil(t, back.WeekStartDate)
}

func TestDoorSubtaskCannotLeaveDoor(t *testing.T) {
	f := newFixture(t, nil)
	parent := f.create(t, "Ship release", model.Door)
	sub, err := f.board.CreateTask(f.ctx, f.userID, TaskInput{Title: "Tag build", ParentID: &parent.ID})
	require.NoError(t, err)

	_, err = f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: sub.ID, Column: model.Done})
	require.Error(t, err)
	assert.True(t, isInvalidOperation(err))

	_, err = f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: parent.ID, Column: model.Done})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subtasks")
	assert.Equal(t, model.Door, f.get(t, parent.ID).ColumnName)
}

func TestMovePositionsStayDense(t *testing.T) {
	f := newFixture(t, nil)
	a := f.create(t, "A", model.HotList)
	b := f.create(t, "B", model.HotList)
	c := f.create(t, "C", model.HotList)

	_, err := f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: c.ID, Column: model.HotList, Position: 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, f.titles(t, model.HotList, nil))

	_, err = f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: c.ID, Column: model.HotList, Position: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, f.titles(t, model.HotList, nil))

	// Out of range positions are clamped.
	_, err = f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: a.ID, Column: model.HitList(model.Mon), Position: 99})
	require.NoError(t, err)
	_, err = f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: b.ID, Column: model.HitList(model.Mon), Position: -3})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, f.titles(t, model.HitList(model.Mon), weekPtr(thisWeek)))

	f.requireDense(t, model.HotList, nil)
	f.requireDense(t, model.HitList(model.Mon), weekPtr(thisWeek))
}

func TestMoveRejectsBadWeek(t *testing.T) {
	f := newFixture(t, nil)
	task := f.create(t, "A", model.HotList)

	_, err := f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: task.ID, Column: model.Door, Week: weekPtr("next week")})
	require.Error(t, err)
	assert.True(t, isInvalidOperation(err))
}

func TestMoveUnknownTask(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.board.MoveTask(f.ctx, f.userID, MoveRequest{TaskID: 999, Column: model.Door})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMoveOtherUsersTask(t *testing.T) {
	f := newFixture(t, nil)
	task := f.create(t, "Mine", model.HotList)
	other, err := f.users.Create(f.ctx, "someone else")
	require.NoError(t, err)

	_, err = f.board.MoveTask(f.ctx, other.ID, MoveRequest{TaskID: task.ID, Column: model.Done})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestClassifyMove(t *testing.T) {
	door := model.LabelDoor
	parent := uint(1)
	linked := uint(2)

	tests := []struct {
		name string
		task model.Task
		dest model.Column
		want moveKind
	}{
		{
			name: "linked hit list copy back to door merges",
			task: model.Task{ColumnName: model.HitList(model.Mon), LinkedTaskID: &linked},
			dest: model.Door,
			want: moveMerge,
		},
		{
			name: "unlinked hit list task to door transfers",
			task: model.Task{ColumnName: model.HitList(model.Mon)},
			dest: model.Door,
			want: moveTransfer,
		},
		{
			name: "door subtask to hit list copies",
			task: model.Task{ColumnName: model.Door, ParentID: &parent, Label: &door},
			dest: model.HitList(model.Wed),
			want: moveCopy,
		},
		{
			name: "door parent to hit list transfers",
			task: model.Task{ColumnName: model.Door, Label: &door},
			dest: model.HitList(model.Wed),
			want: moveTransfer,
		},
		{
			name: "hot list to done transfers",
			task: model.Task{ColumnName: model.HotList},
			dest: model.Done,
			want: moveTransfer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyMove(&tt.task, tt.dest))
		})
	}
}
