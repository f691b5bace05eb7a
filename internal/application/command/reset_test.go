package command_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robolab-hub/robolab-progress-hub/internal/application/command"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/shared"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/xp"
	"github.com/robolab-hub/robolab-progress-hub/internal/infrastructure/persistence/memory"
)

func newResetFixture(t *testing.T) (*memory.Store, *command.SaveProgressHandler, *command.ResetProgressHandler, *command.ResetXPHandler) {
	t.Helper()
	store := memory.NewStore()
	provider := memory.NewChecklistProvider(testChecklist())
	rules := xp.NewStaticRulesProvider(xp.DefaultRules())
	engine := command.NewApplyProgressDeltaHandler(store, rules, provider, nil, nil)
	save := command.NewSaveProgressHandler(store, engine, nil)
	resetProgress := command.NewResetProgressHandler(store, rules, provider, nil, nil)
	resetXP := command.NewResetXPHandler(store, rules, nil, nil)
	return store, save, resetProgress, resetXP
}

func TestResetXPRobotScopeKeepsProgress(t *testing.T) {
	store, save, _, resetXP := newResetFixture(t)
	ctx := context.Background()

	saveDone(t, save, "s1", "testbot", "a", "b", "c")

	res, err := resetXP.Handle(ctx, command.ResetXPCommand{
		StudentID: "s1",
		Scope:     command.ResetScopeRobot,
		RobotKey:  "testbot",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.StudentStats.TotalXP)
	assert.Equal(t, 1, res.StudentStats.Level)

	stats, err := store.Repos().Stats().RobotStats(ctx, "s1", "testbot")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.XPTotal)
	assert.Equal(t, 0, stats.LevelsComplete)
	assert.Equal(t, 0, stats.MasteryTier)
	// The checklist itself stays done; only the scoring is wiped.
	assert.Equal(t, 3, stats.ItemsDone)

	statuses, err := store.Repos().Progress().ListByRobot(ctx, "s1", "testbot")
	require.NoError(t, err)
	assert.Len(t, statuses, 3)
}

func TestResetXPStudentScope(t *testing.T) {
	store, save, _, resetXP := newResetFixture(t)
	ctx := context.Background()

	saveDone(t, save, "s1", "testbot", "a", "b")
	saveDone(t, save, "s1", "freebot", "x1", "x2")

	res, err := resetXP.Handle(ctx, command.ResetXPCommand{
		StudentID: "s1",
		Scope:     command.ResetScopeStudent,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.StudentStats.TotalXP)

	_, err = store.Repos().Stats().RobotStats(ctx, "s1", "testbot")
	assert.True(t, shared.IsNotFound(err))
	_, err = store.Repos().Stats().RobotStats(ctx, "s1", "freebot")
	assert.True(t, shared.IsNotFound(err))
}

func TestResetXPValidation(t *testing.T) {
	_, _, _, resetXP := newResetFixture(t)
	ctx := context.Background()

	_, err := resetXP.Handle(ctx, command.ResetXPCommand{StudentID: "s1", Scope: "everything"})
	assert.ErrorIs(t, err, shared.ErrInvalidResetScope)
	assert.True(t, shared.IsValidation(err))

	_, err = resetXP.Handle(ctx, command.ResetXPCommand{StudentID: "s1", Scope: command.ResetScopeRobot})
	assert.ErrorIs(t, err, shared.ErrEmptyValue, "robot scope needs a robot key")
}

func TestResetProgressWholeRobot(t *testing.T) {
	store, save, resetProgress, _ := newResetFixture(t)
	ctx := context.Background()

	saveDone(t, save, "s1", "testbot", "a", "b", "c")

	res, err := resetProgress.Handle(ctx, command.ResetProgressCommand{
		StudentID: "s1",
		RobotKey:  "testbot",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.RobotStats.XPTotal)
	assert.Equal(t, 0, res.RobotStats.ItemsDone)
	assert.Equal(t, 0, res.RobotStats.LevelsComplete)
	assert.Equal(t, 0, res.StudentStats.TotalXP)

	statuses, err := store.Repos().Progress().ListByRobot(ctx, "s1", "testbot")
	require.NoError(t, err)
	assert.Empty(t, statuses)

	// The ledger rows are gone too, so completing again grants again.
	again := saveDone(t, save, "s1", "testbot", "a")
	assert.Equal(t, 15, again.XP.XPEarned)
}

func TestResetProgressUpToLevelIndex(t *testing.T) {
	store, save, resetProgress, _ := newResetFixture(t)
	ctx := context.Background()

	// Complete both levels: 70 XP for the first, 60 for the second.
	saveDone(t, save, "s1", "testbot", "a", "b", "c")
	saveDone(t, save, "s1", "testbot", "d", "e")

	idx := 0
	res, err := resetProgress.Handle(ctx, command.ResetProgressCommand{
		StudentID:      "s1",
		RobotKey:       "testbot",
		UpToLevelIndex: &idx,
	})
	require.NoError(t, err)

	// Only the second level's grants remain: 25 + 10 item XP + 25 bonus.
	assert.Equal(t, 60, res.RobotStats.XPTotal)
	assert.Equal(t, 2, res.RobotStats.ItemsDone)
	assert.Equal(t, 1, res.RobotStats.LevelsComplete)
	assert.Equal(t, 60, res.StudentStats.TotalXP)
	assert.Equal(t, 2, res.StudentStats.Level)
	assert.Equal(t, 10, res.StudentStats.XPInLevel)

	statuses, err := store.Repos().Progress().ListByRobot(ctx, "s1", "testbot")
	require.NoError(t, err)
	assert.Len(t, statuses, 2)
	assert.Contains(t, statuses, "d")
	assert.Contains(t, statuses, "e")
}

func TestResetProgressUnknownRobot(t *testing.T) {
	_, _, resetProgress, _ := newResetFixture(t)

	_, err := resetProgress.Handle(context.Background(), command.ResetProgressCommand{
		StudentID: "s1",
		RobotKey:  "nosuchbot",
	})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}
