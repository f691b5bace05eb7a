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

func TestRosterCreateAndList(t *testing.T) {
	store := memory.NewStore()
	roster := command.NewStudentRosterHandler(store, nil, nil)
	ctx := context.Background()

	s, err := roster.Create(ctx, "  Aruzhan  ")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "Aruzhan", s.DisplayName)

	_, err = roster.Create(ctx, "   ")
	assert.Error(t, err, "blank display name rejected")

	students, err := store.Repos().Students().List(ctx)
	require.NoError(t, err)
	assert.Len(t, students, 1)
}

func TestRosterBulkCreateSkipsBlanks(t *testing.T) {
	store := memory.NewStore()
	roster := command.NewStudentRosterHandler(store, nil, nil)

	created, err := roster.BulkCreate(context.Background(), []string{"Dias", "", "  ", "Aigerim"})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "Dias", created[0].DisplayName)
	assert.Equal(t, "Aigerim", created[1].DisplayName)

	_, err = roster.BulkCreate(context.Background(), []string{"", "  "})
	assert.Error(t, err, "no usable names")

	students, err := store.Repos().Students().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, students, 2)
}

func TestRosterRename(t *testing.T) {
	store := memory.NewStore()
	roster := command.NewStudentRosterHandler(store, nil, nil)
	ctx := context.Background()

	s, err := roster.Create(ctx, "Old Name")
	require.NoError(t, err)

	require.NoError(t, roster.Rename(ctx, s.ID, "New Name"))

	got, err := store.Repos().Students().GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.DisplayName)

	err = roster.Rename(ctx, "no-such-id", "Anything")
	assert.True(t, shared.IsNotFound(err))
}

func TestRosterDeleteWipesStudentData(t *testing.T) {
	store := memory.NewStore()
	provider := memory.NewChecklistProvider(testChecklist())
	rules := xp.NewStaticRulesProvider(xp.DefaultRules())
	engine := command.NewApplyProgressDeltaHandler(store, rules, provider, nil, nil)
	save := command.NewSaveProgressHandler(store, engine, nil)
	roster := command.NewStudentRosterHandler(store, nil, nil)
	ctx := context.Background()

	s, err := roster.Create(ctx, "Doomed")
	require.NoError(t, err)
	saveDone(t, save, s.ID, "testbot", "a", "b")

	require.NoError(t, roster.Delete(ctx, s.ID))

	_, err = store.Repos().Students().GetByID(ctx, s.ID)
	assert.True(t, shared.IsNotFound(err))

	statuses, err := store.Repos().Progress().ListByRobot(ctx, s.ID, "testbot")
	require.NoError(t, err)
	assert.Empty(t, statuses)

	_, err = store.Repos().Stats().RobotStats(ctx, s.ID, "testbot")
	assert.True(t, shared.IsNotFound(err))

	sum, err := store.Repos().Ledger().SumDeltas(ctx, s.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 0, sum)

	err = roster.Delete(ctx, s.ID)
	assert.True(t, shared.IsNotFound(err), "second delete reports not found")
}

func TestAwardXPAppendsToLedger(t *testing.T) {
	store := memory.NewStore()
	rules := xp.NewStaticRulesProvider(xp.DefaultRules())
	award := command.NewAwardXPHandler(store, rules, nil, nil)
	ctx := context.Background()

	res, err := award.Handle(ctx, command.AwardXPCommand{
		StudentID: "s1", RobotKey: "testbot", XP: 40, Reason: "great debugging session",
	})
	require.NoError(t, err)
	assert.Equal(t, 40, res.StudentStats.TotalXP)

	// Teacher awards carry no uniqueness; a second identical award stacks.
	res, err = award.Handle(ctx, command.AwardXPCommand{
		StudentID: "s1", RobotKey: "testbot", XP: 40, Reason: "great debugging session",
	})
	require.NoError(t, err)
	assert.Equal(t, 80, res.StudentStats.TotalXP)
	assert.Equal(t, 2, res.StudentStats.Level)

	stats, err := store.Repos().Stats().RobotStats(ctx, "s1", "testbot")
	require.NoError(t, err)
	assert.Equal(t, 80, stats.XPTotal)

	_, err = award.Handle(ctx, command.AwardXPCommand{StudentID: "s1", RobotKey: "testbot", XP: 0})
	assert.Error(t, err, "non-positive award rejected")

	_, err = award.Handle(ctx, command.AwardXPCommand{StudentID: "s1", RobotKey: "testbot", XP: -5})
	assert.Error(t, err)
}
