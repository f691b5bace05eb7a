package command_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robolab-hub/robolab-progress-hub/internal/application/command"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/checklist"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/progress"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/shared"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/xp"
	"github.com/robolab-hub/robolab-progress-hub/internal/infrastructure/persistence/memory"
)

func testChecklist() *checklist.Checklist {
	return &checklist.Checklist{
		RobotKey:  "testbot",
		RobotName: "Test Bot",
		Levels: []checklist.Level{
			{
				Key:  "l1",
				Name: "Level One",
				Items: []checklist.Item{
					{Key: "a", Title: "Item A", Difficulty: checklist.DifficultyEasy},
					{Key: "b", Title: "Item B", Difficulty: checklist.DifficultyMedium},
					{Key: "c", Title: "Item C"},
				},
			},
			{
				Key:  "l2",
				Name: "Level Two",
				Items: []checklist.Item{
					{Key: "d", Title: "Item D", Difficulty: checklist.DifficultyHard},
					{Key: "e", Title: "Item E"},
				},
			},
		},
	}
}

func newTestHandlers(rules xp.Rules) (*memory.Store, *command.SaveProgressHandler) {
	store := memory.NewStore()
	provider := memory.NewChecklistProvider(testChecklist())
	engine := command.NewApplyProgressDeltaHandler(store, xp.NewStaticRulesProvider(rules), provider, nil, nil)
	return store, command.NewSaveProgressHandler(store, engine, nil)
}

func saveDone(t *testing.T, h *command.SaveProgressHandler, studentID, robotKey string, itemKeys ...string) *command.SaveProgressResult {
	t.Helper()
	items := make(map[string]command.SaveProgressItem, len(itemKeys))
	for _, k := range itemKeys {
		items[k] = command.SaveProgressItem{Status: progress.StatusDone}
	}
	res, err := h.Handle(context.Background(), command.SaveProgressCommand{
		StudentID: studentID,
		RobotKey:  robotKey,
		Items:     items,
	})
	require.NoError(t, err)
	require.NotNil(t, res.XP, "engine must not fail on the in-memory store")
	return res
}

func TestSaveProgressAwardsItemXP(t *testing.T) {
	store, handler := newTestHandlers(xp.DefaultRules())
	ctx := context.Background()

	res := saveDone(t, handler, "s1", "testbot", "a")

	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, 1, res.XP.ItemsAwarded)
	// Base 10 plus the easy-difficulty bonus 5.
	assert.Equal(t, 15, res.XP.XPEarned)
	assert.Equal(t, 0, res.XP.LevelsCompleted)

	stats, err := store.Repos().Stats().RobotStats(ctx, "s1", "testbot")
	require.NoError(t, err)
	assert.Equal(t, 15, stats.XPTotal)
	assert.Equal(t, 1, stats.ItemsDone)
	assert.Equal(t, 0, stats.LevelsComplete)

	ss, err := store.Repos().Stats().StudentStats(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 15, ss.TotalXP)
	assert.Equal(t, 1, ss.Level)
}

func TestSaveProgressDifficultyBonuses(t *testing.T) {
	_, handler := newTestHandlers(xp.DefaultRules())

	res := saveDone(t, handler, "s1", "testbot", "b", "d")

	// b is medium (10+10), d is hard (10+15).
	assert.Equal(t, 45, res.XP.XPEarned)
	assert.Equal(t, 2, res.XP.ItemsAwarded)
}

func TestSaveProgressRepeatIsNoOp(t *testing.T) {
	store, handler := newTestHandlers(xp.DefaultRules())
	ctx := context.Background()

	saveDone(t, handler, "s1", "testbot", "a")
	res := saveDone(t, handler, "s1", "testbot", "a")

	assert.Equal(t, 0, res.XP.XPEarned)
	assert.Equal(t, 0, res.XP.ItemsAwarded)

	stats, err := store.Repos().Stats().RobotStats(ctx, "s1", "testbot")
	require.NoError(t, err)
	assert.Equal(t, 15, stats.XPTotal)
	assert.Equal(t, 1, stats.ItemsDone)
}

func TestEngineDuplicateTransitionAbsorbedByLedger(t *testing.T) {
	store := memory.NewStore()
	provider := memory.NewChecklistProvider(testChecklist())
	engine := command.NewApplyProgressDeltaHandler(store, xp.NewStaticRulesProvider(xp.DefaultRules()), provider, nil, nil)
	ctx := context.Background()

	require.NoError(t, store.Repos().Progress().Upsert(ctx, progress.Entry{
		StudentID: "s1", RobotKey: "testbot", ItemKey: "a", Status: progress.StatusDone,
	}))

	cmd := command.ApplyProgressDeltaCommand{
		StudentID: "s1",
		RobotKey:  "testbot",
		Delta:     map[string]progress.Change{"a": {Prev: progress.StatusTodo, Next: progress.StatusDone}},
	}

	first, err := engine.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, 15, first.XPEarned)

	// A retried request replays the same transition; the ledger uniqueness
	// keeps the grant single.
	second, err := engine.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, 0, second.XPEarned)
	assert.Equal(t, 0, second.ItemsAwarded)

	stats, err := store.Repos().Stats().RobotStats(ctx, "s1", "testbot")
	require.NoError(t, err)
	assert.Equal(t, 15, stats.XPTotal)
}

func TestEngineConcurrentCompletionSingleCredit(t *testing.T) {
	store := memory.NewStore()
	provider := memory.NewChecklistProvider(testChecklist())
	engine := command.NewApplyProgressDeltaHandler(store, xp.NewStaticRulesProvider(xp.DefaultRules()), provider, nil, nil)
	ctx := context.Background()

	require.NoError(t, store.Repos().Progress().Upsert(ctx, progress.Entry{
		StudentID: "s1", RobotKey: "testbot", ItemKey: "a", Status: progress.StatusDone,
	}))

	cmd := command.ApplyProgressDeltaCommand{
		StudentID: "s1",
		RobotKey:  "testbot",
		Delta:     map[string]progress.Change{"a": {Prev: progress.StatusTodo, Next: progress.StatusDone}},
	}

	// Two saves racing on the same transition; the ledger uniqueness lets
	// exactly one of them credit the item.
	results := make(chan int, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := engine.Handle(ctx, cmd)
			assert.NoError(t, err)
			results <- res.XPEarned
		}()
	}
	wg.Wait()
	close(results)

	total := 0
	for earned := range results {
		total += earned
	}
	assert.Equal(t, 15, total)

	n, err := store.Repos().Ledger().CountByType(ctx, "s1", "testbot", xp.EventItemComplete)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := store.Repos().Stats().RobotStats(ctx, "s1", "testbot")
	require.NoError(t, err)
	assert.Equal(t, 15, stats.XPTotal)
	assert.Equal(t, 1, stats.ItemsDone)
}

func TestLevelCompletionAwardedOnce(t *testing.T) {
	store, handler := newTestHandlers(xp.DefaultRules())
	ctx := context.Background()

	res := saveDone(t, handler, "s1", "testbot", "a", "b", "c")

	// 15 + 20 + 10 item XP plus the 25 level bonus.
	assert.Equal(t, 70, res.XP.XPEarned)
	assert.Equal(t, 3, res.XP.ItemsAwarded)
	assert.Equal(t, 1, res.XP.LevelsCompleted)

	stats, err := store.Repos().Stats().RobotStats(ctx, "s1", "testbot")
	require.NoError(t, err)
	assert.Equal(t, 70, stats.XPTotal)
	assert.Equal(t, 3, stats.ItemsDone)
	assert.Equal(t, 1, stats.LevelsComplete)
}

func TestLevelCompletionAcrossSaves(t *testing.T) {
	_, handler := newTestHandlers(xp.DefaultRules())

	first := saveDone(t, handler, "s1", "testbot", "a", "b")
	assert.Equal(t, 0, first.XP.LevelsCompleted)

	second := saveDone(t, handler, "s1", "testbot", "c")
	assert.Equal(t, 1, second.XP.LevelsCompleted)
	// Item c (no difficulty) plus the level bonus.
	assert.Equal(t, 35, second.XP.XPEarned)
}

func TestUncompletingItemDoesNotRevokeXP(t *testing.T) {
	store, handler := newTestHandlers(xp.DefaultRules())
	ctx := context.Background()

	saveDone(t, handler, "s1", "testbot", "a")

	res, err := handler.Handle(ctx, command.SaveProgressCommand{
		StudentID: "s1",
		RobotKey:  "testbot",
		Items:     map[string]command.SaveProgressItem{"a": {Status: progress.StatusTodo}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.XP.XPEarned)

	// The ledger keeps the grant; only the done count drops.
	stats, err := store.Repos().Stats().RobotStats(ctx, "s1", "testbot")
	require.NoError(t, err)
	assert.Equal(t, 15, stats.XPTotal)
	assert.Equal(t, 1, stats.ItemsDone)

	// Completing it again does not double-grant either.
	again := saveDone(t, handler, "s1", "testbot", "a")
	assert.Equal(t, 0, again.XP.XPEarned)
}

func TestMasteryTierJump(t *testing.T) {
	// Robot without a checklist definition: items award base XP only, so the
	// tier math is easy to follow.
	store, handler := newTestHandlers(xp.DefaultRules())
	ctx := context.Background()

	var first []string
	for i := 1; i <= 9; i++ {
		first = append(first, fmt.Sprintf("i%02d", i))
	}
	res := saveDone(t, handler, "s1", "freebot", first...)
	assert.Equal(t, 90, res.XP.XPEarned)
	assert.Empty(t, res.XP.TiersGranted)

	// One batch pushes the done count 9 -> 25, crossing tiers 1 and 2.
	var second []string
	for i := 10; i <= 25; i++ {
		second = append(second, fmt.Sprintf("i%02d", i))
	}
	res = saveDone(t, handler, "s1", "freebot", second...)

	assert.Equal(t, []int{1, 2}, res.XP.TiersGranted)
	// 16 items plus the 30 and 50 tier bonuses.
	assert.Equal(t, 240, res.XP.XPEarned)

	stats, err := store.Repos().Stats().RobotStats(ctx, "s1", "freebot")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.MasteryTier)
	assert.Equal(t, 330, stats.XPTotal)
	assert.Equal(t, 25, stats.ItemsDone)

	ss, err := store.Repos().Stats().StudentStats(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 330, ss.TotalXP)
	assert.Equal(t, 5, ss.Level)
	assert.Equal(t, 10, ss.XPInLevel)
}

func TestReflectionBonus(t *testing.T) {
	rules := xp.DefaultRules()
	rules.Reflection = xp.ReflectionRules{Enabled: true, MinLength: 10, BonusXP: 5}
	_, handler := newTestHandlers(rules)
	ctx := context.Background()

	res, err := handler.Handle(ctx, command.SaveProgressCommand{
		StudentID: "s1",
		RobotKey:  "testbot",
		Items: map[string]command.SaveProgressItem{
			"c": {Status: progress.StatusDone, Payload: "I learned how PWM drives the servos."},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 15, res.XP.XPEarned)

	// Too short a reflection earns no bonus.
	res, err = handler.Handle(ctx, command.SaveProgressCommand{
		StudentID: "s2",
		RobotKey:  "testbot",
		Items: map[string]command.SaveProgressItem{
			"c": {Status: progress.StatusDone, Payload: "ok"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, res.XP.XPEarned)
}

func TestEngineNoNewlyDoneIsNoOp(t *testing.T) {
	store := memory.NewStore()
	provider := memory.NewChecklistProvider(testChecklist())
	engine := command.NewApplyProgressDeltaHandler(store, xp.NewStaticRulesProvider(xp.DefaultRules()), provider, nil, nil)

	res, err := engine.Handle(context.Background(), command.ApplyProgressDeltaCommand{
		StudentID: "s1",
		RobotKey:  "testbot",
		Delta: map[string]progress.Change{
			"a": {Prev: progress.StatusTodo, Next: progress.StatusInProgress},
			"b": {Prev: progress.StatusDone, Next: progress.StatusDone},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.XPEarned)
	assert.Equal(t, 0, res.ItemsAwarded)
}

func TestSaveProgressValidation(t *testing.T) {
	_, handler := newTestHandlers(xp.DefaultRules())
	ctx := context.Background()

	// Validation failures wrap the shared sentinels so callers can map them
	// with errors.Is instead of inspecting messages.
	_, err := handler.Handle(ctx, command.SaveProgressCommand{
		RobotKey: "testbot",
		Items:    map[string]command.SaveProgressItem{"a": {Status: progress.StatusDone}},
	})
	assert.ErrorIs(t, err, shared.ErrEmptyValue, "student_id is required")
	assert.True(t, shared.IsValidation(err))

	_, err = handler.Handle(ctx, command.SaveProgressCommand{
		StudentID: "s1",
		RobotKey:  "testbot",
		Items:     map[string]command.SaveProgressItem{"a": {Status: "finished"}},
	})
	assert.ErrorIs(t, err, shared.ErrInvalidStatus)
	assert.True(t, shared.IsValidation(err))

	_, err = handler.Handle(ctx, command.SaveProgressCommand{
		StudentID: "s1",
		RobotKey:  "testbot",
	})
	assert.ErrorIs(t, err, shared.ErrInvalidInput, "no items submitted")
	assert.True(t, shared.IsValidation(err))
}
