package command

import (
	"context"
	"fmt"
	"time"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/checklist"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/shared"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/xp"
	"github.com/robolab-hub/robolab-progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESET PROGRESS COMMAND
// Administrative rollback: deletes a student's checklist progress and the
// ledger rows it earned, then rebuilds the aggregates from what remains.
// Aggregates are always recomputed from the post-delete state, never
// decremented, so partial prior failures cannot leave drift behind.
// ══════════════════════════════════════════════════════════════════════════════

// ResetProgressCommand selects the scope to wipe: the whole robot checklist,
// or only levels 0..UpToLevelIndex.
type ResetProgressCommand struct {
	StudentID string
	RobotKey  string

	// UpToLevelIndex limits the reset to the first N+1 levels when set.
	// nil means every level.
	UpToLevelIndex *int
}

// Validate validates the command.
func (c ResetProgressCommand) Validate() error {
	if c.StudentID == "" {
		return fmt.Errorf("reset_progress: student_id: %w", shared.ErrEmptyValue)
	}
	if c.RobotKey == "" {
		return fmt.Errorf("reset_progress: robot_key: %w", shared.ErrEmptyValue)
	}
	if c.UpToLevelIndex != nil && *c.UpToLevelIndex < 0 {
		return fmt.Errorf("reset_progress: up_to_level_index: %w", shared.ErrNegativeValue)
	}
	return nil
}

// ResetProgressResult reports the rebuilt per-robot aggregate.
type ResetProgressResult struct {
	RobotStats   xp.RobotStats
	StudentStats xp.StudentStats
}

// ResetProgressHandler handles the ResetProgressCommand.
type ResetProgressHandler struct {
	uow       UnitOfWork
	rules     xp.RulesProvider
	checklist checklist.Provider
	cache     StatsCacheInvalidator // optional
	logger    *logger.Logger
}

// NewResetProgressHandler creates a new ResetProgressHandler.
func NewResetProgressHandler(
	uow UnitOfWork,
	rules xp.RulesProvider,
	checklistProvider checklist.Provider,
	cache StatsCacheInvalidator,
	log *logger.Logger,
) *ResetProgressHandler {
	if log == nil {
		log = logger.Default()
	}
	return &ResetProgressHandler{
		uow:       uow,
		rules:     rules,
		checklist: checklistProvider,
		cache:     cache,
		logger:    log.With(logger.Component("reset_progress")),
	}
}

// Handle executes the reset in one transaction. Unlike engine failures,
// errors here surface to the admin caller: resets are explicit actions with
// a success/failure expectation.
func (h *ResetProgressHandler) Handle(ctx context.Context, cmd ResetProgressCommand) (*ResetProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("reset_progress: validation failed: %w", err)
	}

	def, err := h.checklist.Get(ctx, cmd.RobotKey)
	if err != nil {
		return nil, fmt.Errorf("reset_progress: load checklist: %w", err)
	}

	chosen := def.Levels
	if cmd.UpToLevelIndex != nil && *cmd.UpToLevelIndex < len(def.Levels)-1 {
		chosen = def.Levels[:*cmd.UpToLevelIndex+1]
	}
	var itemKeys, levelKeys []string
	for _, lvl := range chosen {
		itemKeys = append(itemKeys, lvl.ItemKeys()...)
		levelKeys = append(levelKeys, lvl.Key)
	}

	rules := h.rules.RulesFor(cmd.RobotKey)
	result := &ResetProgressResult{}

	err = h.uow.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		if len(itemKeys) > 0 {
			if err := r.Progress().DeleteItems(ctx, cmd.StudentID, cmd.RobotKey, itemKeys); err != nil {
				return err
			}
			if err := r.Ledger().DeleteForItems(ctx, cmd.StudentID, cmd.RobotKey, itemKeys); err != nil {
				return err
			}
		}
		if len(levelKeys) > 0 {
			if err := r.Ledger().DeleteForLevels(ctx, cmd.StudentID, cmd.RobotKey, levelKeys); err != nil {
				return err
			}
		}
		// Mastery is item-count based; with items gone the granted tiers are
		// no longer valid, so all of them go and the tier is re-derived.
		if err := r.Ledger().DeleteByType(ctx, cmd.StudentID, cmd.RobotKey, xp.EventMasteryTier); err != nil {
			return err
		}

		robotStats, err := rebuildRobotStats(ctx, r, rules, cmd.StudentID, cmd.RobotKey)
		if err != nil {
			return err
		}
		studentStats, err := rebuildStudentStats(ctx, r, rules, cmd.StudentID)
		if err != nil {
			return err
		}
		result.RobotStats = *robotStats
		result.StudentStats = *studentStats
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reset_progress: %w", err)
	}

	invalidateStatsCache(ctx, h.cache, h.logger, cmd.StudentID)
	h.logger.Info("progress reset",
		logger.StudentID(cmd.StudentID),
		logger.RobotKey(cmd.RobotKey),
		logger.Int("levels_wiped", len(levelKeys)),
	)
	return result, nil
}

// rebuildRobotStats recomputes one per-robot aggregate from the remaining
// ledger rows and progress rows and persists it. The mastery tier is derived
// from the recounted done-item total against the thresholds, not replayed
// from events.
func rebuildRobotStats(ctx context.Context, r Repos, rules xp.Rules, studentID, robotKey string) (*xp.RobotStats, error) {
	robotTotal, err := r.Ledger().SumDeltas(ctx, studentID, robotKey)
	if err != nil {
		return nil, err
	}
	itemsDone, err := r.Progress().CountDone(ctx, studentID, robotKey)
	if err != nil {
		return nil, err
	}
	levelsComplete, err := r.Ledger().CountByType(ctx, studentID, robotKey, xp.EventLevelComplete)
	if err != nil {
		return nil, err
	}
	tier := 0
	for i, t := range rules.Mastery.Tiers {
		if itemsDone >= t.ThresholdItems {
			tier = i + 1
		}
	}
	stats := &xp.RobotStats{
		StudentID:      studentID,
		RobotKey:       robotKey,
		XPTotal:        robotTotal,
		ItemsDone:      itemsDone,
		LevelsComplete: levelsComplete,
		MasteryTier:    tier,
	}
	if err := r.Stats().PutRobotStats(ctx, *stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// rebuildStudentStats recomputes the global aggregate by summing all
// remaining ledger rows across every robot and persists it.
func rebuildStudentStats(ctx context.Context, r Repos, rules xp.Rules, studentID string) (*xp.StudentStats, error) {
	total, err := r.Ledger().SumDeltas(ctx, studentID, "")
	if err != nil {
		return nil, err
	}
	lp := xp.ResolveLevel(total, rules.LevelCurve)
	stats := &xp.StudentStats{
		StudentID:   studentID,
		TotalXP:     total,
		Level:       lp.Level,
		XPInLevel:   lp.XPInLevel,
		LastEventAt: time.Now().UTC(),
	}
	if err := r.Stats().PutStudentStats(ctx, *stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// invalidateStatsCache is the shared best-effort cache drop for commands.
func invalidateStatsCache(ctx context.Context, cache StatsCacheInvalidator, log *logger.Logger, studentID string) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx, studentID); err != nil {
		log.Warn("stats cache invalidation failed",
			logger.StudentID(studentID), logger.Err(err))
	}
}
