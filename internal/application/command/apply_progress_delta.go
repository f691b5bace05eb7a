package command

import (
	"context"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/checklist"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/progress"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/shared"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/xp"
	"github.com/robolab-hub/robolab-progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLY PROGRESS DELTA COMMAND (XP ENGINE)
// Consumes a batch of checklist item status transitions and turns the newly
// completed ones into idempotent ledger grants plus aggregate updates, all
// inside one transaction.
// ══════════════════════════════════════════════════════════════════════════════

// ApplyProgressDeltaCommand carries one saved batch of status changes.
// The item statuses themselves are already persisted by the progress write;
// this command only scores them.
type ApplyProgressDeltaCommand struct {
	StudentID string
	RobotKey  string

	// Delta maps item key to its status transition.
	Delta map[string]progress.Change
}

// Validate validates the command.
func (c ApplyProgressDeltaCommand) Validate() error {
	if c.StudentID == "" {
		return fmt.Errorf("apply_progress_delta: student_id: %w", shared.ErrEmptyValue)
	}
	if c.RobotKey == "" {
		return fmt.Errorf("apply_progress_delta: robot_key: %w", shared.ErrEmptyValue)
	}
	for key, ch := range c.Delta {
		if key == "" {
			return fmt.Errorf("apply_progress_delta: item key: %w", shared.ErrEmptyValue)
		}
		if !ch.Next.Valid() {
			return fmt.Errorf("apply_progress_delta: item %q: %w", key, shared.ErrInvalidStatus)
		}
	}
	return nil
}

// ApplyProgressDeltaResult reports what one invocation granted. A duplicate
// or empty-effect call reports zeroes everywhere.
type ApplyProgressDeltaResult struct {
	XPEarned        int
	ItemsAwarded    int
	LevelsCompleted int
	TiersGranted    []int
}

// ApplyProgressDeltaHandler handles the ApplyProgressDeltaCommand.
type ApplyProgressDeltaHandler struct {
	uow       UnitOfWork
	rules     xp.RulesProvider
	checklist checklist.Provider
	cache     StatsCacheInvalidator // optional
	logger    *logger.Logger
}

// NewApplyProgressDeltaHandler creates a new ApplyProgressDeltaHandler.
// cache may be nil when no stats cache is configured.
func NewApplyProgressDeltaHandler(
	uow UnitOfWork,
	rules xp.RulesProvider,
	checklistProvider checklist.Provider,
	cache StatsCacheInvalidator,
	log *logger.Logger,
) *ApplyProgressDeltaHandler {
	if log == nil {
		log = logger.Default()
	}
	return &ApplyProgressDeltaHandler{
		uow:       uow,
		rules:     rules,
		checklist: checklistProvider,
		cache:     cache,
		logger:    log.With(logger.Component("xp_engine")),
	}
}

// Handle executes the engine. On any error the whole transaction rolls back;
// callers on the progress-write path treat that as non-fatal.
func (h *ApplyProgressDeltaHandler) Handle(ctx context.Context, cmd ApplyProgressDeltaCommand) (*ApplyProgressDeltaResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("apply_progress_delta: validation failed: %w", err)
	}

	rules := h.rules.RulesFor(cmd.RobotKey)
	if err := rules.Validate(); err != nil {
		// Broken scoring config means nothing to award, not a crash.
		h.logger.Warn("scoring rules invalid, skipping award",
			logger.RobotKey(cmd.RobotKey), logger.Err(err))
		return &ApplyProgressDeltaResult{}, nil
	}

	// Newly completed items only: prev != done && next == done. Sorted so
	// ledger inserts happen in a deterministic order.
	newly := make([]string, 0, len(cmd.Delta))
	for key, ch := range cmd.Delta {
		if ch.NewlyDone() {
			newly = append(newly, key)
		}
	}
	if len(newly) == 0 {
		return &ApplyProgressDeltaResult{}, nil
	}
	sort.Strings(newly)

	// Checklist definition gives level membership and item difficulty.
	// A missing definition still awards base item XP; only level completion
	// needs the full structure.
	var def *checklist.Checklist
	if cl, err := h.checklist.Get(ctx, cmd.RobotKey); err == nil {
		def = cl
	} else if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("apply_progress_delta: load checklist: %w", err)
	}

	itemToLevel := map[string]string{}
	itemDifficulty := map[string]checklist.Difficulty{}
	if def != nil {
		itemToLevel = def.ItemToLevel()
		for _, lvl := range def.Levels {
			for _, it := range lvl.Items {
				if it.Difficulty != "" {
					itemDifficulty[it.Key] = it.Difficulty
				}
			}
		}
	}

	result := &ApplyProgressDeltaResult{}

	err := h.uow.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		now := time.Now().UTC()
		acc := 0

		currentTier := 0
		if prior, err := r.Stats().RobotStats(ctx, cmd.StudentID, cmd.RobotKey); err == nil {
			currentTier = prior.MasteryTier
		} else if !shared.IsNotFound(err) {
			return err
		}

		// Base XP per newly completed item. Duplicate inserts (retried
		// request, concurrent toggle) are absorbed by the ledger uniqueness
		// and excluded from the accumulator.
		for _, itemKey := range newly {
			ev := &xp.Event{
				StudentID:  cmd.StudentID,
				RobotKey:   cmd.RobotKey,
				LevelKey:   itemToLevel[itemKey],
				ItemKey:    itemKey,
				Type:       xp.EventItemComplete,
				Delta:      rules.ItemXP(itemDifficulty[itemKey]),
				OccurredAt: now,
			}
			inserted, err := r.Ledger().Insert(ctx, ev)
			if err != nil {
				return err
			}
			if inserted {
				acc += ev.Delta
				result.ItemsAwarded++
			}

			if bonus := h.reflectionBonus(rules, cmd.Delta[itemKey].Payload); bonus > 0 {
				rev := &xp.Event{
					StudentID:  cmd.StudentID,
					RobotKey:   cmd.RobotKey,
					LevelKey:   itemToLevel[itemKey],
					ItemKey:    itemKey,
					Type:       xp.EventReflectionBonus,
					Delta:      bonus,
					OccurredAt: now,
				}
				inserted, err := r.Ledger().Insert(ctx, rev)
				if err != nil {
					return err
				}
				if inserted {
					acc += bonus
				}
			}
		}

		// Level completion for the levels touched by this batch.
		if def != nil {
			for _, levelKey := range touchedLevels(newly, itemToLevel) {
				lvl := def.FindLevel(levelKey)
				if lvl == nil || len(lvl.Items) == 0 {
					// A level with zero items is never complete.
					continue
				}
				keys := lvl.ItemKeys()
				statuses, err := r.Progress().Statuses(ctx, cmd.StudentID, cmd.RobotKey, keys)
				if err != nil {
					return err
				}
				allDone := true
				for _, k := range keys {
					if statuses[k] != progress.StatusDone {
						allDone = false
						break
					}
				}
				if !allDone {
					continue
				}
				ev := &xp.Event{
					StudentID:  cmd.StudentID,
					RobotKey:   cmd.RobotKey,
					LevelKey:   levelKey,
					Type:       xp.EventLevelComplete,
					Delta:      rules.LevelCompleteXP,
					OccurredAt: now,
				}
				inserted, err := r.Ledger().Insert(ctx, ev)
				if err != nil {
					return err
				}
				if inserted {
					acc += rules.LevelCompleteXP
					result.LevelsCompleted++
				}
			}
		}

		// Authoritative recounts. Counts are overwritten, XP is added: the
		// counts are recomputable facts, the XP total is a ledger sum.
		itemsDone, err := r.Progress().CountDone(ctx, cmd.StudentID, cmd.RobotKey)
		if err != nil {
			return err
		}
		levelsComplete, err := r.Ledger().CountByType(ctx, cmd.StudentID, cmd.RobotKey, xp.EventLevelComplete)
		if err != nil {
			return err
		}
		if err := r.Stats().ApplyRobotDelta(ctx, cmd.StudentID, cmd.RobotKey, acc, itemsDone, levelsComplete); err != nil {
			return err
		}

		// Mastery tier walk, strictly ascending. Every tier whose threshold
		// is now crossed gets granted in this same transaction; a duplicate
		// insert (concurrent grant) advances the pointer without credit.
		for i, t := range rules.Mastery.Tiers {
			tierNum := i + 1
			if itemsDone < t.ThresholdItems || tierNum <= currentTier {
				continue
			}
			ev := &xp.Event{
				StudentID:  cmd.StudentID,
				RobotKey:   cmd.RobotKey,
				Type:       xp.EventMasteryTier,
				Delta:      t.BonusXP,
				Tier:       tierNum,
				Meta:       t.BadgeKey,
				OccurredAt: now,
			}
			inserted, err := r.Ledger().Insert(ctx, ev)
			if err != nil {
				return err
			}
			currentTier = tierNum
			if inserted {
				acc += t.BonusXP
				result.TiersGranted = append(result.TiersGranted, tierNum)
				if err := r.Stats().GrantMasteryTier(ctx, cmd.StudentID, cmd.RobotKey, tierNum, t.BonusXP); err != nil {
					return err
				}
			}
		}

		// Global student stats: stored total + this invocation's delta,
		// re-derived through the level curve.
		total := acc
		if ss, err := r.Stats().StudentStats(ctx, cmd.StudentID); err == nil {
			total += ss.TotalXP
		} else if !shared.IsNotFound(err) {
			return err
		}
		lp := xp.ResolveLevel(total, rules.LevelCurve)
		if err := r.Stats().PutStudentStats(ctx, xp.StudentStats{
			StudentID:   cmd.StudentID,
			TotalXP:     total,
			Level:       lp.Level,
			XPInLevel:   lp.XPInLevel,
			LastEventAt: now,
		}); err != nil {
			return err
		}

		result.XPEarned = acc
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply_progress_delta: %w", err)
	}

	invalidateStatsCache(ctx, h.cache, h.logger, cmd.StudentID)

	if result.XPEarned > 0 {
		h.logger.Info("xp granted",
			logger.StudentID(cmd.StudentID),
			logger.RobotKey(cmd.RobotKey),
			logger.XPAmount(result.XPEarned),
			logger.Int("items_awarded", result.ItemsAwarded),
			logger.Int("levels_completed", result.LevelsCompleted),
			logger.Int("tiers_granted", len(result.TiersGranted)),
		)
	}
	return result, nil
}

// reflectionBonus returns the bonus XP a payload earns, or 0.
func (h *ApplyProgressDeltaHandler) reflectionBonus(rules xp.Rules, payload string) int {
	if !rules.Reflection.Enabled || rules.Reflection.BonusXP <= 0 {
		return 0
	}
	if utf8.RuneCountInString(payload) < rules.Reflection.MinLength {
		return 0
	}
	return rules.Reflection.BonusXP
}

// touchedLevels returns the ordered, de-duplicated level keys of the given
// items. Items not belonging to any known level are skipped.
func touchedLevels(itemKeys []string, itemToLevel map[string]string) []string {
	seen := make(map[string]bool)
	levels := make([]string, 0, len(itemKeys))
	for _, k := range itemKeys {
		lvl, ok := itemToLevel[k]
		if !ok || seen[lvl] {
			continue
		}
		seen[lvl] = true
		levels = append(levels, lvl)
	}
	return levels
}
