package command

import (
	"context"
	"fmt"
	"time"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/shared"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/xp"
	"github.com/robolab-hub/robolab-progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD XP COMMAND
// Discretionary teacher grant. Unlike item and level events these carry no
// uniqueness invariant: a teacher may award the same student repeatedly.
// ══════════════════════════════════════════════════════════════════════════════

// AwardXPCommand grants extra XP to a student for one robot.
type AwardXPCommand struct {
	StudentID string
	RobotKey  string
	XP        int

	// Reason is recorded in the ledger row's meta field.
	Reason string
}

// Validate validates the command.
func (c AwardXPCommand) Validate() error {
	if c.StudentID == "" {
		return fmt.Errorf("award_xp: student_id: %w", shared.ErrEmptyValue)
	}
	if c.RobotKey == "" {
		return fmt.Errorf("award_xp: robot_key: %w", shared.ErrEmptyValue)
	}
	if c.XP <= 0 {
		return fmt.Errorf("award_xp: %w", shared.ErrInvalidEventDelta)
	}
	return nil
}

// AwardXPResult reports the updated global aggregate.
type AwardXPResult struct {
	StudentStats xp.StudentStats
}

// AwardXPHandler handles the AwardXPCommand.
type AwardXPHandler struct {
	uow    UnitOfWork
	rules  xp.RulesProvider
	cache  StatsCacheInvalidator // optional
	logger *logger.Logger
}

// NewAwardXPHandler creates a new AwardXPHandler.
func NewAwardXPHandler(uow UnitOfWork, rules xp.RulesProvider, cache StatsCacheInvalidator, log *logger.Logger) *AwardXPHandler {
	if log == nil {
		log = logger.Default()
	}
	return &AwardXPHandler{
		uow:    uow,
		rules:  rules,
		cache:  cache,
		logger: log.With(logger.Component("award_xp")),
	}
}

// Handle appends a teacher_award ledger row and updates the aggregates
// through the same transactional path the engine uses.
func (h *AwardXPHandler) Handle(ctx context.Context, cmd AwardXPCommand) (*AwardXPResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("award_xp: validation failed: %w", err)
	}

	rules := h.rules.RulesFor(cmd.RobotKey)
	result := &AwardXPResult{}

	err := h.uow.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		now := time.Now().UTC()
		if _, err := r.Ledger().Insert(ctx, &xp.Event{
			StudentID:  cmd.StudentID,
			RobotKey:   cmd.RobotKey,
			Type:       xp.EventTeacherAward,
			Delta:      cmd.XP,
			Meta:       cmd.Reason,
			OccurredAt: now,
		}); err != nil {
			return err
		}

		itemsDone, err := r.Progress().CountDone(ctx, cmd.StudentID, cmd.RobotKey)
		if err != nil {
			return err
		}
		levelsComplete, err := r.Ledger().CountByType(ctx, cmd.StudentID, cmd.RobotKey, xp.EventLevelComplete)
		if err != nil {
			return err
		}
		if err := r.Stats().ApplyRobotDelta(ctx, cmd.StudentID, cmd.RobotKey, cmd.XP, itemsDone, levelsComplete); err != nil {
			return err
		}

		total := cmd.XP
		if ss, err := r.Stats().StudentStats(ctx, cmd.StudentID); err == nil {
			total += ss.TotalXP
		} else if !shared.IsNotFound(err) {
			return err
		}
		lp := xp.ResolveLevel(total, rules.LevelCurve)
		stats := xp.StudentStats{
			StudentID:   cmd.StudentID,
			TotalXP:     total,
			Level:       lp.Level,
			XPInLevel:   lp.XPInLevel,
			LastEventAt: now,
		}
		if err := r.Stats().PutStudentStats(ctx, stats); err != nil {
			return err
		}
		result.StudentStats = stats
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("award_xp: %w", err)
	}

	invalidateStatsCache(ctx, h.cache, h.logger, cmd.StudentID)
	h.logger.Info("teacher award granted",
		logger.StudentID(cmd.StudentID),
		logger.RobotKey(cmd.RobotKey),
		logger.XPAmount(cmd.XP),
	)
	return result, nil
}
