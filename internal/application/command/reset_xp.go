package command

import (
	"context"
	"fmt"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/shared"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/xp"
	"github.com/robolab-hub/robolab-progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESET XP COMMAND
// Resets scoring without touching checklist completion: deletes ledger rows
// for one robot or the whole student, then rebuilds the aggregates from the
// remaining ledger state inside the same transaction.
// ══════════════════════════════════════════════════════════════════════════════

// ResetScope selects how much of a student's XP to wipe.
type ResetScope string

const (
	// ResetScopeRobot wipes one robot's ledger and zeroes its stats row.
	ResetScopeRobot ResetScope = "robot"

	// ResetScopeStudent wipes the student's entire ledger and all per-robot
	// stats rows.
	ResetScopeStudent ResetScope = "student"
)

// ResetXPCommand selects the student and scope.
type ResetXPCommand struct {
	StudentID string
	Scope     ResetScope

	// RobotKey is required for ResetScopeRobot.
	RobotKey string
}

// Validate validates the command.
func (c ResetXPCommand) Validate() error {
	if c.StudentID == "" {
		return fmt.Errorf("reset_xp: student_id: %w", shared.ErrEmptyValue)
	}
	switch c.Scope {
	case ResetScopeRobot:
		if c.RobotKey == "" {
			return fmt.Errorf("reset_xp: robot_key for robot scope: %w", shared.ErrEmptyValue)
		}
	case ResetScopeStudent:
		// Robot key ignored.
	default:
		return fmt.Errorf("reset_xp: %w: %q", shared.ErrInvalidResetScope, c.Scope)
	}
	return nil
}

// ResetXPResult reports the rebuilt global aggregate.
type ResetXPResult struct {
	StudentStats xp.StudentStats
}

// ResetXPHandler handles the ResetXPCommand.
type ResetXPHandler struct {
	uow    UnitOfWork
	rules  xp.RulesProvider
	cache  StatsCacheInvalidator // optional
	logger *logger.Logger
}

// NewResetXPHandler creates a new ResetXPHandler.
func NewResetXPHandler(uow UnitOfWork, rules xp.RulesProvider, cache StatsCacheInvalidator, log *logger.Logger) *ResetXPHandler {
	if log == nil {
		log = logger.Default()
	}
	return &ResetXPHandler{
		uow:    uow,
		rules:  rules,
		cache:  cache,
		logger: log.With(logger.Component("reset_xp")),
	}
}

// Handle executes the reset in one transaction.
func (h *ResetXPHandler) Handle(ctx context.Context, cmd ResetXPCommand) (*ResetXPResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("reset_xp: validation failed: %w", err)
	}

	rules := h.rules.RulesFor(cmd.RobotKey)
	result := &ResetXPResult{}

	err := h.uow.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		switch cmd.Scope {
		case ResetScopeRobot:
			if err := r.Ledger().DeleteByRobot(ctx, cmd.StudentID, cmd.RobotKey); err != nil {
				return err
			}
			// Progress rows stay untouched: the recounted done total is
			// preserved while XP, levels, and mastery go back to zero.
			// A scoring reset revokes granted tiers along with their events,
			// so mastery is zeroed here rather than re-derived from the count.
			itemsDone, err := r.Progress().CountDone(ctx, cmd.StudentID, cmd.RobotKey)
			if err != nil {
				return err
			}
			if err := r.Stats().PutRobotStats(ctx, xp.RobotStats{
				StudentID: cmd.StudentID,
				RobotKey:  cmd.RobotKey,
				ItemsDone: itemsDone,
			}); err != nil {
				return err
			}

		case ResetScopeStudent:
			if err := r.Ledger().DeleteByStudent(ctx, cmd.StudentID); err != nil {
				return err
			}
			if err := r.Stats().DeleteRobotStatsByStudent(ctx, cmd.StudentID); err != nil {
				return err
			}
		}

		studentStats, err := rebuildStudentStats(ctx, r, rules, cmd.StudentID)
		if err != nil {
			return err
		}
		result.StudentStats = *studentStats
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reset_xp: %w", err)
	}

	invalidateStatsCache(ctx, h.cache, h.logger, cmd.StudentID)
	h.logger.Info("xp reset",
		logger.StudentID(cmd.StudentID),
		logger.String("scope", string(cmd.Scope)),
		logger.RobotKey(cmd.RobotKey),
	)
	return result, nil
}
