package command

import (
	"context"
	"fmt"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/checklist"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/shared"
	"github.com/robolab-hub/robolab-progress-hub/pkg/logger"
)

// SetLevelLockCommand toggles one level's unlock gate for a course cohort.
type SetLevelLockCommand struct {
	RobotKey string
	Course   string
	LevelKey string
	Unlocked bool
}

// Validate validates the command.
func (c SetLevelLockCommand) Validate() error {
	if c.RobotKey == "" {
		return fmt.Errorf("set_level_lock: robot_key: %w", shared.ErrEmptyValue)
	}
	if c.LevelKey == "" {
		return fmt.Errorf("set_level_lock: level_key: %w", shared.ErrEmptyValue)
	}
	return nil
}

// SetLevelLockHandler handles the SetLevelLockCommand.
type SetLevelLockHandler struct {
	locks     checklist.LockRepository
	checklist checklist.Provider
	logger    *logger.Logger
}

// NewSetLevelLockHandler creates a new SetLevelLockHandler.
func NewSetLevelLockHandler(locks checklist.LockRepository, checklistProvider checklist.Provider, log *logger.Logger) *SetLevelLockHandler {
	if log == nil {
		log = logger.Default()
	}
	return &SetLevelLockHandler{
		locks:     locks,
		checklist: checklistProvider,
		logger:    log.With(logger.Component("level_locks")),
	}
}

// Handle upserts the lock row. The level must exist in the robot's checklist
// so stale admin UIs cannot create gates for removed levels.
func (h *SetLevelLockHandler) Handle(ctx context.Context, cmd SetLevelLockCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("set_level_lock: validation failed: %w", err)
	}

	def, err := h.checklist.Get(ctx, cmd.RobotKey)
	if err != nil {
		return fmt.Errorf("set_level_lock: load checklist: %w", err)
	}
	if def.FindLevel(cmd.LevelKey) == nil {
		return fmt.Errorf("set_level_lock: %w: %q", shared.ErrLevelNotFound, cmd.LevelKey)
	}

	if err := h.locks.SetLock(ctx, checklist.LevelLock{
		RobotKey: cmd.RobotKey,
		Course:   cmd.Course,
		LevelKey: cmd.LevelKey,
		Unlocked: cmd.Unlocked,
	}); err != nil {
		return fmt.Errorf("set_level_lock: %w", err)
	}

	h.logger.Info("level lock updated",
		logger.RobotKey(cmd.RobotKey),
		logger.String("course", cmd.Course),
		logger.String("level_key", cmd.LevelKey),
		logger.Bool("unlocked", cmd.Unlocked),
	)
	return nil
}
