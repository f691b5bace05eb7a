package command

import (
	"context"
	"fmt"
	"time"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/progress"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/shared"
	"github.com/robolab-hub/robolab-progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SAVE PROGRESS COMMAND
// Persists a batch of checklist item statuses, then feeds the transition to
// the XP engine. The two steps are decoupled: a student never loses
// checklist progress because scoring errored.
// ══════════════════════════════════════════════════════════════════════════════

// SaveProgressCommand carries one UI save: a handful of item status changes
// for one student and robot.
type SaveProgressCommand struct {
	StudentID string
	RobotKey  string

	// Items maps item key to its new status and optional payload.
	Items map[string]SaveProgressItem
}

// SaveProgressItem is the submitted state of one item.
type SaveProgressItem struct {
	Status  progress.Status
	Payload string
}

// Validate validates the command.
func (c SaveProgressCommand) Validate() error {
	if c.StudentID == "" {
		return fmt.Errorf("save_progress: student_id: %w", shared.ErrEmptyValue)
	}
	if c.RobotKey == "" {
		return fmt.Errorf("save_progress: robot_key: %w", shared.ErrEmptyValue)
	}
	if len(c.Items) == 0 {
		return fmt.Errorf("save_progress: no items submitted: %w", shared.ErrInvalidInput)
	}
	for key, item := range c.Items {
		if key == "" {
			return fmt.Errorf("save_progress: item key: %w", shared.ErrEmptyValue)
		}
		if !item.Status.Valid() {
			return fmt.Errorf("save_progress: item %q: %w", key, shared.ErrInvalidStatus)
		}
	}
	return nil
}

// SaveProgressResult reports the persisted save and, when scoring succeeded,
// what it granted.
type SaveProgressResult struct {
	Saved int

	// XP is nil when the engine was skipped or failed; the save itself is
	// still successful in that case.
	XP *ApplyProgressDeltaResult
}

// SaveProgressHandler handles the SaveProgressCommand.
type SaveProgressHandler struct {
	uow    UnitOfWork
	engine *ApplyProgressDeltaHandler
	logger *logger.Logger
}

// NewSaveProgressHandler creates a new SaveProgressHandler.
func NewSaveProgressHandler(uow UnitOfWork, engine *ApplyProgressDeltaHandler, log *logger.Logger) *SaveProgressHandler {
	if log == nil {
		log = logger.Default()
	}
	return &SaveProgressHandler{
		uow:    uow,
		engine: engine,
		logger: log.With(logger.Component("save_progress")),
	}
}

// Handle persists the statuses and then invokes the XP engine with the
// old/new transition. Engine failure is logged and swallowed; the ledger and
// aggregate recompute self-correct on the next successful invocation.
func (h *SaveProgressHandler) Handle(ctx context.Context, cmd SaveProgressCommand) (*SaveProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("save_progress: validation failed: %w", err)
	}

	repos := h.uow.Repos()

	// Previous statuses, so the engine sees the actual transition and not
	// just the new state.
	itemKeys := make([]string, 0, len(cmd.Items))
	for key := range cmd.Items {
		itemKeys = append(itemKeys, key)
	}
	prev, err := repos.Progress().Statuses(ctx, cmd.StudentID, cmd.RobotKey, itemKeys)
	if err != nil {
		return nil, fmt.Errorf("save_progress: read previous statuses: %w", err)
	}

	now := time.Now().UTC()
	delta := make(map[string]progress.Change, len(cmd.Items))
	for key, item := range cmd.Items {
		if err := repos.Progress().Upsert(ctx, progress.Entry{
			StudentID: cmd.StudentID,
			RobotKey:  cmd.RobotKey,
			ItemKey:   key,
			Status:    item.Status,
			Payload:   item.Payload,
			UpdatedAt: now,
		}); err != nil {
			return nil, fmt.Errorf("save_progress: upsert item %q: %w", key, err)
		}
		delta[key] = progress.Change{
			Prev:    prev[key],
			Next:    item.Status,
			Payload: item.Payload,
		}
	}

	result := &SaveProgressResult{Saved: len(cmd.Items)}

	xpResult, err := h.engine.Handle(ctx, ApplyProgressDeltaCommand{
		StudentID: cmd.StudentID,
		RobotKey:  cmd.RobotKey,
		Delta:     delta,
	})
	if err != nil {
		// The item statuses are already durable; the next successful save
		// re-runs the recounts.
		h.logger.Error("xp engine failed, progress kept",
			logger.StudentID(cmd.StudentID),
			logger.RobotKey(cmd.RobotKey),
			logger.Err(err),
		)
		return result, nil
	}
	result.XP = xpResult
	return result, nil
}
