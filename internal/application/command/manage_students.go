package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/shared"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/student"
	"github.com/robolab-hub/robolab-progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER COMMANDS
// Admin management of the student roster: create, bulk create, rename,
// delete. Deleting a student also wipes their progress, ledger, and stats.
// ══════════════════════════════════════════════════════════════════════════════

// StudentRosterHandler bundles the roster write operations.
type StudentRosterHandler struct {
	uow    UnitOfWork
	cache  StatsCacheInvalidator // optional
	logger *logger.Logger
}

// NewStudentRosterHandler creates a new StudentRosterHandler.
func NewStudentRosterHandler(uow UnitOfWork, cache StatsCacheInvalidator, log *logger.Logger) *StudentRosterHandler {
	if log == nil {
		log = logger.Default()
	}
	return &StudentRosterHandler{
		uow:    uow,
		cache:  cache,
		logger: log.With(logger.Component("roster")),
	}
}

// Create adds one student and returns the created record.
func (h *StudentRosterHandler) Create(ctx context.Context, displayName string) (*student.Student, error) {
	s := &student.Student{
		ID:          uuid.NewString(),
		DisplayName: strings.TrimSpace(displayName),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("roster: create: %w", err)
	}
	if err := h.uow.Repos().Students().Create(ctx, s); err != nil {
		return nil, fmt.Errorf("roster: create: %w", err)
	}
	h.logger.Info("student created", logger.StudentID(s.ID))
	return s, nil
}

// BulkCreate adds students from a list of display names, one per line the
// admin pasted. Blank names are skipped; the created records are returned in
// input order.
func (h *StudentRosterHandler) BulkCreate(ctx context.Context, displayNames []string) ([]student.Student, error) {
	created := make([]student.Student, 0, len(displayNames))
	for _, name := range displayNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		s, err := h.Create(ctx, name)
		if err != nil {
			return created, fmt.Errorf("roster: bulk create %q: %w", name, err)
		}
		created = append(created, *s)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("roster: bulk create: no usable names: %w", shared.ErrEmptyValue)
	}
	return created, nil
}

// Rename updates a student's display name.
func (h *StudentRosterHandler) Rename(ctx context.Context, id, displayName string) error {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return fmt.Errorf("roster: rename: %w", shared.ErrInvalidDisplayName)
	}
	if err := h.uow.Repos().Students().Rename(ctx, id, displayName); err != nil {
		return fmt.Errorf("roster: rename: %w", err)
	}
	return nil
}

// Delete removes a student and, in the same transaction, every progress,
// ledger, and stats row they own.
func (h *StudentRosterHandler) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("roster: delete: student_id: %w", shared.ErrEmptyValue)
	}
	err := h.uow.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		if err := r.Progress().DeleteByStudent(ctx, id); err != nil {
			return err
		}
		if err := r.Ledger().DeleteByStudent(ctx, id); err != nil {
			return err
		}
		if err := r.Stats().DeleteRobotStatsByStudent(ctx, id); err != nil {
			return err
		}
		return r.Students().Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("roster: delete: %w", err)
	}

	invalidateStatsCache(ctx, h.cache, h.logger, id)
	h.logger.Info("student deleted", logger.StudentID(id))
	return nil
}
