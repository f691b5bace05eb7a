package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/checklist"
)

// GetChecklistQuery selects one robot's checklist. IncludeLocked is set for
// the admin view; the student view filters gated levels out.
type GetChecklistQuery struct {
	RobotKey      string
	Course        string
	IncludeLocked bool
}

// ChecklistResponse is the checklist payload, with the lock map exposed so
// the admin UI can render the gates.
type ChecklistResponse struct {
	RobotKey  string            `json:"robotKey"`
	RobotName string            `json:"robotName"`
	Levels    []checklist.Level `json:"levels"`
	Locks     map[string]bool   `json:"locks,omitempty"`
}

// GetChecklistHandler handles the GetChecklistQuery.
type GetChecklistHandler struct {
	checklist checklist.Provider
	locks     checklist.LockRepository
}

// NewGetChecklistHandler creates a new GetChecklistHandler.
func NewGetChecklistHandler(provider checklist.Provider, locks checklist.LockRepository) *GetChecklistHandler {
	return &GetChecklistHandler{checklist: provider, locks: locks}
}

// Handle loads the definition and applies the course's unlock gates.
func (h *GetChecklistHandler) Handle(ctx context.Context, q GetChecklistQuery) (*ChecklistResponse, error) {
	if q.RobotKey == "" {
		return nil, errors.New("get_checklist: robot_key is required")
	}
	def, err := h.checklist.Get(ctx, q.RobotKey)
	if err != nil {
		return nil, fmt.Errorf("get_checklist: %w", err)
	}
	locks, err := h.locks.Locks(ctx, q.RobotKey, q.Course)
	if err != nil {
		return nil, fmt.Errorf("get_checklist: load locks: %w", err)
	}

	levels := def.Levels
	if !q.IncludeLocked {
		levels = checklist.FilterUnlocked(levels, locks)
	}
	return &ChecklistResponse{
		RobotKey:  def.RobotKey,
		RobotName: def.RobotName,
		Levels:    levels,
		Locks:     locks,
	}, nil
}

// ListRobotsHandler lists the robots a checklist exists for.
type ListRobotsHandler struct {
	checklist checklist.Provider
}

// NewListRobotsHandler creates a new ListRobotsHandler.
func NewListRobotsHandler(provider checklist.Provider) *ListRobotsHandler {
	return &ListRobotsHandler{checklist: provider}
}

// Handle returns the robot catalog.
func (h *ListRobotsHandler) Handle(ctx context.Context) ([]checklist.Robot, error) {
	robots, err := h.checklist.Robots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list_robots: %w", err)
	}
	return robots, nil
}
