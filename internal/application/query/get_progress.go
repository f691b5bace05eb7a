package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/progress"
)

// GetProgressQuery identifies one student's checklist state for one robot.
type GetProgressQuery struct {
	StudentID string
	RobotKey  string
}

// GetProgressHandler handles the GetProgressQuery.
type GetProgressHandler struct {
	progress progress.Repository
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(repo progress.Repository) *GetProgressHandler {
	return &GetProgressHandler{progress: repo}
}

// Handle returns the item key -> status map. Items the student never touched
// are absent; the UI treats absence as todo.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (map[string]progress.Status, error) {
	if q.StudentID == "" || q.RobotKey == "" {
		return nil, errors.New("get_progress: student_id and robot_key are required")
	}
	statuses, err := h.progress.ListByRobot(ctx, q.StudentID, q.RobotKey)
	if err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}
	return statuses, nil
}
