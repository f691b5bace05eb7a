package query

import (
	"context"
	"fmt"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/student"
)

// ListStudentsHandler returns the classroom roster, newest first.
type ListStudentsHandler struct {
	students student.Repository
}

// NewListStudentsHandler creates a new ListStudentsHandler.
func NewListStudentsHandler(repo student.Repository) *ListStudentsHandler {
	return &ListStudentsHandler{students: repo}
}

// Handle lists all students.
func (h *ListStudentsHandler) Handle(ctx context.Context) ([]student.Student, error) {
	students, err := h.students.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list_students: %w", err)
	}
	return students, nil
}
