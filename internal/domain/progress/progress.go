// Package progress models per-student checklist item status. The progress
// store is the authoritative record of what a student has done; the XP
// subsystem reads it but never owns the item-status writes.
package progress

import (
	"context"
	"time"
)

// Status is the completion state of one checklist item.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Entry is one persisted (student, robot, item) status row.
type Entry struct {
	StudentID string
	RobotKey  string
	ItemKey   string
	Status    Status

	// Payload is free-form item data (e.g. a reflection text) attached by
	// the UI when saving.
	Payload string

	UpdatedAt time.Time
}

// Change describes one item's status transition as submitted by the UI.
type Change struct {
	// Prev is the status before the save. Empty means the item had no row
	// yet, which counts as not done.
	Prev Status

	// Next is the status after the save.
	Next Status

	// Payload is the free-form payload accompanying the change.
	Payload string
}

// NewlyDone reports whether the change transitions the item into done.
// Re-marking an already done item is not a new completion.
func (c Change) NewlyDone() bool {
	return c.Prev != StatusDone && c.Next == StatusDone
}

// Repository is the durable store for item statuses.
type Repository interface {
	// Upsert writes one status row, overwriting any existing status and
	// payload for the same (student, robot, item).
	Upsert(ctx context.Context, e Entry) error

	// Statuses returns the current status for exactly the given item keys.
	// Items with no row are absent from the result map.
	Statuses(ctx context.Context, studentID, robotKey string, itemKeys []string) (map[string]Status, error)

	// ListByRobot returns all status rows for a student+robot as an
	// item key -> status map.
	ListByRobot(ctx context.Context, studentID, robotKey string) (map[string]Status, error)

	// CountDone counts the student's done rows for a robot. This is the one
	// shared definition of "done-item count" used by the XP engine and by
	// the reset operations; keep callers on this method so the two paths
	// cannot drift apart.
	CountDone(ctx context.Context, studentID, robotKey string) (int, error)

	// DeleteItems removes rows for the given item keys.
	DeleteItems(ctx context.Context, studentID, robotKey string, itemKeys []string) error

	// DeleteByStudent removes every progress row for a student.
	DeleteByStudent(ctx context.Context, studentID string) error
}
