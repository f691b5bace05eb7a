package xp

import (
	"context"
	"time"
)

// EventType classifies the cause of an XP grant.
type EventType string

const (
	// EventItemComplete is granted once per completed checklist item.
	EventItemComplete EventType = "item_complete"

	// EventLevelComplete is granted once when every item of a level is done.
	EventLevelComplete EventType = "level_complete"

	// EventMasteryTier is granted once per crossed mastery-tier threshold.
	EventMasteryTier EventType = "mastery_tier"

	// EventTeacherAward is a discretionary grant by the teacher.
	EventTeacherAward EventType = "teacher_award"

	// EventReflectionBonus is granted once per item completed with a
	// sufficiently long written reflection.
	EventReflectionBonus EventType = "reflection_bonus"
)

// Event is one immutable ledger row granting a fixed XP delta. Rows are only
// created by the engine (or the teacher-award command) and only removed by
// the reset operations; they are never updated.
//
// Uniqueness, enforced by the store:
//   - at most one (student, robot, item, type) row when ItemKey is set
//   - at most one (student, robot, level, type=level_complete) row
//   - at most one (student, robot, tier, type=mastery_tier) row
//
// This makes granting idempotent under retries and concurrent duplicates.
type Event struct {
	ID        int64
	StudentID string
	RobotKey  string

	// LevelKey is set for level_complete events and, informationally, for
	// item events whose item belongs to a known level.
	LevelKey string

	// ItemKey is set for item_complete and reflection_bonus events.
	ItemKey string

	Type  EventType
	Delta int

	// Tier is the 1-based tier number for mastery_tier events, 0 otherwise.
	Tier int

	// Meta carries free-form context, e.g. the reason of a teacher award.
	Meta string

	OccurredAt time.Time
}

// Ledger is the append-only, idempotent event log.
type Ledger interface {
	// Insert appends the event. The bool result is the tagged
	// inserted/already-existed outcome: false means a row satisfying the
	// uniqueness invariant already existed and nothing was written. Only
	// true results may be credited to an accumulator.
	Insert(ctx context.Context, e *Event) (bool, error)

	// SumDeltas sums all deltas for a student, optionally narrowed to one
	// robot (empty robotKey means all robots).
	SumDeltas(ctx context.Context, studentID, robotKey string) (int, error)

	// CountByType counts a student's events of one type for a robot.
	CountByType(ctx context.Context, studentID, robotKey string, t EventType) (int, error)

	// DeleteForItems removes rows tied to the given item keys.
	DeleteForItems(ctx context.Context, studentID, robotKey string, itemKeys []string) error

	// DeleteForLevels removes rows tied to the given level keys.
	DeleteForLevels(ctx context.Context, studentID, robotKey string, levelKeys []string) error

	// DeleteByType removes all rows of one type for a student+robot.
	DeleteByType(ctx context.Context, studentID, robotKey string, t EventType) error

	// DeleteByRobot removes all rows for a student+robot.
	DeleteByRobot(ctx context.Context, studentID, robotKey string) error

	// DeleteByStudent removes all rows for a student.
	DeleteByStudent(ctx context.Context, studentID string) error
}
