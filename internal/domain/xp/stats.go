package xp

import (
	"context"
	"time"
)

// RobotStats is the rolling per-(student, robot) aggregate. It is a cache:
// every field is recomputable from the ledger and the progress store, and the
// reset operations rebuild it that way rather than decrementing.
type RobotStats struct {
	StudentID string
	RobotKey  string

	// XPTotal is the sum of the student's ledger deltas for this robot.
	// Updated additively, never recomputed by the engine; the ledger's
	// idempotent inserts keep the running sum exact.
	XPTotal int

	// ItemsDone is the count of done progress rows. Overwritten from a
	// recount on every engine invocation; drift self-heals.
	ItemsDone int

	// LevelsComplete is the count of level_complete ledger events.
	LevelsComplete int

	// MasteryTier is the highest granted tier index (0 = none).
	// Monotonically non-decreasing outside of resets.
	MasteryTier int
}

// StudentStats is the global per-student aggregate across all robots.
// Level and XPInLevel are pure functions of TotalXP via the level curve;
// they are cached for read efficiency, never an independent source of truth.
type StudentStats struct {
	StudentID   string
	TotalXP     int
	Level       int
	XPInLevel   int
	LastEventAt time.Time
}

// StatsStore persists the aggregate stats rows.
type StatsStore interface {
	// RobotStats returns the aggregate for a student+robot, or
	// shared.ErrNotFound when no row exists yet.
	RobotStats(ctx context.Context, studentID, robotKey string) (*RobotStats, error)

	// ListRobotStats returns all per-robot aggregates for a student.
	ListRobotStats(ctx context.Context, studentID string) ([]RobotStats, error)

	// ApplyRobotDelta upserts the per-robot row: XP is added server-side to
	// the stored total, the counts are overwritten with the given recounted
	// values. See the RobotStats field docs for the asymmetry.
	ApplyRobotDelta(ctx context.Context, studentID, robotKey string, xpDelta, itemsDone, levelsComplete int) error

	// GrantMasteryTier records a newly granted tier: sets the tier index and
	// adds the bonus to the XP total. Called once per tier inside the same
	// transaction as the tier's ledger insert.
	GrantMasteryTier(ctx context.Context, studentID, robotKey string, tier, bonusXP int) error

	// PutRobotStats overwrites the per-robot row with recomputed values.
	// Used by the reset operations only.
	PutRobotStats(ctx context.Context, s RobotStats) error

	// DeleteRobotStatsByStudent removes all per-robot rows for a student.
	DeleteRobotStatsByStudent(ctx context.Context, studentID string) error

	// StudentStats returns the global aggregate for a student, or
	// shared.ErrNotFound when no row exists yet.
	StudentStats(ctx context.Context, studentID string) (*StudentStats, error)

	// PutStudentStats upserts the global aggregate.
	PutStudentStats(ctx context.Context, s StudentStats) error
}
