// Package postgres implements the PostgreSQL persistence layer for the Robolab Progress Hub.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE CORE TABLES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create students, progress and level lock tables
-- Version: 001

-- Student roster
CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY,
    display_name VARCHAR(100) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT nonempty_display_name CHECK (length(trim(display_name)) > 0)
);

CREATE INDEX IF NOT EXISTS idx_students_created_at ON students(created_at DESC);

-- Per-item checklist progress
CREATE TABLE IF NOT EXISTS progress (
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    robot_key VARCHAR(60) NOT NULL,
    item_key VARCHAR(120) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'todo',
    payload TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (student_id, robot_key, item_key),
    CONSTRAINT valid_progress_status CHECK (status IN ('todo', 'in_progress', 'done'))
);

CREATE INDEX IF NOT EXISTS idx_progress_student_robot ON progress(student_id, robot_key);
CREATE INDEX IF NOT EXISTS idx_progress_done ON progress(student_id, robot_key) WHERE status = 'done';

-- Level availability per course group
CREATE TABLE IF NOT EXISTS level_locks (
    robot_key VARCHAR(60) NOT NULL,
    course VARCHAR(60) NOT NULL,
    level_key VARCHAR(120) NOT NULL,
    unlocked BOOLEAN NOT NULL DEFAULT TRUE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (robot_key, course, level_key)
);
`

const migration001Down = `
DROP TABLE IF EXISTS level_locks;
DROP TABLE IF EXISTS progress;
DROP TABLE IF EXISTS students;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE XP TABLES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create the XP event ledger and derived aggregate tables
-- Version: 002

-- Append-only XP event ledger. Idempotency of awards is enforced by the
-- partial unique indexes below: a duplicate award becomes a no-op insert.
CREATE TABLE IF NOT EXISTS xp_events (
    id BIGSERIAL PRIMARY KEY,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    robot_key VARCHAR(60) NOT NULL,
    level_key VARCHAR(120) NOT NULL DEFAULT '',
    item_key VARCHAR(120),
    event_type VARCHAR(30) NOT NULL,
    delta INTEGER NOT NULL,
    tier INTEGER NOT NULL DEFAULT 0,
    meta TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_event_type CHECK (event_type IN (
        'item_complete', 'level_complete', 'mastery_tier', 'teacher_award', 'reflection_bonus'
    ))
);

-- One award per item per event type (item_complete, reflection_bonus).
CREATE UNIQUE INDEX IF NOT EXISTS uq_xp_events_item
    ON xp_events(student_id, robot_key, item_key, event_type)
    WHERE item_key IS NOT NULL;

-- One completion bonus per level.
CREATE UNIQUE INDEX IF NOT EXISTS uq_xp_events_level
    ON xp_events(student_id, robot_key, level_key, event_type)
    WHERE event_type = 'level_complete';

-- One grant per mastery tier.
CREATE UNIQUE INDEX IF NOT EXISTS uq_xp_events_tier
    ON xp_events(student_id, robot_key, tier, event_type)
    WHERE event_type = 'mastery_tier';

CREATE INDEX IF NOT EXISTS idx_xp_events_student ON xp_events(student_id);
CREATE INDEX IF NOT EXISTS idx_xp_events_student_robot ON xp_events(student_id, robot_key);
CREATE INDEX IF NOT EXISTS idx_xp_events_occurred_at ON xp_events(occurred_at DESC);

-- Per-robot aggregates, maintained by the XP engine and rebuilt on reset
CREATE TABLE IF NOT EXISTS student_robot_stats (
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    robot_key VARCHAR(60) NOT NULL,
    xp_total INTEGER NOT NULL DEFAULT 0,
    items_done INTEGER NOT NULL DEFAULT 0,
    levels_complete INTEGER NOT NULL DEFAULT 0,
    mastery_tier INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (student_id, robot_key),
    CONSTRAINT valid_robot_xp CHECK (xp_total >= 0)
);

-- Global per-student aggregate with the resolved level snapshot
CREATE TABLE IF NOT EXISTS student_xp_stats (
    student_id UUID PRIMARY KEY REFERENCES students(id) ON DELETE CASCADE,
    total_xp INTEGER NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    xp_in_level INTEGER NOT NULL DEFAULT 0,
    last_event_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_total_xp CHECK (total_xp >= 0),
    CONSTRAINT valid_level CHECK (level >= 1)
);
`

const migration002Down = `
DROP TABLE IF EXISTS student_xp_stats;
DROP TABLE IF EXISTS student_robot_stats;
DROP TABLE IF EXISTS xp_events;
`
