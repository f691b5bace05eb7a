// Package checklist defines the course content model: robots, levels, and
// checklist items. Definitions are authored outside the system (YAML files)
// and loaded through the Provider interface; this package only models the
// structure the rest of the domain depends on.
package checklist

import "context"

// Difficulty classifies how hard a checklist item is. Optional; most items
// declare none.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether the difficulty is one of the known values.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Item is a single task a student can mark todo/in_progress/done.
type Item struct {
	// Key uniquely identifies the item within its robot's checklist.
	Key string

	// Title is the display text shown to students.
	Title string

	// Description is optional markdown shown when the item is expanded.
	Description string

	// Difficulty is optional; when set, completing the item earns a bonus
	// on top of the base item XP.
	Difficulty Difficulty
}

// Level is an ordered group of checklist items for one robot.
type Level struct {
	// Key uniquely identifies the level within its robot's checklist.
	Key string

	// Name is the display name of the level.
	Name string

	// Items are the level's checklist items, in display order.
	Items []Item
}

// ItemKeys returns the keys of all items in the level.
func (l Level) ItemKeys() []string {
	keys := make([]string, len(l.Items))
	for i, it := range l.Items {
		keys[i] = it.Key
	}
	return keys
}

// Checklist is the full definition for one robot.
type Checklist struct {
	RobotKey  string
	RobotName string
	Levels    []Level
}

// ItemToLevel builds a lookup from item key to the key of the level that
// contains it. Items never belong to more than one level; if a malformed
// definition repeats a key, the first level wins.
func (c Checklist) ItemToLevel() map[string]string {
	m := make(map[string]string)
	for _, lvl := range c.Levels {
		for _, it := range lvl.Items {
			if _, ok := m[it.Key]; !ok {
				m[it.Key] = lvl.Key
			}
		}
	}
	return m
}

// FindLevel returns the level with the given key, or nil.
func (c Checklist) FindLevel(key string) *Level {
	for i := range c.Levels {
		if c.Levels[i].Key == key {
			return &c.Levels[i]
		}
	}
	return nil
}

// Robot identifies one robot platform taught in the course.
type Robot struct {
	Key  string
	Name string
}

// Provider supplies checklist definitions per robot key.
type Provider interface {
	// Get returns the checklist for the robot, or shared.ErrRobotNotFound.
	Get(ctx context.Context, robotKey string) (*Checklist, error)

	// Robots lists all robots a checklist exists for.
	Robots(ctx context.Context) ([]Robot, error)
}

// LevelLock gates whether a level is visible to a course cohort. With no lock
// rows configured for a robot+course, every level is treated as unlocked.
type LevelLock struct {
	RobotKey string
	Course   string
	LevelKey string
	Unlocked bool
}

// LockRepository stores per-level unlock gates.
type LockRepository interface {
	// Locks returns the lock map (level key -> unlocked) for a robot+course.
	Locks(ctx context.Context, robotKey, course string) (map[string]bool, error)

	// SetLock upserts one lock row.
	SetLock(ctx context.Context, lock LevelLock) error
}

// FilterUnlocked returns the levels visible given the lock map. An empty map
// means no gating is configured and all levels pass through.
func FilterUnlocked(levels []Level, locks map[string]bool) []Level {
	if len(locks) == 0 {
		return levels
	}
	visible := make([]Level, 0, len(levels))
	for _, lvl := range levels {
		if locks[lvl.Key] {
			visible = append(visible, lvl)
		}
	}
	return visible
}
