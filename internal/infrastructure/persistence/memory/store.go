// Package memory provides in-memory implementations of the persistence ports.
// Used by tests and local development; semantics mirror the PostgreSQL layer,
// including ledger uniqueness and transactional rollback.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robolab-hub/robolab-progress-hub/internal/application/command"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/progress"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/shared"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/student"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

// Store implements command.UnitOfWork in memory. WithinTx snapshots the whole
// state before running fn and restores it on error, which gives the same
// all-or-nothing behavior the transactional PostgreSQL store has.
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{state: newState()}
}

// Repos returns a repository set guarded by the store's mutex.
func (s *Store) Repos() command.Repos {
	return repoSet{store: s, locked: false}
}

// WithinTx runs fn against the live state under the mutex, restoring the
// pre-call snapshot if fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r command.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(ctx, repoSet{store: s, locked: true}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// state is the mutable data behind all repositories.
type state struct {
	events       []xp.Event
	nextEventID  int64
	robotStats   map[string]xp.RobotStats   // key: studentID|robotKey
	studentStats map[string]xp.StudentStats // key: studentID
	progress     map[string]progress.Entry  // key: studentID|robotKey|itemKey
	students     map[string]student.Student // key: studentID
}

func newState() *state {
	return &state{
		nextEventID:  1,
		robotStats:   make(map[string]xp.RobotStats),
		studentStats: make(map[string]xp.StudentStats),
		progress:     make(map[string]progress.Entry),
		students:     make(map[string]student.Student),
	}
}

func (st *state) clone() *state {
	c := &state{
		events:       make([]xp.Event, len(st.events)),
		nextEventID:  st.nextEventID,
		robotStats:   make(map[string]xp.RobotStats, len(st.robotStats)),
		studentStats: make(map[string]xp.StudentStats, len(st.studentStats)),
		progress:     make(map[string]progress.Entry, len(st.progress)),
		students:     make(map[string]student.Student, len(st.students)),
	}
	copy(c.events, st.events)
	for k, v := range st.robotStats {
		c.robotStats[k] = v
	}
	for k, v := range st.studentStats {
		c.studentStats[k] = v
	}
	for k, v := range st.progress {
		c.progress[k] = v
	}
	for k, v := range st.students {
		c.students[k] = v
	}
	return c
}

func robotKeyOf(studentID, robotKey string) string { return studentID + "|" + robotKey }
func itemKeyOf(studentID, robotKey, item string) string {
	return studentID + "|" + robotKey + "|" + item
}

// repoSet binds every repository method to the store. When locked is false
// each call takes the mutex itself; inside WithinTx the mutex is already held.
type repoSet struct {
	store  *Store
	locked bool
}

func (r repoSet) with(fn func(st *state) error) error {
	if !r.locked {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
	}
	return fn(r.store.state)
}

func (r repoSet) Ledger() xp.Ledger             { return ledgerRepo{r} }
func (r repoSet) Stats() xp.StatsStore          { return statsRepo{r} }
func (r repoSet) Progress() progress.Repository { return progressRepo{r} }
func (r repoSet) Students() student.Repository  { return studentRepo{r} }

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// ══════════════════════════════════════════════════════════════════════════════

type ledgerRepo struct{ repoSet }

// conflicts mirrors the partial unique indexes of the xp_events table.
func conflicts(existing, e *xp.Event) bool {
	if existing.StudentID != e.StudentID || existing.RobotKey != e.RobotKey {
		return false
	}
	if e.ItemKey != "" {
		return existing.ItemKey == e.ItemKey && existing.Type == e.Type
	}
	switch e.Type {
	case xp.EventLevelComplete:
		return existing.Type == xp.EventLevelComplete && existing.LevelKey == e.LevelKey
	case xp.EventMasteryTier:
		return existing.Type == xp.EventMasteryTier && existing.Tier == e.Tier
	}
	return false
}

func (r ledgerRepo) Insert(ctx context.Context, e *xp.Event) (bool, error) {
	inserted := false
	err := r.with(func(st *state) error {
		for i := range st.events {
			if conflicts(&st.events[i], e) {
				return nil
			}
		}
		ev := *e
		ev.ID = st.nextEventID
		st.nextEventID++
		if ev.OccurredAt.IsZero() {
			ev.OccurredAt = time.Now().UTC()
		}
		st.events = append(st.events, ev)
		inserted = true
		return nil
	})
	return inserted, err
}

func (r ledgerRepo) SumDeltas(ctx context.Context, studentID, robotKey string) (int, error) {
	sum := 0
	err := r.with(func(st *state) error {
		for _, e := range st.events {
			if e.StudentID != studentID {
				continue
			}
			if robotKey != "" && e.RobotKey != robotKey {
				continue
			}
			sum += e.Delta
		}
		return nil
	})
	return sum, err
}

func (r ledgerRepo) CountByType(ctx context.Context, studentID, robotKey string, t xp.EventType) (int, error) {
	count := 0
	err := r.with(func(st *state) error {
		for _, e := range st.events {
			if e.StudentID == studentID && e.RobotKey == robotKey && e.Type == t {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r ledgerRepo) deleteWhere(match func(e *xp.Event) bool) error {
	return r.with(func(st *state) error {
		kept := st.events[:0]
		for i := range st.events {
			if !match(&st.events[i]) {
				kept = append(kept, st.events[i])
			}
		}
		st.events = kept
		return nil
	})
}

func (r ledgerRepo) DeleteForItems(ctx context.Context, studentID, robotKey string, itemKeys []string) error {
	keys := make(map[string]bool, len(itemKeys))
	for _, k := range itemKeys {
		keys[k] = true
	}
	return r.deleteWhere(func(e *xp.Event) bool {
		return e.StudentID == studentID && e.RobotKey == robotKey && e.ItemKey != "" && keys[e.ItemKey]
	})
}

func (r ledgerRepo) DeleteForLevels(ctx context.Context, studentID, robotKey string, levelKeys []string) error {
	keys := make(map[string]bool, len(levelKeys))
	for _, k := range levelKeys {
		keys[k] = true
	}
	return r.deleteWhere(func(e *xp.Event) bool {
		return e.StudentID == studentID && e.RobotKey == robotKey &&
			e.Type == xp.EventLevelComplete && keys[e.LevelKey]
	})
}

func (r ledgerRepo) DeleteByType(ctx context.Context, studentID, robotKey string, t xp.EventType) error {
	return r.deleteWhere(func(e *xp.Event) bool {
		return e.StudentID == studentID && e.RobotKey == robotKey && e.Type == t
	})
}

func (r ledgerRepo) DeleteByRobot(ctx context.Context, studentID, robotKey string) error {
	return r.deleteWhere(func(e *xp.Event) bool {
		return e.StudentID == studentID && e.RobotKey == robotKey
	})
}

func (r ledgerRepo) DeleteByStudent(ctx context.Context, studentID string) error {
	return r.deleteWhere(func(e *xp.Event) bool {
		return e.StudentID == studentID
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS
// ══════════════════════════════════════════════════════════════════════════════

type statsRepo struct{ repoSet }

func (r statsRepo) RobotStats(ctx context.Context, studentID, robotKey string) (*xp.RobotStats, error) {
	var result *xp.RobotStats
	err := r.with(func(st *state) error {
		s, ok := st.robotStats[robotKeyOf(studentID, robotKey)]
		if !ok {
			return shared.ErrNotFound
		}
		result = &s
		return nil
	})
	return result, err
}

func (r statsRepo) ListRobotStats(ctx context.Context, studentID string) ([]xp.RobotStats, error) {
	var result []xp.RobotStats
	err := r.with(func(st *state) error {
		for _, s := range st.robotStats {
			if s.StudentID == studentID {
				result = append(result, s)
			}
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].RobotKey < result[j].RobotKey })
	return result, err
}

func (r statsRepo) ApplyRobotDelta(ctx context.Context, studentID, robotKey string, xpDelta, itemsDone, levelsComplete int) error {
	return r.with(func(st *state) error {
		key := robotKeyOf(studentID, robotKey)
		s := st.robotStats[key]
		s.StudentID = studentID
		s.RobotKey = robotKey
		s.XPTotal += xpDelta
		s.ItemsDone = itemsDone
		s.LevelsComplete = levelsComplete
		st.robotStats[key] = s
		return nil
	})
}

func (r statsRepo) GrantMasteryTier(ctx context.Context, studentID, robotKey string, tier, bonusXP int) error {
	return r.with(func(st *state) error {
		key := robotKeyOf(studentID, robotKey)
		s := st.robotStats[key]
		s.StudentID = studentID
		s.RobotKey = robotKey
		s.XPTotal += bonusXP
		if tier > s.MasteryTier {
			s.MasteryTier = tier
		}
		st.robotStats[key] = s
		return nil
	})
}

func (r statsRepo) PutRobotStats(ctx context.Context, s xp.RobotStats) error {
	return r.with(func(st *state) error {
		st.robotStats[robotKeyOf(s.StudentID, s.RobotKey)] = s
		return nil
	})
}

func (r statsRepo) DeleteRobotStatsByStudent(ctx context.Context, studentID string) error {
	return r.with(func(st *state) error {
		for key, s := range st.robotStats {
			if s.StudentID == studentID {
				delete(st.robotStats, key)
			}
		}
		return nil
	})
}

func (r statsRepo) StudentStats(ctx context.Context, studentID string) (*xp.StudentStats, error) {
	var result *xp.StudentStats
	err := r.with(func(st *state) error {
		s, ok := st.studentStats[studentID]
		if !ok {
			return shared.ErrNotFound
		}
		result = &s
		return nil
	})
	return result, err
}

func (r statsRepo) PutStudentStats(ctx context.Context, s xp.StudentStats) error {
	return r.with(func(st *state) error {
		st.studentStats[s.StudentID] = s
		return nil
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

type progressRepo struct{ repoSet }

func (r progressRepo) Upsert(ctx context.Context, e progress.Entry) error {
	return r.with(func(st *state) error {
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = time.Now().UTC()
		}
		st.progress[itemKeyOf(e.StudentID, e.RobotKey, e.ItemKey)] = e
		return nil
	})
}

func (r progressRepo) Statuses(ctx context.Context, studentID, robotKey string, itemKeys []string) (map[string]progress.Status, error) {
	result := make(map[string]progress.Status, len(itemKeys))
	err := r.with(func(st *state) error {
		for _, key := range itemKeys {
			if e, ok := st.progress[itemKeyOf(studentID, robotKey, key)]; ok {
				result[key] = e.Status
			}
		}
		return nil
	})
	return result, err
}

func (r progressRepo) ListByRobot(ctx context.Context, studentID, robotKey string) (map[string]progress.Status, error) {
	result := make(map[string]progress.Status)
	err := r.with(func(st *state) error {
		for _, e := range st.progress {
			if e.StudentID == studentID && e.RobotKey == robotKey {
				result[e.ItemKey] = e.Status
			}
		}
		return nil
	})
	return result, err
}

func (r progressRepo) CountDone(ctx context.Context, studentID, robotKey string) (int, error) {
	count := 0
	err := r.with(func(st *state) error {
		for _, e := range st.progress {
			if e.StudentID == studentID && e.RobotKey == robotKey && e.Status == progress.StatusDone {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r progressRepo) DeleteItems(ctx context.Context, studentID, robotKey string, itemKeys []string) error {
	return r.with(func(st *state) error {
		for _, key := range itemKeys {
			delete(st.progress, itemKeyOf(studentID, robotKey, key))
		}
		return nil
	})
}

func (r progressRepo) DeleteByStudent(ctx context.Context, studentID string) error {
	return r.with(func(st *state) error {
		for key, e := range st.progress {
			if e.StudentID == studentID {
				delete(st.progress, key)
			}
		}
		return nil
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

type studentRepo struct{ repoSet }

func (r studentRepo) Create(ctx context.Context, s *student.Student) error {
	return r.with(func(st *state) error {
		if _, ok := st.students[s.ID]; ok {
			return shared.ErrStudentAlreadyExists
		}
		st.students[s.ID] = *s
		return nil
	})
}

func (r studentRepo) GetByID(ctx context.Context, id string) (*student.Student, error) {
	var result *student.Student
	err := r.with(func(st *state) error {
		s, ok := st.students[id]
		if !ok {
			return shared.ErrStudentNotFound
		}
		result = &s
		return nil
	})
	return result, err
}

func (r studentRepo) List(ctx context.Context) ([]student.Student, error) {
	var result []student.Student
	err := r.with(func(st *state) error {
		for _, s := range st.students {
			result = append(result, s)
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, err
}

func (r studentRepo) Rename(ctx context.Context, id, displayName string) error {
	return r.with(func(st *state) error {
		s, ok := st.students[id]
		if !ok {
			return shared.ErrStudentNotFound
		}
		s.DisplayName = displayName
		st.students[id] = s
		return nil
	})
}

func (r studentRepo) Delete(ctx context.Context, id string) error {
	return r.with(func(st *state) error {
		if _, ok := st.students[id]; !ok {
			return shared.ErrStudentNotFound
		}
		delete(st.students, id)
		return nil
	})
}
