package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/checklist"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/shared"
)

// ChecklistProvider is a fixed in-memory checklist.Provider.
type ChecklistProvider struct {
	checklists map[string]*checklist.Checklist
}

// NewChecklistProvider creates a provider over the given definitions.
func NewChecklistProvider(defs ...*checklist.Checklist) *ChecklistProvider {
	m := make(map[string]*checklist.Checklist, len(defs))
	for _, d := range defs {
		m[d.RobotKey] = d
	}
	return &ChecklistProvider{checklists: m}
}

// Get returns the checklist for the robot, or shared.ErrRobotNotFound.
func (p *ChecklistProvider) Get(ctx context.Context, robotKey string) (*checklist.Checklist, error) {
	cl, ok := p.checklists[robotKey]
	if !ok {
		return nil, shared.ErrRobotNotFound
	}
	return cl, nil
}

// Robots lists all robots a checklist exists for, sorted by key.
func (p *ChecklistProvider) Robots(ctx context.Context) ([]checklist.Robot, error) {
	robots := make([]checklist.Robot, 0, len(p.checklists))
	for _, cl := range p.checklists {
		robots = append(robots, checklist.Robot{Key: cl.RobotKey, Name: cl.RobotName})
	}
	sort.Slice(robots, func(i, j int) bool { return robots[i].Key < robots[j].Key })
	return robots, nil
}

// LockRepository is an in-memory checklist.LockRepository.
type LockRepository struct {
	mu    sync.Mutex
	locks map[string]map[string]bool // key: robotKey|course
}

// NewLockRepository creates an empty LockRepository.
func NewLockRepository() *LockRepository {
	return &LockRepository{locks: make(map[string]map[string]bool)}
}

// Locks returns the lock map for a robot+course.
func (r *LockRepository) Locks(ctx context.Context, robotKey, course string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make(map[string]bool)
	for k, v := range r.locks[robotKey+"|"+course] {
		result[k] = v
	}
	return result, nil
}

// SetLock upserts one lock row.
func (r *LockRepository) SetLock(ctx context.Context, lock checklist.LevelLock) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := lock.RobotKey + "|" + lock.Course
	if r.locks[key] == nil {
		r.locks[key] = make(map[string]bool)
	}
	r.locks[key][lock.LevelKey] = lock.Unlocked
	return nil
}
