// Package checklist loads robot checklist definitions from YAML files.
// Each robot has one file named <robot_key>.yaml in the checklist directory;
// definitions are read once at startup and served from memory.
package checklist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/checklist"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// YAML SCHEMA
// ══════════════════════════════════════════════════════════════════════════════

type checklistFile struct {
	RobotKey  string      `yaml:"robot_key"`
	RobotName string      `yaml:"robot_name"`
	Levels    []levelFile `yaml:"levels"`
}

type levelFile struct {
	Key   string     `yaml:"key"`
	Name  string     `yaml:"name"`
	Items []itemFile `yaml:"items"`
}

type itemFile struct {
	Key         string `yaml:"key"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Difficulty  string `yaml:"difficulty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// LOADER
// ══════════════════════════════════════════════════════════════════════════════

// Loader implements checklist.Provider over a directory of YAML files.
type Loader struct {
	dir string

	mu         sync.RWMutex
	checklists map[string]*checklist.Checklist
}

// NewLoader creates a Loader for the given directory. Call Load before use.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:        dir,
		checklists: make(map[string]*checklist.Checklist),
	}
}

// Load parses every *.yaml file in the directory and replaces the in-memory
// set atomically. A malformed file fails the whole load; a half-loaded course
// catalog is worse than a startup error.
func (l *Loader) Load() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("checklist loader: read dir %s: %w", l.dir, err)
	}

	loaded := make(map[string]*checklist.Checklist)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		path := filepath.Join(l.dir, entry.Name())
		cl, err := l.parseFile(path)
		if err != nil {
			return err
		}

		wantKey := strings.TrimSuffix(entry.Name(), ".yaml")
		if cl.RobotKey != wantKey {
			return shared.WrapError("checklist", "Load", shared.ErrInvalidFormat,
				fmt.Sprintf("file %s declares robot_key %q, want %q", entry.Name(), cl.RobotKey, wantKey), nil)
		}
		loaded[cl.RobotKey] = cl
	}

	l.mu.Lock()
	l.checklists = loaded
	l.mu.Unlock()
	return nil
}

func (l *Loader) parseFile(path string) (*checklist.Checklist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("checklist loader: read %s: %w", path, err)
	}

	var f checklistFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, shared.WrapError("checklist", "Parse", shared.ErrInvalidFormat,
			fmt.Sprintf("file %s is not valid YAML", filepath.Base(path)), err)
	}

	cl, err := f.toDomain()
	if err != nil {
		return nil, fmt.Errorf("checklist loader: %s: %w", filepath.Base(path), err)
	}
	return cl, nil
}

// toDomain validates the parsed file and converts it to the domain model.
func (f checklistFile) toDomain() (*checklist.Checklist, error) {
	if strings.TrimSpace(f.RobotKey) == "" {
		return nil, shared.ErrChecklistMalformed
	}
	if strings.TrimSpace(f.RobotName) == "" {
		return nil, shared.ErrChecklistMalformed
	}

	cl := &checklist.Checklist{
		RobotKey:  f.RobotKey,
		RobotName: f.RobotName,
		Levels:    make([]checklist.Level, 0, len(f.Levels)),
	}

	seenLevels := make(map[string]bool)
	seenItems := make(map[string]bool)
	for _, lf := range f.Levels {
		if strings.TrimSpace(lf.Key) == "" || seenLevels[lf.Key] {
			return nil, shared.ErrChecklistMalformed
		}
		seenLevels[lf.Key] = true

		lvl := checklist.Level{
			Key:   lf.Key,
			Name:  lf.Name,
			Items: make([]checklist.Item, 0, len(lf.Items)),
		}
		for _, itf := range lf.Items {
			if strings.TrimSpace(itf.Key) == "" || seenItems[itf.Key] {
				return nil, shared.ErrChecklistMalformed
			}
			seenItems[itf.Key] = true

			difficulty := checklist.Difficulty(itf.Difficulty)
			if itf.Difficulty != "" && !difficulty.Valid() {
				return nil, shared.ErrChecklistMalformed
			}

			lvl.Items = append(lvl.Items, checklist.Item{
				Key:         itf.Key,
				Title:       itf.Title,
				Description: itf.Description,
				Difficulty:  difficulty,
			})
		}
		cl.Levels = append(cl.Levels, lvl)
	}

	return cl, nil
}

// Get returns the checklist for the robot, or shared.ErrRobotNotFound.
func (l *Loader) Get(ctx context.Context, robotKey string) (*checklist.Checklist, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cl, ok := l.checklists[robotKey]
	if !ok {
		return nil, shared.ErrRobotNotFound
	}
	return cl, nil
}

// Robots lists all loaded robots, sorted by key.
func (l *Loader) Robots(ctx context.Context) ([]checklist.Robot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	robots := make([]checklist.Robot, 0, len(l.checklists))
	for _, cl := range l.checklists {
		robots = append(robots, checklist.Robot{Key: cl.RobotKey, Name: cl.RobotName})
	}
	sort.Slice(robots, func(i, j int) bool { return robots[i].Key < robots[j].Key })
	return robots, nil
}
