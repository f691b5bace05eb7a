// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/shared"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/xp"
	"github.com/robolab-hub/robolab-progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STATS QUERY
// Read side of the XP subsystem: the per-student view the UI renders level
// and XP indicators from. Level and xpInLevel are re-derived from the stored
// total through the curve at read time; the stored columns are only a cache.
// ══════════════════════════════════════════════════════════════════════════════

// StudentStatsView is the global slice of the stats response.
type StudentStatsView struct {
	TotalXP     int `json:"totalXP"`
	Level       int `json:"level"`
	XPInLevel   int `json:"xpInLevel"`
	NextLevelXP int `json:"nextLevelXP"`
}

// RobotStatsView is the per-robot slice of the stats response.
type RobotStatsView struct {
	RobotXP        int `json:"robotXP"`
	ItemsDone      int `json:"itemsDone"`
	LevelsComplete int `json:"levelsComplete"`
	MasteryTier    int `json:"masteryTier"`
}

// StatsResponse is the full stats payload for one student.
type StatsResponse struct {
	Student StudentStatsView          `json:"student"`
	Robots  map[string]RobotStatsView `json:"robots"`
}

// StatsCache is a read-through cache for stats responses. Implementations
// are best-effort; the handler falls back to the store on any cache error.
type StatsCache interface {
	Get(ctx context.Context, studentID string) (*StatsResponse, error)
	Set(ctx context.Context, studentID string, stats *StatsResponse) error
}

// ErrStatsCacheMiss is returned by StatsCache.Get when no entry exists.
var ErrStatsCacheMiss = errors.New("stats cache miss")

// GetStatsQuery identifies the student.
type GetStatsQuery struct {
	StudentID string
}

// GetStatsHandler handles the GetStatsQuery.
type GetStatsHandler struct {
	stats  xp.StatsStore
	rules  xp.RulesProvider
	cache  StatsCache // optional
	logger *logger.Logger
}

// NewGetStatsHandler creates a new GetStatsHandler. cache may be nil.
func NewGetStatsHandler(stats xp.StatsStore, rules xp.RulesProvider, cache StatsCache, log *logger.Logger) *GetStatsHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetStatsHandler{
		stats:  stats,
		rules:  rules,
		cache:  cache,
		logger: log.With(logger.Component("get_stats")),
	}
}

// Handle builds the stats response. A student with no events yet gets the
// zero view (level 1, empty robots map), not an error.
func (h *GetStatsHandler) Handle(ctx context.Context, q GetStatsQuery) (*StatsResponse, error) {
	if q.StudentID == "" {
		return nil, errors.New("get_stats: student_id is required")
	}

	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, q.StudentID); err == nil {
			return cached, nil
		} else if !errors.Is(err, ErrStatsCacheMiss) {
			h.logger.Warn("stats cache read failed",
				logger.StudentID(q.StudentID), logger.Err(err))
		}
	}

	total := 0
	if ss, err := h.stats.StudentStats(ctx, q.StudentID); err == nil {
		total = ss.TotalXP
	} else if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("get_stats: %w", err)
	}

	rules := h.rules.RulesFor("")
	lp := xp.ResolveLevel(total, rules.LevelCurve)

	robotRows, err := h.stats.ListRobotStats(ctx, q.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get_stats: %w", err)
	}
	robots := make(map[string]RobotStatsView, len(robotRows))
	for _, r := range robotRows {
		robots[r.RobotKey] = RobotStatsView{
			RobotXP:        r.XPTotal,
			ItemsDone:      r.ItemsDone,
			LevelsComplete: r.LevelsComplete,
			MasteryTier:    r.MasteryTier,
		}
	}

	xpInLevel := lp.XPInLevel
	if xpInLevel < 0 {
		xpInLevel = 0
	}
	resp := &StatsResponse{
		Student: StudentStatsView{
			TotalXP:     total,
			Level:       lp.Level,
			XPInLevel:   xpInLevel,
			NextLevelXP: lp.XPToNext,
		},
		Robots: robots,
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, q.StudentID, resp); err != nil {
			h.logger.Warn("stats cache write failed",
				logger.StudentID(q.StudentID), logger.Err(err))
		}
	}
	return resp, nil
}
