package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/xp"
	"github.com/robolab-hub/robolab-progress-hub/internal/infrastructure/persistence/memory"
)

type fakeStatsCache struct {
	entries map[string]*StatsResponse
	sets    int
}

func newFakeStatsCache() *fakeStatsCache {
	return &fakeStatsCache{entries: make(map[string]*StatsResponse)}
}

func (c *fakeStatsCache) Get(ctx context.Context, studentID string) (*StatsResponse, error) {
	if resp, ok := c.entries[studentID]; ok {
		return resp, nil
	}
	return nil, ErrStatsCacheMiss
}

func (c *fakeStatsCache) Set(ctx context.Context, studentID string, stats *StatsResponse) error {
	c.entries[studentID] = stats
	c.sets++
	return nil
}

func TestGetStatsUnknownStudentIsZeroView(t *testing.T) {
	store := memory.NewStore()
	rules := xp.NewStaticRulesProvider(xp.DefaultRules())
	handler := NewGetStatsHandler(store.Repos().Stats(), rules, nil, nil)

	resp, err := handler.Handle(context.Background(), GetStatsQuery{StudentID: "nobody"})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Student.TotalXP)
	assert.Equal(t, 1, resp.Student.Level)
	assert.Equal(t, 0, resp.Student.XPInLevel)
	assert.Equal(t, 50, resp.Student.NextLevelXP)
	assert.Empty(t, resp.Robots)
}

func TestGetStatsBuildsView(t *testing.T) {
	store := memory.NewStore()
	rules := xp.NewStaticRulesProvider(xp.DefaultRules())
	handler := NewGetStatsHandler(store.Repos().Stats(), rules, nil, nil)
	ctx := context.Background()

	require.NoError(t, store.Repos().Stats().PutRobotStats(ctx, xp.RobotStats{
		StudentID: "s1", RobotKey: "otto", XPTotal: 120, ItemsDone: 8, LevelsComplete: 2, MasteryTier: 0,
	}))
	require.NoError(t, store.Repos().Stats().PutRobotStats(ctx, xp.RobotStats{
		StudentID: "s1", RobotKey: "linebot", XPTotal: 10, ItemsDone: 1,
	}))
	require.NoError(t, store.Repos().Stats().PutStudentStats(ctx, xp.StudentStats{
		StudentID: "s1", TotalXP: 130, Level: 3, XPInLevel: 10,
	}))

	resp, err := handler.Handle(ctx, GetStatsQuery{StudentID: "s1"})
	require.NoError(t, err)

	assert.Equal(t, 130, resp.Student.TotalXP)
	// Level comes from the curve, not the stored column: 130 sits in level 3.
	assert.Equal(t, 3, resp.Student.Level)
	assert.Equal(t, 10, resp.Student.XPInLevel)
	assert.Equal(t, 90, resp.Student.NextLevelXP)

	require.Len(t, resp.Robots, 2)
	assert.Equal(t, 120, resp.Robots["otto"].RobotXP)
	assert.Equal(t, 8, resp.Robots["otto"].ItemsDone)
	assert.Equal(t, 2, resp.Robots["otto"].LevelsComplete)
	assert.Equal(t, 10, resp.Robots["linebot"].RobotXP)
}

func TestGetStatsUsesCache(t *testing.T) {
	store := memory.NewStore()
	rules := xp.NewStaticRulesProvider(xp.DefaultRules())
	cache := newFakeStatsCache()
	handler := NewGetStatsHandler(store.Repos().Stats(), rules, cache, nil)
	ctx := context.Background()

	// First read misses, computes, and fills the cache.
	resp, err := handler.Handle(ctx, GetStatsQuery{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	// Second read is served from the cache even after the store changes.
	require.NoError(t, store.Repos().Stats().PutStudentStats(ctx, xp.StudentStats{
		StudentID: "s1", TotalXP: 500,
	}))
	cached, err := handler.Handle(ctx, GetStatsQuery{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, resp.Student.TotalXP, cached.Student.TotalXP)
	assert.Equal(t, 1, cache.sets)
}

func TestGetStatsRequiresStudentID(t *testing.T) {
	store := memory.NewStore()
	handler := NewGetStatsHandler(store.Repos().Stats(), xp.NewStaticRulesProvider(xp.DefaultRules()), nil, nil)

	_, err := handler.Handle(context.Background(), GetStatsQuery{})
	assert.Error(t, err)
}
