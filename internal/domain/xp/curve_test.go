package xp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveLevel(t *testing.T) {
	curve := []int{0, 50, 120, 210}

	lp := ResolveLevel(0, curve)
	assert.Equal(t, 1, lp.Level)
	assert.Equal(t, 0, lp.XPInLevel)
	assert.Equal(t, 50, lp.XPToNext)

	lp = ResolveLevel(49, curve)
	assert.Equal(t, 1, lp.Level)
	assert.Equal(t, 49, lp.XPInLevel)
	assert.Equal(t, 50, lp.XPToNext)

	// Exactly at a threshold the next level begins.
	lp = ResolveLevel(50, curve)
	assert.Equal(t, 2, lp.Level)
	assert.Equal(t, 0, lp.XPInLevel)
	assert.Equal(t, 70, lp.XPToNext)

	lp = ResolveLevel(209, curve)
	assert.Equal(t, 3, lp.Level)
	assert.Equal(t, 89, lp.XPInLevel)
	assert.Equal(t, 90, lp.XPToNext)
}

func TestResolveLevelMaxLevel(t *testing.T) {
	curve := []int{0, 50, 120, 210}

	lp := ResolveLevel(210, curve)
	assert.Equal(t, 4, lp.Level)
	assert.Equal(t, 0, lp.XPInLevel)
	assert.Equal(t, 0, lp.XPToNext)

	// Past the last threshold XPInLevel keeps growing, XPToNext stays 0.
	lp = ResolveLevel(1000, curve)
	assert.Equal(t, 4, lp.Level)
	assert.Equal(t, 790, lp.XPInLevel)
	assert.Equal(t, 0, lp.XPToNext)
}

func TestResolveLevelDefaultCurve(t *testing.T) {
	curve := DefaultRules().LevelCurve

	lp := ResolveLevel(330, curve)
	assert.Equal(t, 5, lp.Level)
	assert.Equal(t, 10, lp.XPInLevel)
	assert.Equal(t, 130, lp.XPToNext)
}
