package xp

// LevelProgress is the position of a cumulative XP total on a level curve.
type LevelProgress struct {
	// Level is the player level, always >= 1.
	Level int

	// XPInLevel is the XP earned past the start of the current level.
	XPInLevel int

	// XPToNext is the width of the current level's band, or 0 when no
	// further threshold is configured (max level reached).
	XPToNext int
}

// ResolveLevel maps a cumulative XP total to a level using the curve of
// cumulative thresholds (curve[i] is where level i+1 begins; curve[0] is 0).
// Pure and total: a negative total clamps to level 1 and reports the raw
// difference as XPInLevel; callers must never construct negative totals.
func ResolveLevel(total int, curve []int) LevelProgress {
	level := 1
	for i := range curve {
		if total >= curve[i] {
			level = i + 1
		}
	}

	start := 0
	if level-1 < len(curve) {
		start = curve[level-1]
	}
	next := start
	if level < len(curve) {
		next = curve[level]
	}

	xpToNext := next - start
	if xpToNext < 0 {
		xpToNext = 0
	}

	return LevelProgress{
		Level:     level,
		XPInLevel: total - start,
		XPToNext:  xpToNext,
	}
}
