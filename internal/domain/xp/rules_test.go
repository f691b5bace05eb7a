package xp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/checklist"
)

func TestDefaultRulesAreValid(t *testing.T) {
	assert.NoError(t, DefaultRules().Validate())
}

func TestItemXP(t *testing.T) {
	rules := DefaultRules()

	assert.Equal(t, 10, rules.ItemXP(""))
	assert.Equal(t, 15, rules.ItemXP(checklist.DifficultyEasy))
	assert.Equal(t, 20, rules.ItemXP(checklist.DifficultyMedium))
	assert.Equal(t, 25, rules.ItemXP(checklist.DifficultyHard))
}

func TestRulesValidateRejectsBadCurve(t *testing.T) {
	rules := DefaultRules()
	rules.LevelCurve = []int{10, 50}
	assert.Error(t, rules.Validate(), "curve must start at 0")

	rules.LevelCurve = []int{0, 50, 50}
	assert.Error(t, rules.Validate(), "curve must be strictly ascending")

	rules.LevelCurve = nil
	assert.Error(t, rules.Validate(), "empty curve")
}

func TestRulesValidateRejectsBadTiers(t *testing.T) {
	rules := DefaultRules()
	rules.Mastery.Tiers = []MasteryTier{
		{ThresholdItems: 10, BonusXP: 30},
		{ThresholdItems: 10, BonusXP: 50},
	}
	assert.Error(t, rules.Validate(), "tier thresholds must be strictly ascending")

	rules.Mastery.Tiers = []MasteryTier{{ThresholdItems: 5, BonusXP: -1}}
	assert.Error(t, rules.Validate(), "negative bonus")
}

func TestStaticRulesProvider(t *testing.T) {
	p := NewStaticRulesProvider(DefaultRules())
	assert.Equal(t, DefaultRules().BaseItemXP, p.RulesFor("otto").BaseItemXP)
	assert.Equal(t, DefaultRules().BaseItemXP, p.RulesFor("anything").BaseItemXP)
}
