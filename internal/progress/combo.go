package progress

import "monster-quiz-engine/internal/domain"

type comboTier struct {
	minCombo int
	bonus    domain.ComboBonus
}

// comboTiers is ordered from the highest threshold down.
var comboTiers = []comboTier{
	{
		minCombo: 15,
		bonus: domain.ComboBonus{
			Tier:                   "super_fire",
			ExperienceMultiplier:   2.0,
			RareMonsterChanceBonus: 0.20,
			Message:                "SUPER FIRE! Rare monsters are drawn to you!",
			EffectType:             "super_fire",
		},
	},
	{
		minCombo: 10,
		bonus: domain.ComboBonus{
			Tier:                   "blazing",
			ExperienceMultiplier:   1.5,
			RareMonsterChanceBonus: 0.10,
			Message:                "Blazing combo!",
			EffectType:             "blazing",
		},
	},
	{
		minCombo: 5,
		bonus: domain.ComboBonus{
			Tier:                   "fire",
			ExperienceMultiplier:   1.2,
			RareMonsterChanceBonus: 0.05,
			Message:                "You're on fire!",
			EffectType:             "fire",
		},
	},
}

// FireThreshold is the combo at which a player is on fire.
var FireThreshold = comboTiers[len(comboTiers)-1].minCombo

// ComboBonusFor returns the tier reached by combo, or nil below the fire tier.
func ComboBonusFor(combo int) *domain.ComboBonus {
	for _, tier := range comboTiers {
		if combo >= tier.minCombo {
			b := tier.bonus
			return &b
		}
	}
	return nil
}
