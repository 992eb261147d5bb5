package effects

import (
	"github.com/raidwatch/raidwatch/internal/encounter"
	"github.com/raidwatch/raidwatch/internal/selectors"
)

// Category groups effects for display layout.
type Category string

const (
	CategoryBuff     Category = "BUFF"
	CategoryDebuff   Category = "DEBUFF"
	CategoryShield   Category = "SHIELD"
	CategoryMechanic Category = "MECHANIC"
)

// Definition is an author record describing one tracked buff/debuff.
// Immutable once loaded; override merging happens upstream.
type Definition struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// Apply lines matching this selector create an instance; Remove lines
	// matching RemoveMatch (or Apply when empty) tombstone it.
	Apply       selectors.EffectSelector `yaml:"apply"`
	RemoveMatch selectors.EffectSelector `yaml:"remove"`

	Source selectors.EntityMatch `yaml:"source"`
	Target selectors.EntityMatch `yaml:"target"`

	// RefreshAbilities lists casts that reset the instance's refresh time
	// without touching applied-at or stacks.
	RefreshAbilities selectors.AbilitySelector `yaml:"refresh_abilities"`

	DurationSecs float64 `yaml:"duration_secs"`
	MaxStacks    int64   `yaml:"max_stacks"`

	PersistPastDeath   bool `yaml:"persist_past_death"`
	TrackOutsideCombat bool `yaml:"track_outside_combat"`

	// Applicability gates; zero values mean ungated.
	Area       string               `yaml:"area"`
	Difficulty encounter.Difficulty `yaml:"difficulty"`
	Boss       string               `yaml:"boss"`

	Category      Category `yaml:"category"`
	Color         string   `yaml:"color"`
	ShowOnOverlay bool     `yaml:"show_on_overlay"`
}

// removeSelector is the selector REMOVE lines are matched against.
func (d *Definition) removeSelector() selectors.EffectSelector {
	if d.RemoveMatch.IsEmpty() {
		return d.Apply
	}
	return d.RemoveMatch
}
