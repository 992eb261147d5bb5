package encounter

import (
	"strings"

	"github.com/raidwatch/raidwatch/internal/triggers"
)

// Difficulty gates which definitions apply to the current area instance.
type Difficulty string

const (
	DifficultyAny     Difficulty = ""
	DifficultyStory   Difficulty = "STORY"
	DifficultyVeteran Difficulty = "VETERAN"
	DifficultyMaster  Difficulty = "MASTER"
)

// Applies reports whether a definition gated on d applies to the running
// difficulty.
func (d Difficulty) Applies(running Difficulty) bool {
	return d == DifficultyAny || d == running
}

// PhaseRule declares a phase transition for a boss fight. Start firing moves
// the encounter into the phase; the optional End trigger ends the phase
// without a successor.
type PhaseRule struct {
	ID    string            `yaml:"id"`
	Start triggers.Trigger  `yaml:"start"`
	End   *triggers.Trigger `yaml:"end"`
}

// CounterRule declares a mechanic counter maintained by boss rules.
type CounterRule struct {
	Name      string            `yaml:"name"`
	Increment triggers.Trigger  `yaml:"increment"`
	Decrement *triggers.Trigger `yaml:"decrement"`
	Reset     *triggers.Trigger `yaml:"reset"`
}

// BossDefinition describes one boss fight: the NPC roster that identifies
// it, the ids whose health the overlay shows, and its phase/counter rules.
// Definitions are immutable once loaded; the catalog hands out one shared
// instance per boss so re-detecting a boss across encounters never reparses
// or duplicates the set.
type BossDefinition struct {
	ID         string     `yaml:"id"`
	Name       string     `yaml:"name"`
	Area       string     `yaml:"area"`
	Difficulty Difficulty `yaml:"difficulty"`

	NpcIDs     []int64 `yaml:"npc_ids"`     // roster class ids
	OverlayIDs []int64 `yaml:"overlay_ids"` // class ids shown on the health overlay

	Phases     []PhaseRule           `yaml:"phases"`
	Counters   []CounterRule         `yaml:"counters"`
	Challenges []ChallengeDefinition `yaml:"challenges"`
}

// HasNpc reports whether the class id is part of this boss's roster.
func (b *BossDefinition) HasNpc(classID int64) bool {
	for _, id := range b.NpcIDs {
		if id == classID {
			return true
		}
	}
	return false
}

// IsOverlayNpc reports whether the class id is flagged for the health overlay.
func (b *BossDefinition) IsOverlayNpc(classID int64) bool {
	for _, id := range b.OverlayIDs {
		if id == classID {
			return true
		}
	}
	return false
}

// Catalog is the loaded boss definition set. It is built once per session
// and shared read-only across encounters.
type Catalog struct {
	bosses []*BossDefinition
}

// NewCatalog wraps a loaded definition list.
func NewCatalog(bosses []*BossDefinition) *Catalog {
	return &Catalog{bosses: bosses}
}

// Detect returns the boss definition whose roster contains the class id and
// whose area/difficulty gates pass, or nil. The returned pointer is the
// shared instance; callers must treat it as read-only.
func (c *Catalog) Detect(classID int64, area string, difficulty Difficulty) *BossDefinition {
	for _, b := range c.bosses {
		if !b.HasNpc(classID) {
			continue
		}
		if b.Area != "" && !strings.EqualFold(b.Area, area) {
			continue
		}
		if !b.Difficulty.Applies(difficulty) {
			continue
		}
		return b
	}
	return nil
}

// Len returns the number of loaded boss definitions.
func (c *Catalog) Len() int {
	return len(c.bosses)
}
