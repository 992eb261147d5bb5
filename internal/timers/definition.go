package timers

import (
	"github.com/raidwatch/raidwatch/internal/encounter"
	"github.com/raidwatch/raidwatch/internal/triggers"
)

// Definition is an author record pairing a trigger tree with the timer it
// drives. Immutable once loaded.
type Definition struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	Trigger triggers.Trigger `yaml:"trigger"`

	// CancelTrigger, when matched, removes the running instance immediately
	// regardless of remaining duration.
	CancelTrigger *triggers.Trigger `yaml:"cancel_trigger"`

	DurationSecs   float64 `yaml:"duration_secs"`
	CanBeRefreshed bool    `yaml:"can_be_refreshed"`

	// Repeats is how many times the timer restarts itself after expiring.
	Repeats int `yaml:"repeats"`

	// TriggersTimer names a definition started directly when this one
	// expires. This chains independently of any TIMER_EXPIRES trigger other
	// definitions may declare for this id; both mechanisms fire.
	TriggersTimer string `yaml:"triggers_timer"`

	// AlertAtSecs emits a one-shot alert when remaining time first crosses
	// at or below this value. Zero disables alerting.
	AlertAtSecs float64 `yaml:"alert_at_secs"`

	// Applicability gates; zero values mean ungated.
	Area       string               `yaml:"area"`
	Difficulty encounter.Difficulty `yaml:"difficulty"`
	Boss       string               `yaml:"boss"`

	Category string `yaml:"category"`
	Color    string `yaml:"color"`
}
