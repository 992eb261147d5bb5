package signals

import (
	"time"

	"github.com/raidwatch/raidwatch/internal/combatlog"
)

// Type indicates the category of a game signal.
type Type string

const (
	// Session/encounter boundary signals
	CombatStarted     Type = "COMBAT_STARTED"
	CombatEnded       Type = "COMBAT_ENDED"
	AreaEntered       Type = "AREA_ENTERED"
	PlayerInitialized Type = "PLAYER_INITIALIZED"

	// Entity signals
	AbilityActivated Type = "ABILITY_ACTIVATED"
	EntityDeath      Type = "ENTITY_DEATH"
	NpcFirstSeen     Type = "NPC_FIRST_SEEN"
	TargetChanged    Type = "TARGET_CHANGED"
	TargetCleared    Type = "TARGET_CLEARED"
	DamageTaken      Type = "DAMAGE_TAKEN"
	HealingReceived  Type = "HEALING_RECEIVED"

	// Effect signals
	EffectApplied        Type = "EFFECT_APPLIED"
	EffectRemoved        Type = "EFFECT_REMOVED"
	EffectChargesChanged Type = "EFFECT_CHARGES_CHANGED"

	// Boss rule signals
	BossEncounterDetected Type = "BOSS_ENCOUNTER_DETECTED"
	PhaseChanged          Type = "PHASE_CHANGED"
	PhaseEndTriggered     Type = "PHASE_END_TRIGGERED"
	CounterChanged        Type = "COUNTER_CHANGED"

	// Internal timer activity, fed back into trigger evaluation
	TimerStarted Type = "TIMER_STARTED"
	TimerExpired Type = "TIMER_EXPIRED"
)

// Signal is one normalized domain event. Trackers observe the world
// exclusively through this type, never through raw CombatEvents.
type Signal struct {
	Type      Type
	Timestamp time.Time

	Source combatlog.Entity
	Target combatlog.Entity

	AbilityID   int64
	AbilityName string

	EffectID   int64
	EffectName string
	Charges    int64

	// Damage/heal payload
	Amount    int64
	Effective int64
	Absorbed  int64
	Crit      bool
	Defense   combatlog.DefenseType

	// Boss-HP threshold payload: target percentage before and after the
	// causing event; both zero when the event did not move health.
	HPPercentBefore float64
	HPPercentAfter  float64

	Area       string
	Difficulty string

	// Boss rule payload
	BossID    string
	Phase     string
	PrevPhase string
	Counter   string
	Value     int

	// Timer activity payload
	TimerID string
}

// New creates a signal with the common fields populated.
func New(typ Type, ts time.Time, source, target combatlog.Entity) Signal {
	return Signal{
		Type:      typ,
		Timestamp: ts,
		Source:    source,
		Target:    target,
	}
}
