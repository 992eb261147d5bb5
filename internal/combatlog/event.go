package combatlog

import "time"

// EntityKind indicates which registry an entity belongs to.
type EntityKind string

const (
	KindPlayer    EntityKind = "PLAYER"
	KindNpc       EntityKind = "NPC"
	KindCompanion EntityKind = "COMPANION"
)

// Health is a current/max pair as reported on a log line.
type Health struct {
	Current int64
	Max     int64
}

// Percent returns current health as a percentage of max, or 0 when max is unknown.
func (h Health) Percent() float64 {
	if h.Max <= 0 {
		return 0
	}
	return float64(h.Current) * 100 / float64(h.Max)
}

// Entity is one participant as it appears on a single log line.
// LogID is session-unique; ClassID is the NPC template id (0 for players).
type Entity struct {
	LogID   int64
	ClassID int64
	Name    string
	Kind    EntityKind
	Health  Health
	OwnerID int64 // owning player's LogID for companions, 0 otherwise
}

// IsEmpty reports whether the entity field was blank on the line.
func (e Entity) IsEmpty() bool {
	return e.LogID == 0 && e.Name == ""
}

// EffectType is the broad category of the effect field on a line.
type EffectType string

const (
	EffectApply   EffectType = "ApplyEffect"
	EffectRemove  EffectType = "RemoveEffect"
	EffectCharges EffectType = "ModifyCharges"
	EffectEvent   EffectType = "Event"
	EffectDamage  EffectType = "ApplyDamage"
	EffectHeal    EffectType = "ApplyHeal"
)

// Names of EffectEvent records the engine reacts to.
const (
	EventEnterCombat        = "EnterCombat"
	EventExitCombat         = "ExitCombat"
	EventDeath              = "Death"
	EventRevived            = "Revived"
	EventAreaEntered        = "AreaEntered"
	EventTargetSet          = "TargetSet"
	EventTargetCleared      = "TargetCleared"
	EventAbilityActivate    = "AbilityActivate"
	EventAbilityCancel      = "AbilityCancel"
	EventDisciplineChanged  = "DisciplineChanged"
	EventModifyThreat       = "ModifyThreat"
	EventFailedEffect       = "FailedEffect"
	EventCompanionSummoned  = "CompanionSummoned"
	EventCompanionDismissed = "CompanionDismissed"
)

// EffectRecord is the parsed effect field: the category plus the specific
// buff/result identity.
type EffectRecord struct {
	Type   EffectType
	TypeID int64
	ID     int64
	Name   string
}

// ActionRecord is the ability that caused the line, when present.
type ActionRecord struct {
	ID   int64
	Name string
}

// DefenseType classifies an avoidance/mitigation roll reported in the
// details field.
type DefenseType string

const (
	DefenseNone    DefenseType = ""
	DefenseParry   DefenseType = "parry"
	DefenseDodge   DefenseType = "dodge"
	DefenseResist  DefenseType = "resist"
	DefenseDeflect DefenseType = "deflect"
	DefenseMiss    DefenseType = "miss"
	DefenseShield  DefenseType = "shield" // natural shield roll, not absorb attribution
)

// DetailRecord carries the numeric payload of damage/heal/charge lines.
// Effective is the post-overheal/overkill amount when the log reports one,
// otherwise it equals Amount. Absorbed is the portion soaked by a shield.
type DetailRecord struct {
	Amount     int64
	Effective  int64
	Absorbed   int64
	Crit       bool
	DamageType string
	Defense    DefenseType
	Charges    int64
	Threat     int64
}

// CombatEvent is one fully parsed log line.
type CombatEvent struct {
	LineNumber int
	Timestamp  time.Time
	Source     Entity
	Target     Entity
	Ability    ActionRecord
	Effect     EffectRecord
	Details    DetailRecord
	Area       string // set on AreaEntered events
}

// IsEvent reports whether this line is the named game event.
func (ev *CombatEvent) IsEvent(name string) bool {
	return ev.Effect.Type == EffectEvent && ev.Effect.Name == name
}
