// Package triggers implements the composable boolean condition trees that
// timer definitions and boss phase/counter rules are authored in. A trigger
// is matched against one signal plus optional encounter state; evaluation is
// a plain recursive predicate.
package triggers

import (
	"time"

	"github.com/raidwatch/raidwatch/internal/selectors"
	"github.com/raidwatch/raidwatch/internal/signals"
)

// Kind discriminates the trigger tree variants.
type Kind string

const (
	KindCombatStart    Kind = "COMBAT_START"
	KindCombatEnd      Kind = "COMBAT_END"
	KindAbilityCast    Kind = "ABILITY_CAST"
	KindEffectApplied  Kind = "EFFECT_APPLIED"
	KindEffectRemoved  Kind = "EFFECT_REMOVED"
	KindDamageTaken    Kind = "DAMAGE_TAKEN"
	KindHPThreshold    Kind = "HP_THRESHOLD"
	KindNpcFirstSeen   Kind = "NPC_FIRST_SEEN"
	KindEntityDeath    Kind = "ENTITY_DEATH"
	KindTargetSet      Kind = "TARGET_SET"
	KindPhaseEntered   Kind = "PHASE_ENTERED"
	KindPhaseEnded     Kind = "PHASE_ENDED"
	KindCounterReaches Kind = "COUNTER_REACHES"
	KindTimerExpires   Kind = "TIMER_EXPIRES"
	KindTimerStarts    Kind = "TIMER_STARTS"
	KindElapsedTime    Kind = "ELAPSED_TIME"
	KindAnyOf          Kind = "ANY_OF"
	KindAllOf          Kind = "ALL_OF"
)

// EncounterState is the slice of encounter context trigger leaves may gate
// on. A nil state denies roster/phase/counter dependent leaves, matching
// the predicate engine's missing-context policy.
type EncounterState interface {
	selectors.EncounterContext
	CurrentPhase() string
	PreviousPhase() string
	CounterValue(name string) int
	InCombat() bool
	CombatElapsed(now time.Time) time.Duration
}

// Trigger is one node of a condition tree. Exactly the fields relevant to
// its Kind are set; Children is used by the AnyOf/AllOf combinators.
type Trigger struct {
	Kind Kind `yaml:"kind"`

	// Leaf payload
	Abilities selectors.AbilitySelector `yaml:"abilities"`
	Effects   selectors.EffectSelector  `yaml:"effects"`
	Source    selectors.EntityMatch     `yaml:"source"`
	Target    selectors.EntityMatch     `yaml:"target"`

	// HP_THRESHOLD: fires when the target's health crosses below Percent.
	Percent float64 `yaml:"percent"`

	// COUNTER_REACHES
	Counter string `yaml:"counter"`
	Value   int    `yaml:"value"`

	// PHASE_ENTERED / PHASE_ENDED
	Phase string `yaml:"phase"`

	// TIMER_EXPIRES / TIMER_STARTS: chaining is a string-id lookup, never a
	// structural pointer, so trees cannot form cycles.
	TimerID string `yaml:"timer_id"`

	// ELAPSED_TIME: seconds since combat start.
	Seconds float64 `yaml:"seconds"`

	Children []Trigger `yaml:"children"`
}

// Matches evaluates the tree against one signal and optional encounter state.
func (tr Trigger) Matches(sig signals.Signal, enc EncounterState) bool {
	switch tr.Kind {
	case KindAnyOf:
		for _, child := range tr.Children {
			if child.Matches(sig, enc) {
				return true
			}
		}
		return false

	case KindAllOf:
		if len(tr.Children) == 0 {
			return false
		}
		for _, child := range tr.Children {
			if !child.Matches(sig, enc) {
				return false
			}
		}
		return true

	case KindCombatStart:
		return sig.Type == signals.CombatStarted

	case KindCombatEnd:
		return sig.Type == signals.CombatEnded

	case KindAbilityCast:
		return sig.Type == signals.AbilityActivated &&
			tr.Abilities.Matches(sig.AbilityID, sig.AbilityName) &&
			tr.entitiesMatch(sig, enc)

	case KindEffectApplied:
		return sig.Type == signals.EffectApplied &&
			tr.Effects.Matches(sig.EffectID, sig.EffectName) &&
			tr.entitiesMatch(sig, enc)

	case KindEffectRemoved:
		return sig.Type == signals.EffectRemoved &&
			tr.Effects.Matches(sig.EffectID, sig.EffectName) &&
			tr.entitiesMatch(sig, enc)

	case KindDamageTaken:
		if sig.Type != signals.DamageTaken {
			return false
		}
		if !tr.Abilities.IsEmpty() && !tr.Abilities.Matches(sig.AbilityID, sig.AbilityName) {
			return false
		}
		return tr.entitiesMatch(sig, enc)

	case KindHPThreshold:
		return sig.Type == signals.DamageTaken &&
			sig.HPPercentBefore > tr.Percent &&
			sig.HPPercentAfter <= tr.Percent &&
			tr.Target.Matches(sig.Target, enc)

	case KindNpcFirstSeen:
		return sig.Type == signals.NpcFirstSeen && tr.Target.Matches(sig.Target, enc)

	case KindEntityDeath:
		return sig.Type == signals.EntityDeath && tr.Target.Matches(sig.Target, enc)

	case KindTargetSet:
		return sig.Type == signals.TargetChanged &&
			tr.Source.Matches(sig.Source, enc) &&
			tr.Target.Matches(sig.Target, enc)

	case KindPhaseEntered:
		return sig.Type == signals.PhaseChanged && sig.Phase == tr.Phase

	case KindPhaseEnded:
		// A phase transition X -> Y satisfies both PhaseEnded{X} and
		// PhaseEntered{Y} within the same signal.
		return (sig.Type == signals.PhaseEndTriggered || sig.Type == signals.PhaseChanged) &&
			sig.PrevPhase == tr.Phase

	case KindCounterReaches:
		return sig.Type == signals.CounterChanged &&
			sig.Counter == tr.Counter &&
			sig.Value == tr.Value

	case KindTimerExpires:
		return sig.Type == signals.TimerExpired && sig.TimerID == tr.TimerID

	case KindTimerStarts:
		return sig.Type == signals.TimerStarted && sig.TimerID == tr.TimerID

	case KindElapsedTime:
		if enc == nil || !enc.InCombat() {
			return false
		}
		return enc.CombatElapsed(sig.Timestamp).Seconds() >= tr.Seconds

	default:
		return false
	}
}

func (tr Trigger) entitiesMatch(sig signals.Signal, enc EncounterState) bool {
	return tr.Source.Matches(sig.Source, enc) && tr.Target.Matches(sig.Target, enc)
}
