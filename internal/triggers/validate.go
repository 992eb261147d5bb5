package triggers

import (
	"errors"
	"fmt"
)

var errEmptyTree = errors.New("trigger tree is empty")

// Validate rejects structurally invalid trees. It runs at definition-load
// time; by the time a trigger reaches the evaluation path it is assumed
// valid.
func (tr Trigger) Validate() error {
	switch tr.Kind {
	case KindAnyOf, KindAllOf:
		if len(tr.Children) == 0 {
			return fmt.Errorf("%s: no children", tr.Kind)
		}
		for i, child := range tr.Children {
			if err := child.Validate(); err != nil {
				return fmt.Errorf("%s[%d]: %w", tr.Kind, i, err)
			}
		}
		return nil

	case KindCombatStart, KindCombatEnd, KindDamageTaken, KindNpcFirstSeen,
		KindEntityDeath, KindTargetSet:
		return nil

	case KindAbilityCast:
		if tr.Abilities.IsEmpty() {
			return errors.New("ABILITY_CAST: empty ability selector")
		}
		return nil

	case KindEffectApplied, KindEffectRemoved:
		if tr.Effects.IsEmpty() {
			return fmt.Errorf("%s: empty effect selector", tr.Kind)
		}
		return nil

	case KindHPThreshold:
		if tr.Percent <= 0 || tr.Percent > 100 {
			return fmt.Errorf("HP_THRESHOLD: percent %v out of range", tr.Percent)
		}
		return nil

	case KindPhaseEntered, KindPhaseEnded:
		if tr.Phase == "" {
			return fmt.Errorf("%s: empty phase", tr.Kind)
		}
		return nil

	case KindCounterReaches:
		if tr.Counter == "" {
			return errors.New("COUNTER_REACHES: empty counter name")
		}
		return nil

	case KindTimerExpires, KindTimerStarts:
		if tr.TimerID == "" {
			return fmt.Errorf("%s: empty timer id", tr.Kind)
		}
		return nil

	case KindElapsedTime:
		if tr.Seconds <= 0 {
			return fmt.Errorf("ELAPSED_TIME: seconds %v out of range", tr.Seconds)
		}
		return nil

	case "":
		return errEmptyTree

	default:
		return fmt.Errorf("unknown trigger kind %q", tr.Kind)
	}
}
