package triggers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/raidwatch/raidwatch/internal/combatlog"
	"github.com/raidwatch/raidwatch/internal/selectors"
	"github.com/raidwatch/raidwatch/internal/signals"
)

type fakeState struct {
	localID  int64
	bosses   map[int64]bool
	phase    string
	prev     string
	counters map[string]int
	inCombat bool
	start    time.Time
}

func (s *fakeState) LocalPlayerID() int64           { return s.localID }
func (s *fakeState) IsBossClass(classID int64) bool { return s.bosses[classID] }
func (s *fakeState) IsGroupMember(logID int64) bool { return true }
func (s *fakeState) CurrentPhase() string           { return s.phase }
func (s *fakeState) PreviousPhase() string          { return s.prev }
func (s *fakeState) CounterValue(name string) int   { return s.counters[name] }
func (s *fakeState) InCombat() bool                 { return s.inCombat }
func (s *fakeState) CombatElapsed(now time.Time) time.Duration {
	return now.Sub(s.start)
}

func at(secs float64) time.Time {
	return time.Date(0, 1, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(secs * float64(time.Second)))
}

func TestAbilityCastLeaf(t *testing.T) {
	tr := Trigger{
		Kind:      KindAbilityCast,
		Abilities: selectors.AbilitySelector{IDs: []int64{111}},
		Source:    selectors.EntityMatch{Filter: selectors.FilterBoss},
	}

	boss := combatlog.Entity{LogID: 5, ClassID: 9000, Kind: combatlog.KindNpc}
	state := &fakeState{bosses: map[int64]bool{9000: true}}

	sig := signals.New(signals.AbilityActivated, at(0), boss, combatlog.Entity{})
	sig.AbilityID = 111
	assert.True(t, tr.Matches(sig, state))

	sig.AbilityID = 222
	assert.False(t, tr.Matches(sig, state))

	sig.AbilityID = 111
	assert.False(t, tr.Matches(sig, nil), "boss source filter needs context")
}

func TestAnyOfAllOf(t *testing.T) {
	anyOf := Trigger{Kind: KindAnyOf, Children: []Trigger{
		{Kind: KindCombatStart},
		{Kind: KindEntityDeath},
	}}
	allOf := Trigger{Kind: KindAllOf, Children: []Trigger{
		{Kind: KindPhaseEntered, Phase: "burn"},
		{Kind: KindCombatStart},
	}}

	start := signals.Signal{Type: signals.CombatStarted, Timestamp: at(0)}
	death := signals.Signal{Type: signals.EntityDeath, Timestamp: at(1)}
	phase := signals.Signal{Type: signals.PhaseChanged, Phase: "burn", Timestamp: at(2)}

	assert.True(t, anyOf.Matches(start, nil))
	assert.True(t, anyOf.Matches(death, nil))
	assert.False(t, anyOf.Matches(phase, nil))

	// AllOf has plain AND semantics over the same signal.
	assert.False(t, allOf.Matches(start, nil))
	assert.False(t, allOf.Matches(phase, nil))
}

func TestPhaseTransitionSatisfiesBothLeaves(t *testing.T) {
	sig := signals.Signal{Type: signals.PhaseChanged, Phase: "Y", PrevPhase: "X", Timestamp: at(0)}

	entered := Trigger{Kind: KindPhaseEntered, Phase: "Y"}
	ended := Trigger{Kind: KindPhaseEnded, Phase: "X"}

	assert.True(t, entered.Matches(sig, nil))
	assert.True(t, ended.Matches(sig, nil))
}

func TestHPThresholdCrossing(t *testing.T) {
	tr := Trigger{
		Kind:    KindHPThreshold,
		Percent: 50,
		Target:  selectors.EntityMatch{Filter: selectors.FilterBoss},
	}
	boss := combatlog.Entity{LogID: 5, ClassID: 9000, Kind: combatlog.KindNpc}
	state := &fakeState{bosses: map[int64]bool{9000: true}}

	crossing := signals.Signal{
		Type: signals.DamageTaken, Target: boss, Timestamp: at(0),
		HPPercentBefore: 50.4, HPPercentAfter: 49.8,
	}
	above := signals.Signal{
		Type: signals.DamageTaken, Target: boss, Timestamp: at(1),
		HPPercentBefore: 80, HPPercentAfter: 79,
	}
	below := signals.Signal{
		Type: signals.DamageTaken, Target: boss, Timestamp: at(2),
		HPPercentBefore: 49, HPPercentAfter: 45,
	}

	assert.True(t, tr.Matches(crossing, state))
	assert.False(t, tr.Matches(above, state))
	assert.False(t, tr.Matches(below, state), "already past the threshold")
}

func TestCounterAndTimerLeaves(t *testing.T) {
	counter := Trigger{Kind: KindCounterReaches, Counter: "orbs", Value: 3}
	expires := Trigger{Kind: KindTimerExpires, TimerID: "A"}
	starts := Trigger{Kind: KindTimerStarts, TimerID: "B"}

	assert.True(t, counter.Matches(signals.Signal{Type: signals.CounterChanged, Counter: "orbs", Value: 3}, nil))
	assert.False(t, counter.Matches(signals.Signal{Type: signals.CounterChanged, Counter: "orbs", Value: 2}, nil))

	assert.True(t, expires.Matches(signals.Signal{Type: signals.TimerExpired, TimerID: "A"}, nil))
	assert.False(t, expires.Matches(signals.Signal{Type: signals.TimerExpired, TimerID: "B"}, nil))
	assert.True(t, starts.Matches(signals.Signal{Type: signals.TimerStarted, TimerID: "B"}, nil))
}

func TestElapsedTimeLeaf(t *testing.T) {
	tr := Trigger{Kind: KindElapsedTime, Seconds: 30}
	state := &fakeState{inCombat: true, start: at(0)}

	early := signals.Signal{Type: signals.DamageTaken, Timestamp: at(10)}
	late := signals.Signal{Type: signals.DamageTaken, Timestamp: at(31)}

	assert.False(t, tr.Matches(early, state))
	assert.True(t, tr.Matches(late, state))
	assert.False(t, tr.Matches(late, nil), "no encounter, no clock")
}

func TestValidate(t *testing.T) {
	valid := Trigger{Kind: KindAnyOf, Children: []Trigger{
		{Kind: KindCombatStart},
		{Kind: KindAbilityCast, Abilities: selectors.AbilitySelector{IDs: []int64{1}}},
	}}
	assert.NoError(t, valid.Validate())

	for name, tr := range map[string]Trigger{
		"empty kind":         {},
		"unknown kind":       {Kind: "BOGUS"},
		"combinator no kids": {Kind: KindAnyOf},
		"empty abilities":    {Kind: KindAbilityCast},
		"empty effects":      {Kind: KindEffectApplied},
		"bad percent":        {Kind: KindHPThreshold, Percent: 140},
		"empty phase":        {Kind: KindPhaseEntered},
		"empty counter":      {Kind: KindCounterReaches},
		"empty timer id":     {Kind: KindTimerExpires},
		"bad seconds":        {Kind: KindElapsedTime, Seconds: -1},
		"nested invalid": {Kind: KindAllOf, Children: []Trigger{
			{Kind: KindCombatStart},
			{Kind: "BOGUS"},
		}},
	} {
		assert.Error(t, tr.Validate(), name)
	}
}
