package effects

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raidwatch/raidwatch/internal/combatlog"
	"github.com/raidwatch/raidwatch/internal/selectors"
	"github.com/raidwatch/raidwatch/internal/signals"
)

func at(secs float64) time.Time {
	return time.Date(0, 1, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(secs * float64(time.Second)))
}

func player(id int64, name string) combatlog.Entity {
	return combatlog.Entity{LogID: id, Name: name, Kind: combatlog.KindPlayer}
}

func barrierDef() Definition {
	return Definition{
		ID:           "static-barrier",
		Name:         "Static Barrier",
		Apply:        selectors.EffectSelector{IDs: []int64{777}},
		DurationSecs: 30,
		Category:     CategoryShield,
	}
}

func applied(ts float64, effectID int64, source, target combatlog.Entity) signals.Signal {
	sig := signals.New(signals.EffectApplied, at(ts), source, target)
	sig.EffectID = effectID
	return sig
}

func removed(ts float64, effectID int64, source, target combatlog.Entity) signals.Signal {
	sig := signals.New(signals.EffectRemoved, at(ts), source, target)
	sig.EffectID = effectID
	return sig
}

func TestApplyAndRemoveLifecycle(t *testing.T) {
	tr := NewTracker([]Definition{barrierDef()}, true, zap.NewNop())
	sorc, korr := player(1, "Sorc"), player(2, "Korr")

	tr.HandleSignal(applied(0, 777, sorc, korr), nil)

	list := tr.EffectsOn(2)
	require.Len(t, list, 1)
	assert.Equal(t, "static-barrier", list[0].DefinitionID)
	assert.Equal(t, int64(1), list[0].Stacks)
	assert.False(t, list[0].Removed())

	// Removal tombstones; the instance survives one tick, then is purged.
	tr.HandleSignal(removed(10, 777, sorc, korr), nil)
	list = tr.EffectsOn(2)
	require.Len(t, list, 1)
	assert.True(t, list[0].Removed())

	tr.Tick(at(11))
	assert.Empty(t, tr.EffectsOn(2))
}

func TestNoMatchIsNoOp(t *testing.T) {
	tr := NewTracker([]Definition{barrierDef()}, true, zap.NewNop())

	tr.HandleSignal(applied(0, 999, player(1, "Sorc"), player(2, "Korr")), nil)
	assert.Empty(t, tr.ActiveEffects(), "unknown effect id matches no definition")
}

func TestInertOutsideLiveMode(t *testing.T) {
	tr := NewTracker([]Definition{barrierDef()}, false, zap.NewNop())
	sorc, korr := player(1, "Sorc"), player(2, "Korr")

	tr.HandleSignal(applied(0, 777, sorc, korr), nil)
	tr.HandleSignal(removed(1, 777, sorc, korr), nil)
	tr.HandleSignal(signals.New(signals.AreaEntered, at(2), sorc, korr), nil)
	tr.Tick(at(3))

	assert.Empty(t, tr.ActiveEffects(), "not live: zero state changes for any input")

	tr.SetLive(true)
	tr.HandleSignal(applied(4, 777, sorc, korr), nil)
	assert.Len(t, tr.ActiveEffects(), 1)
}

func TestDeathSweepHonorsPersistFlag(t *testing.T) {
	persist := barrierDef()
	persist.ID = "guard"
	persist.Apply = selectors.EffectSelector{IDs: []int64{888}}
	persist.PersistPastDeath = true

	tr := NewTracker([]Definition{barrierDef(), persist}, true, zap.NewNop())
	sorc, korr := player(1, "Sorc"), player(2, "Korr")

	tr.HandleSignal(applied(0, 777, sorc, korr), nil)
	tr.HandleSignal(applied(0, 888, sorc, korr), nil)

	death := signals.New(signals.EntityDeath, at(5), combatlog.Entity{}, korr)
	tr.HandleSignal(death, nil)

	list := tr.EffectsOn(2)
	require.Len(t, list, 2)
	for _, in := range list {
		if in.DefinitionID == "static-barrier" {
			assert.True(t, in.Removed(), "non-persistent effect dies with its target")
		} else {
			assert.False(t, in.Removed(), "persist_past_death survives")
		}
	}
}

func TestCombatEndSweepHonorsTrackingFlag(t *testing.T) {
	outside := barrierDef()
	outside.ID = "stim"
	outside.Apply = selectors.EffectSelector{IDs: []int64{555}}
	outside.TrackOutsideCombat = true

	tr := NewTracker([]Definition{barrierDef(), outside}, true, zap.NewNop())
	sorc := player(1, "Sorc")

	tr.HandleSignal(applied(0, 777, sorc, sorc), nil)
	tr.HandleSignal(applied(0, 555, sorc, sorc), nil)

	tr.HandleSignal(signals.New(signals.CombatEnded, at(30), combatlog.Entity{}, combatlog.Entity{}), nil)

	list := tr.EffectsOn(1)
	require.Len(t, list, 2)
	for _, in := range list {
		if in.DefinitionID == "stim" {
			assert.False(t, in.Removed())
		} else {
			assert.True(t, in.Removed())
		}
	}
}

func TestAreaEnteredClearsEverything(t *testing.T) {
	persist := barrierDef()
	persist.ID = "guard"
	persist.Apply = selectors.EffectSelector{IDs: []int64{888}}
	persist.PersistPastDeath = true
	persist.TrackOutsideCombat = true

	tr := NewTracker([]Definition{barrierDef(), persist}, true, zap.NewNop())
	sorc := player(1, "Sorc")

	tr.HandleSignal(applied(0, 777, sorc, sorc), nil)
	tr.HandleSignal(applied(0, 888, sorc, sorc), nil)

	area := signals.New(signals.AreaEntered, at(60), combatlog.Entity{}, combatlog.Entity{})
	area.Area = "The Dread Fortress"
	tr.HandleSignal(area, nil)

	for _, in := range tr.EffectsOn(1) {
		assert.True(t, in.Removed(), "zone transition clears every effect regardless of flags")
	}
}

func TestReapplicationRefreshesAndStacks(t *testing.T) {
	stacking := barrierDef()
	stacking.MaxStacks = 3

	tr := NewTracker([]Definition{stacking}, true, zap.NewNop())
	sorc, korr := player(1, "Sorc"), player(2, "Korr")

	tr.HandleSignal(applied(0, 777, sorc, korr), nil)
	tr.HandleSignal(applied(5, 777, sorc, korr), nil)

	list := tr.EffectsOn(2)
	require.Len(t, list, 1, "reapplication must not duplicate")
	assert.Equal(t, at(0), list[0].AppliedAt)
	assert.Equal(t, at(5), list[0].LastRefreshedAt)
	assert.Equal(t, int64(2), list[0].Stacks)

	tr.HandleSignal(applied(6, 777, sorc, korr), nil)
	tr.HandleSignal(applied(7, 777, sorc, korr), nil)
	assert.Equal(t, int64(3), tr.EffectsOn(2)[0].Stacks, "stacks cap at max_stacks")
}

func TestChargesChanged(t *testing.T) {
	tr := NewTracker([]Definition{barrierDef()}, true, zap.NewNop())
	sorc, korr := player(1, "Sorc"), player(2, "Korr")

	tr.HandleSignal(applied(0, 777, sorc, korr), nil)

	charges := signals.New(signals.EffectChargesChanged, at(3), sorc, korr)
	charges.EffectID = 777
	charges.Charges = 4
	tr.HandleSignal(charges, nil)

	assert.Equal(t, int64(4), tr.EffectsOn(2)[0].Stacks)
}

func TestRefreshByAbility(t *testing.T) {
	def := barrierDef()
	def.RefreshAbilities = selectors.AbilitySelector{IDs: []int64{4242}}

	tr := NewTracker([]Definition{def}, true, zap.NewNop())
	sorc, korr := player(1, "Sorc"), player(2, "Korr")

	tr.HandleSignal(applied(0, 777, sorc, korr), nil)

	cast := signals.New(signals.AbilityActivated, at(8), sorc, korr)
	cast.AbilityID = 4242
	tr.HandleSignal(cast, nil)

	in := tr.EffectsOn(2)[0]
	assert.Equal(t, at(8), in.LastRefreshedAt)
	assert.Equal(t, at(0), in.AppliedAt, "refresh never moves applied-at")
	assert.Equal(t, int64(1), in.Stacks, "refresh never moves stacks")
}

func TestRefreshSelfCastResolvesThroughTargetChange(t *testing.T) {
	def := barrierDef()
	def.RefreshAbilities = selectors.AbilitySelector{IDs: []int64{4242}}

	tr := NewTracker([]Definition{def}, true, zap.NewNop())
	sorc, korr := player(1, "Sorc"), player(2, "Korr")

	tr.HandleSignal(applied(0, 777, sorc, korr), nil)
	tr.HandleSignal(signals.New(signals.TargetChanged, at(2), sorc, korr), nil)

	// The cast line reports the caster as its own target.
	cast := signals.New(signals.AbilityActivated, at(8), sorc, sorc)
	cast.AbilityID = 4242
	tr.HandleSignal(cast, nil)

	assert.Equal(t, at(8), tr.EffectsOn(2)[0].LastRefreshedAt)
}

func TestSourceFilterWithEncounterContext(t *testing.T) {
	def := barrierDef()
	def.Source = selectors.EntityMatch{Filter: selectors.FilterBoss}

	tr := NewTracker([]Definition{def}, true, zap.NewNop())
	boss := combatlog.Entity{LogID: 5, ClassID: 9000, Name: "Styrak", Kind: combatlog.KindNpc}
	korr := player(2, "Korr")

	// Without encounter context the boss filter denies.
	tr.HandleSignal(applied(0, 777, boss, korr), nil)
	assert.Empty(t, tr.ActiveEffects())

	ctx := &fakeContext{bosses: map[int64]bool{9000: true}}
	tr.HandleSignal(applied(1, 777, boss, korr), ctx)
	assert.Len(t, tr.ActiveEffects(), 1)
}

func TestLocalPlayerAttribution(t *testing.T) {
	tr := NewTracker([]Definition{barrierDef()}, true, zap.NewNop())
	sorc, korr := player(1, "Sorc"), player(2, "Korr")

	init := signals.New(signals.PlayerInitialized, at(0), sorc, sorc)
	tr.HandleSignal(init, nil)

	tr.HandleSignal(applied(1, 777, sorc, korr), nil)
	tr.HandleSignal(applied(2, 777, player(3, "Other"), player(4, "Fourth")), nil)

	assert.True(t, tr.EffectsOn(2)[0].FromLocalPlayer)
	assert.False(t, tr.EffectsOn(4)[0].FromLocalPlayer)
}

type fakeContext struct {
	localID int64
	bosses  map[int64]bool
}

func (c *fakeContext) LocalPlayerID() int64           { return c.localID }
func (c *fakeContext) IsBossClass(classID int64) bool { return c.bosses[classID] }
func (c *fakeContext) IsGroupMember(int64) bool       { return true }
