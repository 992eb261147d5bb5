package effects

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raidwatch/raidwatch/internal/selectors"
	"github.com/raidwatch/raidwatch/internal/signals"
)

// Instance is one active (or just-removed) effect on one target.
type Instance struct {
	ID           string
	DefinitionID string
	Name         string
	Category     Category

	EffectID   int64
	SourceID   int64
	TargetID   int64
	TargetName string

	AppliedAt       time.Time
	LastRefreshedAt time.Time
	DurationSecs    float64
	Stacks          int64

	// RemovedAt is the tombstone: a removed instance survives one tick so
	// "just expired" queries still see it, then is physically deleted.
	RemovedAt *time.Time

	FromLocalPlayer bool
}

// Removed reports whether the instance is tombstoned.
func (in *Instance) Removed() bool {
	return in.RemovedAt != nil
}

// Tracker is the per-target effect state machine. It consumes the signal
// stream and matches it against the loaded effect definitions. The tracker
// mutates state only in live mode: historical replay leaves it inert unless
// explicitly enabled, matching its role as a real-time display aid.
type Tracker struct {
	logger *zap.Logger
	live   bool

	defs []Definition

	// instances keyed by target log id; multiple per target.
	instances map[int64][]*Instance

	// most recent TargetChanged per source, used to resolve self-targeted
	// refresh casts.
	lastTarget map[int64]int64

	localPlayerID int64
	area          string
	difficulty    string
	bossID        string
}

// NewTracker creates a tracker over the loaded definitions.
func NewTracker(defs []Definition, live bool, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		logger:     logger,
		live:       live,
		defs:       defs,
		instances:  make(map[int64][]*Instance),
		lastTarget: make(map[int64]int64),
	}
}

// SetLive toggles live mode; replay harnesses enable it explicitly when
// effect tracking should run against recorded logs.
func (t *Tracker) SetLive(live bool) {
	t.live = live
}

// HandleSignal folds one signal into the tracker. Outside live mode this is
// a strict no-op for any input.
func (t *Tracker) HandleSignal(sig signals.Signal, enc selectors.EncounterContext) {
	if !t.live {
		return
	}

	switch sig.Type {
	case signals.PlayerInitialized:
		t.localPlayerID = sig.Source.LogID

	case signals.TargetChanged:
		if sig.Source.LogID != 0 {
			t.lastTarget[sig.Source.LogID] = sig.Target.LogID
		}

	case signals.EffectApplied:
		t.apply(sig, enc)

	case signals.EffectChargesChanged:
		t.updateCharges(sig)

	case signals.EffectRemoved:
		t.remove(sig, enc)

	case signals.AbilityActivated:
		t.refresh(sig)

	case signals.EntityDeath:
		// Death sweeps everything on the target that does not persist.
		t.sweep(sig.Timestamp, func(in *Instance, def *Definition) bool {
			return in.TargetID == sig.Target.LogID && !def.PersistPastDeath
		})

	case signals.CombatEnded:
		t.sweep(sig.Timestamp, func(in *Instance, def *Definition) bool {
			return !def.TrackOutsideCombat
		})

	case signals.AreaEntered:
		// The game clears every effect on zone transition, flags or no.
		t.sweep(sig.Timestamp, func(*Instance, *Definition) bool { return true })
		t.area = sig.Area
		t.difficulty = sig.Difficulty
		t.bossID = ""

	case signals.BossEncounterDetected:
		t.bossID = sig.BossID
	}
}

// Tick physically deletes tombstones from before now. Call once per
// processed event (or frame); a tombstone therefore survives exactly one
// tick after its removal.
func (t *Tracker) Tick(now time.Time) {
	if !t.live {
		return
	}
	for targetID, list := range t.instances {
		kept := list[:0]
		for _, in := range list {
			if in.RemovedAt != nil && now.After(*in.RemovedAt) {
				continue
			}
			kept = append(kept, in)
		}
		if len(kept) == 0 {
			delete(t.instances, targetID)
		} else {
			t.instances[targetID] = kept
		}
	}
}

// ActiveEffects returns every instance, including tombstones awaiting their
// final tick, ordered by target then application time.
func (t *Tracker) ActiveEffects() []Instance {
	var out []Instance
	for _, list := range t.instances {
		for _, in := range list {
			out = append(out, *in)
		}
	}
	return out
}

// EffectsOn returns the instances on one target.
func (t *Tracker) EffectsOn(targetID int64) []Instance {
	list := t.instances[targetID]
	out := make([]Instance, 0, len(list))
	for _, in := range list {
		out = append(out, *in)
	}
	return out
}

func (t *Tracker) apply(sig signals.Signal, enc selectors.EncounterContext) {
	for i := range t.defs {
		def := &t.defs[i]
		if !t.defApplies(def) {
			continue
		}
		if !def.Apply.Matches(sig.EffectID, sig.EffectName) {
			continue
		}
		if !def.Source.Matches(sig.Source, enc) || !def.Target.Matches(sig.Target, enc) {
			continue
		}

		if in := t.find(sig.Target.LogID, def.ID); in != nil && !in.Removed() {
			// Reapplication refreshes rather than duplicating.
			in.LastRefreshedAt = sig.Timestamp
			if def.MaxStacks > 1 && in.Stacks < def.MaxStacks {
				in.Stacks++
			}
			continue
		}

		in := &Instance{
			ID:              uuid.NewString(),
			DefinitionID:    def.ID,
			Name:            def.Name,
			Category:        def.Category,
			EffectID:        sig.EffectID,
			SourceID:        sig.Source.LogID,
			TargetID:        sig.Target.LogID,
			TargetName:      sig.Target.Name,
			AppliedAt:       sig.Timestamp,
			LastRefreshedAt: sig.Timestamp,
			DurationSecs:    def.DurationSecs,
			Stacks:          1,
			FromLocalPlayer: t.localPlayerID != 0 && sig.Source.LogID == t.localPlayerID,
		}
		t.instances[sig.Target.LogID] = append(t.instances[sig.Target.LogID], in)
		t.logger.Debug("effect applied",
			zap.String("definition", def.ID),
			zap.String("target", sig.Target.Name),
		)
	}
}

func (t *Tracker) updateCharges(sig signals.Signal) {
	for _, in := range t.instances[sig.Target.LogID] {
		if in.Removed() || in.EffectID != sig.EffectID {
			continue
		}
		in.Stacks = sig.Charges
	}
}

func (t *Tracker) remove(sig signals.Signal, enc selectors.EncounterContext) {
	for i := range t.defs {
		def := &t.defs[i]
		if !def.removeSelector().Matches(sig.EffectID, sig.EffectName) {
			continue
		}
		if in := t.find(sig.Target.LogID, def.ID); in != nil && !in.Removed() {
			ts := sig.Timestamp
			in.RemovedAt = &ts
		}
	}
}

// refresh bumps LastRefreshedAt for instances whose definition lists the
// cast ability; AppliedAt and stacks never move. A self-targeted cast is
// resolved through the caster's most recent target change.
func (t *Tracker) refresh(sig signals.Signal) {
	targetID := sig.Target.LogID
	if targetID == 0 || targetID == sig.Source.LogID {
		if resolved, ok := t.lastTarget[sig.Source.LogID]; ok {
			targetID = resolved
		}
	}

	for i := range t.defs {
		def := &t.defs[i]
		if def.RefreshAbilities.IsEmpty() ||
			!def.RefreshAbilities.Matches(sig.AbilityID, sig.AbilityName) {
			continue
		}
		if in := t.find(targetID, def.ID); in != nil && !in.Removed() && in.SourceID == sig.Source.LogID {
			in.LastRefreshedAt = sig.Timestamp
		}
	}
}

func (t *Tracker) sweep(ts time.Time, match func(*Instance, *Definition) bool) {
	for _, list := range t.instances {
		for _, in := range list {
			if in.Removed() {
				continue
			}
			def := t.definition(in.DefinitionID)
			if def == nil {
				continue
			}
			if match(in, def) {
				removedAt := ts
				in.RemovedAt = &removedAt
			}
		}
	}
}

// find returns the live (non-tombstoned) instance of a definition on a
// target, if any.
func (t *Tracker) find(targetID int64, definitionID string) *Instance {
	for _, in := range t.instances[targetID] {
		if in.DefinitionID == definitionID && !in.Removed() {
			return in
		}
	}
	return nil
}

func (t *Tracker) definition(id string) *Definition {
	for i := range t.defs {
		if t.defs[i].ID == id {
			return &t.defs[i]
		}
	}
	return nil
}

// defApplies evaluates the definition's area/difficulty/boss gates against
// the tracker's current scope.
func (t *Tracker) defApplies(def *Definition) bool {
	if def.Area != "" && !strings.EqualFold(def.Area, t.area) {
		return false
	}
	if def.Difficulty != "" && string(def.Difficulty) != t.difficulty {
		return false
	}
	if def.Boss != "" && def.Boss != t.bossID {
		return false
	}
	return true
}
