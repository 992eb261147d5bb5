package encounter

import (
	"sort"
	"time"

	"github.com/raidwatch/raidwatch/internal/combatlog"
)

// MetricAccumulator collects per-entity combat totals. It is the hot path:
// one update per damage/heal line, no allocation beyond first sight.
type MetricAccumulator struct {
	EntityID int64
	Name     string
	Kind     combatlog.EntityKind

	TotalDamage     int64
	EffectiveDamage int64
	BossDamage      int64

	TotalHeal     int64
	EffectiveHeal int64

	DamageTaken   int64
	AbsorbedTaken int64

	// ShieldGiven is absorb attribution: damage soaked by a shield this
	// entity applied to someone. Deliberately distinct from the natural
	// shield roll tally in Defenses.
	ShieldGiven int64

	Hits  int64
	Crits int64

	// Defense rolls by type (dodge/parry/resist/deflect/shield), tallied
	// separately from raw hit counts for percentage displays.
	Defenses map[combatlog.DefenseType]int64

	AbilityUses map[int64]int64

	Threat int64
}

func newAccumulator(ent combatlog.Entity) *MetricAccumulator {
	return &MetricAccumulator{
		EntityID:    ent.LogID,
		Name:        ent.Name,
		Kind:        ent.Kind,
		Defenses:    make(map[combatlog.DefenseType]int64),
		AbilityUses: make(map[int64]int64),
	}
}

// CritPercent returns the crit rate over raw hits.
func (m *MetricAccumulator) CritPercent() float64 {
	if m.Hits == 0 {
		return 0
	}
	return float64(m.Crits) * 100 / float64(m.Hits)
}

func (e *Encounter) accumulator(ent combatlog.Entity) *MetricAccumulator {
	acc, ok := e.metrics[ent.LogID]
	if !ok {
		acc = newAccumulator(ent)
		e.metrics[ent.LogID] = acc
	}
	return acc
}

// AccumulateData folds one combat event into the per-entity accumulators,
// the shield ledger and the challenge tracker.
func (e *Encounter) AccumulateData(ev *combatlog.CombatEvent) {
	switch ev.Effect.Type {
	case combatlog.EffectApply:
		if e.shieldEffects[ev.Effect.ID] && !ev.Target.IsEmpty() {
			e.shields.Apply(ev.Target.LogID, ev.Source.LogID, ev.Effect.ID, ev.Timestamp)
		}

	case combatlog.EffectRemove:
		if e.shieldEffects[ev.Effect.ID] && !ev.Target.IsEmpty() {
			e.shields.Remove(ev.Target.LogID, ev.Effect.ID)
		}

	case combatlog.EffectDamage:
		e.accumulateDamage(ev)

	case combatlog.EffectHeal:
		e.accumulateHeal(ev)

	case combatlog.EffectEvent:
		if ev.Effect.Name == combatlog.EventAbilityActivate && !ev.Source.IsEmpty() &&
			ev.Ability.ID != 0 && e.inCombat {
			// Ability uses count only while the combat window is open.
			e.accumulator(ev.Source).AbilityUses[ev.Ability.ID]++
		}
	}
}

func (e *Encounter) accumulateDamage(ev *combatlog.CombatEvent) {
	d := ev.Details

	if !ev.Source.IsEmpty() {
		src := e.accumulator(ev.Source)
		src.Threat += d.Threat

		selfDamage := ev.Source.LogID == ev.Target.LogID
		if !selfDamage {
			src.TotalDamage += d.Amount
			src.EffectiveDamage += d.Effective
			if e.IsBossClass(ev.Target.ClassID) {
				src.BossDamage += d.Amount
			}
		}
	}

	if !ev.Target.IsEmpty() {
		tgt := e.accumulator(ev.Target)
		tgt.DamageTaken += d.Amount
		tgt.AbsorbedTaken += d.Absorbed
		if d.Defense != combatlog.DefenseNone {
			tgt.Defenses[d.Defense]++
		} else {
			tgt.Hits++
			if d.Crit {
				tgt.Crits++
			}
		}

		// Shield attribution: soak credited to whoever applied the most
		// recent absorb effect on the target. This is not the natural
		// shield roll path above.
		if d.Absorbed > 0 {
			if sourceID, ok := e.shields.Attribute(ev.Target.LogID); ok {
				owner, exists := e.metrics[sourceID]
				if !exists {
					owner = newAccumulator(combatlog.Entity{LogID: sourceID})
					e.metrics[sourceID] = owner
				}
				owner.ShieldGiven += d.Absorbed
			}
		}
	}

	if e.challenge != nil && !ev.Source.IsEmpty() {
		e.challenge.RecordDamage(e, ev)
	}
}

func (e *Encounter) accumulateHeal(ev *combatlog.CombatEvent) {
	if !ev.Source.IsEmpty() {
		src := e.accumulator(ev.Source)
		src.TotalHeal += ev.Details.Amount
		src.EffectiveHeal += ev.Details.Effective
		src.Threat += ev.Details.Threat
	}
	if e.challenge != nil && !ev.Source.IsEmpty() {
		e.challenge.RecordHeal(e, ev)
	}
}

// EntityMetrics is the per-player snapshot row handed to display layers.
type EntityMetrics struct {
	EntityID int64
	Name     string

	DPS          int64
	EffectiveDPS int64
	HPS          int64
	EffectiveHPS int64

	TotalDamage int64
	BossDamage  int64
	TotalHeal   int64
	DamageTaken int64
	ShieldGiven int64

	CritPercent float64
	Defenses    map[combatlog.DefenseType]int64
	Threat      int64
}

// CalculateEntityMetrics projects per-player metrics sorted by descending
// DPS. Returns nil until combat duration is positive.
func (e *Encounter) CalculateEntityMetrics(now time.Time) []EntityMetrics {
	durationMs := e.Duration(now).Milliseconds()
	if durationMs <= 0 {
		return nil
	}

	out := make([]EntityMetrics, 0, e.players.Len())
	for _, st := range e.players.All() {
		acc, ok := e.metrics[st.LogID]
		if !ok {
			acc = newAccumulator(st.Entity)
		}
		out = append(out, EntityMetrics{
			EntityID:     st.LogID,
			Name:         st.Name,
			DPS:          acc.TotalDamage * 1000 / durationMs,
			EffectiveDPS: acc.EffectiveDamage * 1000 / durationMs,
			HPS:          acc.TotalHeal * 1000 / durationMs,
			EffectiveHPS: acc.EffectiveHeal * 1000 / durationMs,
			TotalDamage:  acc.TotalDamage,
			BossDamage:   acc.BossDamage,
			TotalHeal:    acc.TotalHeal,
			DamageTaken:  acc.DamageTaken,
			ShieldGiven:  acc.ShieldGiven,
			CritPercent:  acc.CritPercent(),
			Defenses:     acc.Defenses,
			Threat:       acc.Threat,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DPS > out[j].DPS
	})
	return out
}

// shieldLedger tracks which absorb effect instances are active on each
// target so soaked damage can be attributed to the shield's caster.
type shieldLedger struct {
	byTarget map[int64][]shieldEntry
}

type shieldEntry struct {
	sourceID  int64
	effectID  int64
	appliedAt time.Time
}

func newShieldLedger() *shieldLedger {
	return &shieldLedger{byTarget: make(map[int64][]shieldEntry)}
}

func (l *shieldLedger) Apply(targetID, sourceID, effectID int64, ts time.Time) {
	l.byTarget[targetID] = append(l.byTarget[targetID], shieldEntry{
		sourceID:  sourceID,
		effectID:  effectID,
		appliedAt: ts,
	})
}

func (l *shieldLedger) Remove(targetID, effectID int64) {
	entries := l.byTarget[targetID]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].effectID == effectID {
			l.byTarget[targetID] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// Attribute returns the caster of the most recently applied shield still
// active on the target.
func (l *shieldLedger) Attribute(targetID int64) (int64, bool) {
	entries := l.byTarget[targetID]
	if len(entries) == 0 {
		return 0, false
	}
	return entries[len(entries)-1].sourceID, true
}
