// Package processor turns parsed combat events into the ordered game signal
// stream. It is the single place log-specific quirks are resolved: duplicate
// lines, entity-registration ordering and effect-type disambiguation all end
// here, so downstream trackers see only clean signals.
package processor

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/raidwatch/raidwatch/internal/combatlog"
	"github.com/raidwatch/raidwatch/internal/encounter"
	"github.com/raidwatch/raidwatch/internal/signals"
)

// ruleCascadeLimit bounds phase/counter rule chaining per event so a
// misauthored rule set cannot loop the queue forever.
const ruleCascadeLimit = 64

// Cache is the mutable session state the processor operates on: zero or one
// live encounter plus cross-encounter identity.
type Cache struct {
	Encounter     *encounter.Encounter
	LocalPlayerID int64
	Area          string
	Difficulty    encounter.Difficulty

	lastEventKey string
}

// Processor is the stateless translator; all mutable state lives in the
// Cache handed to every call.
type Processor struct {
	catalog       *encounter.Catalog
	shieldEffects []int64
	logger        *zap.Logger
}

// New creates a processor over the loaded boss catalog.
func New(catalog *encounter.Catalog, shieldEffects []int64, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if catalog == nil {
		catalog = encounter.NewCatalog(nil)
	}
	return &Processor{
		catalog:       catalog,
		shieldEffects: shieldEffects,
		logger:        logger,
	}
}

// Process folds one combat event into the cache and returns the ordered
// signals it produced. Invalid or duplicate events yield no signals.
func (p *Processor) Process(cache *Cache, ev *combatlog.CombatEvent) []signals.Signal {
	if ev == nil {
		return nil
	}

	// The client occasionally writes the same record twice back to back;
	// the second copy must not double-count or re-fire triggers.
	key := eventKey(ev)
	if key == cache.lastEventKey {
		return nil
	}
	cache.lastEventKey = key

	var out []signals.Signal

	switch {
	case ev.IsEvent(combatlog.EventEnterCombat):
		out = append(out, p.startEncounter(cache, ev)...)

	case ev.IsEvent(combatlog.EventExitCombat):
		out = append(out, p.endEncounter(cache, ev)...)

	case ev.IsEvent(combatlog.EventAreaEntered):
		cache.Area, cache.Difficulty = splitAreaDifficulty(ev.Area)
		sig := signals.New(signals.AreaEntered, ev.Timestamp, ev.Source, ev.Target)
		sig.Area = cache.Area
		sig.Difficulty = string(cache.Difficulty)
		out = append(out, sig)

	case ev.IsEvent(combatlog.EventDisciplineChanged):
		out = append(out, p.initLocalPlayer(cache, ev)...)

	default:
		out = append(out, p.translate(cache, ev)...)
	}

	if enc := cache.Encounter; enc != nil {
		p.observe(cache, ev, &out)
		enc.AccumulateData(ev)
		out = p.applyBossRules(enc, out)
	}

	return out
}

// startEncounter opens a fresh encounter, closing any encounter the log
// never saw an ExitCombat for.
func (p *Processor) startEncounter(cache *Cache, ev *combatlog.CombatEvent) []signals.Signal {
	var out []signals.Signal
	if cache.Encounter != nil && cache.Encounter.InCombat() {
		cache.Encounter.EndCombat(ev.Timestamp)
		out = append(out, signals.New(signals.CombatEnded, ev.Timestamp, ev.Source, ev.Target))
	}

	cache.Encounter = encounter.New(ev.Timestamp, encounter.Config{
		Area:          cache.Area,
		Difficulty:    cache.Difficulty,
		LocalPlayerID: cache.LocalPlayerID,
		ShieldEffects: p.shieldEffects,
	}, p.logger)

	p.logger.Debug("encounter started", zap.String("area", cache.Area))
	return append(out, signals.New(signals.CombatStarted, ev.Timestamp, ev.Source, ev.Target))
}

func (p *Processor) endEncounter(cache *Cache, ev *combatlog.CombatEvent) []signals.Signal {
	enc := cache.Encounter
	if enc == nil || !enc.InCombat() {
		return nil
	}
	enc.EndCombat(ev.Timestamp)
	return []signals.Signal{signals.New(signals.CombatEnded, ev.Timestamp, ev.Source, ev.Target)}
}

// initLocalPlayer resolves session identity from the first discipline line,
// which the client always writes about the local player.
func (p *Processor) initLocalPlayer(cache *Cache, ev *combatlog.CombatEvent) []signals.Signal {
	if ev.Source.Kind != combatlog.KindPlayer || ev.Source.LogID == 0 {
		return nil
	}
	if cache.LocalPlayerID == ev.Source.LogID {
		return nil
	}
	cache.LocalPlayerID = ev.Source.LogID
	if cache.Encounter != nil {
		cache.Encounter.SetLocalPlayerID(ev.Source.LogID)
	}
	return []signals.Signal{signals.New(signals.PlayerInitialized, ev.Timestamp, ev.Source, ev.Source)}
}

// translate maps the remaining event shapes onto the signal vocabulary.
func (p *Processor) translate(cache *Cache, ev *combatlog.CombatEvent) []signals.Signal {
	switch ev.Effect.Type {
	case combatlog.EffectEvent:
		switch ev.Effect.Name {
		case combatlog.EventDeath:
			if enc := cache.Encounter; enc != nil {
				if st, _ := enc.ObserveEntity(ev.Target, ev.Timestamp); st != nil {
					st.Dead = true
				}
			}
			return []signals.Signal{signals.New(signals.EntityDeath, ev.Timestamp, ev.Source, ev.Target)}

		case combatlog.EventAbilityActivate:
			sig := signals.New(signals.AbilityActivated, ev.Timestamp, ev.Source, ev.Target)
			sig.AbilityID = ev.Ability.ID
			sig.AbilityName = ev.Ability.Name
			return []signals.Signal{sig}

		case combatlog.EventTargetSet:
			return []signals.Signal{signals.New(signals.TargetChanged, ev.Timestamp, ev.Source, ev.Target)}

		case combatlog.EventTargetCleared:
			return []signals.Signal{signals.New(signals.TargetCleared, ev.Timestamp, ev.Source, ev.Target)}
		}
		return nil

	case combatlog.EffectApply:
		sig := signals.New(signals.EffectApplied, ev.Timestamp, ev.Source, ev.Target)
		sig.EffectID = ev.Effect.ID
		sig.EffectName = ev.Effect.Name
		sig.AbilityID = ev.Ability.ID
		sig.AbilityName = ev.Ability.Name
		return []signals.Signal{sig}

	case combatlog.EffectRemove:
		sig := signals.New(signals.EffectRemoved, ev.Timestamp, ev.Source, ev.Target)
		sig.EffectID = ev.Effect.ID
		sig.EffectName = ev.Effect.Name
		return []signals.Signal{sig}

	case combatlog.EffectCharges:
		sig := signals.New(signals.EffectChargesChanged, ev.Timestamp, ev.Source, ev.Target)
		sig.EffectID = ev.Effect.ID
		sig.EffectName = ev.Effect.Name
		sig.Charges = ev.Details.Charges
		return []signals.Signal{sig}

	case combatlog.EffectDamage:
		sig := signals.New(signals.DamageTaken, ev.Timestamp, ev.Source, ev.Target)
		sig.AbilityID = ev.Ability.ID
		sig.AbilityName = ev.Ability.Name
		sig.Amount = ev.Details.Amount
		sig.Effective = ev.Details.Effective
		sig.Absorbed = ev.Details.Absorbed
		sig.Crit = ev.Details.Crit
		sig.Defense = ev.Details.Defense
		if enc := cache.Encounter; enc != nil {
			if before, after, ok := enc.UpdateEntityHP(ev.Target); ok {
				sig.HPPercentBefore = before
				sig.HPPercentAfter = after
			}
		}
		return []signals.Signal{sig}

	case combatlog.EffectHeal:
		sig := signals.New(signals.HealingReceived, ev.Timestamp, ev.Source, ev.Target)
		sig.AbilityID = ev.Ability.ID
		sig.AbilityName = ev.Ability.Name
		sig.Amount = ev.Details.Amount
		sig.Effective = ev.Details.Effective
		sig.Crit = ev.Details.Crit
		if enc := cache.Encounter; enc != nil {
			// Keep the health ledger current so a target healed back above
			// a threshold re-fires it on the next drop below.
			enc.UpdateEntityHP(ev.Target)
		}
		return []signals.Signal{sig}
	}

	return nil
}

// observe registers the line's entities and raises NpcFirstSeen plus boss
// detection for fresh NPCs.
func (p *Processor) observe(cache *Cache, ev *combatlog.CombatEvent, out *[]signals.Signal) {
	enc := cache.Encounter
	for _, ent := range []combatlog.Entity{ev.Source, ev.Target} {
		st, first := enc.ObserveEntity(ent, ev.Timestamp)
		if st == nil || !first || ent.Kind != combatlog.KindNpc {
			continue
		}

		sig := signals.New(signals.NpcFirstSeen, ev.Timestamp, combatlog.Entity{}, ent)
		*out = append(*out, sig)

		if enc.Boss() == nil {
			if def := p.catalog.Detect(ent.ClassID, cache.Area, cache.Difficulty); def != nil {
				enc.SetBoss(def)
				boss := signals.New(signals.BossEncounterDetected, ev.Timestamp, combatlog.Entity{}, ent)
				boss.BossID = def.ID
				*out = append(*out, boss)
			}
		}
	}
}

// applyBossRules runs the active boss's phase/counter rules over the signal
// queue. Rule-generated signals are appended to the queue so counter
// transitions can drive phase transitions within the same event.
func (p *Processor) applyBossRules(enc *encounter.Encounter, queue []signals.Signal) []signals.Signal {
	boss := enc.Boss()
	if boss == nil || len(queue) == 0 {
		return queue
	}

	for i := 0; i < len(queue) && i < ruleCascadeLimit; i++ {
		sig := queue[i]

		for _, rule := range boss.Phases {
			if rule.ID != enc.CurrentPhase() && rule.Start.Matches(sig, enc) {
				prev := enc.SetPhase(rule.ID, sig.Timestamp)
				change := signals.New(signals.PhaseChanged, sig.Timestamp, sig.Source, sig.Target)
				change.Phase = rule.ID
				change.PrevPhase = prev
				queue = append(queue, change)
				continue
			}
			if rule.End != nil && rule.ID == enc.CurrentPhase() && rule.End.Matches(sig, enc) {
				prev := enc.SetPhase("", sig.Timestamp)
				end := signals.New(signals.PhaseEndTriggered, sig.Timestamp, sig.Source, sig.Target)
				end.PrevPhase = prev
				queue = append(queue, end)
			}
		}

		for _, rule := range boss.Counters {
			if rule.Reset != nil && rule.Reset.Matches(sig, enc) {
				enc.ResetCounter(rule.Name)
				change := signals.New(signals.CounterChanged, sig.Timestamp, sig.Source, sig.Target)
				change.Counter = rule.Name
				change.Value = 0
				queue = append(queue, change)
				continue
			}
			if rule.Decrement != nil && rule.Decrement.Matches(sig, enc) {
				value := enc.DecrementCounter(rule.Name)
				change := signals.New(signals.CounterChanged, sig.Timestamp, sig.Source, sig.Target)
				change.Counter = rule.Name
				change.Value = value
				queue = append(queue, change)
				continue
			}
			if rule.Increment.Matches(sig, enc) {
				value := enc.IncrementCounter(rule.Name)
				change := signals.New(signals.CounterChanged, sig.Timestamp, sig.Source, sig.Target)
				change.Counter = rule.Name
				change.Value = value
				queue = append(queue, change)
			}
		}
	}

	return queue
}

// eventKey is the duplicate-line fingerprint.
func eventKey(ev *combatlog.CombatEvent) string {
	return fmt.Sprintf("%s|%d|%d|%s|%d|%d|%d|%d",
		ev.Timestamp.Format("15:04:05.000"),
		ev.Source.LogID, ev.Target.LogID,
		ev.Effect.Type, ev.Effect.ID,
		ev.Ability.ID, ev.Details.Amount, ev.Details.Threat,
	)
}

// splitAreaDifficulty separates a trailing difficulty token from the area
// name on AreaEntered lines ("The Dread Palace Veteran" and the like).
func splitAreaDifficulty(area string) (string, encounter.Difficulty) {
	for token, diff := range map[string]encounter.Difficulty{
		"Story":   encounter.DifficultyStory,
		"Veteran": encounter.DifficultyVeteran,
		"Master":  encounter.DifficultyMaster,
	} {
		if strings.HasSuffix(area, " "+token) {
			return strings.TrimSuffix(area, " "+token), diff
		}
	}
	return area, encounter.DifficultyAny
}
