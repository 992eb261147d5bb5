package encounter

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/raidwatch/raidwatch/internal/combatlog"
)

// hpEpsilon suppresses threshold churn from sub-0.01% health deltas.
const hpEpsilon = 0.01

// Encounter is the authoritative per-encounter world model. One instance is
// created on combat start and discarded at the next encounter boundary. It
// is mutated only by the signal processor; collaborators read snapshots.
type Encounter struct {
	logger *zap.Logger

	StartedAt time.Time
	EndedAt   time.Time
	inCombat  bool

	Area       string
	Difficulty Difficulty

	localPlayerID int64

	players    *Registry
	npcs       *Registry
	companions *Registry

	boss *BossDefinition // shared read-only handle, nil until detected

	phase      string
	prevPhase  string
	phaseSetAt time.Time

	counters map[string]int

	hpPercent map[int64]float64 // last reported pct per log id

	metrics   map[int64]*MetricAccumulator
	shields   *shieldLedger
	challenge *ChallengeTracker

	// effect ids that grant absorb shields, for attribution
	shieldEffects map[int64]bool
}

// Config carries the cross-encounter inputs an encounter needs at creation.
type Config struct {
	Area          string
	Difficulty    Difficulty
	LocalPlayerID int64
	ShieldEffects []int64
}

// New creates an encounter opening its combat window at ts.
func New(ts time.Time, cfg Config, logger *zap.Logger) *Encounter {
	if logger == nil {
		logger = zap.NewNop()
	}
	shields := make(map[int64]bool, len(cfg.ShieldEffects))
	for _, id := range cfg.ShieldEffects {
		shields[id] = true
	}
	return &Encounter{
		logger:        logger,
		StartedAt:     ts,
		inCombat:      true,
		Area:          cfg.Area,
		Difficulty:    cfg.Difficulty,
		localPlayerID: cfg.LocalPlayerID,
		players:       NewRegistry(),
		npcs:          NewRegistry(),
		companions:    NewRegistry(),
		counters:      make(map[string]int),
		hpPercent:     make(map[int64]float64),
		metrics:       make(map[int64]*MetricAccumulator),
		shields:       newShieldLedger(),
		shieldEffects: shields,
	}
}

// EndCombat closes the combat window. Further ability-use accounting stops;
// the encounter object stays readable until the next one replaces it.
func (e *Encounter) EndCombat(ts time.Time) {
	if !e.inCombat {
		return
	}
	e.inCombat = false
	e.EndedAt = ts
	e.logger.Debug("combat window closed",
		zap.Duration("duration", e.Duration(ts)),
		zap.String("boss", e.BossName()),
	)
}

// InCombat reports whether the combat window is open.
func (e *Encounter) InCombat() bool {
	return e.inCombat
}

// Duration returns elapsed combat time at now, or the final duration once
// the window is closed. Log timestamps carry no date, so a negative delta
// means the fight ran across midnight and gets one day added back.
func (e *Encounter) Duration(now time.Time) time.Duration {
	end := now
	if !e.inCombat && !e.EndedAt.IsZero() {
		end = e.EndedAt
	}
	d := end.Sub(e.StartedAt)
	if d < 0 {
		d += 24 * time.Hour
	}
	return d
}

// CombatElapsed implements triggers.EncounterState.
func (e *Encounter) CombatElapsed(now time.Time) time.Duration {
	return e.Duration(now)
}

// ObserveEntity routes an entity mention into the right registry. Entities
// register lazily on their first non-zero-health mention; companions only
// register while combat is active so mount/dismount ghosts outside combat
// never enter the roster. Returns the state and whether this was the first
// sighting of a registrable entity.
func (e *Encounter) ObserveEntity(ent combatlog.Entity, ts time.Time) (*EntityState, bool) {
	if ent.IsEmpty() {
		return nil, false
	}
	switch ent.Kind {
	case combatlog.KindPlayer:
		if !e.players.Contains(ent.LogID) && ent.Health.Max == 0 {
			return nil, false
		}
		return e.players.Observe(ent, ts)
	case combatlog.KindNpc:
		if !e.npcs.Contains(ent.LogID) && ent.Health.Max == 0 {
			return nil, false
		}
		return e.npcs.Observe(ent, ts)
	case combatlog.KindCompanion:
		if !e.companions.Contains(ent.LogID) && !e.inCombat {
			return nil, false
		}
		return e.companions.Observe(ent, ts)
	}
	return nil, false
}

// Players returns the player registry.
func (e *Encounter) Players() *Registry { return e.players }

// Npcs returns the NPC registry.
func (e *Encounter) Npcs() *Registry { return e.npcs }

// Companions returns the companion registry.
func (e *Encounter) Companions() *Registry { return e.companions }

// SetBoss records the detected boss. The handle is the catalog's shared
// instance and is never mutated.
func (e *Encounter) SetBoss(def *BossDefinition) {
	e.boss = def
	if def != nil {
		e.challenge = NewChallengeTracker(def.Challenges)
		e.logger.Info("boss encounter detected",
			zap.String("boss", def.Name),
			zap.String("area", e.Area),
		)
	}
}

// Boss returns the active boss definition, nil when none detected.
func (e *Encounter) Boss() *BossDefinition { return e.boss }

// BossName returns the active boss name, "" when none detected.
func (e *Encounter) BossName() string {
	if e.boss == nil {
		return ""
	}
	return e.boss.Name
}

// SetPhase moves the encounter into a phase, recording the previous phase
// for preceded-by queries. Returns the phase that ended.
func (e *Encounter) SetPhase(id string, ts time.Time) string {
	prev := e.phase
	e.prevPhase = prev
	e.phase = id
	e.phaseSetAt = ts
	e.logger.Debug("phase changed", zap.String("from", prev), zap.String("to", id))
	return prev
}

// CurrentPhase implements triggers.EncounterState.
func (e *Encounter) CurrentPhase() string { return e.phase }

// PreviousPhase implements triggers.EncounterState.
func (e *Encounter) PreviousPhase() string { return e.prevPhase }

// IncrementCounter adds one and returns the new value.
func (e *Encounter) IncrementCounter(name string) int {
	e.counters[name]++
	return e.counters[name]
}

// DecrementCounter subtracts one, saturating at zero, and returns the new value.
func (e *Encounter) DecrementCounter(name string) int {
	if e.counters[name] > 0 {
		e.counters[name]--
	}
	return e.counters[name]
}

// SetCounter sets the counter to value (negative values clamp to zero).
func (e *Encounter) SetCounter(name string, value int) int {
	if value < 0 {
		value = 0
	}
	e.counters[name] = value
	return value
}

// ResetCounter zeroes the counter.
func (e *Encounter) ResetCounter(name string) {
	e.counters[name] = 0
}

// CounterValue implements triggers.EncounterState.
func (e *Encounter) CounterValue(name string) int {
	return e.counters[name]
}

// LocalPlayerID implements selectors.EncounterContext.
func (e *Encounter) LocalPlayerID() int64 { return e.localPlayerID }

// SetLocalPlayerID records the session's local player id.
func (e *Encounter) SetLocalPlayerID(id int64) { e.localPlayerID = id }

// IsBossClass implements selectors.EncounterContext: true only when a boss
// is detected and the class id is in its roster.
func (e *Encounter) IsBossClass(classID int64) bool {
	return e.boss != nil && e.boss.HasNpc(classID)
}

// IsGroupMember implements selectors.EncounterContext. The group is the set
// of players observed in this encounter.
func (e *Encounter) IsGroupMember(logID int64) bool {
	return e.players.Contains(logID)
}

// UpdateEntityHP records a health report for the entity and returns the
// before/after percentage. ok is false when the entity carried no health or
// the change is below the noise floor, suppressing threshold churn.
func (e *Encounter) UpdateEntityHP(ent combatlog.Entity) (before, after float64, ok bool) {
	if ent.IsEmpty() || ent.Health.Max <= 0 {
		return 0, 0, false
	}
	after = ent.Health.Percent()
	before, seen := e.hpPercent[ent.LogID]
	if !seen {
		before = 100
	}
	if seen && abs(after-before) <= hpEpsilon {
		return 0, 0, false
	}
	e.hpPercent[ent.LogID] = after
	return before, after, true
}

// BossHealthEntry is one row of the overlay boss-health listing.
type BossHealthEntry struct {
	LogID     int64
	Name      string
	Health    combatlog.Health
	Percent   float64
	FirstSeen time.Time
	Dead      bool
}

// BossHealth lists health entries for overlay-flagged NPCs of the active
// boss, in first-seen order. Empty when no boss is detected.
func (e *Encounter) BossHealth() []BossHealthEntry {
	if e.boss == nil {
		return nil
	}
	var out []BossHealthEntry
	for _, st := range e.npcs.All() {
		if !e.boss.IsOverlayNpc(st.ClassID) {
			continue
		}
		out = append(out, BossHealthEntry{
			LogID:     st.LogID,
			Name:      st.Name,
			Health:    st.Health,
			Percent:   st.Health.Percent(),
			FirstSeen: st.FirstSeen,
			Dead:      st.Dead,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FirstSeen.Equal(out[j].FirstSeen) {
			return out[i].FirstSeen.Before(out[j].FirstSeen)
		}
		return out[i].LogID < out[j].LogID
	})
	return out
}

// Challenges returns the challenge tracker, nil before boss detection.
func (e *Encounter) Challenges() *ChallengeTracker { return e.challenge }

// ChallengeContext is the snapshot projection challenge gating reads.
type ChallengeContext struct {
	Phase      string
	Counters   map[string]int
	BossNpcIDs []int64
}

// ChallengeContextFor projects the gating state for a challenge scoped to
// the given boss roster ids.
func (e *Encounter) ChallengeContextFor(bossNpcIDs []int64) ChallengeContext {
	counters := make(map[string]int, len(e.counters))
	for name, v := range e.counters {
		counters[name] = v
	}
	return ChallengeContext{
		Phase:      e.phase,
		Counters:   counters,
		BossNpcIDs: bossNpcIDs,
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
