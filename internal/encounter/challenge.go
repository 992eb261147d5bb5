package encounter

import (
	"sort"

	"github.com/raidwatch/raidwatch/internal/combatlog"
	"github.com/raidwatch/raidwatch/internal/selectors"
)

// ChallengeMode selects which contribution a challenge counts.
type ChallengeMode string

const (
	ChallengeDamage  ChallengeMode = "DAMAGE"
	ChallengeHealing ChallengeMode = "HEALING"
)

// ChallengeDefinition is a per-player contribution metric gated by
// phase/counter/entity conditions, authored alongside the boss definition.
type ChallengeDefinition struct {
	ID   string        `yaml:"id"`
	Name string        `yaml:"name"`
	Mode ChallengeMode `yaml:"mode"`

	// Gates; zero values mean ungated.
	Phase          string                `yaml:"phase"`
	Counter        string                `yaml:"counter"`
	CounterAtLeast int                   `yaml:"counter_at_least"`
	Target         selectors.EntityMatch `yaml:"target"`
}

func (c ChallengeDefinition) open(enc *Encounter) bool {
	if c.Phase != "" && enc.CurrentPhase() != c.Phase {
		return false
	}
	if c.Counter != "" && enc.CounterValue(c.Counter) < c.CounterAtLeast {
		return false
	}
	return true
}

// ChallengeTracker accumulates per-player contributions for each challenge
// of the active boss.
type ChallengeTracker struct {
	defs   []ChallengeDefinition
	totals map[string]map[int64]int64 // challenge id -> player log id -> amount
	names  map[int64]string
}

// NewChallengeTracker creates a tracker over the boss's challenge set.
func NewChallengeTracker(defs []ChallengeDefinition) *ChallengeTracker {
	return &ChallengeTracker{
		defs:   defs,
		totals: make(map[string]map[int64]int64),
		names:  make(map[int64]string),
	}
}

// RecordDamage folds a damage event into every open damage challenge.
func (t *ChallengeTracker) RecordDamage(enc *Encounter, ev *combatlog.CombatEvent) {
	t.record(enc, ev, ChallengeDamage)
}

// RecordHeal folds a heal event into every open healing challenge.
func (t *ChallengeTracker) RecordHeal(enc *Encounter, ev *combatlog.CombatEvent) {
	t.record(enc, ev, ChallengeHealing)
}

func (t *ChallengeTracker) record(enc *Encounter, ev *combatlog.CombatEvent, mode ChallengeMode) {
	if ev.Source.Kind != combatlog.KindPlayer {
		return
	}
	for _, def := range t.defs {
		if def.Mode != mode || !def.open(enc) {
			continue
		}
		if !def.Target.Matches(ev.Target, enc) {
			continue
		}
		players := t.totals[def.ID]
		if players == nil {
			players = make(map[int64]int64)
			t.totals[def.ID] = players
		}
		players[ev.Source.LogID] += ev.Details.Effective
		t.names[ev.Source.LogID] = ev.Source.Name
	}
}

// ChallengeEntry is one player's contribution to one challenge.
type ChallengeEntry struct {
	PlayerID int64
	Name     string
	Amount   int64
}

// ChallengeSnapshot is a read-only projection of one challenge's standings.
type ChallengeSnapshot struct {
	ID      string
	Name    string
	Entries []ChallengeEntry // descending by amount
}

// Snapshot projects current standings for every challenge with activity.
func (t *ChallengeTracker) Snapshot() []ChallengeSnapshot {
	out := make([]ChallengeSnapshot, 0, len(t.defs))
	for _, def := range t.defs {
		players := t.totals[def.ID]
		snap := ChallengeSnapshot{ID: def.ID, Name: def.Name}
		for id, amount := range players {
			snap.Entries = append(snap.Entries, ChallengeEntry{
				PlayerID: id,
				Name:     t.names[id],
				Amount:   amount,
			})
		}
		sort.Slice(snap.Entries, func(i, j int) bool {
			if snap.Entries[i].Amount != snap.Entries[j].Amount {
				return snap.Entries[i].Amount > snap.Entries[j].Amount
			}
			return snap.Entries[i].PlayerID < snap.Entries[j].PlayerID
		})
		out = append(out, snap)
	}
	return out
}
