package encounter

import (
	"time"

	"github.com/raidwatch/raidwatch/internal/combatlog"
)

// EntityState is the registry record for one entity: the most recent line
// identity plus first/last seen times within the encounter.
type EntityState struct {
	combatlog.Entity
	FirstSeen time.Time
	LastSeen  time.Time
	Dead      bool
}

// Registry holds entities of a single kind keyed by session log id,
// preserving first-seen order for overlay listings.
type Registry struct {
	order []int64
	byID  map[int64]*EntityState
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[int64]*EntityState)}
}

// Observe registers the entity on first sight and refreshes identity and
// health on every later mention. It returns the state and whether this was
// the first sighting.
func (r *Registry) Observe(ent combatlog.Entity, ts time.Time) (*EntityState, bool) {
	if st, ok := r.byID[ent.LogID]; ok {
		st.LastSeen = ts
		st.Name = ent.Name
		if ent.Health.Max > 0 {
			st.Health = ent.Health
		}
		return st, false
	}
	st := &EntityState{Entity: ent, FirstSeen: ts, LastSeen: ts}
	r.byID[ent.LogID] = st
	r.order = append(r.order, ent.LogID)
	return st, true
}

// Get returns the state for a log id, or nil.
func (r *Registry) Get(logID int64) *EntityState {
	return r.byID[logID]
}

// Contains reports whether the log id is registered.
func (r *Registry) Contains(logID int64) bool {
	_, ok := r.byID[logID]
	return ok
}

// All returns registered entities in first-seen order.
func (r *Registry) All() []*EntityState {
	out := make([]*EntityState, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	return len(r.order)
}
