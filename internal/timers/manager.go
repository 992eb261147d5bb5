package timers

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raidwatch/raidwatch/internal/signals"
	"github.com/raidwatch/raidwatch/internal/triggers"
)

// Instance is one running timer.
type Instance struct {
	ID           string
	DefinitionID string
	Name         string

	StartedAt    time.Time
	DurationSecs float64

	RepeatsRemaining int

	Category string
	Color    string

	alertFired bool
}

// ExpiresAt returns the instant the instance runs out.
func (in *Instance) ExpiresAt() time.Time {
	return in.StartedAt.Add(time.Duration(in.DurationSecs * float64(time.Second)))
}

// RemainingSecs returns seconds left at now, never below zero.
func (in *Instance) RemainingSecs(now time.Time) float64 {
	left := in.ExpiresAt().Sub(now).Seconds()
	if left < 0 {
		return 0
	}
	return left
}

// Alert is a one-shot notification drained by the audio/text collaborator.
type Alert struct {
	TimerID       string
	Name          string
	At            time.Time
	RemainingSecs float64
}

// Manager is the timer state machine: it evaluates every loaded definition's
// trigger tree against each signal, runs expiry/chaining on ticks, and
// queues alert crossings.
type Manager struct {
	logger *zap.Logger

	defs   []Definition
	byID   map[string]*Definition
	active map[string]*Instance // keyed by definition id, one instance each

	alerts []Alert

	area       string
	difficulty string
	bossID     string
}

// NewManager creates a manager over the loaded timer definitions.
func NewManager(defs []Definition, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	byID := make(map[string]*Definition, len(defs))
	for i := range defs {
		byID[defs[i].ID] = &defs[i]
	}
	return &Manager{
		logger: logger,
		defs:   defs,
		byID:   byID,
		active: make(map[string]*Instance),
	}
}

// HandleSignal folds one signal into the manager. Expiry is evaluated
// implicitly against the signal's timestamp before trigger matching, so a
// later-timestamped signal is equivalent to a tick.
func (m *Manager) HandleSignal(sig signals.Signal, enc triggers.EncounterState) {
	m.expire(sig.Timestamp, enc)

	switch sig.Type {
	case signals.AreaEntered:
		m.area = sig.Area
		m.difficulty = sig.Difficulty
		m.bossID = ""
	case signals.BossEncounterDetected:
		m.bossID = sig.BossID
	case signals.CombatEnded:
		// End of combat clears every running timer unconditionally.
		m.clear()
	}

	m.process([]signals.Signal{sig}, enc)
}

// Tick evaluates expiry, chaining and alerts at now.
func (m *Manager) Tick(now time.Time, enc triggers.EncounterState) {
	m.expire(now, enc)
	m.checkAlerts(now)
}

// ActiveTimers returns running instances ordered by soonest expiry.
func (m *Manager) ActiveTimers() []Instance {
	out := make([]Instance, 0, len(m.active))
	for _, in := range m.active {
		out = append(out, *in)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.ExpiresAt().Equal(b.ExpiresAt()) {
			return a.ExpiresAt().Before(b.ExpiresAt())
		}
		return a.DefinitionID < b.DefinitionID
	})
	return out
}

// DrainAlerts returns queued alerts and empties the queue.
func (m *Manager) DrainAlerts() []Alert {
	out := m.alerts
	m.alerts = nil
	return out
}

// process evaluates cancel and start triggers over a signal queue. Timer
// activity generated along the way is appended to the queue so chained
// starts and cancellations settle within the same call.
func (m *Manager) process(queue []signals.Signal, enc triggers.EncounterState) {
	for i := 0; i < len(queue); i++ {
		sig := queue[i]

		// Cancellation first: a cancel match removes the instance the
		// instant the signal lands, regardless of remaining duration.
		// Walk definition order, not the active map, so generated timer
		// activity is identical between live and replay runs.
		for d := range m.defs {
			def := &m.defs[d]
			if _, ok := m.active[def.ID]; !ok {
				continue
			}
			if def.CancelTrigger != nil && def.CancelTrigger.Matches(sig, enc) {
				delete(m.active, def.ID)
				m.logger.Debug("timer cancelled", zap.String("timer", def.ID))
			}
		}

		for d := range m.defs {
			def := &m.defs[d]
			if !m.defApplies(def) {
				continue
			}
			if def.Trigger.Matches(sig, enc) {
				queue = m.start(def, sig.Timestamp, queue)
			}
		}
	}

	m.checkAlerts(lastTimestamp(queue))
}

// start activates a definition. A retrigger refreshes the running instance
// when the definition allows it and is a no-op otherwise.
func (m *Manager) start(def *Definition, now time.Time, queue []signals.Signal) []signals.Signal {
	if in, ok := m.active[def.ID]; ok {
		if def.CanBeRefreshed {
			in.StartedAt = now
			in.alertFired = false
			m.logger.Debug("timer refreshed", zap.String("timer", def.ID))
		}
		return queue
	}

	in := &Instance{
		ID:               uuid.NewString(),
		DefinitionID:     def.ID,
		Name:             def.Name,
		StartedAt:        now,
		DurationSecs:     def.DurationSecs,
		RepeatsRemaining: def.Repeats,
		Category:         def.Category,
		Color:            def.Color,
	}
	m.active[def.ID] = in
	m.logger.Debug("timer started", zap.String("timer", def.ID))

	started := signals.Signal{Type: signals.TimerStarted, Timestamp: now, TimerID: def.ID}
	return append(queue, started)
}

// expire removes instances past their deadline at now, firing both chaining
// mechanisms: the expiring definition's triggers_timer pointer and any other
// definition's TIMER_EXPIRES trigger. Instances are visited in definition
// order so same-tick expiries always settle identically.
func (m *Manager) expire(now time.Time, enc triggers.EncounterState) {
	var queue []signals.Signal

	for d := range m.defs {
		def := &m.defs[d]
		in, ok := m.active[def.ID]
		if !ok || now.Before(in.ExpiresAt()) {
			continue
		}
		expiredAt := in.ExpiresAt()

		if in.RepeatsRemaining > 0 {
			in.RepeatsRemaining--
			in.StartedAt = expiredAt
			in.alertFired = false
		} else {
			delete(m.active, def.ID)
		}

		queue = append(queue, signals.Signal{
			Type: signals.TimerExpired, Timestamp: expiredAt, TimerID: def.ID,
		})

		if def.TriggersTimer != "" {
			if next := m.byID[def.TriggersTimer]; next != nil && m.defApplies(next) {
				queue = m.start(next, expiredAt, queue)
			}
		}
	}

	if len(queue) > 0 {
		m.process(queue, enc)
		// Chained instances may themselves already be past now.
		m.expire(now, enc)
	}
}

func (m *Manager) checkAlerts(now time.Time) {
	if now.IsZero() {
		return
	}
	for d := range m.defs {
		def := &m.defs[d]
		in, ok := m.active[def.ID]
		if !ok || def.AlertAtSecs <= 0 || in.alertFired {
			continue
		}
		remaining := in.RemainingSecs(now)
		if remaining <= def.AlertAtSecs {
			in.alertFired = true
			m.alerts = append(m.alerts, Alert{
				TimerID:       def.ID,
				Name:          in.Name,
				At:            now,
				RemainingSecs: remaining,
			})
		}
	}
}

func (m *Manager) clear() {
	m.active = make(map[string]*Instance)
}

func (m *Manager) defApplies(def *Definition) bool {
	if def.Area != "" && !strings.EqualFold(def.Area, m.area) {
		return false
	}
	if def.Difficulty != "" && string(def.Difficulty) != m.difficulty {
		return false
	}
	if def.Boss != "" && def.Boss != m.bossID {
		return false
	}
	return true
}

func lastTimestamp(queue []signals.Signal) time.Time {
	if len(queue) == 0 {
		return time.Time{}
	}
	return queue[len(queue)-1].Timestamp
}
