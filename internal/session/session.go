// Package session wires the full pipeline together: parser, signal
// processor, effect tracker, timer manager and the optional encounter
// recorder, driven one log line at a time.
package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/raidwatch/raidwatch/internal/combatlog"
	"github.com/raidwatch/raidwatch/internal/definitions"
	"github.com/raidwatch/raidwatch/internal/effects"
	"github.com/raidwatch/raidwatch/internal/encounter"
	"github.com/raidwatch/raidwatch/internal/processor"
	"github.com/raidwatch/raidwatch/internal/repository"
	"github.com/raidwatch/raidwatch/internal/signals"
	"github.com/raidwatch/raidwatch/internal/timers"
	"github.com/raidwatch/raidwatch/internal/triggers"
)

// Config tunes a session.
type Config struct {
	// Live marks this session as tailing the game's current log file.
	// Replayed history sessions keep trackers inert.
	Live bool
	// Recorder persists finished encounters; nil disables recording.
	Recorder repository.Recorder
}

// Session drives one combat log through the pipeline and owns all the
// per-log mutable state. Not safe for concurrent use; callers serialize
// through one goroutine.
type Session struct {
	logger *zap.Logger

	parser    *combatlog.Parser
	processor *processor.Processor
	cache     *processor.Cache
	bus       *signals.Bus

	effects *effects.Tracker
	timers  *timers.Manager

	recorder repository.Recorder
	live     bool

	lineNo int
	lastTS time.Time
}

// New builds a session over the loaded definition bundle.
func New(bundle *definitions.Bundle, cfg Config, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}

	bosses := make([]*encounter.BossDefinition, len(bundle.Bosses))
	for i := range bundle.Bosses {
		bosses[i] = &bundle.Bosses[i]
	}

	var shieldIDs []int64
	for i := range bundle.Effects {
		if bundle.Effects[i].Category == effects.CategoryShield {
			shieldIDs = append(shieldIDs, bundle.Effects[i].Apply.IDs...)
		}
	}

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = repository.NoopRecorder{}
	}

	return &Session{
		logger:    logger,
		parser:    combatlog.NewParser(),
		processor: processor.New(encounter.NewCatalog(bosses), shieldIDs, logger),
		cache:     &processor.Cache{},
		bus:       signals.NewBus(),
		effects:   effects.NewTracker(bundle.Effects, cfg.Live, logger),
		timers:    timers.NewManager(bundle.Timers, logger),
		recorder:  recorder,
		live:      cfg.Live,
	}
}

// Bus exposes the signal bus for additional consumers such as the overlay.
func (s *Session) Bus() *signals.Bus { return s.bus }

// Encounter returns the live encounter, or nil between fights.
func (s *Session) Encounter() *encounter.Encounter { return s.cache.Encounter }

// HandleLine feeds one raw log line through the pipeline. Unparseable
// lines are counted and skipped.
func (s *Session) HandleLine(ctx context.Context, text string) {
	s.lineNo++
	ev, ok := s.parser.ParseLine(s.lineNo, text)
	if !ok {
		return
	}
	s.lastTS = ev.Timestamp

	sigs := s.processor.Process(s.cache, ev)
	for _, sig := range sigs {
		s.dispatch(ctx, sig)
	}
}

// Tick advances time-driven state (timer expiry, effect tombstone purging)
// between log lines.
func (s *Session) Tick(now time.Time) {
	s.timers.Tick(now, s.encState())
	s.effects.Tick(now)
}

// LastTimestamp returns the timestamp of the most recent parsed line.
func (s *Session) LastTimestamp() time.Time { return s.lastTS }

// DrainAlerts returns pending timer alerts and clears the queue.
func (s *Session) DrainAlerts() []timers.Alert { return s.timers.DrainAlerts() }

func (s *Session) dispatch(ctx context.Context, sig signals.Signal) {
	enc := s.encState()

	if sig.Type == signals.CombatEnded {
		// Capture the record before trackers clear their state.
		s.recordEncounter(ctx, sig.Timestamp)
	}

	s.effects.HandleSignal(sig, enc)
	s.timers.HandleSignal(sig, enc)
	s.bus.Publish(sig)
}

// encState converts the cache's encounter pointer into the trigger state
// interface, keeping the interface nil between fights.
func (s *Session) encState() triggers.EncounterState {
	if s.cache.Encounter == nil {
		return nil
	}
	return s.cache.Encounter
}

func (s *Session) recordEncounter(ctx context.Context, endedAt time.Time) {
	enc := s.cache.Encounter
	if enc == nil {
		return
	}
	metrics := enc.CalculateEntityMetrics(endedAt)
	if len(metrics) == 0 {
		return
	}

	rec := &repository.EncounterRecord{
		Area:       s.cache.Area,
		Difficulty: string(s.cache.Difficulty),
		BossName:   enc.BossName(),
		StartedAt:  enc.StartedAt,
		EndedAt:    endedAt,
		DurationMs: enc.Duration(endedAt).Milliseconds(),
		Players:    metrics,
	}
	if boss := enc.Boss(); boss != nil {
		rec.BossID = boss.ID
	}

	if err := s.recorder.RecordEncounter(ctx, rec); err != nil {
		s.logger.Warn("failed to record encounter", zap.Error(err))
	}
}
