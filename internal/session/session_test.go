package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raidwatch/raidwatch/internal/definitions"
	"github.com/raidwatch/raidwatch/internal/repository"
)

const raidDefs = `
bosses:
  - id: rampaging-husk
    name: Rampaging Husk
    area: The Dread Palace
    npc_ids: [4000]
    overlay_ids: [4000]

effects:
  - id: corruption
    name: Corruption
    apply: {ids: [300]}
    duration_secs: 18
    category: DEBUFF

timers:
  - id: husk-enrage
    name: Husk Enrage
    trigger:
      kind: EFFECT_APPLIED
      effects: {ids: [300]}
    duration_secs: 30
`

func recordedLines() []string {
	return []string{
		"[10:00:00.000] [@Vix#100] [] [] [Event {836045448945472}: AreaEntered {836045448953664}] (The Dread Palace Veteran)",
		"[10:00:01.000] [@Vix#100] [] [] [Event {836045448945472}: EnterCombat {836045448945489}]",
		"[10:00:02.000] [@Vix#100|(4.5,1.2)|(300000/300000)] [Rampaging Husk {4000}:556|(1.0,1.0)|(900000/1000000)] " +
			"[Force Leap {812}] [ApplyDamage {836045448945501}: kinetic] (1000 kinetic {1})",
		"[10:00:03.000] [Rampaging Husk {4000}:556] [@Vix#100|(4.5,1.2)|(300000/300000)] " +
			"[] [ApplyEffect {836045448945477}: Corruption {300}]",
		"[10:00:11.000] [@Vix#100] [] [] [Event {836045448945472}: ExitCombat {836045448945490}]",
	}
}

type captureRecorder struct {
	records []*repository.EncounterRecord
}

func (c *captureRecorder) RecordEncounter(_ context.Context, rec *repository.EncounterRecord) error {
	c.records = append(c.records, rec)
	return nil
}

func TestSessionEndToEnd(t *testing.T) {
	bundle, err := definitions.Parse([]byte(raidDefs))
	require.NoError(t, err)

	rec := &captureRecorder{}
	s := New(bundle, Config{Live: true, Recorder: rec}, zap.NewNop())

	ctx := context.Background()
	lines := recordedLines()
	for _, line := range lines[:4] {
		s.HandleLine(ctx, line)
	}

	// Mid-fight snapshot: boss resolved, timer running, effect tracked,
	// meter populated.
	now := time.Date(0, 1, 1, 10, 0, 4, 0, time.UTC)
	snap := s.Snapshot(now)

	assert.True(t, snap.InCombat)
	assert.Equal(t, "The Dread Palace", snap.Area)
	assert.Equal(t, "VETERAN", snap.Difficulty)
	assert.Equal(t, "Rampaging Husk", snap.Boss)

	require.Len(t, snap.Timers, 1)
	assert.Equal(t, "husk-enrage", snap.Timers[0].ID)
	assert.InDelta(t, 29.0, snap.Timers[0].RemainingSecs, 1e-9)

	require.Len(t, snap.Effects, 1)
	assert.Equal(t, "corruption", snap.Effects[0].DefinitionID)
	assert.EqualValues(t, 100, snap.Effects[0].TargetID)

	require.Len(t, snap.BossHealth, 1)
	assert.InDelta(t, 90.0, snap.BossHealth[0].Percent, 1e-9)

	require.Len(t, snap.Metrics, 1)
	assert.Equal(t, "Vix", snap.Metrics[0].Name)
	assert.EqualValues(t, 1000, snap.Metrics[0].TotalDamage)
	assert.EqualValues(t, 1000, snap.Metrics[0].BossDamage)

	// Combat end: encounter persisted, timers cleared.
	s.HandleLine(ctx, lines[4])

	require.Len(t, rec.records, 1)
	saved := rec.records[0]
	assert.Equal(t, "The Dread Palace", saved.Area)
	assert.Equal(t, "VETERAN", saved.Difficulty)
	assert.Equal(t, "rampaging-husk", saved.BossID)
	assert.EqualValues(t, 10000, saved.DurationMs)
	require.Len(t, saved.Players, 1)
	assert.EqualValues(t, 100, saved.Players[0].DPS)

	after := s.Snapshot(time.Date(0, 1, 1, 10, 0, 12, 0, time.UTC))
	assert.False(t, after.InCombat)
	assert.Empty(t, after.Timers)
}

func TestHistorySessionKeepsEffectsInert(t *testing.T) {
	bundle, err := definitions.Parse([]byte(raidDefs))
	require.NoError(t, err)

	s := New(bundle, Config{Live: false}, zap.NewNop())
	ctx := context.Background()
	for _, line := range recordedLines()[:4] {
		s.HandleLine(ctx, line)
	}

	snap := s.Snapshot(time.Date(0, 1, 1, 10, 0, 4, 0, time.UTC))
	assert.Empty(t, snap.Effects)
	// Metrics still accumulate; only display trackers are gated.
	require.Len(t, snap.Metrics, 1)
}

func TestUnparseableLinesAreSkipped(t *testing.T) {
	bundle, err := definitions.Parse([]byte(raidDefs))
	require.NoError(t, err)

	s := New(bundle, Config{Live: true}, zap.NewNop())
	ctx := context.Background()
	s.HandleLine(ctx, "garbage line")
	s.HandleLine(ctx, "[10:00:00.000] still garbage")

	snap := s.Snapshot(time.Now())
	assert.False(t, snap.InCombat)
	assert.Empty(t, snap.Timers)
}
