package replay

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raidwatch/raidwatch/internal/definitions"
)

const replayDefs = `
bosses:
  - id: rampaging-husk
    name: Rampaging Husk
    area: The Dread Palace
    npc_ids: [4000]
    overlay_ids: [4000]
`

const recordedLog = `
[10:00:00.000] [@Vix#100] [] [] [Event {836045448945472}: AreaEntered {836045448953664}] (The Dread Palace)
[10:00:01.000] [@Vix#100] [] [] [Event {836045448945472}: EnterCombat {836045448945489}]
[10:00:02.000] [@Vix#100|(4.5,1.2)|(300000/300000)] [Rampaging Husk {4000}:556|(1.0,1.0)|(900000/1000000)] [Force Leap {812}] [ApplyDamage {836045448945501}: kinetic] (1000 kinetic {1})
[10:00:06.000] [@Vix#100] [] [] [Event {836045448945472}: ExitCombat {836045448945490}]
[10:01:00.000] [@Vix#100] [] [] [Event {836045448945472}: EnterCombat {836045448945489}]
[10:01:04.000] [@Vix#100|(4.5,1.2)|(300000/300000)] [Rampaging Husk {4000}:557|(1.0,1.0)|(500000/1000000)] [Force Leap {812}] [ApplyDamage {836045448945501}: kinetic] (2000 kinetic {1})
[10:01:08.000] [@Vix#100] [] [] [Event {836045448945472}: ExitCombat {836045448945490}]
`

func TestReplayCountsEncounters(t *testing.T) {
	bundle, err := definitions.Parse([]byte(replayDefs))
	require.NoError(t, err)

	p := NewPlayer(bundle, zap.NewNop())
	res, err := p.Run(context.Background(), strings.NewReader(recordedLog))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Encounters)
	assert.False(t, res.Final.InCombat)
	assert.Equal(t, "Rampaging Husk", res.Final.Boss)
	require.Len(t, res.Final.Metrics, 1)
	// Second fight: 2000 damage over 8 seconds.
	assert.EqualValues(t, 250, res.Final.Metrics[0].DPS)
}

func TestReplayIsDeterministic(t *testing.T) {
	bundle, err := definitions.Parse([]byte(replayDefs))
	require.NoError(t, err)

	p := NewPlayer(bundle, zap.NewNop())
	first, err := p.Run(context.Background(), strings.NewReader(recordedLog))
	require.NoError(t, err)
	second, err := p.Run(context.Background(), strings.NewReader(recordedLog))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestReplayStopsOnCancelledContext(t *testing.T) {
	bundle, err := definitions.Parse([]byte(replayDefs))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPlayer(bundle, zap.NewNop())
	_, err = p.Run(ctx, strings.NewReader(recordedLog))
	assert.ErrorIs(t, err, context.Canceled)
}
