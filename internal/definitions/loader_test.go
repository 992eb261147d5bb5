package definitions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const bossDoc = `
bosses:
  - id: nefra
    name: "Nefra, Who Bars the Way"
    area: "Dread Fortress"
    difficulty: VETERAN
    npc_ids: [3273940924825600]
    overlay_ids: [3273940924825600]
    phases:
      - id: opening
        start:
          kind: COMBAT_START
      - id: burn
        start:
          kind: HP_THRESHOLD
          percent: 30
    counters:
      - name: casts
        increment:
          kind: ABILITY_CAST
          abilities: {ids: [3302830614249472]}

effects:
  - id: corruption
    name: Corruption
    apply: {ids: [3302882153857024]}
    duration_secs: 18
    category: DEBUFF

timers:
  - id: double-attack
    name: Double Attack
    trigger:
      kind: ABILITY_CAST
      abilities: {ids: [3302830614249472]}
    duration_secs: 11.5
    can_be_refreshed: true
    alert_at_secs: 3
    triggers_timer: cleave
  - id: cleave
    name: Cleave
    trigger:
      kind: TIMER_EXPIRES
      timer_id: double-attack
    duration_secs: 6
`

func TestParseFullDocument(t *testing.T) {
	b, err := Parse([]byte(bossDoc))
	require.NoError(t, err)

	require.Len(t, b.Bosses, 1)
	assert.Equal(t, "nefra", b.Bosses[0].ID)
	assert.Len(t, b.Bosses[0].Phases, 2)
	assert.Len(t, b.Bosses[0].Counters, 1)

	require.Len(t, b.Effects, 1)
	assert.Equal(t, float64(18), b.Effects[0].DurationSecs)

	require.Len(t, b.Timers, 2)
	assert.Equal(t, "cleave", b.Timers[0].TriggersTimer)
	assert.True(t, b.Timers[0].CanBeRefreshed)
}

func TestLoadMergesDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nefra.yaml"), []byte(bossDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.yml"), []byte(`
timers:
  - id: enrage
    name: Enrage
    trigger: {kind: COMBAT_START}
    duration_secs: 300
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	b, err := Load(dir, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, b.Bosses, 1)
	assert.Len(t, b.Timers, 3)
}

func TestParseRejectsBadDefinitions(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown trigger kind",
			doc: `
timers:
  - id: a
    name: A
    trigger: {kind: WHENEVER}
    duration_secs: 5
`,
			want: "unknown trigger kind",
		},
		{
			name: "empty ability selector",
			doc: `
timers:
  - id: a
    name: A
    trigger: {kind: ABILITY_CAST}
    duration_secs: 5
`,
			want: "empty ability selector",
		},
		{
			name: "self chaining",
			doc: `
timers:
  - id: a
    name: A
    trigger: {kind: COMBAT_START}
    duration_secs: 5
    triggers_timer: a
`,
			want: "chains to itself",
		},
		{
			name: "chain to unknown timer",
			doc: `
timers:
  - id: a
    name: A
    trigger: {kind: COMBAT_START}
    duration_secs: 5
    triggers_timer: ghost
`,
			want: "unknown timer",
		},
		{
			name: "non-positive duration",
			doc: `
timers:
  - id: a
    name: A
    trigger: {kind: COMBAT_START}
    duration_secs: 0
`,
			want: "duration must be positive",
		},
		{
			name: "alert outside duration",
			doc: `
timers:
  - id: a
    name: A
    trigger: {kind: COMBAT_START}
    duration_secs: 5
    alert_at_secs: 5
`,
			want: "alert threshold outside duration",
		},
		{
			name: "duplicate timer id",
			doc: `
timers:
  - id: a
    name: A
    trigger: {kind: COMBAT_START}
    duration_secs: 5
  - id: a
    name: A again
    trigger: {kind: COMBAT_START}
    duration_secs: 5
`,
			want: "duplicate id",
		},
		{
			name: "effect without apply selector",
			doc: `
effects:
  - id: e
    name: E
`,
			want: "empty apply selector",
		},
		{
			name: "boss without npcs",
			doc: `
bosses:
  - id: b
    name: B
`,
			want: "no npc ids",
		},
		{
			name: "childless combinator",
			doc: `
timers:
  - id: a
    name: A
    trigger: {kind: ANY_OF}
    duration_secs: 5
`,
			want: "no children",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
