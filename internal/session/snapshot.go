package session

import (
	"time"

	"github.com/raidwatch/raidwatch/internal/effects"
	"github.com/raidwatch/raidwatch/internal/encounter"
	"github.com/raidwatch/raidwatch/internal/timers"
)

// TimerView is one running timer projected for display.
type TimerView struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	RemainingSecs float64 `json:"remaining_secs"`
	Category      string  `json:"category,omitempty"`
	Color         string  `json:"color,omitempty"`
}

// EffectView is one active effect projected for display.
type EffectView struct {
	DefinitionID string `json:"definition_id"`
	Name         string `json:"name"`
	TargetID     int64  `json:"target_id"`
	TargetName   string `json:"target_name"`
	Stacks       int64  `json:"stacks"`
	Category     string `json:"category,omitempty"`
}

// BossHealthView is one overlay-flagged boss entity's health bar.
type BossHealthView struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

// MetricsView is one player's row on the damage/healing meter.
type MetricsView struct {
	Name         string  `json:"name"`
	DPS          int64   `json:"dps"`
	EffectiveDPS int64   `json:"effective_dps"`
	HPS          int64   `json:"hps"`
	TotalDamage  int64   `json:"total_damage"`
	BossDamage   int64   `json:"boss_damage"`
	DamageTaken  int64   `json:"damage_taken"`
	CritPercent  float64 `json:"crit_percent"`
	Threat       int64   `json:"threat"`
}

// Snapshot is the full display state at one instant.
type Snapshot struct {
	InCombat         bool   `json:"in_combat"`
	Area             string `json:"area,omitempty"`
	Difficulty       string `json:"difficulty,omitempty"`
	Boss             string `json:"boss,omitempty"`
	Phase            string `json:"phase,omitempty"`
	CombatDurationMs int64  `json:"combat_duration_ms"`

	Timers     []TimerView      `json:"timers,omitempty"`
	Effects    []EffectView     `json:"effects,omitempty"`
	BossHealth []BossHealthView `json:"boss_health,omitempty"`
	Metrics    []MetricsView    `json:"metrics,omitempty"`

	Challenges []encounter.ChallengeSnapshot `json:"challenges,omitempty"`
}

// Snapshot projects the session's current display state at now.
func (s *Session) Snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		Area:       s.cache.Area,
		Difficulty: string(s.cache.Difficulty),
	}

	snap.Timers = timerViews(s.timers.ActiveTimers(), now)
	snap.Effects = effectViews(s.effects.ActiveEffects())

	enc := s.cache.Encounter
	if enc == nil {
		return snap
	}

	snap.InCombat = enc.InCombat()
	snap.Boss = enc.BossName()
	snap.Phase = enc.CurrentPhase()
	snap.CombatDurationMs = enc.Duration(now).Milliseconds()

	for _, entry := range enc.BossHealth() {
		snap.BossHealth = append(snap.BossHealth, BossHealthView{
			Name:    entry.Name,
			Percent: entry.Percent,
		})
	}
	for _, m := range enc.CalculateEntityMetrics(now) {
		snap.Metrics = append(snap.Metrics, MetricsView{
			Name:         m.Name,
			DPS:          m.DPS,
			EffectiveDPS: m.EffectiveDPS,
			HPS:          m.HPS,
			TotalDamage:  m.TotalDamage,
			BossDamage:   m.BossDamage,
			DamageTaken:  m.DamageTaken,
			CritPercent:  m.CritPercent,
			Threat:       m.Threat,
		})
	}
	if ch := enc.Challenges(); ch != nil {
		snap.Challenges = ch.Snapshot()
	}
	return snap
}

func timerViews(active []timers.Instance, now time.Time) []TimerView {
	out := make([]TimerView, 0, len(active))
	for _, in := range active {
		out = append(out, TimerView{
			ID:            in.DefinitionID,
			Name:          in.Name,
			RemainingSecs: in.RemainingSecs(now),
			Category:      in.Category,
			Color:         in.Color,
		})
	}
	return out
}

func effectViews(active []effects.Instance) []EffectView {
	out := make([]EffectView, 0, len(active))
	for _, in := range active {
		if in.Removed() {
			continue
		}
		out = append(out, EffectView{
			DefinitionID: in.DefinitionID,
			Name:         in.Name,
			TargetID:     in.TargetID,
			TargetName:   in.TargetName,
			Stacks:       in.Stacks,
			Category:     string(in.Category),
		})
	}
	return out
}
