package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/raidwatch/raidwatch/internal/encounter"
)

// EncounterRecord is one finished encounter ready for persistence.
type EncounterRecord struct {
	Area       string
	Difficulty string
	BossID     string
	BossName   string
	StartedAt  time.Time
	EndedAt    time.Time
	DurationMs int64
	Players    []encounter.EntityMetrics
}

// Recorder persists finished encounters.
type Recorder interface {
	RecordEncounter(ctx context.Context, rec *EncounterRecord) error
}

// EncounterRepository writes encounters and their per-player metrics.
type EncounterRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewEncounterRepository creates a pgx-backed recorder.
func NewEncounterRepository(db *DB, logger *zap.Logger) *EncounterRepository {
	return &EncounterRepository{db: db, logger: logger}
}

// RecordEncounter inserts the encounter row and bulk-copies the player
// metric rows in one transaction.
func (r *EncounterRepository) RecordEncounter(ctx context.Context, rec *EncounterRecord) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var encounterID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO encounters (area, difficulty, boss_id, boss_name, started_at, ended_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		rec.Area, rec.Difficulty, rec.BossID, rec.BossName,
		rec.StartedAt, rec.EndedAt, rec.DurationMs,
	).Scan(&encounterID)
	if err != nil {
		return fmt.Errorf("insert encounter: %w", err)
	}

	rows := make([][]any, 0, len(rec.Players))
	for _, p := range rec.Players {
		rows = append(rows, []any{
			encounterID, p.EntityID, p.Name,
			p.DPS, p.EffectiveDPS, p.HPS, p.EffectiveHPS,
			p.TotalDamage, p.BossDamage, p.TotalHeal,
			p.DamageTaken, p.ShieldGiven, p.CritPercent, p.Threat,
		})
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"encounter_players"},
		[]string{
			"encounter_id", "entity_id", "name",
			"dps", "effective_dps", "hps", "effective_hps",
			"total_damage", "boss_damage", "total_heal",
			"damage_taken", "shield_given", "crit_percent", "threat",
		},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy player metrics: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.Debug("encounter recorded",
		zap.Int64("encounter_id", encounterID),
		zap.String("boss", rec.BossName),
		zap.Int("players", len(rec.Players)),
	)
	return nil
}

// NoopRecorder discards encounters. Used when the database is disabled.
type NoopRecorder struct{}

func (NoopRecorder) RecordEncounter(context.Context, *EncounterRecord) error { return nil }
