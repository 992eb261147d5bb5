// Package replay runs a recorded combat log through the pipeline with a
// synthetic clock derived from line timestamps. Replaying the same file
// against the same definitions yields identical state at every line.
package replay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/raidwatch/raidwatch/internal/definitions"
	"github.com/raidwatch/raidwatch/internal/session"
	"github.com/raidwatch/raidwatch/internal/signals"
)

// Result summarizes one replayed log.
type Result struct {
	Lines      int
	Encounters int
	Final      session.Snapshot
}

// Player replays logs through history sessions.
type Player struct {
	bundle *definitions.Bundle
	logger *zap.Logger
}

// NewPlayer creates a replay player over the loaded definitions.
func NewPlayer(bundle *definitions.Bundle, logger *zap.Logger) *Player {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Player{bundle: bundle, logger: logger}
}

// Run replays a combat log from r. Time advances only through line
// timestamps; no wall clock is consulted.
func (p *Player) Run(ctx context.Context, r io.Reader) (*Result, error) {
	s := session.New(p.bundle, session.Config{Live: false}, p.logger)

	encounters := 0
	s.Bus().SubscribeTyped(signals.CombatEnded, func(signals.Signal) { encounters++ })

	res := &Result{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		s.HandleLine(ctx, scanner.Text())
		s.Tick(s.LastTimestamp())
		res.Lines++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	res.Encounters = encounters
	res.Final = s.Snapshot(s.LastTimestamp())
	return res, nil
}

// RunFile replays the combat log at path.
func (p *Player) RunFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	p.logger.Info("replaying combat log", zap.String("path", path))
	return p.Run(ctx, f)
}
