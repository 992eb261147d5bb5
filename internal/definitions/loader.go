// Package definitions loads boss, effect and timer definitions from YAML
// files and validates them before any log line is processed. A malformed
// definition is rejected at load time so the evaluation paths never see one.
package definitions

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/raidwatch/raidwatch/internal/effects"
	"github.com/raidwatch/raidwatch/internal/encounter"
	"github.com/raidwatch/raidwatch/internal/timers"
)

// Bundle is everything loaded from a definition directory.
type Bundle struct {
	Bosses  []encounter.BossDefinition
	Effects []effects.Definition
	Timers  []timers.Definition
}

// file is the shape of a single YAML definition file. Any of the sections
// may be present; authors usually keep one boss per file with its timers
// and effects alongside.
type file struct {
	Bosses  []encounter.BossDefinition `yaml:"bosses"`
	Effects []effects.Definition       `yaml:"effects"`
	Timers  []timers.Definition        `yaml:"timers"`
}

// Load reads every .yaml/.yml file under dir (recursively), merges the
// sections and validates the result.
func Load(dir string, logger *zap.Logger) (*Bundle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan definition dir: %w", err)
	}
	sort.Strings(paths)

	bundle := &Bundle{}
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var f file
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		bundle.Bosses = append(bundle.Bosses, f.Bosses...)
		bundle.Effects = append(bundle.Effects, f.Effects...)
		bundle.Timers = append(bundle.Timers, f.Timers...)
	}

	if err := bundle.Validate(); err != nil {
		return nil, err
	}

	logger.Info("definitions loaded",
		zap.Int("files", len(paths)),
		zap.Int("bosses", len(bundle.Bosses)),
		zap.Int("effects", len(bundle.Effects)),
		zap.Int("timers", len(bundle.Timers)),
	)
	return bundle, nil
}

// Parse loads a bundle from in-memory YAML. Used by tests and the replay
// harness.
func Parse(raw []byte) (*Bundle, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse definitions: %w", err)
	}
	bundle := &Bundle{Bosses: f.Bosses, Effects: f.Effects, Timers: f.Timers}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	return bundle, nil
}

// Validate checks every definition in the bundle. The first problem found
// is returned with enough context to locate the offending record.
func (b *Bundle) Validate() error {
	if err := b.validateBosses(); err != nil {
		return err
	}
	if err := b.validateEffects(); err != nil {
		return err
	}
	return b.validateTimers()
}

func (b *Bundle) validateBosses() error {
	seen := make(map[string]bool, len(b.Bosses))
	for i := range b.Bosses {
		boss := &b.Bosses[i]
		if boss.ID == "" {
			return fmt.Errorf("boss[%d]: missing id", i)
		}
		if seen[boss.ID] {
			return fmt.Errorf("boss %q: duplicate id", boss.ID)
		}
		seen[boss.ID] = true
		if len(boss.NpcIDs) == 0 {
			return fmt.Errorf("boss %q: no npc ids", boss.ID)
		}
		for _, phase := range boss.Phases {
			if phase.ID == "" {
				return fmt.Errorf("boss %q: phase with empty id", boss.ID)
			}
			if err := phase.Start.Validate(); err != nil {
				return fmt.Errorf("boss %q phase %q start: %w", boss.ID, phase.ID, err)
			}
			if phase.End != nil {
				if err := phase.End.Validate(); err != nil {
					return fmt.Errorf("boss %q phase %q end: %w", boss.ID, phase.ID, err)
				}
			}
		}
		for _, ctr := range boss.Counters {
			if ctr.Name == "" {
				return fmt.Errorf("boss %q: counter with empty name", boss.ID)
			}
			if err := ctr.Increment.Validate(); err != nil {
				return fmt.Errorf("boss %q counter %q increment: %w", boss.ID, ctr.Name, err)
			}
			if ctr.Decrement != nil {
				if err := ctr.Decrement.Validate(); err != nil {
					return fmt.Errorf("boss %q counter %q decrement: %w", boss.ID, ctr.Name, err)
				}
			}
			if ctr.Reset != nil {
				if err := ctr.Reset.Validate(); err != nil {
					return fmt.Errorf("boss %q counter %q reset: %w", boss.ID, ctr.Name, err)
				}
			}
		}
		for _, ch := range boss.Challenges {
			if ch.ID == "" {
				return fmt.Errorf("boss %q: challenge with empty id", boss.ID)
			}
			if ch.Mode != encounter.ChallengeDamage && ch.Mode != encounter.ChallengeHealing {
				return fmt.Errorf("boss %q challenge %q: unknown mode %q", boss.ID, ch.ID, ch.Mode)
			}
		}
	}
	return nil
}

func (b *Bundle) validateEffects() error {
	seen := make(map[string]bool, len(b.Effects))
	for i := range b.Effects {
		def := &b.Effects[i]
		if def.ID == "" {
			return fmt.Errorf("effect[%d]: missing id", i)
		}
		if seen[def.ID] {
			return fmt.Errorf("effect %q: duplicate id", def.ID)
		}
		seen[def.ID] = true
		if def.Apply.IsEmpty() {
			return fmt.Errorf("effect %q: empty apply selector", def.ID)
		}
		if def.DurationSecs < 0 {
			return fmt.Errorf("effect %q: negative duration", def.ID)
		}
		if def.MaxStacks < 0 {
			return fmt.Errorf("effect %q: negative max stacks", def.ID)
		}
	}
	return nil
}

func (b *Bundle) validateTimers() error {
	seen := make(map[string]bool, len(b.Timers))
	for i := range b.Timers {
		def := &b.Timers[i]
		if def.ID == "" {
			return fmt.Errorf("timer[%d]: missing id", i)
		}
		if seen[def.ID] {
			return fmt.Errorf("timer %q: duplicate id", def.ID)
		}
		seen[def.ID] = true
	}

	for i := range b.Timers {
		def := &b.Timers[i]
		if err := def.Trigger.Validate(); err != nil {
			return fmt.Errorf("timer %q trigger: %w", def.ID, err)
		}
		if def.CancelTrigger != nil {
			if err := def.CancelTrigger.Validate(); err != nil {
				return fmt.Errorf("timer %q cancel trigger: %w", def.ID, err)
			}
		}
		if def.DurationSecs <= 0 {
			return fmt.Errorf("timer %q: duration must be positive", def.ID)
		}
		if def.Repeats < 0 {
			return fmt.Errorf("timer %q: negative repeats", def.ID)
		}
		if def.AlertAtSecs < 0 || def.AlertAtSecs >= def.DurationSecs {
			return fmt.Errorf("timer %q: alert threshold outside duration", def.ID)
		}
		if def.TriggersTimer != "" {
			if def.TriggersTimer == def.ID {
				return fmt.Errorf("timer %q: chains to itself", def.ID)
			}
			if !seen[def.TriggersTimer] {
				return fmt.Errorf("timer %q: chains to unknown timer %q", def.ID, def.TriggersTimer)
			}
		}
	}
	return nil
}
