// Package logtail follows the game's combat log directory: it picks the
// newest log file, streams its lines, and rolls over when the game starts
// a new file.
package logtail

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Line is one combat log line with its origin file.
type Line struct {
	Path string
	Text string
}

// Tailer streams combat log lines from a directory.
type Tailer struct {
	dir          string
	pollInterval time.Duration
	logger       *zap.Logger

	file   *os.File
	reader *bufio.Reader
	path   string
}

// New creates a tailer over the game's combat log directory.
func New(dir string, pollInterval time.Duration, logger *zap.Logger) *Tailer {
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tailer{dir: dir, pollInterval: pollInterval, logger: logger}
}

// Run streams lines to out until ctx is cancelled. File writes are picked
// up via fsnotify; a poll ticker covers editors and filesystems that do
// not emit events. The channel is closed on return.
func (t *Tailer) Run(ctx context.Context, out chan<- Line) error {
	defer close(out)
	defer t.closeFile()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(t.dir); err != nil {
		return fmt.Errorf("watch %s: %w", t.dir, err)
	}

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	// Initial catch-up on whatever file is already current.
	if err := t.drain(ctx, out); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := t.drain(ctx, out); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn("watcher error", zap.Error(err))
		case <-ticker.C:
			if err := t.drain(ctx, out); err != nil {
				return err
			}
		}
	}
}

// drain switches to the newest log file if one appeared, then reads every
// complete line currently available.
func (t *Tailer) drain(ctx context.Context, out chan<- Line) error {
	newest, err := newestLog(t.dir)
	if err != nil {
		return err
	}
	if newest == "" {
		return nil
	}
	if newest != t.path {
		if err := t.open(newest); err != nil {
			return err
		}
	}

	for {
		text, err := t.reader.ReadString('\n')
		if text != "" && strings.HasSuffix(text, "\n") {
			select {
			case out <- Line{Path: t.path, Text: strings.TrimRight(text, "\r\n")}:
			case <-ctx.Done():
				return ctx.Err()
			}
		} else if text != "" {
			// Partial line: the game is mid-write. Rewind so the next
			// drain re-reads it whole.
			if _, seekErr := t.file.Seek(-int64(len(text)), io.SeekCurrent); seekErr != nil {
				return fmt.Errorf("rewind partial line: %w", seekErr)
			}
			t.reader.Reset(t.file)
			return nil
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read %s: %w", t.path, err)
		}
	}
}

func (t *Tailer) open(path string) error {
	t.closeFile()
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	t.file = f
	t.reader = bufio.NewReader(f)
	t.path = path
	t.logger.Info("following combat log", zap.String("path", path))
	return nil
}

func (t *Tailer) closeFile() {
	if t.file != nil {
		t.file.Close()
		t.file = nil
		t.reader = nil
	}
}

// newestLog returns the most recently modified .txt file in dir, or "" when
// the directory holds none.
func newestLog(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read log dir: %w", err)
	}

	var newest string
	var newestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".txt") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(dir, entry.Name())
			newestMod = info.ModTime()
		}
	}
	return newest, nil
}
