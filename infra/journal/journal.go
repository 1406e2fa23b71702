// Package journal keeps a rotating JSONL record of terminal job events.
package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kilianp07/recsizing/config"
	"github.com/kilianp07/recsizing/core/events"
	"github.com/kilianp07/recsizing/core/model"
	"github.com/kilianp07/recsizing/infra/logger"
	"github.com/kilianp07/recsizing/internal/eventbus"
)

// Query filters journal entries. Zero fields match everything.
type Query struct {
	Start   time.Time
	End     time.Time
	OrderID string
	State   model.State
}

func (q Query) match(ev events.JobEvent) bool {
	if !q.Start.IsZero() && ev.FinishedAt.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && ev.FinishedAt.After(q.End) {
		return false
	}
	if q.OrderID != "" && ev.OrderID != q.OrderID {
		return false
	}
	return q.State == "" || ev.State == q.State
}

// Journal appends events to a size-rotated file.
type Journal struct {
	mu   sync.Mutex
	out  *lumberjack.Logger
	path string
}

// Open creates the journal directory and returns a journal writing to
// cfg.Path.
func Open(cfg config.JournalConfig) (*Journal, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Journal{
		out: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   false,
		},
		path: cfg.Path,
	}, nil
}

// Append writes one event and rotates the file when it grows too large.
func (j *Journal) Append(_ context.Context, ev events.JobEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return json.NewEncoder(j.out).Encode(ev)
}

// Query reads the current and rotated files, oldest event first.
// Unreadable lines are skipped.
func (j *Journal) Query(_ context.Context, q Query) ([]events.JobEvent, error) {
	files, err := filepath.Glob(j.pattern())
	if err != nil {
		return nil, err
	}
	var out []events.JobEvent
	for _, f := range files {
		file, err := os.Open(f)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			var ev events.JobEvent
			if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
				continue
			}
			if q.match(ev) {
				out = append(out, ev)
			}
		}
		_ = file.Close()
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].FinishedAt.Before(out[b].FinishedAt) })
	return out, nil
}

// pattern matches the live file and the backups lumberjack names
// <name>-<timestamp><ext>.
func (j *Journal) pattern() string {
	ext := filepath.Ext(j.path)
	return j.path[:len(j.path)-len(ext)] + "*" + ext
}

// Start appends the events of bus until ctx is canceled or the bus is
// closed. The returned channel is closed once it has stopped.
func (j *Journal) Start(ctx context.Context, bus *eventbus.TypedBus[events.JobEvent], log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := j.Append(ctx, ev); err != nil {
					log.Warnf("journal %s: %v", ev.OrderID, err)
				}
			}
		}
	}()
	return done
}

// Close closes the current file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.out.Close()
}
