// Package gc removes orphaned content from a catalog's content store.
//
// Content is orphaned when no entity in the metadata store references it.
// This happens when:
//   - the process dies between creating content and recording its entity
//   - an entity is deleted but deleting its content fails
//   - a store was restored from a backup taken at a different time
//
// The collector needs a content store that can enumerate its content
// (content.Lister). The filesystem, memory and s3 stores all can.
package gc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/catalogfs/internal/logger"
	"github.com/marmos91/catalogfs/pkg/content"
	"github.com/marmos91/catalogfs/pkg/metadata"
)

// dryRunSample is how many orphans a dry run logs by name.
const dryRunSample = 10

// Collector finds and deletes orphaned content, either on demand (RunNow)
// or periodically in the background (Start/Stop).
//
// Thread Safety: Safe for concurrent use. Runs never overlap.
type Collector struct {
	meta   metadata.Store
	store  content.Store
	lister content.Lister
	config Config

	runMu    sync.Mutex
	mu       sync.Mutex
	started  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Interval is how often the background worker runs (default: 24h)
	Interval time.Duration

	// DryRun logs what would be deleted without deleting it
	DryRun bool
}

// NewCollector creates a collector over the given stores. It fails when
// the content store cannot list its content.
func NewCollector(meta metadata.Store, store content.Store, config Config) (*Collector, error) {
	lister, ok := store.(content.Lister)
	if !ok {
		return nil, fmt.Errorf("content store %T cannot list its content", store)
	}

	if config.Interval <= 0 {
		config.Interval = 24 * time.Hour
	}

	return &Collector{
		meta:   meta,
		store:  store,
		lister: lister,
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start launches the background worker. Calling it again is a no-op.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	logger.Info("Starting garbage collector: interval=%s dry_run=%v", c.config.Interval, c.config.DryRun)
	go c.worker()
}

// Stop signals the worker to exit and waits for it, or for ctx to expire.
// A collector that was never started stops immediately.
func (c *Collector) Stop(ctx context.Context) error {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()

	c.stopOnce.Do(func() { close(c.stopCh) })
	if !started {
		return nil
	}

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow performs one collection and blocks until it completes.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running garbage collection (manual trigger)")
	return c.collect(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

// collect lists content first and scans metadata second. Entities are
// recorded before their content is written, so anything created while
// the run is in progress is either missing from the listing or already
// visible to the scan.
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	stats := &Stats{StartTime: time.Now()}
	defer func() { stats.EndTime = time.Now() }()

	existing, err := c.lister.ListContent(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list content: %w", err)
	}
	stats.ExistingCount = uint64(len(existing))
	logger.Debug("GC: found %d content items", stats.ExistingCount)

	referenced := make(map[content.ContentID]struct{})
	err = c.meta.Scan(ctx, "/", func(e *metadata.Entity) error {
		if e.ContentID != "" {
			referenced[content.ContentID(e.ContentID)] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("failed to scan metadata: %w", err)
	}
	stats.ReferencedCount = uint64(len(referenced))
	logger.Debug("GC: found %d referenced content items", stats.ReferencedCount)

	var orphaned []content.ContentID
	for _, id := range existing {
		if _, ok := referenced[id]; !ok {
			orphaned = append(orphaned, id)
		}
	}
	stats.OrphanedCount = uint64(len(orphaned))

	if len(orphaned) == 0 {
		return stats, nil
	}

	if c.config.DryRun {
		logger.Info("GC: dry run, would delete %d items", len(orphaned))
		for i, id := range orphaned {
			if i == dryRunSample {
				logger.Info("  ... and %d more", len(orphaned)-dryRunSample)
				break
			}
			logger.Info("  - %s", id)
		}
		return stats, nil
	}

	for _, id := range orphaned {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := c.store.Delete(ctx, id); err != nil {
			logger.Debug("GC: failed to delete %s: %v", id, err)
			stats.FailedCount++
			continue
		}
		stats.DeletedCount++
	}

	logger.Info("GC: deleted %d items, %d failed", stats.DeletedCount, stats.FailedCount)
	return stats, nil
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime       time.Time // When collection started
	EndTime         time.Time // When collection ended
	ReferencedCount uint64    // ContentIDs referenced by metadata
	ExistingCount   uint64    // ContentIDs in the content store
	OrphanedCount   uint64    // ContentIDs present but unreferenced
	DeletedCount    uint64    // Orphans deleted
	FailedCount     uint64    // Orphans that failed to delete
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("referenced=%d existing=%d orphaned=%d deleted=%d failed=%d duration=%s",
		s.ReferencedCount, s.ExistingCount, s.OrphanedCount,
		s.DeletedCount, s.FailedCount, s.Duration())
}
