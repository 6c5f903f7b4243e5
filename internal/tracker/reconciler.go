// Package tracker implements the periodic reconciliation loop that
// detects new project versions and dispatches update notifications.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/good-yellow-bee/modwatch/internal/catalog"
	"github.com/good-yellow-bee/modwatch/internal/metrics"
	"github.com/good-yellow-bee/modwatch/internal/models"
	"github.com/good-yellow-bee/modwatch/internal/storage"
)

// Defaults for the reconciliation loop.
const (
	DefaultInterval   = 180 * time.Second
	DefaultChunkDelay = 500 * time.Millisecond
)

// UpdateNotifier delivers one new-version notification to a set of
// channels. Implemented by notifier.Notifier; mocked in tests.
type UpdateNotifier interface {
	NotifyUpdate(ctx context.Context, project *models.Project, version *catalog.Version, channels []string) error
}

// Config configures the reconciler.
type Config struct {
	Interval   time.Duration // time between passes (default: 180s)
	ChunkSize  int           // ids per batched catalog fetch (default: 10)
	ChunkDelay time.Duration // delay between chunk fetches (default: 500ms)
	Verbose    bool
}

// Reconciler periodically diffs stored watermarks against the catalog and
// notifies subscribed channels about new versions.
type Reconciler struct {
	projects storage.ProjectRepository
	subs     storage.SubscriptionRepository
	source   catalog.Source
	notifier UpdateNotifier
	config   Config

	chunkPacer *rate.Limiter

	// mu enforces at most one pass at a time; an overlapping tick is
	// skipped, not queued.
	mu sync.Mutex
}

// New creates a reconciler over the given store, catalog source and
// notifier.
func New(store storage.Storage, source catalog.Source, notifier UpdateNotifier, config Config) *Reconciler {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.ChunkSize <= 0 || config.ChunkSize > catalog.BatchChunkSize {
		config.ChunkSize = catalog.BatchChunkSize
	}
	if config.ChunkDelay <= 0 {
		config.ChunkDelay = DefaultChunkDelay
	}

	return &Reconciler{
		projects:   store.Projects(),
		subs:       store.Subscriptions(),
		source:     source,
		notifier:   notifier,
		config:     config,
		chunkPacer: rate.NewLimiter(rate.Every(config.ChunkDelay), 1),
	}
}

// Run drives the reconciliation loop until ctx is cancelled. One pass runs
// immediately, then one per interval.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	log.Printf("[tracker] update loop started, interval=%v chunk_size=%d", r.config.Interval, r.config.ChunkSize)

	for {
		if err := r.RunPass(ctx); err != nil {
			if ctx.Err() != nil {
				log.Printf("[tracker] update loop stopped")
				return nil
			}
			log.Printf("[tracker] pass failed: %v", err)
		}

		select {
		case <-ctx.Done():
			log.Printf("[tracker] update loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunPass executes one full reconciliation pass. If a pass is already in
// flight the call is a no-op. Per-project failures are logged and skipped;
// only a snapshot failure or cancellation aborts the pass.
func (r *Reconciler) RunPass(ctx context.Context) error {
	if !r.mu.TryLock() {
		metrics.PassesSkipped.Inc()
		log.Printf("[tracker] previous pass still running, skipping tick")
		return nil
	}
	defer r.mu.Unlock()

	start := time.Now()
	defer func() {
		metrics.PassDuration.Observe(time.Since(start).Seconds())
	}()

	stored, err := r.projects.List(ctx)
	if err != nil {
		return fmt.Errorf("snapshot projects: %w", err)
	}
	if len(stored) == 0 {
		metrics.PassesTotal.Inc()
		return nil
	}

	byID := make(map[string]*models.Project, len(stored))
	ids := make([]string, 0, len(stored))
	for _, p := range stored {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	for _, chunk := range chunkIDs(ids, r.config.ChunkSize) {
		// Throttle between chunk fetches to respect upstream rate limits.
		if err := r.chunkPacer.Wait(ctx); err != nil {
			return err
		}

		fetched, err := r.source.ProjectsBatch(ctx, chunk)
		if err != nil {
			metrics.FetchErrors.WithLabelValues(errorKind(err)).Inc()
			log.Printf("[tracker] batch fetch failed for chunk of %d: %v", len(chunk), err)
			continue
		}

		seen := make(map[string]bool, len(fetched))
		for i := range fetched {
			remote := &fetched[i]
			seen[remote.ID] = true
			metrics.ProjectsChecked.Inc()

			project, ok := byID[remote.ID]
			if !ok {
				continue
			}
			if !remote.Updated.After(project.LastUpdate) {
				continue
			}

			if err := r.processChanged(ctx, project, remote); err != nil {
				if ctx.Err() != nil {
					return err
				}
				log.Printf("[tracker] project %s: %v", project.ID, err)
			}
		}

		// Ids the batch endpoint no longer returns were deleted upstream;
		// their subscriptions are orphaned.
		for _, id := range chunk {
			if !seen[id] {
				r.prune(ctx, id, "gone from catalog")
			}
		}
	}

	metrics.PassesTotal.Inc()
	r.logf("pass finished in %v over %d projects", time.Since(start).Round(time.Millisecond), len(stored))
	return nil
}

// processChanged handles one project whose upstream updated timestamp is
// newer than the stored one: notify subscribers of versions above the
// watermark, then advance the watermark.
func (r *Reconciler) processChanged(ctx context.Context, project *models.Project, remote *catalog.Project) error {
	metrics.ProjectsChanged.Inc()

	channels, err := r.subs.ChannelsFor(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("lookup subscribers: %w", err)
	}
	if len(channels) == 0 {
		// No one is listening; garbage-collect instead of notifying.
		r.prune(ctx, project.ID, "no subscribers")
		return nil
	}

	versions, err := r.source.Versions(ctx, project.ID)
	if err != nil {
		if catalog.IsNotFound(err) {
			r.prune(ctx, project.ID, "versions not found")
			return nil
		}
		metrics.FetchErrors.WithLabelValues(errorKind(err)).Inc()
		return fmt.Errorf("fetch versions: %w", err)
	}
	if len(versions) == 0 {
		r.logf("project %s has no versions, nothing to notify", project.ID)
		return nil
	}

	for _, version := range versionsSince(versions, project.LatestVersion) {
		if err := r.notifier.NotifyUpdate(ctx, project, &version, channels); err != nil {
			return fmt.Errorf("notify version %s: %w", version.ID, err)
		}
		r.logf("notified %d channels about %s %s", len(channels), project.ID, version.ID)
	}

	project.Title = remote.Title
	project.LatestVersion = versions[0].ID
	project.LastUpdate = remote.Updated
	if err := r.projects.UpdateVersion(ctx, project); err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}
	return nil
}

// prune removes a dead project and any subscriptions still pointing at it.
func (r *Reconciler) prune(ctx context.Context, projectID, reason string) {
	if err := r.subs.DeleteByProject(ctx, projectID); err != nil {
		log.Printf("[tracker] prune subscriptions for %s: %v", projectID, err)
	}
	if err := r.projects.Delete(ctx, projectID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Printf("[tracker] prune project %s: %v", projectID, err)
		return
	}
	metrics.ProjectsPruned.Inc()
	log.Printf("[tracker] pruned project %s (%s)", projectID, reason)
}

// versionsSince returns the versions published after the watermark,
// newest-first, walking the list until the watermark is found. A watermark
// that no longer appears in the list (stale cursor, or never set) yields
// only the newest version so subscribers are not flooded with history.
func versionsSince(versions []catalog.Version, watermark string) []catalog.Version {
	var fresh []catalog.Version
	for _, v := range versions {
		if v.ID == watermark {
			return fresh
		}
		fresh = append(fresh, v)
	}
	if len(versions) > 0 {
		return versions[:1]
	}
	return nil
}

// chunkIDs splits ids into chunks of at most size.
func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

// errorKind extracts the fetch error kind for metrics labels.
func errorKind(err error) string {
	var fe *catalog.FetchError
	if errors.As(err, &fe) {
		return string(fe.Kind)
	}
	return "unknown"
}

func (r *Reconciler) logf(format string, args ...any) {
	if r.config.Verbose {
		log.Printf("[tracker] "+format, args...)
	}
}
