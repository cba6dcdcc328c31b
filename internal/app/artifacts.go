package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const cleanupWorkers = 4

// ArtifactManager removes staged upload files, either immediately or after a
// delay. Delayed jobs are keyed by owner (the quote id) so they can be
// cancelled when the quote goes away first.
type ArtifactManager struct {
	logger  *slog.Logger
	metrics *Metrics

	mu     sync.Mutex
	jobs   map[string]*time.Timer
	closed bool
	wg     sync.WaitGroup
}

// NewArtifactManager creates an artifact manager.
func NewArtifactManager(logger *slog.Logger, metrics *Metrics) *ArtifactManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &ArtifactManager{
		logger:  logger.With(slog.String("component", "artifacts")),
		metrics: metrics,
		jobs:    make(map[string]*time.Timer),
	}
}

// Schedule removes paths after delay. Scheduling again for the same owner
// replaces the pending job.
func (m *ArtifactManager) Schedule(owner string, paths []string, delay time.Duration) {
	if len(paths) == 0 {
		return
	}

	paths = append([]string(nil), paths...)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	if prev, ok := m.jobs[owner]; ok && prev.Stop() {
		m.wg.Done()
	}

	m.wg.Add(1)

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		defer m.wg.Done()

		m.mu.Lock()
		if m.jobs[owner] == timer {
			delete(m.jobs, owner)
		}
		m.mu.Unlock()

		if err := m.CleanupNow(context.Background(), paths...); err != nil {
			m.logger.Warn("scheduled cleanup incomplete",
				slog.String("owner", owner),
				slog.Any("error", err),
			)
		}
	})

	m.jobs[owner] = timer

	m.logger.Debug("cleanup scheduled",
		slog.String("owner", owner),
		slog.Int("files", len(paths)),
		slog.Duration("delay", delay),
	)
}

// Cancel stops the pending job for owner. It reports whether a job was
// stopped before it ran; an unknown owner is a no-op.
func (m *ArtifactManager) Cancel(owner string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	timer, ok := m.jobs[owner]
	if !ok {
		return false
	}

	delete(m.jobs, owner)

	if timer.Stop() {
		m.wg.Done()
		return true
	}

	return false
}

// Pending returns the number of scheduled jobs that have not fired.
func (m *ArtifactManager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.jobs)
}

// CleanupNow removes paths immediately. Missing files are not errors.
func (m *ArtifactManager) CleanupNow(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}

	return FanOut(ctx, min(cleanupWorkers, len(paths)), paths, func(_ context.Context, path string) error {
		removed, err := removeIfExists(path)
		if err != nil {
			return err
		}

		if removed && m.metrics != nil {
			m.metrics.TempFilesCleaned.Inc()
		}

		return nil
	})
}

// Shutdown stops every pending job and waits for running ones to finish.
// Files of cancelled jobs stay on disk for the next SweepStale.
func (m *ArtifactManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true

	for owner, timer := range m.jobs {
		if timer.Stop() {
			m.wg.Done()
		}

		delete(m.jobs, owner)
	}
	m.mu.Unlock()

	done := make(chan struct{})

	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for cleanup jobs: %w", ctx.Err())
	}
}

// SweepStale removes regular files directly under dir whose modification
// time is older than olderThan. It returns the number of files removed. A
// missing dir is not an error.
func (m *ArtifactManager) SweepStale(ctx context.Context, dir string, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", dir, err)
	}

	cutoff := time.Now().Add(-olderThan)

	var stale []string

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			stale = append(stale, filepath.Join(dir, e.Name()))
		}
	}

	if err := m.CleanupNow(ctx, stale...); err != nil {
		return 0, err
	}

	if len(stale) > 0 {
		m.logger.InfoContext(ctx, "removed stale uploads", slog.Int("files", len(stale)), slog.String("dir", dir))
	}

	return len(stale), nil
}

func removeIfExists(path string) (bool, error) {
	err := os.Remove(path)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("removing %s: %w", path, err)
	}
}
