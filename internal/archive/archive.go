package archive

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/agentmail/agentmail/internal/analytics"
	"github.com/agentmail/agentmail/internal/domain"
)

// Tuning for the commit-latency estimator (§4.9): hazard rate, change-point
// detection threshold, max tracked run length, calibration window, and
// target coverage for the conformal predictor.
const (
	latencyHazard       = 1.0 / 250.0
	latencyCPThreshold  = 0.3
	latencyMaxRunLength = 500
	latencyCalibration  = 100
	latencyCoverage     = 0.9
)

// Config controls how an Archive lays out and batches its writes.
type Config struct {
	Root          string
	QueueCapacity int
	BatchCap      int
	FlushInterval time.Duration
	NowUs         func() uint64
}

// Archive is the C6 write-behind archive pipeline: it implements
// domain.ArchiveEnqueuer, fans every record out to its deterministic
// on-disk paths (§4.8), and commits batches to a git-backed repository
// rooted at Config.Root.
type Archive struct {
	layout  Layout
	git     *gitRepo
	queue   *writeBehindQueue
	nowUs   func() uint64
	latency *analytics.CommitLatencyEstimator
}

// New opens (or initializes) the archive at cfg.Root and starts its
// write-behind drainer.
func New(cfg Config) (*Archive, error) {
	repo, err := openOrInitGitRepo(cfg.Root)
	if err != nil {
		return nil, err
	}
	layout := NewLayout(cfg.Root)
	if err := ensureGitAttributes(layout); err != nil {
		return nil, err
	}
	nowUs := cfg.NowUs
	if nowUs == nil {
		nowUs = func() uint64 { return uint64(time.Now().UnixMicro()) }
	}
	a := &Archive{
		layout:  layout,
		git:     repo,
		nowUs:   nowUs,
		latency: analytics.NewCommitLatencyEstimator(latencyHazard, latencyCPThreshold, latencyMaxRunLength, latencyCalibration, latencyCoverage),
	}
	a.queue = newWriteBehindQueue(cfg.QueueCapacity, cfg.BatchCap, cfg.FlushInterval, a.flush)
	a.queue.Start()
	return a, nil
}

func ensureGitAttributes(layout Layout) error {
	path := layout.GitAttributesPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(gitAttributesContents), 0o644)
}

// EnqueueMessage implements domain.ArchiveEnqueuer.
func (a *Archive) EnqueueMessage(rec domain.ArchiveMessageRecord) {
	a.queue.Enqueue(job{projectSlug: rec.ProjectSlug, writes: expandMessage(a.layout, rec)})
}

// EnqueueReservation implements domain.ArchiveEnqueuer.
func (a *Archive) EnqueueReservation(rec domain.ArchiveReservationRecord) {
	a.queue.Enqueue(job{projectSlug: rec.ProjectSlug, writes: expandReservation(a.layout, rec, a.nowUs())})
}

// EnqueueAgentProfile implements domain.ArchiveEnqueuer.
func (a *Archive) EnqueueAgentProfile(rec domain.ArchiveAgentProfileRecord) {
	a.queue.Enqueue(job{projectSlug: rec.ProjectSlug, writes: expandProfile(a.layout, rec)})
}

// flush is the write-behind queue's commit function: write every pending
// job's files to disk, grouped by project, then commit each project's
// batch separately so commit history stays per-project legible.
func (a *Archive) flush(jobs []job) {
	byProject := make(map[string][]writeRequest)
	for _, j := range jobs {
		byProject[j.projectSlug] = append(byProject[j.projectSlug], j.writes...)
	}

	slugs := make([]string, 0, len(byProject))
	for slug := range byProject {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	for _, slug := range slugs {
		writes := byProject[slug]
		var paths []string
		for _, w := range writes {
			if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
				a.queue.commitErrors.Add(1)
				slog.Warn("archive: creating directory failed", "path", w.path, "err", err)
				continue
			}
			if err := os.WriteFile(w.path, w.contents, 0o644); err != nil {
				a.queue.commitErrors.Add(1)
				slog.Warn("archive: writing file failed", "path", w.path, "err", err)
				continue
			}
			paths = append(paths, w.path)
		}
		if len(paths) == 0 {
			continue
		}
		msg := fmt.Sprintf("archive: %s (%d files)", slug, len(paths))
		start := time.Now()
		err := a.git.commitPaths(msg, paths)
		a.latency.Observe(time.Since(start).Seconds())
		if err != nil {
			a.queue.commitErrors.Add(1)
			slog.Warn("archive: commit failed", "project", slug, "err", err)
		}
	}
}

// LatencySnapshot reports the commit-latency estimator's current state: the
// BOCPD run-length posterior, the most recent detected change point (if
// any), and the conformal predictor's latest interval and empirical
// coverage. Surfaced by the health_check tool.
func (a *Archive) LatencySnapshot() analytics.Snapshot {
	return a.latency.Snapshot()
}

// Stats is a snapshot of the write-behind queue's health, surfaced by the
// health_check tool.
type Stats struct {
	Depth         int64
	Capacity      int
	SyncFallbacks uint64
	CommitErrors  uint64
}

func (a *Archive) Stats() Stats {
	return Stats{
		Depth: a.queue.Depth(), Capacity: a.queue.Capacity(),
		SyncFallbacks: a.queue.SyncFallbacks(), CommitErrors: a.queue.CommitErrors(),
	}
}

// Close drains any pending writes and stops the drainer.
func (a *Archive) Close() { a.queue.Close() }

// Layout exposes the archive's path layout for the consistency sampler and
// export tooling.
func (a *Archive) Layout() Layout { return a.layout }
