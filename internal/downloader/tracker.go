// Package downloader tracks asynchronous fetch-and-convert jobs. The
// actual video fetch and transcode is delegated to an Executor; the
// tracker owns job identity, the state machine and the post-completion
// song bookkeeping.
package downloader

import (
	"context"
	"sync"
	"time"

	"github.com/pavithrahatharasinghe/MediaMaestro/internal/database"
	"github.com/pavithrahatharasinghe/MediaMaestro/internal/errs"
	"github.com/pavithrahatharasinghe/MediaMaestro/internal/library"
	"github.com/pavithrahatharasinghe/MediaMaestro/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// JobState is the lifecycle state of a download job.
type JobState string

const (
	StatePending    JobState = "pending"
	StateInProgress JobState = "in_progress"
	StateCompleted  JobState = "completed"
	StateFailed     JobState = "failed"
)

// Terminal reports whether no further transitions are permitted.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// DownloadJob represents one tracked download. The ID is stable for the
// job's lifetime and is the sole handle callers poll with. Terminal jobs
// are retained for inspection, never deleted automatically.
type DownloadJob struct {
	ID          string        `json:"id"`
	Source      string        `json:"source"`
	Format      models.Format `json:"format"`
	PlaylistID  int           `json:"playlistId"`
	PlaylistKey string        `json:"playlistKey"`
	State       JobState      `json:"state"`
	Progress    int           `json:"progress"`
	SongID      int           `json:"songId,omitempty"`
	DestPath    string        `json:"destPath,omitempty"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
}

func (j *DownloadJob) clone() *DownloadJob {
	c := *j
	return &c
}

// Request describes what an Executor should fetch.
type Request struct {
	Source  string
	Format  models.Format
	DestDir string
}

// Result is what a successful execution produced.
type Result struct {
	DestPath  string
	Title     string
	Artist    string
	Album     string
	YouTubeID string
	Duration  int // in seconds
	Size      int64
}

// Executor is the external fetch-and-convert collaborator. Execute blocks
// until the download finishes; it must honor ctx cancellation and report
// coarse progress (0-100) through report.
type Executor interface {
	Validate(source string) error
	Execute(ctx context.Context, req Request, report func(progress int)) (*Result, error)
}

// Tracker is the download job registry. All registry access is guarded by
// mu; creation (with duplicate-target check) and state transitions are
// each atomic with respect to concurrent callers.
type Tracker struct {
	lib      *library.Library
	db       *database.Database
	executor Executor
	logger   *logrus.Logger

	mu      sync.RWMutex
	jobs    map[string]*DownloadJob
	cancels map[string]context.CancelFunc

	sem chan struct{} // bounds concurrent executions
}

// NewTracker creates a tracker delegating downloads to the given executor.
func NewTracker(lib *library.Library, db *database.Database, executor Executor, maxConcurrent int) *Tracker {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	return &Tracker{
		lib:      lib,
		db:       db,
		executor: executor,
		logger:   logger,
		jobs:     make(map[string]*DownloadJob),
		cancels:  make(map[string]context.CancelFunc),
		sem:      make(chan struct{}, maxConcurrent),
	}
}

// Start validates and registers a new download job in the pending state
// and launches its execution. A second request for the same (playlist,
// format, source) while the first is non-terminal is rejected with a
// conflict, never silently duplicated.
func (t *Tracker) Start(source string, format models.Format, playlistID int) (*DownloadJob, error) {
	if !format.Valid() {
		return nil, errs.Ef(errs.KindInvalidInput, "invalid format %q", format)
	}
	if err := t.executor.Validate(source); err != nil {
		return nil, errs.E(errs.KindInvalidInput, "unsupported source", err)
	}

	playlist, err := t.db.GetPlaylistByID(playlistID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	for _, existing := range t.jobs {
		if existing.State.Terminal() {
			continue
		}
		if existing.PlaylistID == playlistID && existing.Format == format && existing.Source == source {
			t.mu.Unlock()
			return nil, errs.Ef(errs.KindConflict,
				"download of %s (%s) into playlist %d already in flight as job %s",
				source, format, playlistID, existing.ID)
		}
	}

	job := &DownloadJob{
		ID:          uuid.New().String(),
		Source:      source,
		Format:      format,
		PlaylistID:  playlist.ID,
		PlaylistKey: playlist.Key,
		State:       StatePending,
		CreatedAt:   time.Now(),
	}
	t.jobs[job.ID] = job

	ctx, cancel := context.WithCancel(context.Background())
	t.cancels[job.ID] = cancel
	t.mu.Unlock()

	go t.run(ctx, job.ID, playlist)

	t.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"source":   source,
		"format":   format,
		"playlist": playlist.Key,
	}).Info("Download job created")

	return job.clone(), nil
}

// run drives one job through the state machine.
func (t *Tracker) run(ctx context.Context, jobID string, playlist models.Playlist) {
	t.sem <- struct{}{}
	defer func() { <-t.sem }()

	job, ok := t.GetJob(jobID)
	if !ok {
		return
	}

	if !t.transition(jobID, StateInProgress, "") {
		// cancelled before execution started
		return
	}

	result, err := t.executor.Execute(ctx, Request{
		Source:  job.Source,
		Format:  job.Format,
		DestDir: t.lib.FormatDir(playlist.Key, job.Format),
	}, func(progress int) {
		t.setProgress(jobID, progress)
	})
	if err != nil {
		cause := err.Error()
		if ctx.Err() == context.Canceled {
			cause = "cancelled"
		} else if ctx.Err() == context.DeadlineExceeded {
			cause = "timeout: " + cause
		}
		t.transition(jobID, StateFailed, cause)
		return
	}

	t.complete(jobID, playlist, result)
}

// transition applies a state change atomically. Transitions out of a
// terminal state are logged and ignored; the recorded result of a
// terminal job is never mutated.
func (t *Tracker) transition(jobID string, next JobState, cause string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[jobID]
	if !ok {
		return false
	}
	if job.State.Terminal() {
		t.logger.WithFields(logrus.Fields{
			"job_id": jobID,
			"state":  job.State,
			"next":   next,
		}).Warn("Ignoring transition reported for terminal job")
		return false
	}

	job.State = next
	switch next {
	case StateFailed:
		job.Error = cause
		now := time.Now()
		job.CompletedAt = &now
		delete(t.cancels, jobID)
	case StateCompleted:
		job.Progress = 100
		now := time.Now()
		job.CompletedAt = &now
		delete(t.cancels, jobID)
	}
	return true
}

// complete records the produced Song and finishes the job exactly once.
// The completed state is claimed atomically BEFORE the song bookkeeping:
// a success report arriving after the job already turned terminal (for
// example via Cancel) must be logged and ignored without ever touching
// the song table. A claim whose recording fails is rolled over to failed.
func (t *Tracker) complete(jobID string, playlist models.Playlist, result *Result) {
	t.mu.Lock()
	job, ok := t.jobs[jobID]
	if !ok {
		t.mu.Unlock()
		return
	}
	if job.State.Terminal() {
		t.mu.Unlock()
		t.logger.WithField("job_id", jobID).Warn("Ignoring completion reported for terminal job")
		return
	}
	job.State = StateCompleted
	format := job.Format
	t.mu.Unlock()

	song, err := t.lib.RecordFile(playlist, format, result.DestPath,
		result.Title, result.Artist, result.Album, result.Duration, result.Size, result.YouTubeID)

	t.mu.Lock()
	if err != nil {
		job.State = StateFailed
		job.Error = "downloaded but failed to record song: " + err.Error()
	} else {
		job.Progress = 100
		job.SongID = song.ID
		job.DestPath = result.DestPath
	}
	now := time.Now()
	job.CompletedAt = &now
	delete(t.cancels, jobID)
	t.mu.Unlock()
}

// setProgress updates a non-terminal job's progress percentage.
func (t *Tracker) setProgress(jobID string, progress int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if job, ok := t.jobs[jobID]; ok && !job.State.Terminal() {
		job.Progress = progress
	}
}

// Cancel requests best-effort cancellation of a pending or in-progress
// job. The executor may not stop immediately; the tracker stops reporting
// the job as active either way.
func (t *Tracker) Cancel(jobID string) error {
	t.mu.Lock()
	job, ok := t.jobs[jobID]
	if !ok {
		t.mu.Unlock()
		return errs.NotFound("download job", jobID)
	}
	if job.State.Terminal() {
		t.mu.Unlock()
		return errs.Ef(errs.KindConflict, "job %s already %s", jobID, job.State)
	}
	cancel := t.cancels[jobID]
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.transition(jobID, StateFailed, "cancelled")
	return nil
}

// GetJob returns a snapshot of the job with the given ID.
func (t *Tracker) GetJob(jobID string) (*DownloadJob, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[jobID]
	if !ok {
		return nil, false
	}
	return job.clone(), true
}

// GetAllJobs returns snapshots of every tracked job.
func (t *Tracker) GetAllJobs() []*DownloadJob {
	t.mu.RLock()
	defer t.mu.RUnlock()

	jobs := make([]*DownloadJob, 0, len(t.jobs))
	for _, job := range t.jobs {
		jobs = append(jobs, job.clone())
	}
	return jobs
}

// CleanupJobs removes terminal jobs older than maxAge. Retention is policy
// of the caller; the tracker never deletes on its own.
func (t *Tracker) CleanupJobs(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for id, job := range t.jobs {
		if job.State.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(t.jobs, id)
			removed++
		}
	}
	return removed
}
