package job

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/service"
)

const (
	RunOutcomeSuccess = "success"
	RunOutcomePartial = "partial"
	RunOutcomeFailed  = "failed"
	RunOutcomeSkipped = "skipped"
)

// RunStatus is the introspection record of the most recent scan, served to
// the operational dashboard.
type RunStatus struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcome    string    `json:"outcome"`
	Posted     int       `json:"posted"`
	Retried    int       `json:"retried"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	LastError  string    `json:"last_error,omitempty"`
}

// DueScanJob finds posts whose time has come, groups them by account and
// dispatches one batch per account. Ticks are single-flight: a firing that
// overlaps a running scan is dropped, not queued, since scheduled_time is a
// lower bound rather than a deadline.
type DueScanJob struct {
	pr         repository.PostRepository
	dispatcher service.DispatcherService

	workerCount   int
	batchDeadline time.Duration
	gracePeriod   time.Duration
	now           func() time.Time

	running atomic.Bool

	mu      sync.Mutex
	lastRun *RunStatus
}

func NewDueScanJob(pr repository.PostRepository, dispatcher service.DispatcherService, cfg config.Scheduler) *DueScanJob {
	return &DueScanJob{
		pr:            pr,
		dispatcher:    dispatcher,
		workerCount:   cfg.WorkerCount,
		batchDeadline: cfg.BatchDeadline,
		gracePeriod:   cfg.PostingGracePeriod,
		now:           time.Now,
	}
}

// Run executes one scan. Safe to call from both the cron timer and the manual
// trigger; overlapping calls are dropped.
func (j *DueScanJob) Run() {
	if !j.running.CompareAndSwap(false, true) {
		slog.Info("scan already in progress, skipping tick")
		return
	}
	defer j.running.Store(false)

	ctx := context.Background()
	status := &RunStatus{
		RunID:     uuid.NewString(),
		StartedAt: j.now(),
	}

	j.reconcileStuck(ctx, status)

	due, err := j.pr.ListDue(ctx, j.now())
	if err != nil {
		// Store unreachable: abandon this tick and let the next firing retry.
		slog.Info("due scan failed", "error", err.Error())
		status.Outcome = RunOutcomeFailed
		status.LastError = err.Error()
		status.FinishedAt = j.now()
		j.setLastRun(status)
		return
	}

	batches := groupByAccount(due)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, j.workerCount)
	results := make(chan service.BatchResult, len(batches))

	for accountID, posts := range batches {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(accountID int64, posts []*models.Post) {
			defer wg.Done()
			defer func() { <-semaphore }()

			batchCtx, cancel := context.WithTimeout(ctx, j.batchDeadline)
			defer cancel()

			results <- j.dispatcher.PostBatch(batchCtx, accountID, posts)
		}(accountID, posts)
	}

	wg.Wait()
	close(results)

	for r := range results {
		status.Posted += r.Posted
		status.Retried += r.Retried
		status.Failed += r.Failed
		status.Skipped += r.Skipped
		if r.Err != nil {
			status.LastError = r.Err.Error()
		}
	}

	status.FinishedAt = j.now()
	status.Outcome = outcomeOf(status, len(batches))
	j.setLastRun(status)

	slog.Info("scan finished", "run_id", status.RunID, "outcome", status.Outcome,
		"posted", status.Posted, "retried", status.Retried, "failed", status.Failed,
		"skipped", status.Skipped)
}

// reconcileStuck picks up posts stranded in "posting" past the grace period.
// The external call may or may not have landed, so they go back through the
// retry path rather than being failed or silently dropped.
func (j *DueScanJob) reconcileStuck(ctx context.Context, status *RunStatus) {
	cutoff := j.now().Add(-j.gracePeriod)
	stuck, err := j.pr.ListStuckPosting(ctx, cutoff)
	if err != nil {
		slog.Info("stuck posting scan failed", "error", err.Error())
		return
	}

	for _, post := range stuck {
		slog.Info("reconciling stuck post", "post_id", post.ID)
		if err := j.dispatcher.RecoverStuck(ctx, post); err != nil {
			slog.Info("stuck post recovery failed", "post_id", post.ID, "error", err.Error())
			continue
		}
		status.Retried++
	}
}

// LastRun returns the most recent run status, or nil before the first scan.
func (j *DueScanJob) LastRun() *RunStatus {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.lastRun == nil {
		return nil
	}
	copied := *j.lastRun
	return &copied
}

func (j *DueScanJob) setLastRun(status *RunStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lastRun = status
}

func groupByAccount(posts []*models.Post) map[int64][]*models.Post {
	batches := make(map[int64][]*models.Post)
	for _, post := range posts {
		batches[post.AccountID] = append(batches[post.AccountID], post)
	}
	return batches
}

func outcomeOf(status *RunStatus, batchCount int) string {
	switch {
	case batchCount == 0 && status.Retried == 0:
		return RunOutcomeSuccess
	case status.Failed == 0 && status.Skipped == 0 && status.LastError == "":
		return RunOutcomeSuccess
	case status.Posted > 0 || status.Retried > 0:
		return RunOutcomePartial
	default:
		return RunOutcomeFailed
	}
}
