package job

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScanRepo serves canned due, stuck and queued lists; the jobs only read.
type fakeScanRepo struct {
	due            []*models.Post
	stuck          []*models.Post
	queuedAccounts []int64
	listErr        error
}

func (r *fakeScanRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) { return nil, nil }
func (r *fakeScanRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	return 0, nil
}
func (r *fakeScanRepo) ListDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.due, nil
}
func (r *fakeScanRepo) ListQueued(ctx context.Context, accountID int64) ([]*models.Post, error) {
	return nil, nil
}
func (r *fakeScanRepo) ListQueuedAccountIDs(ctx context.Context) ([]int64, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.queuedAccounts, nil
}
func (r *fakeScanRepo) ListScheduledBetween(ctx context.Context, accountID int64, from, to time.Time) ([]*models.Post, error) {
	return nil, nil
}
func (r *fakeScanRepo) ListStuckPosting(ctx context.Context, cutoff time.Time) ([]*models.Post, error) {
	return r.stuck, nil
}
func (r *fakeScanRepo) Schedule(ctx context.Context, postID int64, at time.Time) (bool, error) {
	return false, nil
}
func (r *fakeScanRepo) MarkPosting(ctx context.Context, postID int64, at time.Time) (bool, error) {
	return false, nil
}
func (r *fakeScanRepo) MarkPosted(ctx context.Context, postID int64, platformPostID string) error {
	return nil
}
func (r *fakeScanRepo) MarkFailed(ctx context.Context, postID int64, lastError string) error {
	return nil
}
func (r *fakeScanRepo) Reschedule(ctx context.Context, postID int64, retryCount int, nextRetryAt time.Time, lastError string) error {
	return nil
}
func (r *fakeScanRepo) SetQueuePosition(ctx context.Context, tx *sql.Tx, postID, accountID int64, position int) (bool, error) {
	return false, nil
}
func (r *fakeScanRepo) Remove(ctx context.Context, id int64) error { return nil }

type fakeDispatcher struct {
	mu        sync.Mutex
	batches   map[int64]int
	recovered []int64
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{batches: make(map[int64]int)}
}

func (d *fakeDispatcher) PostBatch(ctx context.Context, accountID int64, posts []*models.Post) service.BatchResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches[accountID] = len(posts)
	return service.BatchResult{AccountID: accountID, Posted: len(posts)}
}

func (d *fakeDispatcher) RecoverStuck(ctx context.Context, post *models.Post) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recovered = append(d.recovered, post.ID)
	return nil
}

func newTestScanJob(pr *fakeScanRepo, dispatcher service.DispatcherService) *DueScanJob {
	return &DueScanJob{
		pr:            pr,
		dispatcher:    dispatcher,
		workerCount:   4,
		batchDeadline: time.Second,
		gracePeriod:   15 * time.Minute,
		now:           time.Now,
	}
}

func duePost(id, accountID int64) *models.Post {
	at := time.Now().Add(-time.Minute)
	return &models.Post{
		ID:            id,
		AccountID:     accountID,
		Status:        models.PostStatusScheduled,
		ScheduledTime: &at,
	}
}

func TestRunGroupsDuePostsByAccount(t *testing.T) {
	pr := &fakeScanRepo{due: []*models.Post{duePost(1, 10), duePost(2, 10), duePost(3, 20)}}
	dispatcher := newFakeDispatcher()
	j := newTestScanJob(pr, dispatcher)

	j.Run()

	assert.Equal(t, 2, dispatcher.batches[10])
	assert.Equal(t, 1, dispatcher.batches[20])

	status := j.LastRun()
	require.NotNil(t, status)
	assert.Equal(t, 3, status.Posted)
	assert.Equal(t, RunOutcomeSuccess, status.Outcome)
	assert.NotEmpty(t, status.RunID)
	assert.False(t, status.FinishedAt.Before(status.StartedAt))
}

type blockingDispatcher struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (d *blockingDispatcher) PostBatch(ctx context.Context, accountID int64, posts []*models.Post) service.BatchResult {
	d.calls.Add(1)
	d.entered <- struct{}{}
	<-d.release
	return service.BatchResult{AccountID: accountID, Posted: len(posts)}
}

func (d *blockingDispatcher) RecoverStuck(ctx context.Context, post *models.Post) error {
	return nil
}

func TestRunDropsOverlappingTick(t *testing.T) {
	pr := &fakeScanRepo{due: []*models.Post{duePost(1, 10)}}
	dispatcher := &blockingDispatcher{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	j := newTestScanJob(pr, dispatcher)

	done := make(chan struct{})
	go func() {
		j.Run()
		close(done)
	}()
	<-dispatcher.entered

	// Second tick while the first is still dispatching.
	j.Run()
	assert.Nil(t, j.LastRun(), "overlapping tick must not produce a run")

	close(dispatcher.release)
	<-done

	assert.Equal(t, int32(1), dispatcher.calls.Load())
	require.NotNil(t, j.LastRun())
	assert.Equal(t, 1, j.LastRun().Posted)
}

func TestRunReconcilesStuckPosts(t *testing.T) {
	started := time.Now().Add(-time.Hour)
	stuck := &models.Post{
		ID:               9,
		AccountID:        10,
		Status:           models.PostStatusPosting,
		PostingStartedAt: &started,
	}
	pr := &fakeScanRepo{stuck: []*models.Post{stuck}}
	dispatcher := newFakeDispatcher()
	j := newTestScanJob(pr, dispatcher)

	j.Run()

	assert.Equal(t, []int64{9}, dispatcher.recovered)

	status := j.LastRun()
	require.NotNil(t, status)
	assert.Equal(t, 1, status.Retried)
}

func TestRunStoreErrorMarksRunFailed(t *testing.T) {
	pr := &fakeScanRepo{listErr: errors.New("connection refused")}
	dispatcher := newFakeDispatcher()
	j := newTestScanJob(pr, dispatcher)

	j.Run()

	status := j.LastRun()
	require.NotNil(t, status)
	assert.Equal(t, RunOutcomeFailed, status.Outcome)
	assert.Equal(t, "connection refused", status.LastError)
	assert.Empty(t, dispatcher.batches)
}
