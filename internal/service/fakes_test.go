package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
)

type fakePostRepository struct {
	mu     sync.Mutex
	nextID int64
	posts  map[int64]*models.Post
}

func newFakePostRepository() *fakePostRepository {
	return &fakePostRepository{posts: make(map[int64]*models.Post)}
}

func (r *fakePostRepository) add(post *models.Post) *models.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	post.ID = r.nextID
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	r.posts[post.ID] = post
	return post
}

func (r *fakePostRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	clone := *post
	r.add(&clone)
	return clone.ID, nil
}

func (r *fakePostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	clone := *post
	return &clone, nil
}

func (r *fakePostRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*models.Post
	for _, p := range r.posts {
		if p.Status == models.PostStatusScheduled && p.ScheduledTime != nil && !p.ScheduledTime.After(now) {
			clone := *p
			due = append(due, &clone)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

func (r *fakePostRepository) ListQueued(ctx context.Context, accountID int64) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var queued []*models.Post
	for _, p := range r.posts {
		if p.AccountID == accountID && p.Status == models.PostStatusQueued {
			clone := *p
			queued = append(queued, &clone)
		}
	}
	sort.Slice(queued, func(i, j int) bool {
		pi, pj := queued[i], queued[j]
		if pi.QueuePosition != nil && pj.QueuePosition != nil && *pi.QueuePosition != *pj.QueuePosition {
			return *pi.QueuePosition < *pj.QueuePosition
		}
		if (pi.QueuePosition != nil) != (pj.QueuePosition != nil) {
			return pi.QueuePosition != nil
		}
		return pi.CreatedAt.Before(pj.CreatedAt)
	})
	return queued, nil
}

func (r *fakePostRepository) ListQueuedAccountIDs(ctx context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[int64]bool)
	var accountIDs []int64
	for _, p := range r.posts {
		if p.Status == models.PostStatusQueued && !seen[p.AccountID] {
			seen[p.AccountID] = true
			accountIDs = append(accountIDs, p.AccountID)
		}
	}
	sort.Slice(accountIDs, func(i, j int) bool { return accountIDs[i] < accountIDs[j] })
	return accountIDs, nil
}

func (r *fakePostRepository) ListScheduledBetween(ctx context.Context, accountID int64, from, to time.Time) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.AccountID != accountID || p.ScheduledTime == nil {
			continue
		}
		switch p.Status {
		case models.PostStatusScheduled, models.PostStatusPosting, models.PostStatusPosted:
		default:
			continue
		}
		if p.ScheduledTime.Before(from) || !p.ScheduledTime.Before(to) {
			continue
		}
		clone := *p
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(*out[j].ScheduledTime) })
	return out, nil
}

func (r *fakePostRepository) ListStuckPosting(ctx context.Context, cutoff time.Time) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.Status == models.PostStatusPosting && p.PlatformPostID == "" &&
			p.PostingStartedAt != nil && p.PostingStartedAt.Before(cutoff) {
			clone := *p
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakePostRepository) Schedule(ctx context.Context, postID int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[postID]
	if !ok || post.Status != models.PostStatusQueued {
		return false, nil
	}
	post.Status = models.PostStatusScheduled
	slot := at
	post.ScheduledTime = &slot
	post.QueuePosition = nil
	return true, nil
}

func (r *fakePostRepository) MarkPosting(ctx context.Context, postID int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[postID]
	if !ok || post.Status != models.PostStatusScheduled {
		return false, nil
	}
	post.Status = models.PostStatusPosting
	started := at
	post.PostingStartedAt = &started
	return true, nil
}

func (r *fakePostRepository) MarkPosted(ctx context.Context, postID int64, platformPostID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[postID]
	if !ok {
		return fmt.Errorf("post %d not found", postID)
	}
	post.Status = models.PostStatusPosted
	post.PlatformPostID = platformPostID
	post.PostingStartedAt = nil
	post.LastError = ""
	return nil
}

func (r *fakePostRepository) MarkFailed(ctx context.Context, postID int64, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[postID]
	if !ok {
		return fmt.Errorf("post %d not found", postID)
	}
	post.Status = models.PostStatusFailed
	post.LastError = lastError
	post.PostingStartedAt = nil
	post.NextRetryAt = nil
	return nil
}

func (r *fakePostRepository) Reschedule(ctx context.Context, postID int64, retryCount int, nextRetryAt time.Time, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[postID]
	if !ok {
		return fmt.Errorf("post %d not found", postID)
	}
	post.Status = models.PostStatusScheduled
	post.RetryCount = retryCount
	at := nextRetryAt
	post.NextRetryAt = &at
	post.ScheduledTime = &at
	post.LastError = lastError
	post.PostingStartedAt = nil
	return nil
}

func (r *fakePostRepository) SetQueuePosition(ctx context.Context, tx *sql.Tx, postID, accountID int64, position int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[postID]
	if !ok || post.AccountID != accountID || post.Status != models.PostStatusQueued {
		return false, nil
	}
	pos := position
	post.QueuePosition = &pos
	return true, nil
}

func (r *fakePostRepository) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, id)
	return nil
}

type fakeAccountRepository struct {
	mu       sync.Mutex
	accounts map[int64]*models.SocialAccount

	setTokenCalls int
}

func newFakeAccountRepository(accounts ...*models.SocialAccount) *fakeAccountRepository {
	r := &fakeAccountRepository{accounts: make(map[int64]*models.SocialAccount)}
	for _, acc := range accounts {
		r.accounts[acc.ID] = acc
	}
	return r
}

func (r *fakeAccountRepository) Create(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[sa.ID] = sa
	return sa.ID, nil
}

func (r *fakeAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	clone := *acc
	return &clone, nil
}

func (r *fakeAccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (r *fakeAccountRepository) ListExpiring(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SocialAccount
	for _, acc := range r.accounts {
		if acc.NeedsReauth {
			continue
		}
		if acc.TokenExpiresAt.Before(finalTime) {
			clone := *acc
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeAccountRepository) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[accountID]
	return ok && acc.UserID == userID, nil
}

func (r *fakeAccountRepository) SetToken(ctx context.Context, accountID int64, oldAccessToken string, sa *models.SocialAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[accountID]
	if !ok || acc.AccessToken != oldAccessToken {
		return fmt.Errorf("no rows affected")
	}
	r.setTokenCalls++
	if sa.AccessToken != "" {
		acc.AccessToken = sa.AccessToken
	}
	if sa.RefreshToken != "" {
		acc.RefreshToken = sa.RefreshToken
	}
	acc.TokenExpiresAt = sa.TokenExpiresAt
	acc.NeedsReauth = false
	return nil
}

func (r *fakeAccountRepository) SetNeedsReauth(ctx context.Context, accountID int64, needsReauth bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acc, ok := r.accounts[accountID]; ok {
		acc.NeedsReauth = needsReauth
	}
	return nil
}

func (r *fakeAccountRepository) UpdatePolicy(ctx context.Context, accountID int64, sa *models.SocialAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %d not found", accountID)
	}
	acc.PostingTimes = sa.PostingTimes
	acc.Timezone = sa.Timezone
	acc.MinIntervalMins = sa.MinIntervalMins
	acc.MaxPostsPerDay = sa.MaxPostsPerDay
	acc.SkipWeekends = sa.SkipWeekends
	return nil
}

func (r *fakeAccountRepository) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, id)
	return nil
}

type fakePostMediaRepository struct {
	media map[int64][]*models.PostMedia
}

func newFakePostMediaRepository() *fakePostMediaRepository {
	return &fakePostMediaRepository{media: make(map[int64][]*models.PostMedia)}
}

func (r *fakePostMediaRepository) Create(ctx context.Context, tx *sql.Tx, pm *models.PostMedia) error {
	r.media[pm.PostID] = append(r.media[pm.PostID], pm)
	return nil
}

func (r *fakePostMediaRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostMedia, error) {
	return r.media[postID], nil
}

func (r *fakePostMediaRepository) Remove(ctx context.Context, postID int64) error {
	delete(r.media, postID)
	return nil
}

type fakeMediaAssetRepository struct {
	assets map[int64]*models.MediaAsset
}

func newFakeMediaAssetRepository() *fakeMediaAssetRepository {
	return &fakeMediaAssetRepository{assets: make(map[int64]*models.MediaAsset)}
}

func (r *fakeMediaAssetRepository) Create(ctx context.Context, tx *sql.Tx, ma *models.MediaAsset) (int64, error) {
	r.assets[ma.ID] = ma
	return ma.ID, nil
}

func (r *fakeMediaAssetRepository) GetByID(ctx context.Context, id int64) (*models.MediaAsset, error) {
	return r.assets[id], nil
}

func (r *fakeMediaAssetRepository) Remove(ctx context.Context, id int64) error {
	delete(r.assets, id)
	return nil
}

type fakeHistoryRepository struct {
	mu      sync.Mutex
	entries []*models.PostingHistory
}

func (r *fakeHistoryRepository) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, ph)
	return int64(len(r.entries)), nil
}

func (r *fakeHistoryRepository) GetByID(ctx context.Context, id int64) (*models.PostingHistory, error) {
	return nil, nil
}

func (r *fakeHistoryRepository) ListByUserID(ctx context.Context, userID int64, limit int) ([]*models.PostingHistory, error) {
	return r.entries, nil
}

func (r *fakeHistoryRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostingHistory, error) {
	return r.entries, nil
}

type fakePostingClient struct {
	mu           sync.Mutex
	postCalls    int
	refreshCalls int
	postErr      error
	postID       string
	refreshErr   error
	refreshCred  *Credential
	refreshDelay time.Duration
}

func (c *fakePostingClient) Post(ctx context.Context, cred *Credential, post *models.Post, media []ResolvedMedia) (string, error) {
	c.mu.Lock()
	c.postCalls++
	c.mu.Unlock()
	if c.postErr != nil {
		return "", c.postErr
	}
	if c.postID != "" {
		return c.postID, nil
	}
	return "platform-1", nil
}

func (c *fakePostingClient) Refresh(ctx context.Context, refreshToken string) (*Credential, error) {
	c.mu.Lock()
	c.refreshCalls++
	c.mu.Unlock()
	if c.refreshDelay > 0 {
		time.Sleep(c.refreshDelay)
	}
	if c.refreshErr != nil {
		return nil, c.refreshErr
	}
	return c.refreshCred, nil
}

type fakeMediaResolver struct{}

func (fakeMediaResolver) Resolve(ctx context.Context, asset *models.MediaAsset) (string, error) {
	return asset.FileURL, nil
}
