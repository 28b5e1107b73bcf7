package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
)

// BatchResult summarizes one account batch for the tick-level report.
type BatchResult struct {
	AccountID int64
	Posted    int
	Retried   int
	Failed    int
	Skipped   int
	Err       error
}

// DispatcherService publishes due posts. One credential is obtained per
// batch; posts inside a batch go out sequentially to respect per-account
// platform rate limits.
type DispatcherService interface {
	PostBatch(ctx context.Context, accountID int64, posts []*models.Post) BatchResult
	RecoverStuck(ctx context.Context, post *models.Post) error
}

type dispatcherService struct {
	pr      repository.PostRepository
	sa      repository.SocialAccountRepository
	pm      repository.PostMediaRepository
	ma      repository.MediaAssetRepository
	ph      repository.PostingHistoryRepository
	tokens  TokenService
	clients map[string]PostingClient
	media   MediaResolver
	retry   RetryPolicy
	now     func() time.Time
}

func NewDispatcherService(
	pr repository.PostRepository,
	sa repository.SocialAccountRepository,
	pm repository.PostMediaRepository,
	ma repository.MediaAssetRepository,
	ph repository.PostingHistoryRepository,
	tokens TokenService,
	clients map[string]PostingClient,
	media MediaResolver,
	retry RetryPolicy) DispatcherService {
	return &dispatcherService{
		pr:      pr,
		sa:      sa,
		pm:      pm,
		ma:      ma,
		ph:      ph,
		tokens:  tokens,
		clients: clients,
		media:   media,
		retry:   retry,
		now:     time.Now,
	}
}

func (s *dispatcherService) PostBatch(ctx context.Context, accountID int64, posts []*models.Post) BatchResult {
	result := BatchResult{AccountID: accountID}

	acc, err := s.sa.GetByID(ctx, accountID)
	if err != nil {
		result.Err = err
		return result
	}
	if acc == nil {
		result.Err = fmt.Errorf("account %d not found", accountID)
		return result
	}

	client, ok := s.clients[acc.Platform]
	if !ok {
		result.Err = fmt.Errorf("no posting client for platform %s", acc.Platform)
		return result
	}

	cred, err := s.tokens.GetValidCredential(ctx, accountID)
	if err != nil {
		// Credential failures leave the whole batch scheduled; a human has to
		// re-link the account before these posts can move.
		slog.Info("skipping batch, credential unavailable", "account_id", accountID, "error", err.Error())
		result.Skipped = len(posts)
		result.Err = err
		return result
	}

	for _, post := range posts {
		select {
		case <-ctx.Done():
			// Batch deadline hit; the rest is picked up on a later tick.
			result.Skipped++
			continue
		default:
		}

		outcome, err := s.postOne(ctx, acc, client, cred, post)
		if err != nil {
			slog.Info("post dispatch failed", "post_id", post.ID, "error", err.Error())
		}
		switch outcome {
		case models.OutcomePosted:
			result.Posted++
		case models.OutcomeRetried:
			result.Retried++
		case models.OutcomeFailed:
			result.Failed++
		default:
			result.Skipped++
		}
	}

	return result
}

// postOne publishes a single post. The post is marked "posting" before the
// external call so a crash between the platform accepting the post and the
// local status write can be detected and reconciled later.
func (s *dispatcherService) postOne(ctx context.Context, acc *models.SocialAccount, client PostingClient, cred *Credential, post *models.Post) (string, error) {
	claimed, err := s.pr.MarkPosting(ctx, post.ID, s.now())
	if err != nil {
		return "", err
	}
	if !claimed {
		return "", nil
	}

	media, err := s.resolveMedia(ctx, post.ID)
	if err != nil {
		return s.handleFailure(ctx, acc, post, err)
	}

	platformPostID, err := client.Post(ctx, cred, post, media)
	if err != nil {
		return s.handleFailure(ctx, acc, post, err)
	}

	if err := s.pr.MarkPosted(ctx, post.ID, platformPostID); err != nil {
		return "", err
	}
	s.recordHistory(ctx, acc, post, models.OutcomePosted, platformPostID, "")

	if err := s.spawnRecurrence(ctx, acc, post); err != nil {
		slog.Info("recurrence expansion failed", "post_id", post.ID, "error", err.Error())
	}

	return models.OutcomePosted, nil
}

// RecoverStuck routes a post found stuck in "posting" past the grace period
// back through the retry path. The publish outcome is unknown, so this trades
// a possible duplicate for never losing the post.
func (s *dispatcherService) RecoverStuck(ctx context.Context, post *models.Post) error {
	acc, err := s.sa.GetByID(ctx, post.AccountID)
	if err != nil {
		return err
	}
	_, err = s.applyRetry(ctx, acc, post, errors.New("posting interrupted, outcome unknown"))
	return err
}

func (s *dispatcherService) handleFailure(ctx context.Context, acc *models.SocialAccount, post *models.Post, cause error) (string, error) {
	if !IsRetryable(cause) {
		if err := s.pr.MarkFailed(ctx, post.ID, cause.Error()); err != nil {
			return "", err
		}
		s.recordHistory(ctx, acc, post, models.OutcomeFailed, "", cause.Error())
		return models.OutcomeFailed, cause
	}
	return s.applyRetry(ctx, acc, post, cause)
}

func (s *dispatcherService) applyRetry(ctx context.Context, acc *models.SocialAccount, post *models.Post, cause error) (string, error) {
	retryCount := post.RetryCount + 1
	delay, ok := s.retry.Next(retryCount)
	if !ok {
		if err := s.pr.MarkFailed(ctx, post.ID, cause.Error()); err != nil {
			return "", err
		}
		s.recordHistory(ctx, acc, post, models.OutcomeFailed, "", cause.Error())
		return models.OutcomeFailed, cause
	}

	nextRetryAt := s.now().Add(delay)
	if err := s.pr.Reschedule(ctx, post.ID, retryCount, nextRetryAt, cause.Error()); err != nil {
		return "", err
	}
	s.recordHistory(ctx, acc, post, models.OutcomeRetried, "", cause.Error())
	return models.OutcomeRetried, cause
}

func (s *dispatcherService) resolveMedia(ctx context.Context, postID int64) ([]ResolvedMedia, error) {
	postMedias, err := s.pm.ListByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}

	var media []ResolvedMedia
	for _, pm := range postMedias {
		asset, err := s.ma.GetByID(ctx, pm.AssetID)
		if err != nil {
			return nil, err
		}
		if asset == nil {
			return nil, &PlatformError{Code: "missing_media", Message: fmt.Sprintf("asset %d not found", pm.AssetID), Retryable: false}
		}

		url, err := s.media.Resolve(ctx, asset)
		if err != nil {
			return nil, err
		}

		media = append(media, ResolvedMedia{
			URL:      url,
			FileName: asset.FileName,
			Kind:     mediaKind(asset.FileName),
		})
	}
	return media, nil
}

// spawnRecurrence clones a recurring post into a fresh queued occurrence.
// Exactly one clone is created per successful publish; the allocator assigns
// its slot.
func (s *dispatcherService) spawnRecurrence(ctx context.Context, acc *models.SocialAccount, post *models.Post) error {
	if !post.HasRecurrence() || post.ScheduledTime == nil {
		return nil
	}

	loc, err := acc.Location()
	if err != nil {
		return err
	}
	if _, ok := post.NextOccurrence(*post.ScheduledTime, loc); !ok {
		return nil
	}

	queued, err := s.pr.ListQueued(ctx, post.AccountID)
	if err != nil {
		return err
	}
	position := len(queued) + 1

	clone := &models.Post{
		AccountID:          post.AccountID,
		UserID:             post.UserID,
		PostType:           post.PostType,
		Caption:            post.Caption,
		Title:              post.Title,
		Status:             models.PostStatusQueued,
		QueuePosition:      &position,
		RecurrenceType:     post.RecurrenceType,
		RecurrenceInterval: post.RecurrenceInterval,
		RecurrenceEnd:      post.RecurrenceEnd,
	}

	cloneID, err := s.pr.Create(ctx, nil, clone)
	if err != nil {
		return err
	}

	postMedias, err := s.pm.ListByPostID(ctx, post.ID)
	if err != nil {
		return err
	}
	for _, pm := range postMedias {
		if err := s.pm.Create(ctx, nil, &models.PostMedia{
			PostID:       cloneID,
			AssetID:      pm.AssetID,
			DisplayOrder: pm.DisplayOrder,
		}); err != nil {
			return err
		}
	}

	slog.Info("recurrence spawned", "post_id", post.ID, "clone_id", cloneID)
	return nil
}

func (s *dispatcherService) recordHistory(ctx context.Context, acc *models.SocialAccount, post *models.Post, outcome, platformPostID, errorMessage string) {
	history := models.PostingHistory{
		UserID:         acc.UserID,
		PostID:         post.ID,
		AccountID:      acc.ID,
		Outcome:        outcome,
		PlatformPostID: platformPostID,
		ErrorMessage:   errorMessage,
	}
	if _, err := s.ph.Create(ctx, &history); err != nil {
		slog.Info("failed to record posting history", "post_id", post.ID, "error", err.Error())
	}
}
