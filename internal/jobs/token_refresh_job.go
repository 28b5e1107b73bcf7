package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/service"
)

// TokenRefreshJob proactively refreshes credentials expiring soon, so most
// batches find a valid token without refreshing inline.
type TokenRefreshJob struct {
	sr     repository.SocialAccountRepository
	tokens service.TokenService
	window time.Duration
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, tokens service.TokenService) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr:     sr,
		tokens: tokens,
		window: 30 * time.Minute,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	accounts, err := c.sr.ListExpiring(ctx, currentTime, currentTime.Add(c.window))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.tokens.RefreshAccount(ctx, acc); err != nil {
				slog.Info("unable to refresh tokens", "account_id", acc.ID, "platform", acc.Platform, "error", err.Error())
			}
		}(acc)
	}

	wg.Wait()
}
