package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/pkg/utils"
	"golang.org/x/sync/singleflight"
)

// TokenService keeps account credentials valid, refreshing them before they
// expire. Refreshes are single-flight per account: concurrent batches share
// one refresh call.
type TokenService interface {
	GetValidCredential(ctx context.Context, accountID int64) (*Credential, error)
	RefreshAccount(ctx context.Context, acc *models.SocialAccount) error
}

type tokenService struct {
	cfg     config.Config
	sa      repository.SocialAccountRepository
	clients map[string]PostingClient
	group   singleflight.Group
	margin  time.Duration
	now     func() time.Time
}

func NewTokenService(cfg config.Config, sa repository.SocialAccountRepository, clients map[string]PostingClient) TokenService {
	return &tokenService{
		cfg:     cfg,
		sa:      sa,
		clients: clients,
		margin:  cfg.Scheduler.RefreshMargin,
		now:     time.Now,
	}
}

func (s *tokenService) GetValidCredential(ctx context.Context, accountID int64) (*Credential, error) {
	acc, err := s.sa.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, &CredentialError{AccountID: accountID, Err: fmt.Errorf("account not found")}
	}
	if acc.NeedsReauth {
		return nil, &CredentialError{AccountID: accountID, Err: fmt.Errorf("account needs re-linking")}
	}

	if s.now().Before(acc.TokenExpiresAt.Add(-s.margin)) {
		return s.decrypt(acc)
	}

	// Single-flight: the second waiter gets the credential refreshed by the
	// first instead of issuing its own platform call.
	v, err, _ := s.group.Do(strconv.FormatInt(accountID, 10), func() (any, error) {
		fresh, err := s.sa.GetByID(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if fresh == nil {
			return nil, &CredentialError{AccountID: accountID, Err: fmt.Errorf("account not found")}
		}
		if s.now().Before(fresh.TokenExpiresAt.Add(-s.margin)) {
			return s.decrypt(fresh)
		}
		if err := s.RefreshAccount(ctx, fresh); err != nil {
			return nil, err
		}
		refreshed, err := s.sa.GetByID(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if refreshed == nil {
			return nil, &CredentialError{AccountID: accountID, Err: fmt.Errorf("account removed during refresh")}
		}
		return s.decrypt(refreshed)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Credential), nil
}

// RefreshAccount performs one refresh against the platform and persists the
// rotated tokens. A failed refresh flags the account for manual re-linking.
func (s *tokenService) RefreshAccount(ctx context.Context, acc *models.SocialAccount) error {
	client, ok := s.clients[acc.Platform]
	if !ok {
		return &CredentialError{AccountID: acc.ID, Err: fmt.Errorf("no client for platform %s", acc.Platform)}
	}

	refreshToken, err := utils.Decrypt(acc.RefreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return &CredentialError{AccountID: acc.ID, Err: err}
	}

	cred, err := client.Refresh(ctx, refreshToken)
	if err != nil {
		slog.Info("token refresh failed", "account_id", acc.ID, "platform", acc.Platform, "error", err.Error())
		if rerr := s.sa.SetNeedsReauth(ctx, acc.ID, true); rerr != nil {
			slog.Info(rerr.Error())
		}
		return &CredentialError{AccountID: acc.ID, Err: err}
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(cred.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	var encryptedRefreshToken string
	if cred.RefreshToken != "" {
		encryptedRefreshToken, err = utils.Encrypt([]byte(cred.RefreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
	}

	updated := models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: cred.ExpiresAt,
	}

	if err := s.sa.SetToken(ctx, acc.ID, acc.AccessToken, &updated); err != nil {
		return err
	}
	return nil
}

func (s *tokenService) decrypt(acc *models.SocialAccount) (*Credential, error) {
	accessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, &CredentialError{AccountID: acc.ID, Err: err}
	}

	var refreshToken string
	if acc.RefreshToken != "" {
		refreshToken, err = utils.Decrypt(acc.RefreshToken, []byte(s.cfg.SecretKey))
		if err != nil {
			return nil, &CredentialError{AccountID: acc.ID, Err: err}
		}
	}

	return &Credential{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    acc.TokenExpiresAt,
	}, nil
}
