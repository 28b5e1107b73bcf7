package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

// SettingsService manages per-account posting policies. Policy changes do not
// touch already-scheduled posts; callers trigger an allocation pass so newly
// queued posts pick up the new slots.
type SettingsService interface {
	GetPolicy(ctx context.Context, userID, accountID int64) (*models.SocialAccount, error)
	UpdatePolicy(ctx context.Context, userID int64, update *transfer.PolicyUpdate) error
}

type settingsService struct {
	sa repository.SocialAccountRepository
}

func NewSettingsService(sa repository.SocialAccountRepository) SettingsService {
	return &settingsService{
		sa: sa,
	}
}

func (s *settingsService) GetPolicy(ctx context.Context, userID, accountID int64) (*models.SocialAccount, error) {
	owned, err := s.sa.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return nil, err
	}
	if !owned {
		err = errors.New("account doesn't belong to user")
		slog.Info(err.Error())
		return nil, err
	}

	acc, err := s.sa.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		err = errors.New("account doesn't exist")
		slog.Info(err.Error())
		return nil, err
	}

	return acc, nil
}

func (s *settingsService) UpdatePolicy(ctx context.Context, userID int64, update *transfer.PolicyUpdate) error {
	owned, err := s.sa.CheckByUserID(ctx, update.AccountID, userID)
	if err != nil {
		return err
	}
	if !owned {
		err = errors.New("account doesn't belong to user")
		slog.Info(err.Error())
		return err
	}

	acc := models.SocialAccount{
		PostingTimes:    update.PostingTimes,
		Timezone:        update.Timezone,
		MinIntervalMins: update.MinIntervalMins,
		MaxPostsPerDay:  update.MaxPostsPerDay,
		SkipWeekends:    update.SkipWeekends,
	}
	if err := acc.ValidatePolicy(); err != nil {
		slog.Info(err.Error())
		return err
	}

	return s.sa.UpdatePolicy(ctx, update.AccountID, &acc)
}
