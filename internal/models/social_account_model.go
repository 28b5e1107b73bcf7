package models

import (
	"errors"
	"sort"
	"strings"
	"time"
)

type SocialAccount struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	Platform        string    `db:"platform" json:"platform"`
	AccountID       string    `db:"account_id" json:"account_id"`
	AccountName     string    `db:"account_name" json:"account_name"`
	AccountUsername string    `db:"account_username" json:"account_username"`
	ProfilePicture  string    `db:"profile_picture_url" json:"profile_picture"`
	AccessToken     string    `db:"access_token" json:"-"`
	RefreshToken    string    `db:"refresh_token" json:"-"`
	TokenExpiresAt  time.Time `db:"token_expires_at" json:"token_expires_at"`
	NeedsReauth     bool      `db:"needs_reauth" json:"needs_reauth"`

	// Posting policy, read by the queue allocator and never written by it.
	PostingTimes    string `db:"posting_times" json:"posting_times"`
	Timezone        string `db:"timezone" json:"timezone"`
	MinIntervalMins int    `db:"min_interval_minutes" json:"min_interval_minutes"`
	MaxPostsPerDay  int    `db:"max_posts_per_day" json:"max_posts_per_day"`
	SkipWeekends    bool   `db:"skip_weekends" json:"skip_weekends"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

const (
	PlatformX       = "x"
	PlatformYoutube = "youtube"
)

var ErrInvalidPolicy = errors.New("invalid posting policy")

// TimesOfDay returns the policy's local posting times parsed from the stored
// comma-joined "15:04" list, sorted chronologically.
func (a *SocialAccount) TimesOfDay() ([]time.Duration, error) {
	if strings.TrimSpace(a.PostingTimes) == "" {
		return nil, ErrInvalidPolicy
	}

	parts := strings.Split(a.PostingTimes, ",")
	times := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		t, err := time.Parse("15:04", strings.TrimSpace(part))
		if err != nil {
			return nil, ErrInvalidPolicy
		}
		times = append(times, time.Duration(t.Hour())*time.Hour+time.Duration(t.Minute())*time.Minute)
	}

	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times, nil
}

// Location resolves the policy's IANA timezone.
func (a *SocialAccount) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, ErrInvalidPolicy
	}
	return loc, nil
}

// MinInterval returns the minimum spacing between two posts of this account.
func (a *SocialAccount) MinInterval() time.Duration {
	return time.Duration(a.MinIntervalMins) * time.Minute
}

// ValidatePolicy checks the posting policy before it is persisted.
func (a *SocialAccount) ValidatePolicy() error {
	if _, err := a.TimesOfDay(); err != nil {
		return err
	}
	if _, err := a.Location(); err != nil {
		return err
	}
	if a.MinIntervalMins < 0 || a.MaxPostsPerDay < 1 {
		return ErrInvalidPolicy
	}
	return nil
}
