package models

import (
	"errors"
	"strings"
	"time"
)

type Post struct {
	ID                 int64      `db:"id" json:"id"`
	AccountID          int64      `db:"account_id" json:"account_id"`
	UserID             int64      `db:"user_id" json:"user_id"`
	PostType           string     `db:"post_type" json:"post_type"`
	Caption            string     `db:"caption" json:"caption"`
	Title              string     `db:"title" json:"title"`
	Status             string     `db:"status" json:"status"`
	ScheduledTime      *time.Time `db:"scheduled_time" json:"scheduled_time,omitempty"`
	QueuePosition      *int       `db:"queue_position" json:"queue_position,omitempty"`
	RecurrenceType     string     `db:"recurrence_type" json:"recurrence_type,omitempty"`
	RecurrenceInterval int        `db:"recurrence_interval" json:"recurrence_interval,omitempty"`
	RecurrenceEnd      *time.Time `db:"recurrence_end" json:"recurrence_end,omitempty"`
	RetryCount         int        `db:"retry_count" json:"retry_count"`
	NextRetryAt        *time.Time `db:"next_retry_at" json:"next_retry_at,omitempty"`
	LastError          string     `db:"last_error" json:"last_error,omitempty"`
	PlatformPostID     string     `db:"platform_post_id" json:"platform_post_id,omitempty"`
	PostingStartedAt   *time.Time `db:"posting_started_at" json:"-"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

type MediaAsset struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	FileName     string    `db:"file_name"`
	FileType     string    `db:"file_type"`
	FileSize     int64     `db:"file_size"`
	FileKey      string    `db:"file_key"`
	FileURL      string    `db:"file_url"`
	ThumbnailURL string    `db:"thumbnail_url"`
	CreatedAt    time.Time `db:"created_at"`
}

type PostMedia struct {
	PostID       int64     `db:"post_id"`
	AssetID      int64     `db:"asset_id"`
	DisplayOrder int       `db:"display_order"`
	CreatedAt    time.Time `db:"created_at"`
}

const (
	PostStatusDraft     = "draft"
	PostStatusQueued    = "queued"
	PostStatusScheduled = "scheduled"
	PostStatusPosting   = "posting"
	PostStatusPosted    = "posted"
	PostStatusFailed    = "failed"
)

const (
	RecurrenceDaily   = "daily"
	RecurrenceWeekly  = "weekly"
	RecurrenceMonthly = "monthly"
)

var ErrInvalidRecurrence = errors.New("invalid recurrence")

// HasRecurrence reports whether the post should spawn a follow-up occurrence
// after a successful publish.
func (p *Post) HasRecurrence() bool {
	return p.RecurrenceType != ""
}

// ValidateRecurrence rejects recurrence rules before they are persisted.
func (p *Post) ValidateRecurrence() error {
	if p.RecurrenceType == "" {
		if p.RecurrenceInterval != 0 || p.RecurrenceEnd != nil {
			return ErrInvalidRecurrence
		}
		return nil
	}
	switch strings.ToLower(p.RecurrenceType) {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
	default:
		return ErrInvalidRecurrence
	}
	if p.RecurrenceInterval < 1 {
		return ErrInvalidRecurrence
	}
	return nil
}

// NextOccurrence computes the follow-up publish time after a successful post,
// in the given zone. Returns false when the rule has expired.
func (p *Post) NextOccurrence(from time.Time, loc *time.Location) (time.Time, bool) {
	if !p.HasRecurrence() {
		return time.Time{}, false
	}

	local := from.In(loc)
	var next time.Time
	switch p.RecurrenceType {
	case RecurrenceDaily:
		next = local.AddDate(0, 0, p.RecurrenceInterval)
	case RecurrenceWeekly:
		next = local.AddDate(0, 0, 7*p.RecurrenceInterval)
	case RecurrenceMonthly:
		next = local.AddDate(0, p.RecurrenceInterval, 0)
	default:
		return time.Time{}, false
	}

	if p.RecurrenceEnd != nil && next.After(*p.RecurrenceEnd) {
		return time.Time{}, false
	}
	return next, true
}
