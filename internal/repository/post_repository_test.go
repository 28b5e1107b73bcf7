package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var postRows = []string{"id", "account_id", "user_id", "post_type", "caption", "title", "status",
	"scheduled_time", "queue_position", "recurrence_type", "recurrence_interval", "recurrence_end",
	"retry_count", "next_retry_at", "last_error", "platform_post_id", "posting_started_at",
	"created_at", "updated_at"}

func TestListDueSelectsScheduledBeforeNow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostRepository(db)
	now := time.Date(2026, 9, 4, 9, 0, 0, 0, time.UTC)
	slot := now.Add(-time.Minute)

	rows := sqlmock.NewRows(postRows).
		AddRow(int64(1), int64(10), int64(7), "text", "hello", "", models.PostStatusScheduled,
			slot, nil, "", 0, nil, 0, nil, "", "", nil, now, now)

	mock.ExpectQuery("SELECT (.+) FROM posts").
		WithArgs(models.PostStatusScheduled, now).
		WillReturnRows(rows)

	due, err := repo.ListDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, int64(1), due[0].ID)
	assert.Equal(t, models.PostStatusScheduled, due[0].Status)
	require.NotNil(t, due[0].ScheduledTime)
	assert.True(t, due[0].ScheduledTime.Equal(slot))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleClaimsOnlyQueuedPosts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostRepository(db)
	at := time.Date(2026, 9, 4, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE posts").
		WithArgs(models.PostStatusScheduled, at, sqlmock.AnyArg(), int64(10), models.PostStatusQueued).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Schedule(context.Background(), 10, at)
	require.NoError(t, err)
	assert.True(t, ok)

	// A post that changed state underneath matches zero rows.
	mock.ExpectExec("UPDATE posts").
		WithArgs(models.PostStatusScheduled, at, sqlmock.AnyArg(), int64(11), models.PostStatusQueued).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = repo.Schedule(context.Background(), 11, at)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPostingClaimIsConditional(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostRepository(db)
	at := time.Date(2026, 9, 4, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE posts").
		WithArgs(models.PostStatusPosting, at, int64(10), models.PostStatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.MarkPosting(context.Background(), 10, at)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec("UPDATE posts").
		WithArgs(models.PostStatusPosting, at, int64(10), models.PostStatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = repo.MarkPosting(context.Background(), 10, at)
	require.NoError(t, err)
	assert.False(t, ok, "a second worker must not claim the same post")

	assert.NoError(t, mock.ExpectationsWereMet())
}
