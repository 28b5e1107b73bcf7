package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
)

const postColumns = `id, account_id, user_id, post_type, caption, title, status,
		scheduled_time, queue_position, recurrence_type, recurrence_interval, recurrence_end,
		retry_count, next_retry_at, last_error, platform_post_id, posting_started_at,
		created_at, updated_at`

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Post, error)
	ListQueued(ctx context.Context, accountID int64) ([]*models.Post, error)
	ListQueuedAccountIDs(ctx context.Context) ([]int64, error)
	ListScheduledBetween(ctx context.Context, accountID int64, from, to time.Time) ([]*models.Post, error)
	ListStuckPosting(ctx context.Context, cutoff time.Time) ([]*models.Post, error)
	Schedule(ctx context.Context, postID int64, at time.Time) (bool, error)
	MarkPosting(ctx context.Context, postID int64, at time.Time) (bool, error)
	MarkPosted(ctx context.Context, postID int64, platformPostID string) error
	MarkFailed(ctx context.Context, postID int64, lastError string) error
	Reschedule(ctx context.Context, postID int64, retryCount int, nextRetryAt time.Time, lastError string) error
	SetQueuePosition(ctx context.Context, tx *sql.Tx, postID, accountID int64, position int) (bool, error)
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

func scanPost(row interface{ Scan(...any) error }) (*models.Post, error) {
	var post models.Post
	err := row.Scan(&post.ID, &post.AccountID, &post.UserID, &post.PostType, &post.Caption,
		&post.Title, &post.Status, &post.ScheduledTime, &post.QueuePosition,
		&post.RecurrenceType, &post.RecurrenceInterval, &post.RecurrenceEnd,
		&post.RetryCount, &post.NextRetryAt, &post.LastError, &post.PlatformPostID,
		&post.PostingStartedAt, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (account_id, user_id, post_type, caption, title, status,
			scheduled_time, queue_position, recurrence_type, recurrence_interval, recurrence_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	var id int64
	var err error

	args := []any{post.AccountID, post.UserID, post.PostType, post.Caption, post.Title,
		post.Status, post.ScheduledTime, post.QueuePosition, post.RecurrenceType,
		post.RecurrenceInterval, post.RecurrenceEnd}

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (r *postRepository) list(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = $1 AND scheduled_time <= $2
		ORDER BY account_id, scheduled_time`
	return r.list(ctx, query, models.PostStatusScheduled, now)
}

func (r *postRepository) ListQueued(ctx context.Context, accountID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE account_id = $1 AND status = $2
		ORDER BY queue_position, created_at`
	return r.list(ctx, query, accountID, models.PostStatusQueued)
}

func (r *postRepository) ListQueuedAccountIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT DISTINCT account_id FROM posts WHERE status = $1 ORDER BY account_id`

	rows, err := r.db.QueryContext(ctx, query, models.PostStatusQueued)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accountIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accountIDs = append(accountIDs, id)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return accountIDs, nil
}

func (r *postRepository) ListScheduledBetween(ctx context.Context, accountID int64, from, to time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE account_id = $1
		AND status IN ($2, $3, $4)
		AND scheduled_time >= $5 AND scheduled_time < $6
		ORDER BY scheduled_time`
	return r.list(ctx, query, accountID,
		models.PostStatusScheduled, models.PostStatusPosting, models.PostStatusPosted, from, to)
}

func (r *postRepository) ListStuckPosting(ctx context.Context, cutoff time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = $1 AND posting_started_at < $2 AND platform_post_id = ''
		ORDER BY posting_started_at`
	return r.list(ctx, query, models.PostStatusPosting, cutoff)
}

// Schedule moves a queued post to its allocated slot. The queue position is
// cleared in the same statement so a post never holds both. The update is
// conditional on status so concurrent allocators cannot schedule twice.
func (r *postRepository) Schedule(ctx context.Context, postID int64, at time.Time) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1, scheduled_time = $2, queue_position = NULL, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query, models.PostStatusScheduled, at, time.Now(), postID, models.PostStatusQueued)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

// MarkPosting claims a due post before the external call is made. A false
// return means another worker already holds the post.
func (r *postRepository) MarkPosting(ctx context.Context, postID int64, at time.Time) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1, posting_started_at = $2, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, models.PostStatusPosting, at, postID, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) MarkPosted(ctx context.Context, postID int64, platformPostID string) error {
	query := `
		UPDATE posts
		SET status = $1, platform_post_id = $2, posting_started_at = NULL, last_error = '', updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusPosted, platformPostID, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) MarkFailed(ctx context.Context, postID int64, lastError string) error {
	query := `
		UPDATE posts
		SET status = $1, last_error = $2, posting_started_at = NULL, next_retry_at = NULL, updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusFailed, lastError, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Reschedule returns a post to the scheduled state after a retryable failure,
// with its slot moved to the computed retry time.
func (r *postRepository) Reschedule(ctx context.Context, postID int64, retryCount int, nextRetryAt time.Time, lastError string) error {
	query := `
		UPDATE posts
		SET status = $1, retry_count = $2, next_retry_at = $3, scheduled_time = $3,
			last_error = $4, posting_started_at = NULL, updated_at = $5
		WHERE id = $6
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusScheduled, retryCount, nextRetryAt, lastError, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// SetQueuePosition reorders a single queued post. Scheduled posts are left
// untouched by the status condition.
func (r *postRepository) SetQueuePosition(ctx context.Context, tx *sql.Tx, postID, accountID int64, position int) (bool, error) {
	query := `
		UPDATE posts
		SET queue_position = $1, updated_at = $2
		WHERE id = $3 AND account_id = $4 AND status = $5
	`

	var result sql.Result
	var err error
	if tx != nil {
		result, err = tx.ExecContext(ctx, query, position, time.Now(), postID, accountID, models.PostStatusQueued)
	} else {
		result, err = r.db.ExecContext(ctx, query, position, time.Now(), postID, accountID, models.PostStatusQueued)
	}
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)

	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
