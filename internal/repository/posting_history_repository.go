package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/postpilot/internal/models"
)

type PostingHistoryRepository interface {
	Create(ctx context.Context, ph *models.PostingHistory) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.PostingHistory, error)
	ListByUserID(ctx context.Context, userID int64, limit int) ([]*models.PostingHistory, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostingHistory, error)
}

type postingHistoryRepository struct {
	db *sql.DB
}

func NewPostingHistoryRepository(db *sql.DB) PostingHistoryRepository {
	return &postingHistoryRepository{db: db}
}

func (r *postingHistoryRepository) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	query := `
		INSERT INTO posting_history (user_id, post_id, account_id, outcome, platform_post_id, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, ph.UserID, ph.PostID, ph.AccountID, ph.Outcome, ph.PlatformPostID, ph.ErrorMessage).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postingHistoryRepository) GetByID(ctx context.Context, id int64) (*models.PostingHistory, error) {
	query := `SELECT id, user_id, post_id, account_id, outcome, platform_post_id, error_message, created_at
		FROM posting_history WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var ph models.PostingHistory
	err := row.Scan(&ph.ID, &ph.UserID, &ph.PostID, &ph.AccountID, &ph.Outcome, &ph.PlatformPostID, &ph.ErrorMessage, &ph.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &ph, nil
}

func (r *postingHistoryRepository) ListByUserID(ctx context.Context, userID int64, limit int) ([]*models.PostingHistory, error) {
	query := `SELECT id, user_id, post_id, account_id, outcome, platform_post_id, error_message, created_at
		FROM posting_history WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var phs []*models.PostingHistory
	for rows.Next() {
		var ph models.PostingHistory
		err := rows.Scan(&ph.ID, &ph.UserID, &ph.PostID, &ph.AccountID, &ph.Outcome, &ph.PlatformPostID, &ph.ErrorMessage, &ph.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		phs = append(phs, &ph)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return phs, nil
}

func (r *postingHistoryRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostingHistory, error) {
	query := `SELECT id, user_id, post_id, account_id, outcome, platform_post_id, error_message, created_at
		FROM posting_history WHERE post_id = $1
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var phs []*models.PostingHistory
	for rows.Next() {
		var ph models.PostingHistory
		err := rows.Scan(&ph.ID, &ph.UserID, &ph.PostID, &ph.AccountID, &ph.Outcome, &ph.PlatformPostID, &ph.ErrorMessage, &ph.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		phs = append(phs, &ph)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return phs, nil
}
