package transfer

import "github.com/golang-jwt/jwt/v5"

type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type ReorderRequest struct {
	AccountID int64   `json:"account_id"`
	PostIDs   []int64 `json:"post_ids"`
}

type AllocateRequest struct {
	AccountID int64 `json:"account_id"`
}

type PolicyUpdate struct {
	AccountID       int64  `json:"account_id"`
	PostingTimes    string `json:"posting_times"`
	Timezone        string `json:"timezone"`
	MinIntervalMins int    `json:"min_interval_minutes"`
	MaxPostsPerDay  int    `json:"max_posts_per_day"`
	SkipWeekends    bool   `json:"skip_weekends"`
}
