package models

import "time"

const (
	PublishOutcomePublished = "published"
	PublishOutcomeRecovered = "recovered"
	PublishOutcomeFailed    = "failed"
)

// PublishHistory records one worker attempt for a post.
type PublishHistory struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	PostID       string    `db:"post_id" json:"post_id"`
	AccountID    int64     `db:"account_id" json:"account_id"`
	Outcome      string    `db:"outcome" json:"outcome"`
	ErrorMessage string    `db:"error_message" json:"error_message"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
