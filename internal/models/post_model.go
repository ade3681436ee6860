package models

import "time"

type PostStatus string

const (
	PostStatusScheduled PostStatus = "SCHEDULED"
	PostStatusPublished PostStatus = "PUBLISHED"
	PostStatusFailed    PostStatus = "FAILED"
)

type MediaType string

const (
	MediaTypeImage    MediaType = "IMAGE"
	MediaTypeVideo    MediaType = "VIDEO"
	MediaTypeCarousel MediaType = "CAROUSEL"
	MediaTypeReels    MediaType = "REELS"
)

// IsVideo reports whether the post goes through the video container flow.
func (m MediaType) IsVideo() bool {
	return m == MediaTypeVideo || m == MediaTypeReels
}

func (m MediaType) Valid() bool {
	switch m {
	case MediaTypeImage, MediaTypeVideo, MediaTypeCarousel, MediaTypeReels:
		return true
	}
	return false
}

type TwitterStatus string

const (
	TwitterStatusUnset  TwitterStatus = ""
	TwitterStatusPosted TwitterStatus = "POSTED"
	TwitterStatusFailed TwitterStatus = "FAILED"
)

type Post struct {
	ID              string        `db:"id" json:"id"`
	UserID          int64         `db:"user_id" json:"user_id"`
	AccountID       int64         `db:"account_id" json:"account_id"`
	Images          []string      `db:"images" json:"images"`
	ImagePublicIDs  []string      `db:"image_public_ids" json:"image_public_ids"`
	Caption         string        `db:"caption" json:"caption"`
	Hashtags        []string      `db:"hashtags" json:"hashtags"`
	ThumbnailURL    string        `db:"thumbnail_url" json:"thumbnail_url,omitempty"`
	MediaType       MediaType     `db:"media_type" json:"media_type"`
	ScheduledTime   time.Time     `db:"scheduled_time" json:"scheduled_time"`
	Status          PostStatus    `db:"status" json:"status"`
	InstagramPostID string        `db:"instagram_post_id" json:"instagram_post_id,omitempty"`
	Error           string        `db:"error" json:"error,omitempty"`
	PublishedAt     *time.Time    `db:"published_at" json:"published_at,omitempty"`
	ApplyWatermark  bool          `db:"apply_watermark" json:"apply_watermark"`
	ShareToTwitter  bool          `db:"share_to_twitter" json:"share_to_twitter"`
	TwitterStatus   TwitterStatus `db:"twitter_status" json:"twitter_status,omitempty"`
	TwitterPostID   string        `db:"twitter_post_id" json:"twitter_post_id,omitempty"`
	TwitterURL      string        `db:"twitter_url" json:"twitter_url,omitempty"`
	TwitterError    string        `db:"twitter_error" json:"twitter_error,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

type PostStats struct {
	Total     int64 `json:"total"`
	Scheduled int64 `json:"scheduled"`
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
}
