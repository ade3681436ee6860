package models

import (
	"time"
)

const (
	AccountStatusActive   = "active"
	AccountStatusInactive = "inactive"
)

const (
	WatermarkSouthEast = "south_east"
	WatermarkSouthWest = "south_west"
	WatermarkNorthEast = "north_east"
	WatermarkNorthWest = "north_west"
	WatermarkCenter    = "center"
)

var WatermarkPositions = []string{
	WatermarkSouthEast,
	WatermarkSouthWest,
	WatermarkNorthEast,
	WatermarkNorthWest,
	WatermarkCenter,
}

// Watermark is the per-account overlay configuration. Opacity and Scale are
// percentages; zero means "use the default".
type Watermark struct {
	PublicID string `db:"watermark_public_id" json:"watermark_public_id"`
	Position string `db:"watermark_position" json:"watermark_position"`
	Opacity  int    `db:"watermark_opacity" json:"watermark_opacity"`
	Scale    int    `db:"watermark_scale" json:"watermark_scale"`
}

type SocialAccount struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	Platform        string    `db:"platform" json:"platform"`
	AccountID       string    `db:"account_id" json:"account_id"`
	AccountUsername string    `db:"account_username" json:"account_username"`
	ProfilePicture  string    `db:"profile_picture_url" json:"profile_picture"`
	AccessToken     string    `db:"access_token" json:"-"`
	TokenExpiresAt  time.Time `db:"token_expires_at" json:"token_expires_at"`
	AccountStatus   string    `db:"account_status" json:"account_status"`
	Watermark       Watermark `json:"watermark"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

func (sa *SocialAccount) IsActive() bool {
	return sa.AccountStatus == AccountStatusActive
}
