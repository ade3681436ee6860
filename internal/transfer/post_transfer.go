package transfer

type PostCreation struct {
	AccountID      int64    `json:"account_id"`
	Images         []string `json:"images"`
	ImagePublicIDs []string `json:"image_public_ids"`
	Caption        string   `json:"caption"`
	Hashtags       []string `json:"hashtags"`
	ScheduledTime  string   `json:"scheduled_time"`
	MediaType      string   `json:"media_type"`
	ThumbnailURL   string   `json:"thumbnail_url"`
	ApplyWatermark bool     `json:"apply_watermark"`
	ShareToTwitter bool     `json:"share_to_twitter"`
}

type ManualConnection struct {
	AccountID   string `json:"account_id"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}
