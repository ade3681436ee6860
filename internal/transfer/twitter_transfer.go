package transfer

type TwitterPostRequest struct {
	MediaURL      string   `json:"mediaUrl"`
	MediaPublicID string   `json:"mediaPublicId"`
	Caption       string   `json:"caption"`
	Hashtags      []string `json:"hashtags"`
	MediaType     string   `json:"mediaType"`
}

type TwitterPostResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Result  *struct {
		URL string `json:"url"`
	} `json:"result"`
}

type TwitterResult struct {
	PostID string
	URL    string
}
