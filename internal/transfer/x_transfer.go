package transfer

type XPostRequest struct {
	Text           string        `json:"text"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	Media          *XMediaSource `json:"media,omitempty"`
}

type XMediaSource struct {
	Source    string   `json:"source"`
	ImageURLs []string `json:"image_urls,omitempty"`
	VideoURL  string   `json:"video_url,omitempty"`
}

type XPostResponse struct {
	Data  XPostData `json:"data"`
	Error *XError   `json:"error,omitempty"`
}

type XPostData struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type XError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
