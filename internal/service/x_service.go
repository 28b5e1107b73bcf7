package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/oauth2"
)

const (
	xTokenURL = "https://api.x.com/2/oauth2/token"
	xPostURL  = "https://api.x.com/2/tweets"
)

// XService posts to X and refreshes its OAuth tokens. Media is handed over as
// pull URLs, so assets must be resolvable by the platform for the lifetime of
// the request.
type XService struct {
	cfg     config.Config
	client  *http.Client
	postURL string
}

func NewXService(cfg config.Config) *XService {
	return &XService{
		cfg:     cfg,
		client:  &http.Client{Timeout: 2 * time.Minute},
		postURL: xPostURL,
	}
}

func (s *XService) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.XClientID,
		ClientSecret: s.cfg.XClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: xTokenURL},
	}
}

func (s *XService) Refresh(ctx context.Context, refreshToken string) (*Credential, error) {
	tokenSource := s.oauthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	token, err := tokenSource.Token()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}, nil
}

func (s *XService) Post(ctx context.Context, cred *Credential, post *models.Post, media []ResolvedMedia) (string, error) {
	idempotencyKey, err := gonanoid.New()
	if err != nil {
		return "", err
	}

	postRequest := transfer.XPostRequest{
		Text:           post.Caption,
		IdempotencyKey: idempotencyKey,
	}
	if len(media) > 0 {
		postRequest.Media = buildMediaSource(media)
	}

	jsonData, err := json.Marshal(postRequest)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.postURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		platformErr := &PlatformError{
			StatusCode: resp.StatusCode,
			Retryable:  retryableStatus(resp.StatusCode),
		}
		// Error bodies are not always JSON; the status code alone is enough
		// to classify.
		var result transfer.XPostResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Error != nil {
			platformErr.Code = result.Error.Code
			platformErr.Message = result.Error.Message
		}
		return "", platformErr
	}

	var result transfer.XPostResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return result.Data.ID, nil
}

func buildMediaSource(media []ResolvedMedia) *transfer.XMediaSource {
	source := &transfer.XMediaSource{Source: "PULL_FROM_URL"}
	for _, m := range media {
		if m.Kind == MediaKindVideo {
			source.VideoURL = m.URL
			continue
		}
		source.ImageURLs = append(source.ImageURLs, m.URL)
	}
	return source
}
