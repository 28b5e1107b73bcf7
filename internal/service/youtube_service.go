package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// YoutubeService publishes video posts to YouTube. The API has no pull-URL
// upload, so the asset is fetched into a temp file and streamed up.
type YoutubeService struct {
	cfg config.Config
}

func NewYoutubeService(cfg config.Config) *YoutubeService {
	return &YoutubeService{cfg: cfg}
}

func (s *YoutubeService) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/youtube.upload"},
		Endpoint:     google.Endpoint,
	}
}

func (s *YoutubeService) Refresh(ctx context.Context, refreshToken string) (*Credential, error) {
	tokenSource := s.oauthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	token, err := tokenSource.Token()
	if err != nil {
		return nil, err
	}

	return &Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}, nil
}

func (s *YoutubeService) Post(ctx context.Context, cred *Credential, post *models.Post, media []ResolvedMedia) (string, error) {
	video := firstVideo(media)
	if video == nil {
		return "", &PlatformError{Code: "missing_media", Message: "youtube posts need a video", Retryable: false}
	}

	token := &oauth2.Token{AccessToken: cred.AccessToken}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	yt, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		log.Printf("Error creating YouTube service: %v", err)
		return "", err
	}

	tempFile, err := downloadVideo(ctx, video.URL)
	if err != nil {
		return "", err
	}
	defer os.Remove(tempFile)

	file, err := os.Open(tempFile)
	if err != nil {
		log.Printf("Error opening video file: %v", err)
		return "", err
	}
	defer file.Close()

	upload := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Description: post.Caption,
			Title:       post.Title,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	call := yt.Videos.Insert([]string{"snippet", "status"}, upload)
	response, err := call.Media(file).Do()
	if err != nil {
		return "", classifyYoutubeError(err)
	}

	return response.Id, nil
}

func firstVideo(media []ResolvedMedia) *ResolvedMedia {
	for i := range media {
		if media[i].Kind == MediaKindVideo {
			return &media[i]
		}
	}
	return nil
}

func classifyYoutubeError(err error) error {
	if apiErr, ok := err.(*googleapi.Error); ok {
		return &PlatformError{
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
			Retryable:  retryableStatus(apiErr.Code),
		}
	}
	return err
}

func downloadVideo(ctx context.Context, url string) (string, error) {
	tempFile, err := os.CreateTemp("", "video-*.mp4")
	if err != nil {
		return "", fmt.Errorf("error creating temporary file: %w", err)
	}
	defer tempFile.Close()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		os.Remove(tempFile.Name())
		return "", err
	}

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		os.Remove(tempFile.Name())
		return "", fmt.Errorf("error downloading video: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		os.Remove(tempFile.Name())
		return "", fmt.Errorf("unexpected response status: %d", response.StatusCode)
	}

	if _, err := io.Copy(tempFile, response.Body); err != nil {
		os.Remove(tempFile.Name())
		return "", fmt.Errorf("error saving video: %w", err)
	}

	return tempFile.Name(), nil
}
