package service

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"github.com/maheshrc27/postpilot/internal/models"
)

// Credential is a decrypted, usable platform token pair.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// ResolvedMedia is a media reference turned into something a platform can
// fetch: a time-limited URL plus a coarse kind for payload selection.
type ResolvedMedia struct {
	URL      string
	FileName string
	Kind     string
}

const (
	MediaKindImage = "image"
	MediaKindVideo = "video"
)

// PostingClient submits content to one platform and refreshes its tokens.
// Implementations classify platform rejections into *PlatformError.
type PostingClient interface {
	Post(ctx context.Context, cred *Credential, post *models.Post, media []ResolvedMedia) (string, error)
	Refresh(ctx context.Context, refreshToken string) (*Credential, error)
}

// MediaResolver turns a stored asset into a fetchable URL.
type MediaResolver interface {
	Resolve(ctx context.Context, asset *models.MediaAsset) (string, error)
}

// mediaKind classifies an asset by file extension.
func mediaKind(fileName string) string {
	ext := strings.TrimPrefix(filepath.Ext(fileName), ".")
	t := filetype.GetType(ext)
	if _, ok := matchers.Video[t]; ok {
		return MediaKindVideo
	}
	return MediaKindImage
}
