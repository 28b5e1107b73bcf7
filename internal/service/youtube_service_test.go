package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempVideoFiles(t *testing.T) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(os.TempDir(), "video-*.mp4"))
	require.NoError(t, err)
	return files
}

func TestDownloadVideoCleansUpOnErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	before := tempVideoFiles(t)

	_, err := downloadVideo(context.Background(), server.URL)
	require.Error(t, err)

	assert.Equal(t, before, tempVideoFiles(t), "failed download must not leave a temp file behind")
}

func TestDownloadVideoWritesTempFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("video-bytes"))
	}))
	defer server.Close()

	name, err := downloadVideo(context.Background(), server.URL)
	require.NoError(t, err)
	defer os.Remove(name)

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))
}

func TestFirstVideoPicksVideoKind(t *testing.T) {
	media := []ResolvedMedia{
		{URL: "https://cdn/a.png", Kind: MediaKindImage},
		{URL: "https://cdn/b.mp4", Kind: MediaKindVideo},
	}

	video := firstVideo(media)
	require.NotNil(t, video)
	assert.Equal(t, "https://cdn/b.mp4", video.URL)

	assert.Nil(t, firstVideo(media[:1]))
}
