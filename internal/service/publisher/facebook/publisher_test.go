package facebook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/pkg/errors"
)

func newTestPublisher(url string) *FacebookPublisher {
	return NewFacebookPublisher(publisher.NewClient(publisher.PlatformFB, nil, nil, zap.NewNop()), url, "tok", "123")
}

func TestPublishFeed(t *testing.T) {
	var path string
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"id":"123_456"}`))
	}))
	defer srv.Close()

	res := newTestPublisher(srv.URL).Publish(context.Background(), publisher.PublishContext{
		Title:       "Title",
		ContentHTML: "<b>Read more:</b>",
		SourceURL:   "https://site/tpost/a",
	})

	require.True(t, res.Success, "%v", res.Error)
	assert.Equal(t, "/v21.0/123/feed", path)
	assert.Equal(t, "Title\n\nRead more:\n\nhttps://site/tpost/a", body["message"])
	assert.Equal(t, "123_456", res.ExternalID)
	assert.Equal(t, "https://facebook.com/123_456", res.PublishedURL)
}

func TestPublishPhotoUsesPostID(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"id":"photo1","post_id":"123_789"}`))
	}))
	defer srv.Close()

	res := newTestPublisher(srv.URL).Publish(context.Background(), publisher.PublishContext{
		ContentHTML: "text",
		ImageURL:    "https://cdn/img.jpg",
	})

	require.True(t, res.Success)
	assert.Equal(t, "/v21.0/123/photos", path)
	assert.Equal(t, "123_789", res.ExternalID)
}

func TestPublishGraphError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token"}}`))
	}))
	defer srv.Close()

	res := newTestPublisher(srv.URL).Publish(context.Background(), publisher.PublishContext{ContentHTML: "x"})

	assert.False(t, res.Success)
	assert.True(t, errors.Is(res.Error, errors.ErrRemoteAPI))
	assert.Contains(t, res.Error.Error(), "Invalid OAuth")
}
