package vk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ifuryst/herald/internal/service/publisher"
)

func TestPublishWallPost(t *testing.T) {
	var posted map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		assert.Equal(t, "5.199", r.PostForm.Get("v"))
		assert.Equal(t, "tok", r.PostForm.Get("access_token"))
		if strings.HasSuffix(r.URL.Path, "wall.post") {
			posted = map[string]string{}
			for k := range r.PostForm {
				posted[k] = r.PostForm.Get(k)
			}
			_, _ = w.Write([]byte(`{"response":{"post_id":555}}`))
			return
		}
		_, _ = w.Write([]byte(`{"error":{"error_code":5,"error_msg":"unexpected"}}`))
	}))
	defer srv.Close()

	p, err := NewVKPublisher(publisher.NewClient(publisher.PlatformVK, nil, nil, zap.NewNop()), srv.URL, "tok", "-100")
	require.NoError(t, err)

	res := p.Publish(context.Background(), publisher.PublishContext{
		Title:       "Title",
		ContentHTML: "<p>Read here:</p>",
		SourceURL:   "https://site/tpost/x",
	})

	require.True(t, res.Success, "%v", res.Error)
	assert.Equal(t, "555", res.ExternalID)
	assert.Equal(t, "https://vk.com/wall-100_555", res.PublishedURL)
	assert.Equal(t, "Title\n\nRead here:\n\nhttps://site/tpost/x", posted["message"])
	assert.Equal(t, "1", posted["from_group"])
	assert.Equal(t, "https://site/tpost/x", posted["attachments"])
}

func TestPublishAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"error_code":15,"error_msg":"Access denied"}}`))
	}))
	defer srv.Close()

	p, err := NewVKPublisher(publisher.NewClient(publisher.PlatformVK, nil, nil, zap.NewNop()), srv.URL, "tok", "42")
	require.NoError(t, err)

	res := p.Publish(context.Background(), publisher.PublishContext{Title: "T", ContentHTML: "x"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error.Error(), "Access denied (code 15)")
}

func TestNewVKPublisherRejectsBadOwner(t *testing.T) {
	_, err := NewVKPublisher(nil, "", "tok", "club")
	assert.Error(t, err)
}
