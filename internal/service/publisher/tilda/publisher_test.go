package tilda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/pkg/errors"
)

type fakeFeeds struct {
	mu      sync.Mutex
	actions []string
	edit    map[string]string
	cookie  string
	expired bool
}

func (f *fakeFeeds) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/posts/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.cookie = r.Header.Get("Cookie")
		f.mu.Unlock()
		if f.expired {
			http.Redirect(w, r, "/login/", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte(`<script>var publickey = "pub-1"; var uploadkey='up-2';</script>`))
	})
	mux.HandleFunc("/image.jpg", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpeg-bytes"))
	})
	mux.HandleFunc("/api/upload/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":[{"cdnUrl":"https://static.tildacdn.com/abc/image.jpg"}]}`))
	})
	mux.HandleFunc("/submit/", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		action := r.PostForm.Get("action")
		f.mu.Lock()
		f.actions = append(f.actions, action)
		if action == "posts_Edit" {
			f.edit = map[string]string{}
			for k := range r.PostForm {
				f.edit[k] = r.PostForm.Get(k)
			}
		}
		f.mu.Unlock()

		switch action {
		case "posts_Add":
			_, _ = w.Write([]byte(`{"data":{"uid":"777"}}`))
		case "posts_Get":
			_, _ = w.Write([]byte(`{"post":{"postdefaulturl":"my-news-slug","thumb":"https://static.tildacdn.com/abc/image.jpg"}}`))
		default:
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}
	})
	return mux
}

func newPublisher(srvURL string) *TildaPublisher {
	client := publisher.NewClient(publisher.PlatformSite, nil, nil, zap.NewNop())
	return NewTildaPublisher(client, Endpoints{Feeds: srvURL, Upload: srvURL}, "sess123", "p1", "f1", "https://news.example.com/")
}

func TestPublishFullFlow(t *testing.T) {
	feeds := &fakeFeeds{}
	srv := httptest.NewServer(feeds.handler())
	defer srv.Close()

	res := newPublisher(srv.URL).Publish(context.Background(), publisher.PublishContext{
		ContentID:   "n1",
		Title:       "Headline",
		ContentHTML: "First para\nline two\n\nSecond para",
		ImageURL:    srv.URL + "/image.jpg",
	})

	require.True(t, res.Success, "%v", res.Error)
	assert.Equal(t, "777", res.ExternalID)
	assert.Equal(t, "https://news.example.com/tpost/my-news-slug", res.PublishedURL)
	assert.Equal(t, "https://static.tildacdn.com/abc/image.jpg", res.RawResponse["thumb"])
	assert.Equal(t, []string{"posts_Add", "posts_Edit", "posts_Active", "posts_Get"}, feeds.actions)
	assert.Equal(t, "PHPSESSID=sess123", feeds.cookie)

	var blocks []map[string]string
	require.NoError(t, json.Unmarshal([]byte(feeds.edit["text"]), &blocks))
	require.Len(t, blocks, 3)
	assert.Equal(t, "image", blocks[0]["ty"])
	assert.Equal(t, "First para<br>line two", blocks[1]["te"])
	assert.Equal(t, "Second para", blocks[2]["te"])
	assert.Equal(t, "https://static.tildacdn.com/abc/image.jpg", feeds.edit["image"])
}

func TestPublishExpiredSession(t *testing.T) {
	feeds := &fakeFeeds{expired: true}
	srv := httptest.NewServer(feeds.handler())
	defer srv.Close()

	res := newPublisher(srv.URL).Publish(context.Background(), publisher.PublishContext{Title: "T", ContentHTML: "x"})

	assert.False(t, res.Success)
	assert.True(t, errors.Is(res.Error, errors.ErrRemoteAPI))
	assert.Contains(t, res.Error.Error(), "session expired")
	assert.Empty(t, feeds.actions)
}

func TestNormalizeCookies(t *testing.T) {
	assert.Equal(t, "PHPSESSID=abc", NormalizeCookies("abc"))
	assert.Equal(t, "PHPSESSID=abc; lang=ru", NormalizeCookies("PHPSESSID=abc; lang=ru"))
	assert.Equal(t, "", NormalizeCookies(""))
}

func TestFirstMatch(t *testing.T) {
	html := `<input type="hidden" name="publickey" value="pk-9">`
	assert.Equal(t, "pk-9", firstMatch(publicKeyRe, html))
	assert.Equal(t, "", firstMatch(uploadKeyRe, html))
}
