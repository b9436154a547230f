package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ifuryst/herald/internal/models"
	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/internal/testutil"
	"github.com/ifuryst/herald/pkg/errors"
)

type stubResolver struct {
	calls int
	url   string
	err   error
}

func (s *stubResolver) FileURL(context.Context, string, string) (string, error) {
	s.calls++
	return s.url, s.err
}

func TestResolveImageURLStableIsUnchanged(t *testing.T) {
	item := &models.ContentItem{ContentFields: models.ContentFields{
		DraftImageURL:    testutil.Ptr("https://cdn.example.com/a.jpg"),
		DraftImageFileID: testutil.Ptr("AgACAgIAAx"),
	}}
	resolver := &stubResolver{url: "https://api.telegram.org/file/botX/photos/1.jpg"}

	for _, p := range publisher.Platforms {
		got := ResolveImageURL(context.Background(), item, p, configured, resolver, zap.NewNop())
		assert.Equal(t, "https://cdn.example.com/a.jpg", got, "platform %s", p)
	}
	assert.Zero(t, resolver.calls)
}

func TestResolveImageURLFallsBackToImageURL(t *testing.T) {
	item := &models.ContentItem{ContentFields: models.ContentFields{
		DraftImageURL: testutil.Ptr("https://api.telegram.org/file/bot1/x.jpg"),
		ImageURL:      testutil.Ptr("https://origin.example.com/b.png"),
	}}
	got := ResolveImageURL(context.Background(), item, publisher.PlatformVK, configured, nil, zap.NewNop())
	assert.Equal(t, "https://origin.example.com/b.png", got)
}

func TestResolveImageURLFileHandle(t *testing.T) {
	item := &models.ContentItem{ContentFields: models.ContentFields{
		DraftImageFileID: testutil.Ptr("AgACAgIAAx"),
	}}
	resolver := &stubResolver{url: "https://api.telegram.org/file/botX/photos/1.jpg"}

	assert.Equal(t, "AgACAgIAAx",
		ResolveImageURL(context.Background(), item, publisher.PlatformTG, configured, resolver, zap.NewNop()))
	assert.Zero(t, resolver.calls)

	assert.Equal(t, "https://api.telegram.org/file/botX/photos/1.jpg",
		ResolveImageURL(context.Background(), item, publisher.PlatformFB, configured, resolver, zap.NewNop()))
	assert.Equal(t, 1, resolver.calls)
}

func TestResolveImageURLResolutionFailure(t *testing.T) {
	item := &models.ContentItem{ContentFields: models.ContentFields{
		DraftImageURL:    testutil.Ptr("photos/file_1.jpg"),
		DraftImageFileID: testutil.Ptr("AgACAgIAAx"),
	}}
	resolver := &stubResolver{err: errors.New("getFile failed")}

	got := ResolveImageURL(context.Background(), item, publisher.PlatformOK, configured, resolver, zap.NewNop())
	assert.Equal(t, "photos/file_1.jpg", got)
}

func TestResolveImageURLWithoutToken(t *testing.T) {
	item := &models.ContentItem{ContentFields: models.ContentFields{
		DraftImageFileID: testutil.Ptr("AgACAgIAAx"),
	}}
	got := ResolveImageURL(context.Background(), item, publisher.PlatformTG, publisher.Settings{}, nil, zap.NewNop())
	assert.Empty(t, got)
}

func TestStableImageFromResponse(t *testing.T) {
	assert.Equal(t, "https://static.tildacdn.com/a.jpg",
		StableImageFromResponse(map[string]any{"image": "https://static.tildacdn.com/a.jpg"}))
	assert.Equal(t, "https://static.tildacdn.com/t.jpg",
		StableImageFromResponse(map[string]any{"image": "", "thumb": "https://static.tildacdn.com/t.jpg"}))
	assert.Empty(t, StableImageFromResponse(nil))
}
