package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ifuryst/herald/internal/config"
	"github.com/ifuryst/herald/internal/service/publisher"
)

func newTestPublishers() *Publishers {
	return NewPublishers(&config.PublisherConfig{
		Timeout:       5 * time.Second,
		RatePerSecond: 10,
		Burst:         10,
	}, zap.NewNop())
}

func TestPublishersBuildConfiguredPlatforms(t *testing.T) {
	settings := publisher.Settings{
		TelegramBotToken:   "bot",
		TelegramChannelID:  "@chan",
		TildaCookies:       "c",
		TildaProjectID:     "1",
		TildaFeedUID:       "2",
		VKAccessToken:      "vk",
		VKOwnerID:          "-100",
		OKAccessToken:      "ok",
		OKPublicKey:        "pk",
		OKAppSecret:        "sec",
		OKGroupID:          "g",
		FBAccessToken:      "fb",
		FBPageID:           "123",
		ThreadsAccessToken: "th",
		TwitterAuthToken:   "tw",
		BlueskyHandle:      "news.bsky.social",
		BlueskyAppPassword: "app",
	}
	f := newTestPublishers()

	for _, p := range publisher.Platforms {
		pub, ok := f.NewPublisher(p, settings)
		require.True(t, ok, "platform %s", p)
		assert.Equal(t, p, pub.Platform())
	}
}

func TestPublishersUnconfigured(t *testing.T) {
	f := newTestPublishers()
	for _, p := range publisher.Platforms {
		_, ok := f.NewPublisher(p, publisher.Settings{})
		assert.False(t, ok, "platform %s", p)
	}
}

func TestPublishersRejectBadProxy(t *testing.T) {
	f := newTestPublishers()
	settings := publisher.Settings{
		FBAccessToken: "fb",
		FBPageID:      "123",
		MetaProxyURL:  "socks5://127.0.0.1:1080",
	}
	_, ok := f.NewPublisher(publisher.PlatformFB, settings)
	assert.False(t, ok)
}

func TestPublishersRejectBadVKOwner(t *testing.T) {
	f := newTestPublishers()
	_, ok := f.NewPublisher(publisher.PlatformVK, publisher.Settings{VKAccessToken: "vk", VKOwnerID: "club1"})
	assert.False(t, ok)
}
