package service

import (
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ifuryst/herald/internal/config"
	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/internal/service/publisher/bluesky"
	"github.com/ifuryst/herald/internal/service/publisher/facebook"
	"github.com/ifuryst/herald/internal/service/publisher/ok"
	"github.com/ifuryst/herald/internal/service/publisher/telegram"
	"github.com/ifuryst/herald/internal/service/publisher/threads"
	"github.com/ifuryst/herald/internal/service/publisher/tilda"
	"github.com/ifuryst/herald/internal/service/publisher/twitter"
	"github.com/ifuryst/herald/internal/service/publisher/vk"
)

// Base URL override keys besides the platform names.
const siteUploadKey = "site_upload"

// PublisherFactory builds a publisher for one platform from a credential
// snapshot. It reports false when the platform is not configured.
type PublisherFactory interface {
	NewPublisher(p publisher.Platform, settings publisher.Settings) (publisher.Publisher, bool)
}

// Publishers is the production factory. Rate limiters live as long as the
// factory so that limits hold across dispatcher invocations.
type Publishers struct {
	logger   *zap.Logger
	http     *http.Client
	limiters map[publisher.Platform]*rate.Limiter
	baseURLs map[string]string
}

func NewPublishers(cfg *config.PublisherConfig, logger *zap.Logger) *Publishers {
	limiters := make(map[publisher.Platform]*rate.Limiter, len(publisher.Platforms))
	for _, p := range publisher.Platforms {
		limiters[p] = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	}
	return &Publishers{
		logger:   logger,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiters: limiters,
		baseURLs: cfg.BaseURLs,
	}
}

func (f *Publishers) client(p publisher.Platform) *publisher.Client {
	return publisher.NewClient(p, f.http, f.limiters[p], f.logger)
}

func (f *Publishers) baseURL(key string) string {
	return f.baseURLs[key]
}

// NewPublisher builds the adapter for p.
func (f *Publishers) NewPublisher(p publisher.Platform, s publisher.Settings) (publisher.Publisher, bool) {
	if !s.Configured(p) {
		return nil, false
	}

	switch p {
	case publisher.PlatformTG:
		return telegram.NewTelegramPublisher(f.client(p), f.baseURL("tg"), s.TelegramBotToken, s.TelegramChannelID), true

	case publisher.PlatformSite:
		endpoints := tilda.Endpoints{Feeds: f.baseURL("site"), Upload: f.baseURL(siteUploadKey)}
		return tilda.NewTildaPublisher(f.client(p), endpoints, s.TildaCookies, s.TildaProjectID, s.TildaFeedUID, s.TildaSiteURL), true

	case publisher.PlatformVK:
		pub, err := vk.NewVKPublisher(f.client(p), f.baseURL("vk"), s.VKAccessToken, s.VKOwnerID)
		if err != nil {
			f.logger.Warn("VK publisher misconfigured", zap.Error(err))
			return nil, false
		}
		return pub, true

	case publisher.PlatformOK:
		return ok.NewOKPublisher(f.client(p), f.baseURL("ok"), s.OKAccessToken, s.OKPublicKey, s.OKAppSecret, s.OKGroupID), true

	case publisher.PlatformFB:
		c, err := f.client(p).WithProxy(s.MetaProxyURL)
		if err != nil {
			f.logger.Warn("Facebook proxy misconfigured", zap.Error(err))
			return nil, false
		}
		return facebook.NewFacebookPublisher(c, f.baseURL("fb"), s.FBAccessToken, s.FBPageID), true

	case publisher.PlatformThreads:
		c, err := f.client(p).WithProxy(s.MetaProxyURL)
		if err != nil {
			f.logger.Warn("Threads proxy misconfigured", zap.Error(err))
			return nil, false
		}
		return threads.NewThreadsPublisher(c, f.baseURL("threads"), s.ThreadsAccessToken, s.ThreadsUserID), true

	case publisher.PlatformX:
		c, err := f.client(p).WithProxy(s.TwitterProxyURL)
		if err != nil {
			f.logger.Warn("X proxy misconfigured", zap.Error(err))
			return nil, false
		}
		return twitter.NewTwitterPublisher(c, f.baseURL("x"), s.TwitterAuthToken), true

	case publisher.PlatformBsky:
		host := s.BlueskyHost
		if host == "" {
			host = f.baseURL("bsky")
		}
		return bluesky.NewBlueskyPublisher(f.client(p), host, s.BlueskyHandle, s.BlueskyAppPassword), true
	}

	return nil, false
}

// TelegramFiles resolves Telegram file handles to downloadable URLs.
func (f *Publishers) TelegramFiles() *telegram.FileResolver {
	return telegram.NewFileResolver(f.client(publisher.PlatformTG), f.baseURL("tg"))
}
