package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ifuryst/herald/internal/models"
	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/pkg/util"
)

// FileURLResolver resolves a messaging platform file handle to a temporary URL.
type FileURLResolver interface {
	FileURL(ctx context.Context, token, fileID string) (string, error)
}

// IsStableImageURL reports whether ref is an absolute URL on a durable host.
// Telegram file URLs expire and are not stable.
func IsStableImageURL(ref string) bool {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		return false
	}
	return !strings.Contains(ref, "telegram.org")
}

// ResolveImageURL picks the image reference to publish with on platform.
// A stable URL is returned unchanged for every platform.
func ResolveImageURL(ctx context.Context, item *models.ContentItem, platform publisher.Platform, settings publisher.Settings, resolver FileURLResolver, logger *zap.Logger) string {
	stored := []string{util.Deref(item.DraftImageURL), util.Deref(item.ImageURL)}
	for _, ref := range stored {
		if IsStableImageURL(ref) {
			return strings.TrimSpace(ref)
		}
	}
	raw := strings.TrimSpace(util.FirstNonEmpty(stored...))

	fileID := strings.TrimSpace(util.Deref(item.DraftImageFileID))
	if fileID == "" || settings.TelegramBotToken == "" {
		return raw
	}
	if platform == publisher.PlatformTG {
		// The Bot API accepts its own file handles.
		return fileID
	}
	if resolver == nil {
		return raw
	}

	u, err := resolver.FileURL(ctx, settings.TelegramBotToken, fileID)
	if err != nil {
		logger.Warn("Failed to resolve image file handle, using stored reference",
			zap.String("content_id", item.Ref.String()),
			zap.String("platform", platform.String()),
			zap.Error(err))
		return raw
	}
	return u
}

// StableImageFromResponse extracts a durable image URL from a site
// publisher's raw response.
func StableImageFromResponse(raw map[string]any) string {
	for _, key := range []string{"image", "thumb"} {
		if s, ok := raw[key].(string); ok && IsStableImageURL(s) {
			return s
		}
	}
	return ""
}
