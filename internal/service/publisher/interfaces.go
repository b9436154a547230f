package publisher

import (
	"context"
	"strings"

	"github.com/ifuryst/herald/pkg/errors"
)

// Platform is the closed set of publish targets.
type Platform string

const (
	PlatformSite    Platform = "site"
	PlatformTG      Platform = "tg"
	PlatformVK      Platform = "vk"
	PlatformOK      Platform = "ok"
	PlatformFB      Platform = "fb"
	PlatformThreads Platform = "threads"
	PlatformX       Platform = "x"
	PlatformBsky    Platform = "bsky"
)

// Platforms lists every known platform in display order.
var Platforms = []Platform{
	PlatformSite, PlatformTG, PlatformVK, PlatformOK,
	PlatformFB, PlatformThreads, PlatformX, PlatformBsky,
}

// ParsePlatform accepts the stored platform keys. "tilda" is the historical
// name of the site feed.
func ParsePlatform(s string) (Platform, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "tilda" {
		return PlatformSite, nil
	}
	for _, p := range Platforms {
		if string(p) == key {
			return p, nil
		}
	}
	return "", errors.Validation("unknown platform %q", s)
}

// IsSiteClass reports whether jobs on p must run sequentially before the
// social platforms that link back to the site.
func (p Platform) IsSiteClass() bool {
	return p == PlatformSite
}

func (p Platform) String() string {
	return string(p)
}

// PublishContext is built per job invocation and discarded afterwards.
type PublishContext struct {
	ContentID   string
	Title       string
	ContentHTML string
	ImageURL    string
	SourceURL   string
	Settings    Settings
}

// PublishResult represents the result of a publish operation
type PublishResult struct {
	Success      bool
	ExternalID   string
	PublishedURL string
	RawResponse  map[string]any
	Error        error
}

// Failed builds an unsuccessful result.
func Failed(err error) *PublishResult {
	return &PublishResult{Success: false, Error: err}
}

// Publisher posts one piece of content to one platform. Every call attempts
// exactly one new remote post: there is no retry and no dedup.
type Publisher interface {
	Platform() Platform
	Publish(ctx context.Context, pc PublishContext) *PublishResult
}
