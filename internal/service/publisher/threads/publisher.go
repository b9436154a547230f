package threads

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/pkg/util"
)

const DefaultBaseURL = "https://graph.threads.net/v1.0"

var linkPlaceholderRe = regexp.MustCompile(`(?i)\[LINK\]`)

// ThreadsPublisher uses the two-step container/publish flow of the Threads API.
type ThreadsPublisher struct {
	client  *publisher.Client
	baseURL string
	token   string
	userID  string

	// Containers need a moment before they can be published.
	imageSettle time.Duration
	textSettle  time.Duration
}

type graphResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewThreadsPublisher(client *publisher.Client, baseURL, token, userID string) *ThreadsPublisher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &ThreadsPublisher{
		client:      client,
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		userID:      userID,
		imageSettle: 6 * time.Second,
		textSettle:  time.Second,
	}
}

// WithSettleDelays overrides the wait between container creation and publish.
func (p *ThreadsPublisher) WithSettleDelays(image, text time.Duration) *ThreadsPublisher {
	p.imageSettle = image
	p.textSettle = text
	return p
}

func (p *ThreadsPublisher) Platform() publisher.Platform {
	return publisher.PlatformThreads
}

func (p *ThreadsPublisher) Publish(ctx context.Context, pc publisher.PublishContext) *publisher.PublishResult {
	userID := p.userID
	if userID == "" {
		id, err := p.resolveUserID(ctx)
		if err != nil {
			return publisher.Failed(err)
		}
		userID = id
	}

	text := util.HTMLToText(pc.ContentHTML)
	text = linkPlaceholderRe.ReplaceAllString(text, pc.SourceURL)

	if strings.HasPrefix(pc.ImageURL, "http") {
		res, err := p.publish(ctx, userID, "IMAGE", text, pc.ImageURL)
		if err == nil {
			return res
		}
		p.client.Logger().Warn("Threads image post failed, falling back to text",
			zap.String("content_id", pc.ContentID), zap.Error(err))
	}

	res, err := p.publish(ctx, userID, "TEXT", text, "")
	if err != nil {
		return publisher.Failed(err)
	}
	return res
}

func (p *ThreadsPublisher) publish(ctx context.Context, userID, mediaType, text, imageURL string) (*publisher.PublishResult, error) {
	container := map[string]string{
		"media_type":   mediaType,
		"text":         text,
		"access_token": p.token,
	}
	if mediaType == "IMAGE" {
		container["image_url"] = imageURL
	}
	created, err := p.post(ctx, fmt.Sprintf("%s/%s/threads", p.baseURL, userID), container)
	if err != nil {
		return nil, err
	}

	settle := p.textSettle
	if mediaType == "IMAGE" {
		settle = p.imageSettle
	}
	select {
	case <-time.After(settle):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	published, err := p.post(ctx, fmt.Sprintf("%s/%s/threads_publish", p.baseURL, userID), map[string]string{
		"creation_id":  created.ID,
		"access_token": p.token,
	})
	if err != nil {
		return nil, err
	}

	return &publisher.PublishResult{
		Success:      true,
		ExternalID:   published.ID,
		PublishedURL: "https://www.threads.net/t/" + published.ID,
	}, nil
}

func (p *ThreadsPublisher) post(ctx context.Context, endpoint string, payload map[string]string) (*graphResponse, error) {
	req, err := publisher.NewJSONRequest(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Send(req)
	if err != nil {
		return nil, err
	}
	var out graphResponse
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		msg := "request failed"
		if out.Error != nil {
			msg = out.Error.Message
		}
		return nil, p.client.RemoteError("%s", msg)
	}
	return &out, nil
}

func (p *ThreadsPublisher) resolveUserID(ctx context.Context) (string, error) {
	u := fmt.Sprintf("%s/me?fields=id&access_token=%s", p.baseURL, url.QueryEscape(p.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Send(req)
	if err != nil {
		return "", err
	}
	var out graphResponse
	if err := resp.JSON(&out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", p.client.RemoteError("could not resolve user id")
	}
	return out.ID, nil
}
