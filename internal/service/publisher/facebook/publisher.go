package facebook

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/pkg/util"
)

const (
	DefaultBaseURL = "https://graph.facebook.com"
	graphVersion   = "v21.0"
)

// FacebookPublisher posts to a page feed, or to page photos when an image is present.
type FacebookPublisher struct {
	client  *publisher.Client
	baseURL string
	token   string
	pageID  string
}

func NewFacebookPublisher(client *publisher.Client, baseURL, token, pageID string) *FacebookPublisher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &FacebookPublisher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		pageID:  pageID,
	}
}

func (p *FacebookPublisher) Platform() publisher.Platform {
	return publisher.PlatformFB
}

func (p *FacebookPublisher) Publish(ctx context.Context, pc publisher.PublishContext) *publisher.PublishResult {
	message := util.StripTags(util.FirstNonEmpty(pc.ContentHTML, pc.Title))
	if pc.Title != "" && !strings.Contains(message, pc.Title) {
		message = pc.Title + "\n\n" + message
	}
	if pc.SourceURL != "" && util.EndsWithColon(pc.ContentHTML) && !strings.Contains(message, pc.SourceURL) {
		message += "\n\n" + pc.SourceURL
	}

	endpoint := fmt.Sprintf("%s/%s/%s/feed", p.baseURL, graphVersion, p.pageID)
	payload := map[string]string{"access_token": p.token, "message": message}
	if pc.ImageURL != "" {
		endpoint = fmt.Sprintf("%s/%s/%s/photos", p.baseURL, graphVersion, p.pageID)
		payload = map[string]string{"access_token": p.token, "url": pc.ImageURL, "caption": message}
	}

	req, err := publisher.NewJSONRequest(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return publisher.Failed(err)
	}
	resp, err := p.client.Send(req)
	if err != nil {
		return publisher.Failed(err)
	}

	var out struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := resp.JSON(&out); err != nil {
		return publisher.Failed(err)
	}
	if out.Error != nil {
		return publisher.Failed(p.client.RemoteError("%s", out.Error.Message))
	}

	// Photo posts return both; post_id is the feed story.
	id := util.FirstNonEmpty(out.PostID, out.ID)
	if id == "" {
		return publisher.Failed(p.client.RemoteError("graph api returned no id (status %d)", resp.Status))
	}
	return &publisher.PublishResult{
		Success:      true,
		ExternalID:   id,
		PublishedURL: "https://facebook.com/" + id,
	}
}
