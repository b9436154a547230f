package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/pkg/errors"
	"github.com/ifuryst/herald/pkg/util"
)

const (
	DefaultBaseURL = "https://api.vk.com"
	apiVersion     = "5.199"
)

// VKPublisher posts to a user or community wall. Negative owner ids are communities.
type VKPublisher struct {
	client  *publisher.Client
	baseURL string
	token   string
	ownerID int64
}

type apiResponse struct {
	Response json.RawMessage `json:"response"`
	Error    *struct {
		Code int    `json:"error_code"`
		Msg  string `json:"error_msg"`
	} `json:"error"`
}

func NewVKPublisher(client *publisher.Client, baseURL, token, ownerID string) (*VKPublisher, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(ownerID), 10, 64)
	if err != nil || id == 0 {
		return nil, errors.Configuration("vk owner id %q is not a number", ownerID)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &VKPublisher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		ownerID: id,
	}, nil
}

func (p *VKPublisher) Platform() publisher.Platform {
	return publisher.PlatformVK
}

func (p *VKPublisher) Publish(ctx context.Context, pc publisher.PublishContext) *publisher.PublishResult {
	var attachments []string

	if pc.ImageURL != "" {
		photo, err := p.uploadPhoto(ctx, pc.ImageURL)
		if err != nil {
			p.client.Logger().Warn("VK image upload failed, posting text only",
				zap.String("content_id", pc.ContentID), zap.Error(err))
		} else {
			attachments = append(attachments, photo)
		}
	}

	message := util.StripTags(util.FirstNonEmpty(pc.ContentHTML, pc.Title))
	if pc.Title != "" && !strings.HasPrefix(message, pc.Title) {
		message = pc.Title + "\n\n" + message
	}
	if pc.SourceURL != "" && util.EndsWithColon(pc.ContentHTML) {
		if !strings.Contains(message, pc.SourceURL) {
			message += "\n\n" + pc.SourceURL
		}
		if len(attachments) == 0 {
			attachments = append(attachments, pc.SourceURL)
		}
	}

	fromGroup := "0"
	if p.ownerID < 0 {
		fromGroup = "1"
	}
	raw, err := p.call(ctx, "wall.post", url.Values{
		"owner_id":    {strconv.FormatInt(p.ownerID, 10)},
		"from_group":  {fromGroup},
		"message":     {message},
		"attachments": {strings.Join(attachments, ",")},
	})
	if err != nil {
		return publisher.Failed(err)
	}

	var post struct {
		PostID int64 `json:"post_id"`
	}
	if err := json.Unmarshal(raw, &post); err != nil || post.PostID == 0 {
		return publisher.Failed(p.client.RemoteError("wall.post returned no post id"))
	}

	id := strconv.FormatInt(post.PostID, 10)
	return &publisher.PublishResult{
		Success:      true,
		ExternalID:   id,
		PublishedURL: fmt.Sprintf("https://vk.com/wall%d_%s", p.ownerID, id),
	}
}

func (p *VKPublisher) uploadPhoto(ctx context.Context, imageURL string) (string, error) {
	group := url.Values{}
	if p.ownerID < 0 {
		group.Set("group_id", strconv.FormatInt(-p.ownerID, 10))
	}

	raw, err := p.call(ctx, "photos.getWallUploadServer", group)
	if err != nil {
		return "", err
	}
	var server struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.Unmarshal(raw, &server); err != nil || server.UploadURL == "" {
		return "", p.client.RemoteError("no upload url")
	}

	data, err := p.client.Download(ctx, imageURL)
	if err != nil {
		return "", err
	}
	req, err := publisher.NewMultipartRequest(ctx, server.UploadURL, "photo", "image.jpg", data, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Send(req)
	if err != nil {
		return "", err
	}
	var uploaded struct {
		Server json.Number `json:"server"`
		Photo  string      `json:"photo"`
		Hash   string      `json:"hash"`
	}
	if err := resp.JSON(&uploaded); err != nil {
		return "", err
	}

	params := url.Values{
		"photo":  {uploaded.Photo},
		"server": {uploaded.Server.String()},
		"hash":   {uploaded.Hash},
	}
	for k, v := range group {
		params[k] = v
	}
	raw, err = p.call(ctx, "photos.saveWallPhoto", params)
	if err != nil {
		return "", err
	}
	var saved []struct {
		ID      int64 `json:"id"`
		OwnerID int64 `json:"owner_id"`
	}
	if err := json.Unmarshal(raw, &saved); err != nil || len(saved) == 0 {
		return "", p.client.RemoteError("failed to save photo")
	}
	return fmt.Sprintf("photo%d_%d", saved[0].OwnerID, saved[0].ID), nil
}

func (p *VKPublisher) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("access_token", p.token)
	q.Set("v", apiVersion)

	// Messages can be long, so parameters go in the body.
	req, err := publisher.NewFormRequest(ctx, fmt.Sprintf("%s/method/%s", p.baseURL, method), q)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Send(req)
	if err != nil {
		return nil, err
	}
	var out apiResponse
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	if out.Error != nil {
		return nil, p.client.RemoteError("%s: %s (code %d)", method, out.Error.Msg, out.Error.Code)
	}
	return out.Response, nil
}
