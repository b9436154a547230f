package ok

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/pkg/util"
)

const DefaultBaseURL = "https://api.ok.ru"

// OKPublisher posts group topics through the OK.ru REST API.
type OKPublisher struct {
	client    *publisher.Client
	baseURL   string
	token     string
	publicKey string
	secret    string
	groupID   string
}

func NewOKPublisher(client *publisher.Client, baseURL, token, publicKey, secret, groupID string) *OKPublisher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &OKPublisher{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		publicKey: publicKey,
		secret:    secret,
		groupID:   groupID,
	}
}

func (p *OKPublisher) Platform() publisher.Platform {
	return publisher.PlatformOK
}

func (p *OKPublisher) Publish(ctx context.Context, pc publisher.PublishContext) *publisher.PublishResult {
	var photoToken string
	if pc.ImageURL != "" {
		token, err := p.uploadPhoto(ctx, pc.ImageURL)
		if err != nil {
			p.client.Logger().Warn("OK photo upload failed, posting text only",
				zap.String("content_id", pc.ContentID), zap.Error(err))
		}
		photoToken = token
	}

	message := util.StripTags(util.FirstNonEmpty(pc.ContentHTML, pc.Title))
	if pc.Title != "" && !strings.Contains(message, pc.Title) {
		message = pc.Title + "\n\n" + message
	}
	if pc.SourceURL != "" && util.EndsWithColon(pc.ContentHTML) && !strings.Contains(message, pc.SourceURL) {
		message += "\n\n" + pc.SourceURL
	}

	media := []map[string]any{{"type": "text", "text": message}}
	if photoToken != "" {
		media = append(media, map[string]any{
			"type": "photo",
			"list": []map[string]string{{"id": photoToken}},
		})
	}
	attachment, err := json.Marshal(map[string]any{"media": media})
	if err != nil {
		return publisher.Failed(err)
	}

	body, err := p.call(ctx, map[string]string{
		"method":     "mediatopic.post",
		"gid":        p.groupID,
		"type":       "GROUP_THEME",
		"attachment": string(attachment),
	})
	if err != nil {
		return publisher.Failed(err)
	}

	// Success is the bare topic id, quoted or not.
	topicID := strings.Trim(strings.TrimSpace(string(body)), `"`)
	if topicID == "" {
		return publisher.Failed(p.client.RemoteError("mediatopic.post returned no topic id"))
	}
	return &publisher.PublishResult{
		Success:      true,
		ExternalID:   topicID,
		PublishedURL: fmt.Sprintf("https://ok.ru/group/%s/topic/%s", p.groupID, topicID),
	}
}

func (p *OKPublisher) uploadPhoto(ctx context.Context, imageURL string) (string, error) {
	body, err := p.call(ctx, map[string]string{
		"method": "photosV2.getUploadUrl",
		"gid":    p.groupID,
		"count":  "1",
	})
	if err != nil {
		return "", err
	}
	var server struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.Unmarshal(body, &server); err != nil || server.UploadURL == "" {
		return "", p.client.RemoteError("no upload url: %s", util.Truncate(string(body), 200))
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
		Photos map[string]struct {
			Token string `json:"token"`
		} `json:"photos"`
	}
	if err := resp.JSON(&uploaded); err != nil {
		return "", err
	}
	for _, photo := range uploaded.Photos {
		if photo.Token != "" {
			return photo.Token, nil
		}
	}
	return "", p.client.RemoteError("upload returned no photo token")
}

// call signs params and posts them to fb.do. It returns the raw body on success.
func (p *OKPublisher) call(ctx context.Context, params map[string]string) ([]byte, error) {
	params["application_key"] = p.publicKey
	params["format"] = "json"

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("sig", Signature(params, p.token, p.secret))
	q.Set("access_token", p.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/fb.do?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Send(req)
	if err != nil {
		return nil, err
	}

	var apiErr struct {
		Code int    `json:"error_code"`
		Msg  string `json:"error_msg"`
	}
	if json.Unmarshal(resp.Body, &apiErr) == nil && apiErr.Code != 0 {
		return nil, p.client.RemoteError("%s: %s (code %d)", params["method"], apiErr.Msg, apiErr.Code)
	}
	if !resp.OK() {
		return nil, p.client.RemoteError("%s returned status %d", params["method"], resp.Status)
	}
	return resp.Body, nil
}

// Signature is md5 over the sorted key=value pairs followed by the session
// secret md5(accessToken + appSecret).
func Signature(params map[string]string, accessToken, appSecret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	b.WriteString(md5Hex(accessToken + appSecret))
	return md5Hex(b.String())
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
