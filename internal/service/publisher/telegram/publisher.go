package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/pkg/util"
)

const (
	DefaultBaseURL = "https://api.telegram.org"

	captionLimit = 1024
	messageLimit = 4096
)

// TelegramPublisher posts announces to a channel through the Bot API.
type TelegramPublisher struct {
	client  *publisher.Client
	baseURL string
	token   string
	chatID  string
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64  `json:"message_id"`
		FilePath  string `json:"file_path"`
	} `json:"result"`
}

func NewTelegramPublisher(client *publisher.Client, baseURL, token, chatID string) *TelegramPublisher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &TelegramPublisher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		chatID:  chatID,
	}
}

func (p *TelegramPublisher) Platform() publisher.Platform {
	return publisher.PlatformTG
}

func (p *TelegramPublisher) Publish(ctx context.Context, pc publisher.PublishContext) *publisher.PublishResult {
	text := p.composeText(pc)

	// A rejected photo (bad URL, caption too long for HTML) falls back to text.
	if pc.ImageURL != "" {
		resp, err := p.call(ctx, "sendPhoto", map[string]any{
			"chat_id":    p.chatID,
			"photo":      pc.ImageURL,
			"caption":    util.Truncate(text, captionLimit),
			"parse_mode": "HTML",
		})
		if err == nil && resp.OK {
			return p.result(resp)
		}
		p.client.Logger().Warn("Telegram photo failed, retrying as text",
			zap.String("content_id", pc.ContentID),
			zap.Error(p.describe(resp, err)))
	}

	resp, err := p.call(ctx, "sendMessage", map[string]any{
		"chat_id":    p.chatID,
		"text":       util.Truncate(text, messageLimit),
		"parse_mode": "HTML",
	})
	if err != nil {
		return publisher.Failed(err)
	}
	if !resp.OK {
		return publisher.Failed(p.describe(resp, nil))
	}
	return p.result(resp)
}

func (p *TelegramPublisher) composeText(pc publisher.PublishContext) string {
	text := fmt.Sprintf("<b>%s</b>\n\n%s", pc.Title, pc.ContentHTML)
	if pc.SourceURL != "" && util.EndsWithColon(pc.ContentHTML) {
		text += "\n" + pc.SourceURL
	}
	return text
}

func (p *TelegramPublisher) result(resp *apiResponse) *publisher.PublishResult {
	id := strconv.FormatInt(resp.Result.MessageID, 10)
	res := &publisher.PublishResult{
		Success:    true,
		ExternalID: id,
		RawResponse: map[string]any{
			"message_id": resp.Result.MessageID,
		},
	}
	// Public channels have stable links; numeric chat ids do not.
	if name, ok := strings.CutPrefix(p.chatID, "@"); ok {
		res.PublishedURL = fmt.Sprintf("https://t.me/%s/%s", name, id)
	}
	return res
}

func (p *TelegramPublisher) describe(resp *apiResponse, err error) error {
	if err != nil {
		return err
	}
	if resp == nil || resp.Description == "" {
		return p.client.RemoteError("Telegram API error")
	}
	return p.client.RemoteError("%s", resp.Description)
}

func (p *TelegramPublisher) call(ctx context.Context, method string, payload map[string]any) (*apiResponse, error) {
	req, err := publisher.NewJSONRequest(ctx, http.MethodPost, p.methodURL(method), payload)
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
	return &out, nil
}

func (p *TelegramPublisher) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", p.baseURL, p.token, method)
}

// FileResolver turns Bot API file handles into temporary download URLs.
type FileResolver struct {
	client  *publisher.Client
	baseURL string
}

func NewFileResolver(client *publisher.Client, baseURL string) *FileResolver {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &FileResolver{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// FileURL resolves fileID via getFile. The returned URL expires after about an hour.
func (r *FileResolver) FileURL(ctx context.Context, token, fileID string) (string, error) {
	u := fmt.Sprintf("%s/bot%s/getFile?file_id=%s", r.baseURL, token, url.QueryEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Send(req)
	if err != nil {
		return "", err
	}
	var out apiResponse
	if err := resp.JSON(&out); err != nil {
		return "", err
	}
	if !out.OK || out.Result.FilePath == "" {
		return "", r.client.RemoteError("getFile: %s", util.FirstNonEmpty(out.Description, "no file path"))
	}
	return fmt.Sprintf("%s/file/bot%s/%s", r.baseURL, token, out.Result.FilePath), nil
}
