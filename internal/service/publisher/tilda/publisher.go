package tilda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/pkg/errors"
	"github.com/ifuryst/herald/pkg/util"
)

const (
	DefaultFeedsURL  = "https://feeds.tilda.ru"
	DefaultUploadURL = "https://upload.tildacdn.com"
)

var (
	publicKeyRe = []*regexp.Regexp{
		regexp.MustCompile(`(?i)publickey\s*[:=]\s*["']([^"']+)["']`),
		regexp.MustCompile(`(?i)name=["']publickey["']\s+value=["']([^"']+)["']`),
	}
	uploadKeyRe = []*regexp.Regexp{
		regexp.MustCompile(`(?i)uploadkey\s*[:=]\s*["']([^"']+)["']`),
		regexp.MustCompile(`(?i)name=["']uploadkey["']\s+value=["']([^"']+)["']`),
	}
	paragraphRe = regexp.MustCompile(`\n\s*\n`)
)

// Endpoints lets tests point the adapter at a fake feed service.
type Endpoints struct {
	Feeds  string
	Upload string
}

// TildaPublisher creates feed posts on the site through the cookie-authenticated
// feeds editor. It is the canonical site publisher.
type TildaPublisher struct {
	client    *publisher.Client
	endpoints Endpoints
	cookies   string
	projectID string
	feedUID   string
	siteURL   string
}

type keys struct {
	public string
	upload string
}

func NewTildaPublisher(client *publisher.Client, endpoints Endpoints, cookies, projectID, feedUID, siteURL string) *TildaPublisher {
	if endpoints.Feeds == "" {
		endpoints.Feeds = DefaultFeedsURL
	}
	if endpoints.Upload == "" {
		endpoints.Upload = DefaultUploadURL
	}
	return &TildaPublisher{
		client:    client,
		endpoints: endpoints,
		cookies:   NormalizeCookies(cookies),
		projectID: strings.TrimSpace(projectID),
		feedUID:   strings.TrimSpace(feedUID),
		siteURL:   strings.TrimRight(siteURL, "/"),
	}
}

// NormalizeCookies accepts either a full cookie header or a bare session id.
func NormalizeCookies(cookies string) string {
	cookies = strings.TrimSpace(cookies)
	if cookies != "" && !strings.Contains(cookies, ";") && !strings.Contains(cookies, "=") {
		return "PHPSESSID=" + cookies
	}
	return cookies
}

func (p *TildaPublisher) Platform() publisher.Platform {
	return publisher.PlatformSite
}

func (p *TildaPublisher) Publish(ctx context.Context, pc publisher.PublishContext) *publisher.PublishResult {
	logger := p.client.Logger().With(zap.String("content_id", pc.ContentID))

	k, err := p.fetchKeys(ctx)
	if err != nil {
		return publisher.Failed(err)
	}

	// A site post without its image is worse than no post: abort.
	var imageURL string
	if pc.ImageURL != "" {
		imageURL, err = p.uploadImage(ctx, pc.ImageURL, k)
		if err != nil {
			return publisher.Failed(errors.Wrap(err, "image upload failed"))
		}
		logger.Debug("Image uploaded to CDN", zap.String("url", imageURL))
	}

	postUID, err := p.addPost(ctx, pc.Title)
	if err != nil {
		return publisher.Failed(err)
	}
	if err := p.editPost(ctx, postUID, pc, imageURL); err != nil {
		return publisher.Failed(err)
	}
	if _, err := p.submit(ctx, url.Values{"postuid": {postUID}, "action": {"posts_Active"}}); err != nil {
		return publisher.Failed(errors.Wrap(err, "activate post"))
	}

	post := p.getPost(ctx, postUID, logger)
	if imageURL != "" && stringField(post, "image", "thumb") == "" {
		post["image"] = imageURL
	}

	slug := util.FirstNonEmpty(stringField(post, "postdefaulturl"), stringField(post, "slug"), stringField(post, "postalias"), postUID)
	result := &publisher.PublishResult{
		Success:     true,
		ExternalID:  postUID,
		RawResponse: post,
	}
	if p.siteURL != "" {
		result.PublishedURL = fmt.Sprintf("%s/tpost/%s", p.siteURL, slug)
	} else {
		logger.Warn("Site URL is not configured, published_url left empty")
	}

	logger.Info("Site post published", zap.String("post_uid", postUID), zap.String("url", result.PublishedURL))
	return result
}

func (p *TildaPublisher) fetchKeys(ctx context.Context) (keys, error) {
	u := fmt.Sprintf("%s/posts/?feeduid=%s&projectid=%s", p.endpoints.Feeds, url.QueryEscape(p.feedUID), url.QueryEscape(p.projectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return keys{}, err
	}
	p.setHeaders(req)

	resp, err := p.client.WithoutRedirects().Send(req)
	if err != nil {
		return keys{}, err
	}
	if resp.Status >= 300 && resp.Status < 400 {
		return keys{}, p.client.RemoteError("redirected to %s, session expired?", resp.Header.Get("Location"))
	}
	if !resp.OK() {
		return keys{}, p.client.RemoteError("feed page returned status %d", resp.Status)
	}

	html := string(resp.Body)
	k := keys{public: firstMatch(publicKeyRe, html), upload: firstMatch(uploadKeyRe, html)}
	if k.public == "" || k.upload == "" {
		return keys{}, p.client.RemoteError("failed to extract keys, session might be expired: %s",
			util.Truncate(strings.Join(strings.Fields(html), " "), 300))
	}
	return k, nil
}

func (p *TildaPublisher) uploadImage(ctx context.Context, source string, k keys) (string, error) {
	data, err := p.client.Download(ctx, source)
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/api/upload/?publickey=%s&uploadkey=%s", p.endpoints.Upload, url.QueryEscape(k.public), url.QueryEscape(k.upload))
	req, err := publisher.NewMultipartRequest(ctx, u, "file", "image.jpg", data, map[string]string{
		"publickey": k.public,
		"uploadkey": k.upload,
	})
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Origin", p.endpoints.Feeds)
	req.Header.Set("Referer", p.endpoints.Feeds+"/")

	resp, err := p.client.Send(req)
	if err != nil {
		return "", err
	}

	var body map[string]any
	if err := resp.JSON(&body); err != nil {
		return "", err
	}
	item := body
	if list, ok := body["result"].([]any); ok && len(list) > 0 {
		if first, ok := list[0].(map[string]any); ok {
			item = first
		}
	}
	cdnURL := stringField(item, "cdnUrl", "url", "file")
	if cdnURL == "" {
		return "", p.client.RemoteError("upload returned no url: %s", util.Truncate(string(resp.Body), 300))
	}
	return cdnURL, nil
}

func (p *TildaPublisher) addPost(ctx context.Context, title string) (string, error) {
	body, err := p.submit(ctx, url.Values{
		"feeduid": {p.feedUID},
		"partuid": {""},
		"title":   {title},
		"action":  {"posts_Add"},
	})
	if err != nil {
		return "", errors.Wrap(err, "create draft")
	}
	data, _ := body["data"].(map[string]any)
	uid := util.FirstNonEmpty(stringField(body, "postuid"), stringField(data, "uid"), stringField(body, "uid"), stringField(data, "postuid"))
	if uid == "" {
		return "", p.client.RemoteError("create draft: no post uid returned")
	}
	return uid, nil
}

func (p *TildaPublisher) editPost(ctx context.Context, postUID string, pc publisher.PublishContext, imageURL string) error {
	blocks := make([]map[string]string, 0, 4)
	if imageURL != "" {
		blocks = append(blocks, map[string]string{"ty": "image", "url": imageURL, "zoomin": "y"})
	}
	for _, para := range paragraphRe.Split(pc.ContentHTML, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		blocks = append(blocks, map[string]string{"ty": "text", "te": strings.ReplaceAll(para, "\n", "<br>")})
	}
	text, err := json.Marshal(blocks)
	if err != nil {
		return errors.Wrap(err, "encode post blocks")
	}

	form := url.Values{
		"action":  {"posts_Edit"},
		"postuid": {postUID},
		"feeduid": {p.feedUID},
		"title":   {pc.Title},
		"text":    {string(text)},
	}
	if imageURL != "" {
		form.Set("mediatype", "image")
		form.Set("mediadata", "")
		form.Set("image", imageURL)
		form.Set("thumb", imageURL)
	}

	if _, err := p.submit(ctx, form); err != nil {
		return errors.Wrap(err, "update post content")
	}
	return nil
}

// getPost reads the post back for its public slug. Failures here are not
// fatal: the post is already live.
func (p *TildaPublisher) getPost(ctx context.Context, postUID string, logger *zap.Logger) map[string]any {
	body, err := p.submit(ctx, url.Values{"postuid": {postUID}, "action": {"posts_Get"}})
	if err != nil {
		logger.Warn("Failed to read back post", zap.String("post_uid", postUID), zap.Error(err))
		return map[string]any{}
	}
	for _, key := range []string{"post", "data"} {
		if nested, ok := body[key].(map[string]any); ok {
			return nested
		}
	}
	return body
}

func (p *TildaPublisher) submit(ctx context.Context, form url.Values) (map[string]any, error) {
	req, err := publisher.NewFormRequest(ctx, p.endpoints.Feeds+"/submit/", form)
	if err != nil {
		return nil, err
	}
	p.setHeaders(req)
	req.Header.Set("Accept", "*/*")

	resp, err := p.client.Send(req)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, p.client.RemoteError("%s returned status %d", form.Get("action"), resp.Status)
	}

	var body map[string]any
	if err := resp.JSON(&body); err != nil {
		return nil, err
	}
	if msg := stringField(body, "error"); msg != "" {
		return nil, p.client.RemoteError("%s: %s", form.Get("action"), msg)
	}
	return body, nil
}

func (p *TildaPublisher) setHeaders(req *http.Request) {
	req.Header.Set("Cookie", p.cookies)
	req.Header.Set("Origin", p.endpoints.Feeds)
	req.Header.Set("Referer", p.endpoints.Feeds+"/")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
}

func firstMatch(patterns []*regexp.Regexp, s string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(s); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

// stringField returns the first non-empty string-ish value among keys.
func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
