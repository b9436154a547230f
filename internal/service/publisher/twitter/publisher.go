package twitter

import (
	"context"
	"encoding/base64"
	"net/http"
	"regexp"
	"strings"

	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/pkg/util"
)

const (
	DefaultEndpoint = "https://x.com/i/api/graphql/z0m4Q8u_67R9VOSMXU_MWg/CreateTweet"
	queryID         = "z0m4Q8u_67R9VOSMXU_MWg"

	// Public bearer token of the x.com web client.
	webBearer = "AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"

	tweetLimit = 280
)

var (
	ct0Re             = regexp.MustCompile(`ct0=([^;]+)`)
	linkPlaceholderRe = regexp.MustCompile(`(?i)\[LINK\]`)
)

// TwitterPublisher posts through the web client's GraphQL endpoint using a
// browser session cookie.
type TwitterPublisher struct {
	client   *publisher.Client
	endpoint string
	cookie   string
	csrf     string
}

// NewTwitterPublisher accepts the session cookie either raw or base64-encoded.
func NewTwitterPublisher(client *publisher.Client, endpoint, authToken string) *TwitterPublisher {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	cookie := DecodeCookie(authToken)
	var csrf string
	if m := ct0Re.FindStringSubmatch(cookie); len(m) > 1 {
		csrf = m[1]
	}
	return &TwitterPublisher{client: client, endpoint: endpoint, cookie: cookie, csrf: csrf}
}

// DecodeCookie returns the cookie header stored in token, terminated by ';'.
func DecodeCookie(token string) string {
	token = strings.TrimSpace(token)
	cookie := token
	if decoded, err := base64.StdEncoding.DecodeString(token); err == nil && strings.Contains(string(decoded), "=") {
		cookie = strings.TrimSpace(string(decoded))
	}
	if !strings.Contains(cookie, "=") {
		cookie = "auth_token=" + cookie
	}
	if !strings.HasSuffix(cookie, ";") {
		cookie += ";"
	}
	return cookie
}

func (p *TwitterPublisher) Platform() publisher.Platform {
	return publisher.PlatformX
}

func (p *TwitterPublisher) Publish(ctx context.Context, pc publisher.PublishContext) *publisher.PublishResult {
	// The title is already part of the generated announce.
	text := util.HTMLToText(pc.ContentHTML)
	text = linkPlaceholderRe.ReplaceAllString(text, strings.TrimSpace(pc.SourceURL))
	text = util.TruncateWithEllipsis(text, tweetLimit)

	payload := map[string]any{
		"variables": map[string]any{
			"tweet_text":               text,
			"dark_request":             false,
			"media":                    map[string]any{"media_entities": []any{}, "possibly_sensitive": false},
			"disallowed_reply_options": nil,
			"semantic_annotation_ids":  []any{},
		},
		"features": map[string]bool{
			"tweetypie_unmention_optimization_enabled":                                true,
			"responsive_web_edit_tweet_api_enabled":                                   true,
			"graphql_is_translatable_rweb_tweet_is_translatable_enabled":              true,
			"view_counts_everywhere_api_enabled":                                      true,
			"longform_notetweets_consumption_enabled":                                 true,
			"responsive_web_twitter_article_tweet_consumption_enabled":                true,
			"tweet_awards_web_tipping_enabled":                                        false,
			"freedom_of_speech_not_reach_fetch_enabled":                               true,
			"standardized_nudges_misinfo":                                             true,
			"tweet_with_visibility_results_prefer_gql_limited_actions_policy_enabled": true,
			"longform_notetweets_rich_text_read_enabled":                              true,
			"longform_notetweets_inline_media_enabled":                                true,
			"responsive_web_graphql_exclude_directive_enabled":                        true,
			"verified_phone_label_enabled":                                            false,
			"responsive_web_graphql_skip_user_profile_image_extensions_enabled":       false,
			"responsive_web_graphql_timeline_navigation_enabled":                      true,
			"responsive_web_enhance_cards_enabled":                                    false,
		},
		"queryId": queryID,
	}

	req, err := publisher.NewJSONRequest(ctx, http.MethodPost, p.endpoint, payload)
	if err != nil {
		return publisher.Failed(err)
	}
	req.Header.Set("Authorization", "Bearer "+webBearer)
	req.Header.Set("Cookie", p.cookie)
	req.Header.Set("X-Csrf-Token", p.csrf)
	req.Header.Set("X-Twitter-Active-User", "yes")
	req.Header.Set("X-Twitter-Auth-Type", "OAuth2Session")
	req.Header.Set("Origin", "https://x.com")
	req.Header.Set("Referer", "https://x.com/compose/post")

	resp, err := p.client.Send(req)
	if err != nil {
		return publisher.Failed(err)
	}

	var out struct {
		Data struct {
			CreateTweet struct {
				TweetResults struct {
					Result struct {
						RestID string `json:"rest_id"`
					} `json:"result"`
				} `json:"tweet_results"`
			} `json:"create_tweet"`
		} `json:"data"`
		Errors []struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	// Error pages are not always JSON; fall through to the status checks.
	_ = resp.JSON(&out)

	if id := out.Data.CreateTweet.TweetResults.Result.RestID; id != "" {
		return &publisher.PublishResult{
			Success:      true,
			ExternalID:   id,
			PublishedURL: "https://x.com/i/web/status/" + id,
		}
	}

	msg := "authentication rejected by x.com"
	code := 0
	if len(out.Errors) > 0 {
		msg, code = out.Errors[0].Message, out.Errors[0].Code
	}
	switch {
	case code == 226:
		return publisher.Failed(p.client.RemoteError("automation detected (226), refresh the session cookie"))
	case resp.Status == http.StatusUnauthorized || strings.Contains(msg, "authenticate"):
		return publisher.Failed(p.client.RemoteError("session expired, update the auth token"))
	}
	return publisher.Failed(p.client.RemoteError("%s", msg))
}
