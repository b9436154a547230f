package bluesky

import (
	"context"
	"fmt"
	"strings"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"

	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/pkg/errors"
	strutil "github.com/ifuryst/herald/pkg/util"
)

const (
	DefaultHost = "https://bsky.social"
	postLimit   = 300
)

// BlueskyPublisher creates app.bsky.feed.post records with an app password session.
type BlueskyPublisher struct {
	client   *publisher.Client
	host     string
	handle   string
	password string
}

func NewBlueskyPublisher(client *publisher.Client, host, handle, appPassword string) *BlueskyPublisher {
	if host == "" {
		host = DefaultHost
	}
	return &BlueskyPublisher{
		client:   client,
		host:     strings.TrimRight(host, "/"),
		handle:   handle,
		password: appPassword,
	}
}

func (p *BlueskyPublisher) Platform() publisher.Platform {
	return publisher.PlatformBsky
}

func (p *BlueskyPublisher) Publish(ctx context.Context, pc publisher.PublishContext) *publisher.PublishResult {
	xc, err := p.createSession(ctx)
	if err != nil {
		return publisher.Failed(err)
	}

	text, facets := ComposePost(pc)
	post := &appbsky.FeedPost{
		Text:      text,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Facets:    facets,
		Langs:     []string{"ru"},
	}

	if err := p.client.Wait(ctx); err != nil {
		return publisher.Failed(err)
	}
	resp, err := comatproto.RepoCreateRecord(ctx, xc, &comatproto.RepoCreateRecord_Input{
		Collection: "app.bsky.feed.post",
		Repo:       xc.Auth.Did,
		Record:     &util.LexiconTypeDecoder{Val: post},
	})
	if err != nil {
		return publisher.Failed(p.wrap(err, "create post"))
	}

	return &publisher.PublishResult{
		Success:      true,
		ExternalID:   resp.Uri,
		PublishedURL: PostURL(xc.Auth.Handle, resp.Uri),
		RawResponse:  map[string]any{"uri": resp.Uri, "cid": resp.Cid},
	}
}

func (p *BlueskyPublisher) createSession(ctx context.Context) (*xrpc.Client, error) {
	xc := &xrpc.Client{
		Client: p.client.HTTPClient(),
		Host:   p.host,
	}
	if err := p.client.Wait(ctx); err != nil {
		return nil, err
	}
	session, err := comatproto.ServerCreateSession(ctx, xc, &comatproto.ServerCreateSession_Input{
		Identifier: p.handle,
		Password:   p.password,
	})
	if err != nil {
		return nil, p.wrap(err, "create session for "+p.handle)
	}
	xc.Auth = &xrpc.AuthInfo{
		AccessJwt:  session.AccessJwt,
		RefreshJwt: session.RefreshJwt,
		Handle:     session.Handle,
		Did:        session.Did,
	}
	return xc, nil
}

func (p *BlueskyPublisher) wrap(err error, op string) error {
	var xe *xrpc.Error
	if errors.As(err, &xe) {
		return errors.Mark(errors.Wrapf(err, "bsky: %s (status %d)", op, xe.StatusCode), errors.ErrRemoteAPI)
	}
	return p.client.Classify(err, op)
}

// ComposePost renders the announce as plain text within the post limit and
// marks the back-link as a link facet.
func ComposePost(pc publisher.PublishContext) (string, []*appbsky.RichtextFacet) {
	text := strutil.HTMLToText(pc.ContentHTML)
	if text == "" {
		text = pc.Title
	}

	link := strings.TrimSpace(pc.SourceURL)
	withPlaceholder := strings.Contains(strings.ToUpper(text), "[LINK]")
	if !withPlaceholder && (link == "" || !strutil.EndsWithColon(pc.ContentHTML)) {
		return strutil.TruncateWithEllipsis(text, postLimit), nil
	}

	var body string
	if withPlaceholder {
		body = strings.TrimSpace(strings.NewReplacer("[LINK]", "", "[link]", "").Replace(text))
	} else {
		body = text
	}
	if link == "" {
		return strutil.TruncateWithEllipsis(body, postLimit), nil
	}

	// Keep the link intact and shorten the body around it.
	room := postLimit - len([]rune(link)) - 1
	body = strutil.TruncateWithEllipsis(body, room)
	full := body + "\n" + link

	start := int64(len(body) + 1)
	facet := &appbsky.RichtextFacet{
		Index: &appbsky.RichtextFacet_ByteSlice{ByteStart: start, ByteEnd: start + int64(len(link))},
		Features: []*appbsky.RichtextFacet_Features_Elem{
			{RichtextFacet_Link: &appbsky.RichtextFacet_Link{Uri: link}},
		},
	}
	return full, []*appbsky.RichtextFacet{facet}
}

// PostURL turns at://did/app.bsky.feed.post/rkey into a bsky.app link.
func PostURL(handle, uri string) string {
	idx := strings.LastIndex(uri, "/")
	if idx == -1 || handle == "" {
		return ""
	}
	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", handle, uri[idx+1:])
}
