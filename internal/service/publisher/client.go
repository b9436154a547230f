package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ifuryst/herald/pkg/errors"
	"github.com/ifuryst/herald/pkg/util"
)

const (
	DefaultTimeout = 60 * time.Second
	maxBodyBytes   = 20 << 20

	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36"
)

// Client is the outbound HTTP client every adapter goes through. It waits on
// the platform's rate limiter and classifies failures into the network,
// timeout and remote API categories.
type Client struct {
	platform Platform
	http     *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func NewClient(platform Platform, httpClient *http.Client, limiter *rate.Limiter, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		platform: platform,
		http:     httpClient,
		limiter:  limiter,
		logger:   logger.With(zap.String("platform", string(platform))),
	}
}

// WithProxy returns a copy of c that sends requests through proxyURL.
func (c *Client) WithProxy(proxyURL string) (*Client, error) {
	if proxyURL == "" {
		return c, nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.Configuration("invalid proxy url for %s", c.platform)
	}
	hc := *c.http
	hc.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
	cp := *c
	cp.http = &hc
	return &cp, nil
}

// WithoutRedirects returns a copy of c that reports 3xx responses as-is.
func (c *Client) WithoutRedirects() *Client {
	hc := *c.http
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	cp := *c
	cp.http = &hc
	return &cp
}

func (c *Client) Logger() *zap.Logger {
	return c.logger
}

// HTTPClient exposes the underlying client for SDKs that drive HTTP themselves.
// Such callers must call Wait before each request.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Wait blocks on the platform's rate limiter.
func (c *Client) Wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		// Wait fails only when the deadline cannot be met.
		return errors.Mark(errors.Wrapf(err, "%s: rate limiter", c.platform), errors.ErrTimeout)
	}
	return nil
}

// Classify marks an SDK error as network or timeout.
func (c *Client) Classify(err error, op string) error {
	return c.classify(err, op)
}

// Send performs req and reads the whole body.
func (c *Client) Send(req *http.Request) (*Response, error) {
	if err := c.Wait(req.Context()); err != nil {
		return nil, err
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}

	c.logger.Debug("Sending request",
		zap.String("method", req.Method),
		zap.String("host", req.URL.Host),
		zap.String("path", req.URL.Path))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.classify(err, req.Method+" "+req.URL.Host+req.URL.Path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.classify(err, "read response body")
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// Download fetches a remote file, used to re-upload images.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build download request")
	}
	resp, err := c.Send(req)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, c.RemoteError("download image: status %d", resp.Status)
	}
	return resp.Body, nil
}

// RemoteError builds an error marked as a remote API failure.
func (c *Client) RemoteError(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf("%s: "+format, append([]interface{}{c.platform}, args...)...), errors.ErrRemoteAPI)
}

func (c *Client) classify(err error, op string) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Mark(errors.Wrapf(err, "%s: %s", c.platform, op), errors.ErrTimeout)
	case errors.As(err, &netErr) && netErr.Timeout():
		return errors.Mark(errors.Wrapf(err, "%s: %s", c.platform, op), errors.ErrTimeout)
	default:
		return errors.Mark(errors.Wrapf(err, "%s: %s", c.platform, op), errors.ErrNetwork)
	}
}

func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Mark(errors.Wrapf(err, "decode response (status %d): %s", r.Status, util.Truncate(string(r.Body), 200)), errors.ErrRemoteAPI)
	}
	return nil
}

// NewJSONRequest builds a request with a JSON body.
func NewJSONRequest(ctx context.Context, method, rawURL string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// NewFormRequest builds an urlencoded POST.
func NewFormRequest(ctx context.Context, rawURL string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	return req, nil
}

// NewMultipartRequest builds a POST carrying one file plus plain fields.
func NewMultipartRequest(ctx context.Context, rawURL, fileField, fileName string, data []byte, fields map[string]string) (*http.Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, errors.Wrap(err, "write form field")
		}
	}
	part, err := w.CreateFormFile(fileField, fileName)
	if err != nil {
		return nil, errors.Wrap(err, "create form file")
	}
	if _, err := part.Write(data); err != nil {
		return nil, errors.Wrap(err, "write form file")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, &buf)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}
