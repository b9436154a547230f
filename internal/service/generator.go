package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/herald/internal/config"
	"github.com/ifuryst/herald/pkg/errors"
	"github.com/ifuryst/herald/pkg/util"
)

// Generator fills in the drafts of an approved item. It is called once per
// approval and must tolerate being called again after a rollback.
type Generator interface {
	Generate(ctx context.Context, newsID string) error
}

// NewGenerator returns the webhook generator, or a no-op one when no URL is configured.
func NewGenerator(cfg *config.GenerationConfig, logger *zap.Logger) Generator {
	if cfg.URL == "" {
		logger.Info("Generation webhook not configured, approvals skip generation")
		return NoopGenerator{}
	}
	return &WebhookGenerator{
		url:    cfg.URL,
		token:  cfg.Token,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type NoopGenerator struct{}

func (NoopGenerator) Generate(context.Context, string) error { return nil }

// WebhookGenerator posts {"news_id": ...} to the generation pipeline and
// treats any non-2xx answer as a failure.
type WebhookGenerator struct {
	url    string
	token  string
	client *http.Client
	logger *zap.Logger
}

func (g *WebhookGenerator) Generate(ctx context.Context, newsID string) error {
	body, err := json.Marshal(map[string]string{"news_id": newsID})
	if err != nil {
		return errors.Wrap(err, "encode generation request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build generation request")
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "call generation pipeline"), errors.ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Mark(
			errors.Newf("generation pipeline returned %d: %s", resp.StatusCode, util.Truncate(string(data), 500)),
			errors.ErrRemoteAPI)
	}

	g.logger.Info("Generation finished",
		zap.String("content_id", newsID),
		zap.Duration("duration", time.Since(start)))
	return nil
}
