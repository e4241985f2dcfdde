// Package engine provides adapters for the conversational engine boundary.
// The bridge forwards recognized utterances to the engine and, when the
// engine replies with text, speaks the reply through the playback controller.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openmico/speakerbridge/domain/entities"
	"github.com/openmico/speakerbridge/domain/repositories"
	"github.com/openmico/speakerbridge/internal/sanitize"
	"github.com/openmico/speakerbridge/usecase/speaker"
)

const defaultWebhookTimeout = 60 * time.Second

// Player is the slice of the playback controller the engine adapter needs to
// voice a reply.
type Player interface {
	Play(ctx context.Context, req speaker.PlayRequest) bool
}

// WebhookConfig holds configuration for the webhook engine adapter.
// Required fields:
// - URL: the engine endpoint that accepts utterance POSTs
// Optional fields with defaults:
// - Timeout: per-request timeout (default: 60s)
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// WebhookEngine delivers each recognized utterance to an HTTP engine as a
// JSON POST. When the engine's response body carries {"text": ...}, the reply
// is run through PostProcess and spoken on the device.
type WebhookEngine struct {
	url        string
	httpClient *http.Client
	player     Player
	logger     *zap.Logger

	// PostProcess transforms engine reply text before it is spoken. Defaults
	// to stripping reasoning markup; override to customize.
	PostProcess func(string) string
}

// Ensure WebhookEngine implements the engine boundary.
var _ repositories.ConversationEngine = (*WebhookEngine)(nil)

// webhookReply is the subset of the engine response the bridge understands.
type webhookReply struct {
	Text string `json:"text"`
}

// NewWebhookEngine creates a webhook engine adapter.
func NewWebhookEngine(config WebhookConfig, player Player, logger *zap.Logger) (*WebhookEngine, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("engine webhook URL is required")
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookEngine{
		url:         config.URL,
		httpClient:  &http.Client{Timeout: timeout},
		player:      player,
		logger:      logger,
		PostProcess: sanitize.Strip,
	}, nil
}

// OnMessage implements repositories.ConversationEngine.
func (e *WebhookEngine) OnMessage(ctx context.Context, msg entities.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode utterance: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build engine request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("engine returned status %d: %s", resp.StatusCode, string(body))
	}

	var reply webhookReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		// An empty or non-JSON body means the engine will respond through
		// another channel (e.g. the control API).
		return nil
	}

	text := reply.Text
	if e.PostProcess != nil {
		text = e.PostProcess(text)
	}
	if text == "" {
		return nil
	}

	if !e.player.Play(ctx, speaker.PlayRequest{Text: text, Blocking: true}) {
		e.logger.Warn("Failed to speak engine reply",
			zap.String("message_id", msg.ID))
	}
	return nil
}
