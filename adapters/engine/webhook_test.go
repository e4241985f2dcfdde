package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/openmico/speakerbridge/domain/entities"
	"github.com/openmico/speakerbridge/usecase/speaker"
)

// fakePlayer records play requests instead of talking to a device.
type fakePlayer struct {
	mu       sync.Mutex
	requests []speaker.PlayRequest
	result   bool
}

func (p *fakePlayer) Play(_ context.Context, req speaker.PlayRequest) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	return p.result
}

func (p *fakePlayer) all() []speaker.PlayRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]speaker.PlayRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

func testMessage() entities.Message {
	return entities.Message{
		ID:        "msg-1",
		Text:      "turn on the light",
		Sender:    entities.SenderUser,
		Timestamp: time.Now(),
	}
}

func TestOnMessagePostsUtteranceAndSpeaksReply(t *testing.T) {
	var received entities.Message
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode utterance: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "<think>reasoning</think>done"})
	}))
	defer server.Close()

	player := &fakePlayer{result: true}
	eng, err := NewWebhookEngine(WebhookConfig{URL: server.URL}, player, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWebhookEngine failed: %v", err)
	}

	if err := eng.OnMessage(context.Background(), testMessage()); err != nil {
		t.Fatalf("OnMessage failed: %v", err)
	}

	if received.Text != "turn on the light" || received.Sender != entities.SenderUser {
		t.Errorf("engine received %+v", received)
	}

	plays := player.all()
	if len(plays) != 1 {
		t.Fatalf("expected 1 play, got %d", len(plays))
	}
	if plays[0].Text != "done" {
		t.Errorf("reply text = %q, want %q (post-processed)", plays[0].Text, "done")
	}
	if !plays[0].Blocking {
		t.Error("engine replies should be spoken blocking")
	}
}

func TestOnMessageEmptyReplyDoesNotSpeak(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	player := &fakePlayer{result: true}
	eng, err := NewWebhookEngine(WebhookConfig{URL: server.URL}, player, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWebhookEngine failed: %v", err)
	}

	if err := eng.OnMessage(context.Background(), testMessage()); err != nil {
		t.Fatalf("OnMessage failed: %v", err)
	}
	if len(player.all()) != 0 {
		t.Error("nothing should be spoken for an empty reply")
	}
}

func TestOnMessageEngineErrorIsReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	eng, err := NewWebhookEngine(WebhookConfig{URL: server.URL}, &fakePlayer{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWebhookEngine failed: %v", err)
	}

	if err := eng.OnMessage(context.Background(), testMessage()); err == nil {
		t.Error("a 5xx engine response must surface as an error")
	}
}

func TestPostProcessOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "hello"})
	}))
	defer server.Close()

	player := &fakePlayer{result: true}
	eng, err := NewWebhookEngine(WebhookConfig{URL: server.URL}, player, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWebhookEngine failed: %v", err)
	}
	eng.PostProcess = func(string) string { return "overridden" }

	if err := eng.OnMessage(context.Background(), testMessage()); err != nil {
		t.Fatalf("OnMessage failed: %v", err)
	}

	plays := player.all()
	if len(plays) != 1 || plays[0].Text != "overridden" {
		t.Errorf("post-process hook not applied: %+v", plays)
	}
}

func TestNewWebhookEngineRequiresURL(t *testing.T) {
	if _, err := NewWebhookEngine(WebhookConfig{}, &fakePlayer{}, zap.NewNop()); err == nil {
		t.Error("missing URL must be rejected")
	}
}
