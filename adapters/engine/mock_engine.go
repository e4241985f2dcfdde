package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/openmico/speakerbridge/domain/entities"
	"github.com/openmico/speakerbridge/domain/repositories"
)

// MockEngine records delivered utterances. It serves tests and acts as the
// log-only engine when no webhook is configured.
type MockEngine struct {
	logger *zap.Logger

	mu       sync.Mutex
	messages []entities.Message
}

var _ repositories.ConversationEngine = (*MockEngine)(nil)

// NewMockEngine creates a mock conversational engine.
func NewMockEngine(logger *zap.Logger) *MockEngine {
	return &MockEngine{logger: logger}
}

// OnMessage implements repositories.ConversationEngine.
func (m *MockEngine) OnMessage(_ context.Context, msg entities.Message) error {
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
	m.logger.Info("Utterance received (no engine configured)",
		zap.String("message_id", msg.ID),
		zap.String("text", msg.Text))
	return nil
}

// Messages returns a copy of everything delivered so far.
func (m *MockEngine) Messages() []entities.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entities.Message, len(m.messages))
	copy(out, m.messages)
	return out
}
