package repositories

import (
	"context"

	"github.com/openmico/speakerbridge/domain/entities"
)

// ConversationEngine is the boundary to the external conversational engine.
// The bridge only hands over recognized user utterances; deciding what to say
// in response is entirely the engine's business.
type ConversationEngine interface {
	// OnMessage delivers one recognized user utterance as a new turn.
	OnMessage(ctx context.Context, msg entities.Message) error
}
