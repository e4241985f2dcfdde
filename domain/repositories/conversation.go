package repositories

import (
	"context"

	"github.com/openmico/speakerbridge/domain/entities"
)

// ConversationRepository persists the conversation log for a device.
type ConversationRepository interface {
	Append(ctx context.Context, entry *entities.ConversationEntry) error
	// Recent returns up to limit entries for the device, newest first.
	Recent(ctx context.Context, deviceID string, limit int) ([]*entities.ConversationEntry, error)
}
