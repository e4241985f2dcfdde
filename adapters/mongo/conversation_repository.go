package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openmico/speakerbridge/domain/entities"
	"github.com/openmico/speakerbridge/domain/repositories"
)

type ConversationRepository struct {
	collection *mongo.Collection
}

// NewConversationRepository creates a MongoDB-backed conversation log.
func NewConversationRepository(db *mongo.Database) repositories.ConversationRepository {
	return &ConversationRepository{
		collection: db.Collection("conversation_log"),
	}
}

// Append implements repositories.ConversationRepository.
func (r *ConversationRepository) Append(ctx context.Context, entry *entities.ConversationEntry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	doc := bson.M{
		"device_id": entry.DeviceID,
		"kind":      entry.Kind,
		"timestamp": entry.Timestamp,
	}
	if entry.Text != "" {
		doc["text"] = entry.Text
	}
	if entry.Status != "" {
		doc["status"] = entry.Status
	}

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to append conversation entry: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		entry.ID = oid.Hex()
	}
	return nil
}

// Recent implements repositories.ConversationRepository.
func (r *ConversationRepository) Recent(ctx context.Context, deviceID string, limit int) ([]*entities.ConversationEntry, error) {
	if deviceID == "" {
		return nil, errors.New("device ID cannot be empty")
	}
	if limit <= 0 {
		limit = 50
	}

	filter := bson.M{"device_id": deviceID}
	opts := options.Find().
		SetSort(bson.M{"timestamp": -1}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation log: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*entities.ConversationEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode conversation log: %w", err)
	}
	return entries, nil
}
