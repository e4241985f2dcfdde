package entities

import "time"

// ConversationEntryKind distinguishes what a conversation-log entry records.
type ConversationEntryKind string

const (
	// EntryKindUtterance records a final speech recognition result.
	EntryKindUtterance ConversationEntryKind = "utterance"
	// EntryKindPlayback records a playback-status transition.
	EntryKindPlayback ConversationEntryKind = "playback"
)

// ConversationEntry is one record in the device's conversation log: either a
// recognized user utterance or a playback-status transition observed on the
// event stream.
type ConversationEntry struct {
	ID        string                `json:"id" bson:"_id,omitempty"`
	DeviceID  string                `json:"device_id" bson:"device_id"`
	Kind      ConversationEntryKind `json:"kind" bson:"kind"`
	Text      string                `json:"text,omitempty" bson:"text,omitempty"`
	Status    PlaybackStatus        `json:"status,omitempty" bson:"status,omitempty"`
	Timestamp time.Time             `json:"timestamp" bson:"timestamp"`
}
