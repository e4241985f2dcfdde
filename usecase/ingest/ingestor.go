// Package ingest classifies asynchronous device events arriving from the
// native bridge: playback transitions update the speaker controller, final
// speech recognition results become conversation turns for the engine, and
// everything else is observability-only.
package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openmico/speakerbridge/domain/entities"
	"github.com/openmico/speakerbridge/domain/repositories"
	"github.com/openmico/speakerbridge/internal/sanitize"
	"github.com/openmico/speakerbridge/usecase/speaker"
)

// Playback event payload values the firmware is known to emit. Any other
// value maps to idle.
const (
	playbackDataPlaying = "Playing"
	playbackDataPaused  = "Paused"
)

// engineTimeout bounds delivery of one utterance to the conversational
// engine.
const engineTimeout = 30 * time.Second

// Ingestor is the single handler object registered with the bridge runtime at
// startup. Its callbacks run on the bridge dispatch goroutine and must stay
// fast; anything that can block (engine delivery, persistence, telemetry)
// runs on its own goroutine.
type Ingestor struct {
	controller    *speaker.Controller
	engine        repositories.ConversationEngine
	conversations repositories.ConversationRepository // optional
	publisher     repositories.EventPublisher         // optional
	logger        *zap.Logger

	mu       sync.RWMutex
	deviceID string
}

// NewIngestor creates the event ingestion pipeline. conversations and
// publisher may be nil when persistence or telemetry is not configured.
func NewIngestor(
	controller *speaker.Controller,
	engine repositories.ConversationEngine,
	conversations repositories.ConversationRepository,
	publisher repositories.EventPublisher,
	deviceID string,
	logger *zap.Logger,
) *Ingestor {
	return &Ingestor{
		controller:    controller,
		engine:        engine,
		conversations: conversations,
		publisher:     publisher,
		deviceID:      deviceID,
		logger:        logger,
	}
}

// SetDeviceID updates the device identity attached to log entries and
// telemetry. The ingestor is registered with the bridge before the device can
// be queried, so the ID arrives after startup.
func (i *Ingestor) SetDeviceID(deviceID string) {
	i.mu.Lock()
	i.deviceID = deviceID
	i.mu.Unlock()
}

func (i *Ingestor) currentDeviceID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.deviceID
}

// OnEvent classifies one raw device event. Events that match no recognized
// pattern are silently ignored so unknown event kinds never fail the
// pipeline.
func (i *Ingestor) OnEvent(raw string) {
	var event entities.DeviceEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		i.logger.Debug("Ignoring unparseable device event", zap.Error(err))
		return
	}

	switch event.Event {
	case entities.EventKindPlaying:
		i.handlePlayback(event.Data)
	case entities.EventKindInstruction:
		i.handleInstruction(event.Data)
	case entities.EventKindKeyword:
		i.logger.Info("Wake word detected", zap.String("keyword", event.Data))
		i.publish("keyword", map[string]string{"keyword": event.Data})
	default:
		i.logger.Debug("Ignoring unknown device event", zap.String("event", string(event.Event)))
	}
}

// OnInputData observes one raw microphone frame. The payload is not retained.
func (i *Ingestor) OnInputData(buf []byte) {
	i.logger.Debug("Audio frame received", zap.Int("bytes", len(buf)))
}

// handlePlayback maps a playback event payload to a status and overwrites the
// controller's cache. The event is authoritative regardless of what the cache
// held before.
func (i *Ingestor) handlePlayback(data string) {
	var status entities.PlaybackStatus
	switch data {
	case playbackDataPlaying:
		status = entities.PlaybackPlaying
	case playbackDataPaused:
		status = entities.PlaybackPaused
	default:
		status = entities.PlaybackIdle
	}

	i.controller.SetStatus(status)
	i.logger.Debug("Playback status from event", zap.String("status", string(status)))

	i.record(&entities.ConversationEntry{
		DeviceID:  i.currentDeviceID(),
		Kind:      entities.EntryKindPlayback,
		Status:    status,
		Timestamp: time.Now(),
	})
	i.publish("playback", map[string]string{"status": string(status)})
}

// handleInstruction extracts a final speech recognition result, if the
// instruction carries one, and forwards it to the conversational engine as a
// new user turn.
func (i *Ingestor) handleInstruction(data string) {
	inst, err := entities.ParseInstruction(data)
	if err != nil {
		i.logger.Debug("Ignoring unparseable instruction", zap.Error(err))
		return
	}
	if inst.Header.Name != entities.InstructionNameRecognizeResult {
		return
	}
	if !inst.Payload.IsFinal || len(inst.Payload.Results) == 0 {
		return
	}
	text := sanitize.Strip(inst.Payload.Results[0].Text)
	if text == "" {
		return
	}

	msg := entities.Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    entities.SenderUser,
		Timestamp: time.Now(),
	}
	i.logger.Info("Recognized utterance",
		zap.String("message_id", msg.ID),
		zap.Int("length", len(text)))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), engineTimeout)
		defer cancel()
		if err := i.engine.OnMessage(ctx, msg); err != nil {
			i.logger.Warn("Engine rejected utterance",
				zap.String("message_id", msg.ID), zap.Error(err))
		}
	}()

	i.record(&entities.ConversationEntry{
		DeviceID:  i.currentDeviceID(),
		Kind:      entities.EntryKindUtterance,
		Text:      text,
		Timestamp: msg.Timestamp,
	})
	i.publish("utterance", map[string]string{"message_id": msg.ID})
}

// record appends a conversation-log entry off the dispatch goroutine.
func (i *Ingestor) record(entry *entities.ConversationEntry) {
	if i.conversations == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := i.conversations.Append(ctx, entry); err != nil {
			i.logger.Warn("Failed to append conversation entry", zap.Error(err))
		}
	}()
}

func (i *Ingestor) publish(kind string, payload any) {
	if i.publisher == nil {
		return
	}
	i.publisher.Publish(i.currentDeviceID(), kind, payload)
}
