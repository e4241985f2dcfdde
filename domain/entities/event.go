package entities

import (
	"encoding/json"
	"time"
)

// EventKind tags the envelope of an inbound device event.
type EventKind string

// Event kinds emitted by the native bridge. Anything else is ignored by the
// ingestion pipeline.
const (
	EventKindPlaying     EventKind = "playing"
	EventKindInstruction EventKind = "instruction"
	EventKindKeyword     EventKind = "keyword"
)

// DeviceEvent is the JSON envelope delivered on the native bridge's event
// channel. Data is an opaque string whose interpretation depends on Event;
// for instruction events it is itself a JSON document.
type DeviceEvent struct {
	Event EventKind `json:"event"`
	Data  string    `json:"data"`
}

// Instruction is the nested document carried by an instruction event.
type Instruction struct {
	Header  InstructionHeader  `json:"header"`
	Payload InstructionPayload `json:"payload"`
}

// InstructionHeader names the instruction. Speech recognition results arrive
// with Name "RecognizeResult".
type InstructionHeader struct {
	Name string `json:"name"`
}

// InstructionPayload carries recognition hypotheses. IsFinal marks a complete
// result as opposed to an interim one.
type InstructionPayload struct {
	IsFinal bool                `json:"is_final"`
	Results []RecognitionResult `json:"results"`
}

// RecognitionResult is a single speech recognition hypothesis.
type RecognitionResult struct {
	Text string `json:"text"`
}

// InstructionNameRecognizeResult is the header name of a speech recognition
// instruction.
const InstructionNameRecognizeResult = "RecognizeResult"

// ParseInstruction decodes the nested instruction document from an event's
// data string.
func ParseInstruction(data string) (*Instruction, error) {
	var inst Instruction
	if err := json.Unmarshal([]byte(data), &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

// Message is a recognized user utterance handed to the conversational engine
// as a new turn.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// SenderUser is the sender attached to messages built from device-side speech
// recognition.
const SenderUser = "user"
