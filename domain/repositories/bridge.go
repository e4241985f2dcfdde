package repositories

import (
	"context"
	"time"

	"github.com/openmico/speakerbridge/domain/entities"
)

// DefaultShellTimeout bounds a shell command when the caller does not pick a
// tighter one.
const DefaultShellTimeout = 10 * time.Second

// CommandRunner executes shell command strings on the speaker through the
// native bridge.
//
// RunShell returns nil when the outcome of the command is unknown: transport
// failure, timeout, or a response that could not be parsed all collapse to an
// absent result. Callers must treat nil as "outcome unknown", never as a
// specific failure reason. A non-nil result may still describe a command that
// failed on the device (non-zero exit code, error payload in stdout).
type CommandRunner interface {
	RunShell(ctx context.Context, script string, timeout time.Duration) *entities.CommandResult
}

// EventHandler consumes the raw JSON of one device event delivered by the
// native bridge. Implementations must return quickly; the bridge dispatch
// loop is shared with command responses.
type EventHandler func(rawEvent string)

// InputDataHandler consumes one raw audio frame from the device microphone
// path. The buffer is only valid for the duration of the call.
type InputDataHandler func(buf []byte)
