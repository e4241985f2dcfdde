// Package speaker drives the smart speaker's firmware: playback, wake state,
// the built-in assistant, microphone, boot partition and device identity. All
// operations go through the native bridge's shell surface and report failure
// as a boolean, never as an error the conversational engine has to handle.
package speaker

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/openmico/speakerbridge/domain/entities"
	"github.com/openmico/speakerbridge/domain/repositories"
	"github.com/openmico/speakerbridge/internal/sanitize"
)

const (
	// Minimum timeout for a blocking play call, and the fixed timeout for a
	// blocking URL.
	minBlockingPlayTimeout = 20 * time.Second

	// Additional blocking-play budget per character of spoken text.
	perCharPlayBudget = 150 * time.Millisecond

	// Pause between the two unwake notifications.
	unwakeStepDelay = 100 * time.Millisecond
)

// PlayRequest describes one play operation. Text and URL are mutually
// exclusive. When Blocking is set, the command timeout is sized to cover the
// full utterance; otherwise the call returns as soon as playback starts.
type PlayRequest struct {
	Text     string
	URL      string
	Blocking bool
}

// Controller composes bridge commands into higher-level speaker operations
// and tracks the playback status cache.
//
// The status cache has two writers: GetPlaying(sync=true) and the event
// ingestion pipeline via SetStatus. Both produce the same kind of
// low-frequency update; the cache is a single atomic value and the last
// writer wins.
type Controller struct {
	runner repositories.CommandRunner
	logger *zap.Logger

	status atomic.Value // entities.PlaybackStatus

	// Hardware generation does not change at runtime, so the probe result is
	// cached for the process lifetime. A failed probe is cached as legacy.
	probeOnce sync.Once
	newGen    bool
}

// NewController creates a controller with an idle status cache.
func NewController(runner repositories.CommandRunner, logger *zap.Logger) *Controller {
	c := &Controller{
		runner: runner,
		logger: logger,
	}
	c.status.Store(entities.PlaybackIdle)
	return c
}

// Status returns the cached playback status without touching the device.
func (c *Controller) Status() entities.PlaybackStatus {
	return c.status.Load().(entities.PlaybackStatus)
}

// SetStatus overwrites the cached playback status. Called by the event
// ingestion pipeline; events are authoritative regardless of the prior value.
func (c *Controller) SetStatus(status entities.PlaybackStatus) {
	c.status.Store(status)
}

// IsNewGenerationDevice reports whether the speaker uses the new-generation
// command dialect. The classification is a case-insensitive vendor marker
// match on the hardware identification output; a failed probe degrades to the
// legacy dialect rather than failing the caller.
func (c *Controller) IsNewGenerationDevice(ctx context.Context) bool {
	c.probeOnce.Do(func() {
		res := c.runner.RunShell(ctx, hardwareProbeScript, repositories.DefaultShellTimeout)
		if res == nil {
			c.logger.Warn("Hardware probe failed, assuming legacy device")
			return
		}
		c.newGen = strings.Contains(strings.ToLower(res.Stdout), newGenerationMarker)
		c.logger.Info("Hardware generation detected", zap.Bool("new_generation", c.newGen))
	})
	return c.newGen
}

// GetPlaying returns the playback status. With sync set it re-queries the
// device and updates the cache first; an unrecognized or absent response
// leaves the cache unchanged.
func (c *Controller) GetPlaying(ctx context.Context, sync bool) entities.PlaybackStatus {
	if !sync {
		return c.Status()
	}
	res := c.runner.RunShell(ctx, playerStatusScript, repositories.DefaultShellTimeout)
	if res != nil {
		if status, ok := statusCode(res.Stdout); ok {
			c.SetStatus(status)
		}
	}
	return c.Status()
}

// SetPlaying resumes or pauses playback. It deliberately does not touch the
// status cache: a command the firmware accepted is not yet a status change,
// cache updates flow only from synced queries and device events.
func (c *Controller) SetPlaying(ctx context.Context, playing bool) bool {
	action := "pause"
	if playing {
		action = "play"
	}
	res := c.runner.RunShell(ctx, playOperationScript(action), repositories.DefaultShellTimeout)
	return reportsSuccess(res)
}

// Play speaks text or plays a URL, whichever the request carries. Text is
// sanitized before it reaches the firmware. Returns false on invalid input,
// command failure, or an unknown outcome.
func (c *Controller) Play(ctx context.Context, req PlayRequest) bool {
	if (req.Text == "") == (req.URL == "") {
		c.logger.Warn("Play requires exactly one of text or url")
		return false
	}

	text := sanitize.Strip(req.Text)
	if req.URL == "" && text == "" {
		c.logger.Warn("Play text empty after sanitizing")
		return false
	}

	timeout := playTimeout(text, req.URL, req.Blocking)

	if c.IsNewGenerationDevice(ctx) {
		script := newGenTTSScript(text)
		if req.URL != "" {
			script = newGenPlayURLScript(req.URL)
		}
		return exitedCleanly(c.runner.RunShell(ctx, script, timeout))
	}

	script := legacyTTSScript(text)
	if req.URL != "" {
		script = legacyPlayURLScript(req.URL)
	}
	return reportsSuccess(c.runner.RunShell(ctx, script, timeout))
}

// WakeUp changes the speaker's wake state. Waking can be silent (no prompt
// sound); unwaking is a two-step notification sequence with a short pause
// between the steps.
func (c *Controller) WakeUp(ctx context.Context, awake bool, silent bool) bool {
	if awake {
		script := wakeNormalScript
		if silent {
			script = wakeSilentScript
		}
		return reportsSuccess(c.runner.RunShell(ctx, script, repositories.DefaultShellTimeout))
	}

	if !reportsSuccess(c.runner.RunShell(ctx, unwakeStep1Script, repositories.DefaultShellTimeout)) {
		return false
	}
	select {
	case <-time.After(unwakeStepDelay):
	case <-ctx.Done():
		return false
	}
	return reportsSuccess(c.runner.RunShell(ctx, unwakeStep2Script, repositories.DefaultShellTimeout))
}

// AskXiaoAI hands text to the device's built-in assistant pipeline. With
// silent set, the assistant processes the instruction without speaking its
// response.
func (c *Controller) AskXiaoAI(ctx context.Context, text string, silent bool) bool {
	text = sanitize.Strip(text)
	if text == "" {
		return false
	}
	res := c.runner.RunShell(ctx, askAssistantScript(text, silent), repositories.DefaultShellTimeout)
	return reportsSuccess(res)
}

// AbortXiaoAI restarts the built-in assistant service to interrupt whatever
// it is currently saying.
//
// Post-condition: the assistant needs roughly 1-2 seconds to come back, and
// the device's own text-to-speech is unusable in that window. Callers that
// want to speak right after must wait at least 2 seconds before Play.
func (c *Controller) AbortXiaoAI(ctx context.Context) bool {
	res := c.runner.RunShell(ctx, abortAssistantScript, repositories.DefaultShellTimeout)
	return exitedCleanly(res)
}

// GetBoot reads the active firmware boot partition. ok is false when the
// command failed or reported an unrecognized partition.
func (c *Controller) GetBoot(ctx context.Context) (entities.BootSlot, bool) {
	res := c.runner.RunShell(ctx, bootGetScript, repositories.DefaultShellTimeout)
	if res == nil {
		return "", false
	}
	slot := entities.BootSlot(strings.TrimSpace(res.Stdout))
	if !entities.ValidBootSlot(slot) {
		return "", false
	}
	return slot, true
}

// SetBoot switches the active boot partition and verifies the change by
// reading it back.
func (c *Controller) SetBoot(ctx context.Context, slot entities.BootSlot) bool {
	if !entities.ValidBootSlot(slot) {
		c.logger.Warn("Rejecting unknown boot slot", zap.String("slot", string(slot)))
		return false
	}
	if c.runner.RunShell(ctx, bootSetScript(slot), repositories.DefaultShellTimeout) == nil {
		return false
	}
	current, ok := c.GetBoot(ctx)
	return ok && current == slot
}

// GetDevice queries the device's model and serial number. Missing tokens are
// reported as "unknown"; the result is never cached.
func (c *Controller) GetDevice(ctx context.Context) entities.DeviceInfo {
	res := c.runner.RunShell(ctx, deviceInfoScript, repositories.DefaultShellTimeout)
	if res == nil {
		return entities.NewDeviceInfo("", "")
	}
	fields := strings.Fields(res.Stdout)
	var model, sn string
	if len(fields) > 0 {
		model = fields[0]
	}
	if len(fields) > 1 {
		sn = fields[1]
	}
	return entities.NewDeviceInfo(model, sn)
}

// GetMic reports whether the microphone is live. known is false when the
// marker file could not be checked.
func (c *Controller) GetMic(ctx context.Context) (on bool, known bool) {
	res := c.runner.RunShell(ctx, micStateScript, repositories.DefaultShellTimeout)
	if res == nil {
		return false, false
	}
	return !strings.Contains(res.Stdout, "muted"), true
}

// SetMic mutes or unmutes the microphone. Two commands run in sequence: the
// firmware notification, then the marker file update GetMic relies on.
func (c *Controller) SetMic(ctx context.Context, on bool) bool {
	notify, marker := micMuteScript, "touch "+micMuteMarker
	if on {
		notify, marker = micUnmuteScript, "rm -f "+micMuteMarker
	}
	if !reportsSuccess(c.runner.RunShell(ctx, notify, repositories.DefaultShellTimeout)) {
		return false
	}
	return exitedCleanly(c.runner.RunShell(ctx, marker, repositories.DefaultShellTimeout))
}

// playTimeout computes the command timeout for a play call. A blocking text
// play scales with utterance length (at least 20s, 150ms per character); a
// blocking URL gets the fixed minimum; non-blocking calls use the default.
func playTimeout(text, url string, blocking bool) time.Duration {
	if !blocking {
		return repositories.DefaultShellTimeout
	}
	if url != "" {
		return minBlockingPlayTimeout
	}
	scaled := time.Duration(len([]rune(text))) * perCharPlayBudget
	if scaled < minBlockingPlayTimeout {
		return minBlockingPlayTimeout
	}
	return scaled
}
