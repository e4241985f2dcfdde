package speaker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openmico/speakerbridge/domain/entities"
)

// The firmware has no formal command protocol; everything below is the
// empirically observed shell surface. Legacy devices are driven over the ubus
// control bus with JSON payloads, new-generation devices expose direct audio
// utilities. Success and status detection is substring matching on stdout.

const (
	// Hardware identification. New-generation boards report the vendor in
	// /proc/cpuinfo; the match is case-insensitive.
	hardwareProbeScript = "cat /proc/cpuinfo"
	newGenerationMarker = "amlogic"

	// Playback control, shared by both generations.
	playerStatusScript = `ubus call mediaplayer player_get_play_status`

	// Device identification: two whitespace-separated tokens, model then
	// serial number.
	deviceInfoScript = `echo "$(micocfg_model 2>/dev/null) $(micocfg_sn 2>/dev/null)"`

	// Wake state notifications.
	wakeSilentScript  = `ubus call pnshelper event_notify '{"src":1,"event":0}'`
	wakeNormalScript  = `ubus call pnshelper event_notify '{"src":0,"event":0}'`
	unwakeStep1Script = `ubus call pnshelper event_notify '{"src":3,"event":7}'`
	unwakeStep2Script = `ubus call pnshelper event_notify '{"src":3,"event":8}'`

	// Microphone mute is tracked by a marker file and toggled with
	// notifications.
	micMuteMarker   = "/tmp/mipns/mute_mic"
	micStateScript  = `[ -f ` + micMuteMarker + ` ] && echo muted || echo open`
	micMuteScript   = `ubus call pnshelper event_notify '{"src":3,"event":9}'`
	micUnmuteScript = `ubus call pnshelper event_notify '{"src":3,"event":10}'`

	// Restarting the built-in assistant service interrupts its current
	// utterance. See Controller.AbortXiaoAI for the recovery window.
	abortAssistantScript = `/etc/init.d/mico_aivs_lab restart`

	// Boot partition selection lives in the u-boot environment.
	bootGetScript = `fw_env -g boot_part`
	bootSetFormat = `fw_env -s boot_part %s`

	// New-generation playback utilities. These report success via exit code,
	// not via a ubus result payload.
	newGenPlayURLFormat = `miaudiopipe play %s`
	newGenTTSFormat     = `/usr/sbin/tts_play.sh %s`
)

func newGenPlayURLScript(url string) string {
	return fmt.Sprintf(newGenPlayURLFormat, shellQuote(url))
}

func newGenTTSScript(text string) string {
	return fmt.Sprintf(newGenTTSFormat, shellQuote(text))
}

func bootSetScript(slot entities.BootSlot) string {
	return fmt.Sprintf(bootSetFormat, slot)
}

func playOperationScript(action string) string {
	return fmt.Sprintf(`ubus call mediaplayer player_play_operation '{"action":"%s"}'`, action)
}

func legacyPlayURLScript(url string) string {
	return fmt.Sprintf(`ubus call mediaplayer player_play_url %s`, jsonArg(map[string]any{
		"url":  url,
		"type": 1,
	}))
}

func legacyTTSScript(text string) string {
	return fmt.Sprintf(`ubus call mibrain text_to_speech %s`, jsonArg(map[string]any{
		"text": text,
		"save": 0,
	}))
}

func askAssistantScript(text string, silent bool) string {
	tts := 1
	if silent {
		tts = 0
	}
	return fmt.Sprintf(`ubus call mibrain ai_service %s`, jsonArg(map[string]any{
		"nlp":      1,
		"nlp_text": text,
		"tts":      tts,
	}))
}

// reportsSuccess checks the ubus success marker in command output. The
// firmware embeds `"code": 0` (spacing varies) in stdout of a successful call.
func reportsSuccess(res *entities.CommandResult) bool {
	if res == nil {
		return false
	}
	return strings.Contains(res.Stdout, `"code": 0`) ||
		strings.Contains(res.Stdout, `"code":0`)
}

// exitedCleanly is the success signal for new-generation utilities.
func exitedCleanly(res *entities.CommandResult) bool {
	return res != nil && res.ExitCode == 0
}

// statusCode extracts the playback status code embedded in a status query's
// stdout. Only codes 1 (playing) and 2 (paused) are known; ok is false for
// anything else. The firmware nests the info document as an escaped JSON
// string, so backslashes are dropped before matching.
func statusCode(stdout string) (entities.PlaybackStatus, bool) {
	flat := strings.ReplaceAll(stdout, `\`, "")
	switch {
	case strings.Contains(flat, `"status": 1`), strings.Contains(flat, `"status":1`):
		return entities.PlaybackPlaying, true
	case strings.Contains(flat, `"status": 2`), strings.Contains(flat, `"status":2`):
		return entities.PlaybackPaused, true
	default:
		return "", false
	}
}

// jsonArg encodes v as JSON and quotes it as a single shell argument.
func jsonArg(v any) string {
	payload, err := json.Marshal(v)
	if err != nil {
		// Only reachable with unmarshalable values, which the callers above
		// never construct.
		return "'{}'"
	}
	return shellQuote(string(payload))
}

// shellQuote wraps s in single quotes, escaping embedded single quotes so the
// value survives as one argument.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
