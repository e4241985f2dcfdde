package entities

// PlaybackStatus is the speaker's playback state as inferred from command
// output and device events.
type PlaybackStatus string

const (
	PlaybackIdle    PlaybackStatus = "idle"
	PlaybackPlaying PlaybackStatus = "playing"
	PlaybackPaused  PlaybackStatus = "paused"
)

// BootSlot identifies one of the two firmware boot partitions.
type BootSlot string

const (
	BootSlot0 BootSlot = "boot0"
	BootSlot1 BootSlot = "boot1"
)

// ValidBootSlot reports whether s names a known boot partition.
func ValidBootSlot(s BootSlot) bool {
	return s == BootSlot0 || s == BootSlot1
}
