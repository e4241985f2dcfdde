package repositories

// EventPublisher mirrors classified device events to an external observability
// channel. Publishing is fire-and-forget; implementations log their own
// delivery failures.
type EventPublisher interface {
	Publish(deviceID, kind string, payload any)
}
