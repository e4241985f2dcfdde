package api

// PlayRequest is the payload for POST /api/v1/speaker/play. Text and URL are
// mutually exclusive.
type PlayRequest struct {
	Text     string `json:"text,omitempty"`
	URL      string `json:"url,omitempty"`
	Blocking bool   `json:"blocking,omitempty"`
}

// WakeRequest is the payload for POST /api/v1/speaker/wake.
type WakeRequest struct {
	Awake  bool `json:"awake"`
	Silent bool `json:"silent,omitempty"`
}

// AskRequest is the payload for POST /api/v1/speaker/ask.
type AskRequest struct {
	Text   string `json:"text" validate:"required"`
	Silent bool   `json:"silent,omitempty"`
}

// MicRequest is the payload for PUT /api/v1/speaker/mic.
type MicRequest struct {
	On bool `json:"on"`
}

// BootRequest is the payload for PUT /api/v1/speaker/boot.
type BootRequest struct {
	Slot string `json:"slot" validate:"required,oneof=boot0 boot1"`
}

// SuccessResponse reports the boolean outcome of a speaker operation. A
// command that failed on the device is not an HTTP error; the bridge contract
// is boolean.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// StatusResponse carries the playback status.
type StatusResponse struct {
	Status string `json:"status"`
}

// MicResponse carries the microphone state. Known is false when the device
// could not be queried.
type MicResponse struct {
	On    bool `json:"on"`
	Known bool `json:"known"`
}

// BootResponse carries the active boot partition.
type BootResponse struct {
	Slot string `json:"slot"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
