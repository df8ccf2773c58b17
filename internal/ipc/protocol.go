// Package ipc carries newline-delimited JSON commands over a unix socket
// between the recording owner process and follower invocations.
package ipc

// Request is one command sent to the owner process.
type Request struct {
	Command string `json:"command"`
}

// Response reports command outcome plus a live capture snapshot, so status
// pollers never need a second roundtrip.
type Response struct {
	OK         bool   `json:"ok"`
	State      string `json:"state,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}
