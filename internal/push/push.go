// Package push is the device-level delivery boundary. A Sender attempts one
// push to one token and reports the outcome as data; a failing token must
// come back as a failed Result, never as a Go error, so that one broken
// registration cannot abort a campaign loop.
package push

import "context"

// Message is the rendered payload for a single delivery attempt.
type Message struct {
	Title    string
	Body     string
	ImageURL string
	Data     map[string]string
}

// Result is the outcome of one delivery attempt.
type Result struct {
	Success bool
	Error   string
}

type Sender interface {
	Send(ctx context.Context, token string, msg Message) Result
}
