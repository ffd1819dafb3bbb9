// Package transport handles outbound chat delivery. Delivery is best-effort:
// failures are reported to the caller and never retried here.
package transport

import "context"

// Button is one interactive reply option. Titles longer than the channel's
// limit are truncated by the client.
type Button struct {
	ID    string
	Title string
}

// Sender is the outbound chat collaborator interface.
type Sender interface {
	// SendText delivers a plain text message to the contact key.
	SendText(ctx context.Context, to, body string) error
	// SendAudio delivers an audio message by link.
	SendAudio(ctx context.Context, to, link string) error
	// SendButtons delivers a prompt with interactive reply buttons.
	SendButtons(ctx context.Context, to, body string, buttons []Button) error
}
