// Package conversation turns incoming chat messages into exactly one reply each.
package conversation

import (
	"context"
)

// Sender identifies the person who wrote a message
type Sender struct {
	ID          string
	DisplayName string
}

// Message is a transport-neutral incoming text message
type Message struct {
	Sender    Sender
	Text      string
	IsCommand bool
}

// Keyboard is a reply keyboard hint. Transports without keyboards ignore it.
type Keyboard struct {
	Rows        [][]string
	Placeholder string
}

// Reply is the single answer to one message
type Reply struct {
	Text     string
	HTML     bool
	Keyboard *Keyboard
}

// ReplySender delivers a reply to the chat the message came from.
// Transports bind one sender per incoming message.
type ReplySender interface {
	SendReply(ctx context.Context, reply Reply) error
}

// ReplySenderFunc is an adapter to allow functions to be used as senders
type ReplySenderFunc func(ctx context.Context, reply Reply) error

// SendReply implements ReplySender
func (f ReplySenderFunc) SendReply(ctx context.Context, reply Reply) error {
	return f(ctx, reply)
}
