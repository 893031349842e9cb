package channel

import "context"

// Message represents an inbound message from a secondary channel
type Message struct {
	ID        string
	Channel   string
	UserID    string
	Content   string
	MediaRef  string
	Timestamp int64
}

// Response represents a reply to send back through a channel
type Response struct {
	Content string
	Audio   []byte
}

// Adapter is the interface for secondary channel adapters. The primary
// chat-transport session does not go through this layer; adapters exist for
// additional inbound surfaces that share the same orchestrator.
type Adapter interface {
	// Start starts the channel adapter
	Start(ctx context.Context) error

	// Stop stops the channel adapter
	Stop() error

	// SendMessage sends a reply to the channel
	SendMessage(userID string, resp *Response) error

	// Incoming returns a channel of incoming messages
	Incoming() <-chan *Message

	// Name returns the name of the channel adapter
	Name() string

	// IsEnabled returns whether the channel is enabled
	IsEnabled() bool
}
