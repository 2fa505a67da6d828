package queue

import "context"

// Publisher publishes work-item event messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg EventMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg EventMessage) error

// Consumer consumes work-item event messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const (
	// EventsQueue carries normalized tracker events from the webhook
	// surface to the ingestion worker.
	EventsQueue = "events"

	// EventsDLQ receives events rejected as malformed.
	EventsDLQ = "dlq.events"
)
