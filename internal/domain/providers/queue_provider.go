package providers

import "context"

// QueueMessage is one opaque message delivered by the queue transport.
// ReceiveCount is how many times the message has been delivered,
// including this delivery.
type QueueMessage struct {
	ID           string
	Body         []byte
	ReceiveCount int
}

// QueueProvider delivers batches of messages to the ingestion worker and
// acknowledges the ones that succeeded. Unacknowledged messages are
// redelivered, preserving at-least-once semantics.
type QueueProvider interface {
	ReceiveBatch(ctx context.Context, max int) ([]QueueMessage, error)
	Ack(ctx context.Context, ids ...string) error
	Close() error
}
