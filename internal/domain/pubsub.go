package domain

import "context"

// Publisher broadcasts an encoded wire message to every running instance,
// including the sender. Delivery is fire-and-forget.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// MessageHandler consumes one raw wire message delivered by a bus subscription.
type MessageHandler func(ctx context.Context, payload []byte)
