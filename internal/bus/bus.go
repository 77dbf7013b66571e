// Package bus defines the Inter-Instance Fan-out Bus: a topic-per-
// conversation publish/subscribe abstraction over a shared broker. The
// registry (internal/registry) drives Subscribe/Unsubscribe; the bus
// itself has no memory of past messages (§4.5) — durability is the
// store's job.
package bus

import "context"

// Bus is the Fan-out Bus contract. One concrete instance per server
// process holds exactly two broker connections internally (a
// publisher and a subscriber), shared across every local session.
type Bus interface {
	// Publish sends payload (already-serialized server-event JSON) to
	// every instance subscribed to topic, including this one.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers handler to receive every payload published
	// to topic from any instance. Call Unsubscribe(topic) to stop. It
	// is the Connection Registry's job to call this exactly once per
	// topic, on the first local subscriber.
	Subscribe(ctx context.Context, topic string, handler func(payload []byte)) error

	// Unsubscribe stops delivery for topic. Called when a topic's
	// local subscriber set becomes empty.
	Unsubscribe(ctx context.Context, topic string) error

	// Close releases both broker connections.
	Close() error
}

// TopicForConversation returns the bus topic name for a conversation,
// keeping the one-topic-per-conversation granularity §4.5/§9 specify.
func TopicForConversation(conversationID string) string {
	return "conv:" + conversationID
}
