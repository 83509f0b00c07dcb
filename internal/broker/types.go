package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"event-director/pkg/retry"
)

// Message is an outbound record. Payload is JSON encoded unless it is
// already a json.RawMessage.
type Message struct {
	Key     string
	Payload interface{}
	Headers map[string]string
}

// Delivery is an inbound record as read from a topic or queue.
type Delivery struct {
	Topic   string
	Key     string
	Body    []byte
	Headers map[string]string
}

type Producer interface {
	Publish(ctx context.Context, destination string, msg Message) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, d Delivery) error

// JSONHandler decodes the delivery body into T before calling fn. A body
// that does not decode is reported as fatal so it is not retried.
func JSONHandler[T any](fn func(ctx context.Context, v T) error) HandlerFunc {
	return func(ctx context.Context, d Delivery) error {
		var v T
		if err := json.Unmarshal(d.Body, &v); err != nil {
			return retry.NewFatalError(fmt.Errorf("failed to unmarshal message from %s: %w", d.Topic, err))
		}
		return fn(ctx, v)
	}
}

func encodePayload(payload interface{}) ([]byte, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		return p, nil
	case []byte:
		return p, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return body, nil
}
