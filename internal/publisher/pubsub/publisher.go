// Package pubsub implements a Google Cloud Pub/Sub publisher.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// EventAttribute is set on every message so subscribers can filter without
// decoding the payload.
const EventAttribute = "event"

// Publisher publishes JSON payloads to a single topic.
type Publisher struct {
	topic *pubsub.Topic
	event string
}

// New creates a Publisher for the provided topic. event is stamped into the
// message attributes.
func New(topic *pubsub.Topic, event string) *Publisher {
	return &Publisher{topic: topic, event: event}
}

// Connect opens a client and resolves topicID, failing if the topic does not
// exist. The returned close function stops the topic and closes the client.
func Connect(ctx context.Context, projectID, topicID, event string) (*Publisher, func() error, error) {
	if projectID == "" || topicID == "" {
		return nil, nil, fmt.Errorf("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("check topic %s: %w", topicID, err)
	}
	if !exists {
		_ = client.Close()
		return nil, nil, fmt.Errorf("pubsub topic %s does not exist", topicID)
	}
	closeFn := func() error {
		topic.Stop()
		if err := client.Close(); err != nil {
			return fmt.Errorf("close pubsub client: %w", err)
		}
		return nil
	}
	return New(topic, event), closeFn, nil
}

// Publish marshals the payload to JSON, publishes it, and waits for the
// server-assigned message ID.
func (p *Publisher) Publish(ctx context.Context, payload any) (string, error) {
	if p.topic == nil {
		return "", fmt.Errorf("pubsub topic is not configured")
	}
	msg, err := p.message(payload)
	if err != nil {
		return "", err
	}
	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

func (p *Publisher) message(payload any) (*pubsub.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	msg := &pubsub.Message{Data: data}
	if p.event != "" {
		msg.Attributes = map[string]string{EventAttribute: p.event}
	}
	return msg, nil
}
