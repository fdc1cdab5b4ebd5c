// Package pubsub implements a Google Cloud Pub/Sub event publisher.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub"

	"github.com/macrofeed/series-crawler/internal/publisher"
)

// Publisher wraps a Pub/Sub client and publishes crawl events.
type Publisher struct {
	client *gcppubsub.Client
}

// New creates a Publisher over an existing client.
func New(client *gcppubsub.Client) *Publisher {
	return &Publisher{client: client}
}

// Connect dials Pub/Sub for the given project.
func Connect(ctx context.Context, projectID string) (*Publisher, error) {
	if projectID == "" {
		return nil, fmt.Errorf("pubsub.project_id is required")
	}
	client, err := gcppubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &Publisher{client: client}, nil
}

// Publish marshals the event to JSON and publishes it to topic.
func (p *Publisher) Publish(ctx context.Context, topic string, event publisher.Event) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("pubsub publisher is not configured")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal crawl event: %w", err)
	}

	msg := &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"series_id": event.SeriesID,
			"source":    event.Source,
			"status":    event.Status,
		},
	}
	result := p.client.Topic(topic).Publish(ctx, msg)
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish crawl event: %w", err)
	}
	return id, nil
}

// Close releases the underlying client.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
