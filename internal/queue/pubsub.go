package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/aeropoint/aqfetch/internal/fetch"
)

// PubSubProvider implements Publisher and Consumer on GCP Pub/Sub.
// Authentication uses Application Default Credentials.
type PubSubProvider struct {
	client       *pubsub.Client
	topic        *pubsub.Topic
	subscription string
}

// NewPubSubProvider creates a Pub/Sub client and verifies the topic exists,
// failing fast on bad configuration. subscriptionID may be empty when the
// provider is only used to publish.
func NewPubSubProvider(ctx context.Context, projectID, topicID, subscriptionID string) (*PubSubProvider, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			return nil, fmt.Errorf("check topic %q: %w (close client: %v)", topicID, err, closeErr)
		}
		return nil, fmt.Errorf("check topic %q: %w", topicID, err)
	}
	if !exists {
		if closeErr := client.Close(); closeErr != nil {
			return nil, fmt.Errorf("pubsub topic %q does not exist in project %q (close client: %v)", topicID, projectID, closeErr)
		}
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}

	return &PubSubProvider{
		client:       client,
		topic:        topic,
		subscription: subscriptionID,
	}, nil
}

// Publish marshals the job to JSON and blocks until the server acknowledges
// it. Scheduling is low-volume, so waiting for the ack beats fire-and-forget.
func (p *PubSubProvider) Publish(ctx context.Context, job fetch.JobMessage) (string, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job %q: %w", job.Name, err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"deployment": job.Name},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish job %q: %w", job.Name, err)
	}
	return id, nil
}

// Receive pulls job messages from the configured subscription and hands each
// to the handler. A handler error nacks the message for redelivery.
func (p *PubSubProvider) Receive(ctx context.Context, handle func(context.Context, fetch.JobMessage) error) error {
	if p.subscription == "" {
		return fmt.Errorf("pubsub subscription is not configured")
	}
	sub := p.client.Subscription(p.subscription)
	err := sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		var job fetch.JobMessage
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			// Malformed payloads can never succeed; drop them.
			msg.Ack()
			return
		}
		if err := handle(ctx, job); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("receive on subscription %q: %w", p.subscription, err)
	}
	return nil
}

// Close stops the topic publisher and closes the client connection.
func (p *PubSubProvider) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
