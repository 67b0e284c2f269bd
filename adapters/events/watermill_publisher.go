package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/walletgate/ports"
)

// DefaultTopicPrefix is prepended to the event kind to build the topic name
const DefaultTopicPrefix = "walletgate"

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher   message.Publisher
	topicPrefix string
}

// NewWatermillPublisher creates a new Watermill publisher. Events of kind k
// are published to "<topicPrefix>.<k>".
func NewWatermillPublisher(publisher message.Publisher, topicPrefix string) *WatermillPublisher {
	if topicPrefix == "" {
		topicPrefix = DefaultTopicPrefix
	}
	return &WatermillPublisher{
		publisher:   publisher,
		topicPrefix: topicPrefix,
	}
}

// Topic returns the topic events of the given kind are published to
func (p *WatermillPublisher) Topic(kind string) string {
	return p.topicPrefix + "." + kind
}

// Publish publishes an auth event
func (p *WatermillPublisher) Publish(ctx context.Context, event ports.AuthEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("kind", event.Kind)

	if err := p.publisher.Publish(p.Topic(event.Kind), msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Kind, err)
	}

	return nil
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)
