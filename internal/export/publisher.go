package export

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// EventType is the type attribute of export events.
const EventType = "isochrone.exported"

// Event announces a completed export.
type Event struct {
	WorkspaceID string    `json:"workspace_id"`
	Filename    string    `json:"filename"`
	Profile     string    `json:"profile"`
	RangeType   string    `json:"range_type"`
	Features    int       `json:"features"`
	Bytes       int       `json:"bytes"`
	ExportedAt  time.Time `json:"exported_at"`
}

// NewEvent describes an artifact exported from a workspace.
func NewEvent(workspaceID string, a *Artifact) Event {
	return Event{
		WorkspaceID: workspaceID,
		Filename:    a.Filename,
		Profile:     string(a.Profile),
		RangeType:   string(a.RangeType),
		Features:    a.Features,
		Bytes:       len(a.Data),
		ExportedAt:  a.CreatedAt,
	}
}

// Publisher delivers export events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PubSubPublisher publishes export events to a Google Cloud Pub/Sub topic.
type PubSubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topic     string
	logger    zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub publisher.
type PubSubConfig struct {
	ProjectID string
	Topic     string
	Logger    zerolog.Logger
}

// NewPubSubPublisher creates a publisher for cfg.Topic.
func NewPubSubPublisher(ctx context.Context, cfg PubSubConfig) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &PubSubPublisher{
		client:    client,
		publisher: client.Publisher(cfg.Topic),
		topic:     cfg.Topic,
		logger:    cfg.Logger,
	}, nil
}

// Publish sends event and waits for the server acknowledgement.
func (p *PubSubPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := newMessage(event)
	if err != nil {
		return err
	}

	id, err := p.publisher.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return fmt.Errorf("publishing export event: %w", err)
	}

	p.logger.Debug().
		Str("message_id", id).
		Str("topic", p.topic).
		Str("workspace_id", event.WorkspaceID).
		Msg("published export event")
	return nil
}

// Close flushes pending messages and closes the client.
func (p *PubSubPublisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}

func newMessage(event Event) (*pubsub.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encoding export event: %w", err)
	}
	return &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type":       EventType,
			"profile":    event.Profile,
			"range_type": event.RangeType,
			"features":   strconv.Itoa(event.Features),
		},
	}, nil
}
