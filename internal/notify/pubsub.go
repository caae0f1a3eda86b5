package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/logger"
)

type PubSubConfig struct {
	ProjectID       string
	Topic           string
	CredentialsFile string
}

// PubSubPublisher publishes messages as JSON to a Pub/Sub topic consumed by
// the push delivery service. The client is created on first use.
type PubSubPublisher struct {
	cfg  PubSubConfig
	opts []option.ClientOption

	mu     sync.Mutex
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubPublisher uses Application Default Credentials unless a
// credentials file is configured. Extra options are passed to the client.
func NewPubSubPublisher(cfg PubSubConfig, opts ...option.ClientOption) *PubSubPublisher {
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return &PubSubPublisher{cfg: cfg, opts: opts}
}

type pubsubMessage struct {
	ID          int64             `json:"id"`
	RecipientID int32             `json:"recipient_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (p *PubSubPublisher) getTopic(ctx context.Context) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		return p.topic, nil
	}
	if p.cfg.ProjectID == "" || p.cfg.Topic == "" {
		return nil, errors.New("pubsub project id and topic are required")
	}

	client, err := pubsub.NewClient(ctx, p.cfg.ProjectID, p.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	logger.Info("Pub/Sub client ready", "projectID", p.cfg.ProjectID, "topic", p.cfg.Topic)
	p.client = client
	p.topic = client.Topic(p.cfg.Topic)
	return p.topic, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	topic, err := p.getTopic(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(pubsubMessage{
		ID:          msg.ID,
		RecipientID: msg.RecipientID,
		Title:       msg.Title,
		Description: msg.Description,
		Category:    string(msg.Category),
		Attributes:  msg.Attributes,
		CreatedAt:   msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification %d: %w", msg.ID, err)
	}

	logger.ExternalServiceCall("pubsub", "Publish", "outboxID", msg.ID, "recipientID", msg.RecipientID)
	result := topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"recipient_id": strconv.FormatInt(int64(msg.RecipientID), 10),
			"category":     string(msg.Category),
		},
	})
	serverID, err := result.Get(ctx)
	logger.ExternalServiceResult("pubsub", "Publish", err, "outboxID", msg.ID, "messageID", serverID)
	return err
}

// Close flushes pending publishes and releases the client.
func (p *PubSubPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		p.topic.Stop()
		p.topic = nil
	}
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}
