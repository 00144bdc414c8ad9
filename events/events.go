// Package events publishes client lifecycle changes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"legalestate/utils"
)

const Topic = "client_events"

const (
	ClientInvited  = "client_invited"
	ClientLoggedIn = "client_logged_in"
	EstateSaved    = "estate_saved"
)

// ClientDocument is the searchable projection of a client.
type ClientDocument struct {
	ID               uint       `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Phone            string     `json:"phone,omitempty"`
	LawyerID         uint       `json:"lawyer_id"`
	ProfileCompleted bool       `json:"profile_completed"`
	EstateCompleted  *time.Time `json:"estate_completed,omitempty"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
}

type ClientEvent struct {
	Event      string         `json:"event"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       ClientDocument `json:"data"`
}

type Publisher interface {
	Publish(ctx context.Context, event ClientEvent) error
}

type KafkaPublisher struct {
	producer utils.KafkaProducer
	timeout  time.Duration
}

func NewKafkaPublisher(producer utils.KafkaProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, timeout: 5 * time.Second}
}

// Publish keys messages by client id so events for one client stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, event ClientEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	key := []byte(strconv.FormatUint(uint64(event.Data.ID), 10))
	if err := p.producer.SendMessage(ctx, Topic, key, payload); err != nil {
		return fmt.Errorf("send %s event: %w", event.Event, err)
	}
	return nil
}

// LogPublisher is used when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event ClientEvent) error {
	p.logger.Debug("client_event",
		zap.String("event", event.Event),
		zap.Uint("client_id", event.Data.ID),
	)
	return nil
}
