package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"legalestate/events"
	"legalestate/services"
	"legalestate/utils"
)

const (
	cacheTTL = 24 * time.Hour

	initialRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ClientConsumer projects client events into the Redis cache and the
// Elasticsearch directory used by lawyer search.
type ClientConsumer struct {
	reader messageReader
	cache  utils.RedisClient
	es     utils.ElasticsearchClient
	logger *zap.Logger

	retryDelay time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClientConsumer creates a consumer. cache and es are optional.
func NewClientConsumer(broker, groupID string, cache utils.RedisClient, es utils.ElasticsearchClient, logger *zap.Logger) *ClientConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{broker},
		Topic:   events.Topic,
		GroupID: groupID,
		MaxWait: 10 * time.Second,
	})
	return newClientConsumer(reader, cache, es, logger)
}

func newClientConsumer(reader messageReader, cache utils.RedisClient, es utils.ElasticsearchClient, logger *zap.Logger) *ClientConsumer {
	return &ClientConsumer{
		reader: reader,
		cache:  cache,
		es:     es,
		logger: logger,

		retryDelay: initialRetryDelay,
	}
}

func (c *ClientConsumer) Start(ctx context.Context) {
	c.logger.Info("starting client directory consumer", zap.String("topic", events.Topic))

	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for ctx.Err() == nil {
			c.processMessage(ctx)
		}
	}()
}

func (c *ClientConsumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if err := c.reader.Close(); err != nil {
		c.logger.Warn("error closing Kafka reader", zap.Error(err))
	}
}

func (c *ClientConsumer) processMessage(ctx context.Context) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}
		c.logger.Warn("Kafka read error, will retry", zap.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
		}
		return
	}

	// A later commit would cover this offset too, so the same message is
	// retried until it projects or the consumer stops.
	delay := c.retryDelay
	for {
		err := c.handle(ctx, msg.Value)
		if err == nil {
			break
		}
		c.logger.Error("failed to project client event, retrying",
			zap.Int64("offset", msg.Offset),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}

	if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
		c.logger.Warn("failed to commit offset", zap.Int64("offset", msg.Offset), zap.Error(err))
	}
}

// handle applies one event. Malformed or unknown events are dropped, not retried.
func (c *ClientConsumer) handle(ctx context.Context, value []byte) error {
	var event events.ClientEvent
	if err := json.Unmarshal(value, &event); err != nil {
		c.logger.Warn("dropping malformed client event", zap.Error(err))
		return nil
	}

	switch event.Event {
	case events.ClientInvited, events.ClientLoggedIn, events.EstateSaved:
	default:
		c.logger.Warn("unknown event type", zap.String("event", event.Event))
		return nil
	}
	if event.Data.ID == 0 {
		c.logger.Warn("dropping client event without id", zap.String("event", event.Event))
		return nil
	}

	doc := c.merge(ctx, event.Data)

	if c.cache != nil {
		payload, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal client document: %w", err)
		}
		if err := c.cache.SetToCache(ctx, cacheKey(doc.ID), string(payload), cacheTTL); err != nil {
			c.logger.Warn("failed to cache client", zap.Uint("client_id", doc.ID), zap.Error(err))
		}
	}

	if c.es != nil {
		id := strconv.FormatUint(uint64(doc.ID), 10)
		if err := c.es.IndexClient(ctx, services.ClientsIndex, id, doc); err != nil {
			return fmt.Errorf("index client %d: %w", doc.ID, err)
		}
	}

	c.logger.Debug("processed client event",
		zap.String("event", event.Event),
		zap.Uint("client_id", doc.ID),
	)
	return nil
}

// merge keeps timestamps from the cached projection that the incoming event does not carry.
func (c *ClientConsumer) merge(ctx context.Context, incoming events.ClientDocument) events.ClientDocument {
	if c.cache == nil {
		return incoming
	}

	raw, err := c.cache.GetFromCache(ctx, cacheKey(incoming.ID))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("failed to read cached client", zap.Uint("client_id", incoming.ID), zap.Error(err))
		}
		return incoming
	}

	var cached events.ClientDocument
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return incoming
	}
	if incoming.EstateCompleted == nil {
		incoming.EstateCompleted = cached.EstateCompleted
	}
	if incoming.LastLoginAt == nil {
		incoming.LastLoginAt = cached.LastLoginAt
	}
	return incoming
}

func cacheKey(id uint) string {
	return fmt.Sprintf("client:%d", id)
}
