package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mathla-api/internal/dto"
	"github.com/noah-isme/mathla-api/internal/observability"
)

const submissionEventBufferSize = 16

// SubmissionEventPublisher is the write side used by the lifecycle.
type SubmissionEventPublisher interface {
	Publish(ctx context.Context, event dto.SubmissionEvent)
}

// SubmissionEventBus fans submission events out to websocket subscribers on
// this node and, when configured, to peer nodes over redis and NATS.
type SubmissionEventBus interface {
	SubmissionEventPublisher
	Subscribe(userID uint) (<-chan dto.SubmissionEvent, func())
	Start(ctx context.Context)
}

type submissionEventBus struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	broker       *submissionBroker
	nodeID       string
}

type submissionEnvelope struct {
	Source string              `json:"source"`
	Event  dto.SubmissionEvent `json:"event"`
	SentAt time.Time           `json:"sent_at"`
}

type submissionBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.SubmissionEvent]struct{}
}

// NewSubmissionEventBus constructs the event bus. Either transport may be nil.
func NewSubmissionEventBus(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) SubmissionEventBus {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase
		subject = strings.ReplaceAll(channelBase, ":", ".")
	}

	return &submissionEventBus{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "submission_events").Logger(),
		broker: &submissionBroker{
			subscribers: make(map[uint]map[chan dto.SubmissionEvent]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (b *submissionEventBus) Start(ctx context.Context) {
	if b.redis != nil && b.redisChannel != "" {
		go b.consumeRedis(ctx)
	}
	if b.nats != nil && b.natsSubject != "" {
		b.consumeNATS(ctx)
	}
}

// Publish delivers locally first; transport failures are logged and dropped.
func (b *submissionEventBus) Publish(ctx context.Context, event dto.SubmissionEvent) {
	b.broadcast(event, "local")
	if err := b.forward(ctx, event); err != nil {
		b.logger.Warn().Err(err).Str("action", event.Action).Msg("failed to forward submission event")
	}
}

func (b *submissionEventBus) Subscribe(userID uint) (<-chan dto.SubmissionEvent, func()) {
	channel := make(chan dto.SubmissionEvent, submissionEventBufferSize)

	b.broker.subscribe(userID, channel)
	observability.WebsocketClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			b.broker.unsubscribe(userID, channel)
			observability.WebsocketClientsActive().Dec()
		})
	}

	return channel, cleanup
}

func (b *submissionEventBus) broadcast(event dto.SubmissionEvent, origin string) {
	delivered := false
	for _, userID := range event.Recipients() {
		if b.broker.broadcast(userID, event) {
			delivered = true
		}
	}
	if delivered {
		observability.SubmissionEventsPublished().WithLabelValues(origin).Inc()
	}
}

func (b *submissionEventBus) forward(ctx context.Context, event dto.SubmissionEvent) error {
	if (b.redis == nil || b.redisChannel == "") && (b.nats == nil || b.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(submissionEnvelope{
		Source: b.nodeID,
		Event:  event,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	var errs []error
	if b.redis != nil && b.redisChannel != "" {
		if err := b.redis.Publish(ctx, b.redisChannel, payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (b *submissionEventBus) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			b.logger.Error().Err(err).Msg("submission redis subscription closed")
			return
		}
		b.handleEnvelope([]byte(msg.Payload))
	}
}

func (b *submissionEventBus) consumeNATS(ctx context.Context) {
	sub, err := b.nats.Subscribe(b.natsSubject, func(msg *nats.Msg) {
		b.handleEnvelope(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats submission subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain submission nats subscription")
		}
	}()
}

func (b *submissionEventBus) handleEnvelope(payload []byte) {
	var envelope submissionEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		b.logger.Warn().Err(err).Msg("invalid submission event payload")
		return
	}

	if envelope.Source == b.nodeID {
		return
	}

	b.broadcast(envelope.Event, "peer")
}

func (sb *submissionBroker) subscribe(userID uint, ch chan dto.SubmissionEvent) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if _, exists := sb.subscribers[userID]; !exists {
		sb.subscribers[userID] = make(map[chan dto.SubmissionEvent]struct{})
	}
	sb.subscribers[userID][ch] = struct{}{}
}

func (sb *submissionBroker) unsubscribe(userID uint, ch chan dto.SubmissionEvent) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if subscribers, ok := sb.subscribers[userID]; ok {
		if _, present := subscribers[ch]; !present {
			return
		}
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(sb.subscribers, userID)
		}
	}
}

// broadcast never blocks; slow subscribers miss events.
func (sb *submissionBroker) broadcast(userID uint, event dto.SubmissionEvent) bool {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	subscribers := sb.subscribers[userID]
	for ch := range subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	return len(subscribers) > 0
}
