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

	"github.com/intervexa/interview-api/internal/dto"
)

const statusBufferSize = 16

// statusEvent is the cross-node envelope for a status transition.
type statusEvent struct {
	Source string                `json:"source"`
	Event  dto.AnswerStatusEvent `json:"event"`
	SentAt time.Time             `json:"sent_at"`
}

// statusBroker fans one status-transition event out to every local
// subscriber of that answer. Polling reads the store; streaming reads the
// broker; both observe the same transition.
type statusBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.AnswerStatusEvent]struct{}
}

func newStatusBroker() *statusBroker {
	return &statusBroker{subscribers: make(map[uint]map[chan dto.AnswerStatusEvent]struct{})}
}

func (b *statusBroker) subscribe(answerID uint, ch chan dto.AnswerStatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[answerID]; !exists {
		b.subscribers[answerID] = make(map[chan dto.AnswerStatusEvent]struct{})
	}
	b.subscribers[answerID][ch] = struct{}{}
}

func (b *statusBroker) unsubscribe(answerID uint, ch chan dto.AnswerStatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[answerID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, answerID)
		}
	}
}

func (b *statusBroker) broadcast(event dto.AnswerStatusEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[event.AnswerID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// statusPublisher mirrors transition events across nodes over Redis pub/sub
// and NATS so SSE subscribers on any node observe them.
type statusPublisher struct {
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	broker      *statusBroker
	logger      zerolog.Logger
	nodeID      string
}

func newStatusPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, broker *statusBroker, logger zerolog.Logger) *statusPublisher {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":answer-status"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".answer-status"
	}

	return &statusPublisher{
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		broker:      broker,
		logger:      logger.With().Str("component", "status_publisher").Logger(),
		nodeID:      uuid.NewString(),
	}
}

// start launches the cross-node consumers.
func (p *statusPublisher) start(ctx context.Context) {
	if p.redis != nil && p.redisStream != "" {
		go p.consumeRedis(ctx)
	}
	if p.nats != nil && p.natsSubject != "" {
		go p.consumeNATS(ctx)
	}
}

// publish broadcasts locally and mirrors the event to the brokers.
func (p *statusPublisher) publish(ctx context.Context, event dto.AnswerStatusEvent) {
	p.broker.broadcast(event)

	envelope := statusEvent{Source: p.nodeID, Event: event, SentAt: time.Now().UTC()}
	payload, err := json.Marshal(envelope)
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to encode status event")
		return
	}

	if p.redis != nil && p.redisStream != "" {
		if err := p.redis.Publish(ctx, p.redisStream, payload).Err(); err != nil {
			p.logger.Warn().Err(err).Msg("failed to publish status event to redis")
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			p.logger.Warn().Err(err).Msg("failed to publish status event to nats")
		}
	}
}

func (p *statusPublisher) consumeRedis(ctx context.Context) {
	pubsub := p.redis.Subscribe(ctx, p.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			p.logger.Error().Err(err).Msg("status redis subscription closed")
			return
		}
		p.handleEvent([]byte(msg.Payload))
	}
}

func (p *statusPublisher) consumeNATS(ctx context.Context) {
	sub, err := p.nats.QueueSubscribe(p.natsSubject, "intervexa-status", func(msg *nats.Msg) {
		p.handleEvent(msg.Data)
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to subscribe to nats status subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			p.logger.Warn().Err(err).Msg("failed to drain status nats subscription")
		}
	}()
}

func (p *statusPublisher) handleEvent(payload []byte) {
	var envelope statusEvent
	if err := json.Unmarshal(payload, &envelope); err != nil {
		p.logger.Warn().Err(err).Msg("invalid status event payload")
		return
	}

	if envelope.Source == p.nodeID {
		return
	}

	p.broker.broadcast(envelope.Event)
}
