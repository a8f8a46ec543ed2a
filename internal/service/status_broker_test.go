package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/intervexa/interview-api/internal/dto"
	"github.com/intervexa/interview-api/internal/models"
)

func TestBrokerBroadcastsToAnswerSubscribers(t *testing.T) {
	broker := newStatusBroker()

	ch := make(chan dto.AnswerStatusEvent, 1)
	broker.subscribe(7, ch)
	other := make(chan dto.AnswerStatusEvent, 1)
	broker.subscribe(8, other)

	broker.broadcast(dto.AnswerStatusEvent{AnswerID: 7, ProcessingStatus: models.AnswerStatusProcessing})

	select {
	case event := <-ch:
		require.Equal(t, uint(7), event.AnswerID)
	default:
		t.Fatal("subscriber for answer 7 should have received the event")
	}

	select {
	case <-other:
		t.Fatal("subscriber for answer 8 must not see answer 7 events")
	default:
	}
}

func TestBrokerUnsubscribeClosesChannel(t *testing.T) {
	broker := newStatusBroker()

	ch := make(chan dto.AnswerStatusEvent, 1)
	broker.subscribe(7, ch)
	broker.unsubscribe(7, ch)

	_, open := <-ch
	require.False(t, open)
}

func TestBrokerDropsSlowSubscribers(t *testing.T) {
	broker := newStatusBroker()

	ch := make(chan dto.AnswerStatusEvent, 1)
	broker.subscribe(7, ch)

	// Fill the buffer, then broadcast again: the send must not block.
	broker.broadcast(dto.AnswerStatusEvent{AnswerID: 7})
	done := make(chan struct{})
	go func() {
		broker.broadcast(dto.AnswerStatusEvent{AnswerID: 7})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast must never block on a slow subscriber")
	}
}

func TestPublisherMirrorsEventsAcrossNodes(t *testing.T) {
	server := miniredis.RunT(t)

	clientA := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer clientA.Close()
	clientB := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer clientB.Close()

	brokerA := newStatusBroker()
	brokerB := newStatusBroker()

	nodeA := newStatusPublisher(clientA, nil, "intervexa:test", brokerA, zerolog.Nop())
	nodeB := newStatusPublisher(clientB, nil, "intervexa:test", brokerB, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nodeB.start(ctx)

	// Give the subscription a moment to attach before publishing.
	time.Sleep(50 * time.Millisecond)

	received := make(chan dto.AnswerStatusEvent, 1)
	brokerB.subscribe(7, received)

	nodeA.publish(ctx, dto.AnswerStatusEvent{
		AnswerID:         7,
		SessionID:        1,
		ProcessingStatus: models.AnswerStatusCompleted,
		OccurredAt:       time.Now().UTC(),
	})

	select {
	case event := <-received:
		require.Equal(t, uint(7), event.AnswerID)
		require.Equal(t, models.AnswerStatusCompleted, event.ProcessingStatus)
	case <-time.After(2 * time.Second):
		t.Fatal("node B should observe the event published on node A")
	}
}

func TestPublisherIgnoresOwnEvents(t *testing.T) {
	server := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	broker := newStatusBroker()
	node := newStatusPublisher(client, nil, "intervexa:test", broker, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	node.start(ctx)
	time.Sleep(50 * time.Millisecond)

	received := make(chan dto.AnswerStatusEvent, 2)
	broker.subscribe(7, received)

	node.publish(ctx, dto.AnswerStatusEvent{AnswerID: 7, ProcessingStatus: models.AnswerStatusProcessing})

	// The local broadcast delivers exactly once; the mirrored copy coming
	// back through redis is discarded by source.
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("local broadcast missing")
	}

	select {
	case <-received:
		t.Fatal("the publishing node must not re-deliver its own event")
	case <-time.After(200 * time.Millisecond):
	}
}
