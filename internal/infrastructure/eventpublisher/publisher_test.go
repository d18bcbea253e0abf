package eventpublisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/infrastructure/eventpublisher/mocks"
	"github.com/iho/clubmarket/internal/infrastructure/metrics"
	usecasemocks "github.com/iho/clubmarket/internal/usecase/mocks"
)

func seedOutbox(t *testing.T, ids ...string) *usecasemocks.MockOutboxRepository {
	t.Helper()
	repo := usecasemocks.NewMockOutboxRepository()
	for _, id := range ids {
		require.NoError(t, repo.Create(context.Background(), nil, &domain.OutboxEvent{
			ID:            id,
			AggregateID:   "offer-1",
			AggregateType: domain.AggregateTypeOffer,
			EventType:     domain.EventTypeOfferCreated,
			CreatedAt:     time.Now(),
		}))
	}
	return repo
}

func TestProcessEventsPublishesAndMarks(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := seedOutbox(t, "evt-1", "evt-2")
	pub := mocks.NewMockPublisher(ctrl)
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())

	gomock.InOrder(
		pub.EXPECT().Publish(gomock.Any(), gomock.Cond(func(e *domain.OutboxEvent) bool { return e.ID == "evt-1" })).Return(nil),
		pub.EXPECT().Publish(gomock.Any(), gomock.Cond(func(e *domain.OutboxEvent) bool { return e.ID == "evt-2" })).Return(nil),
	)

	ep := NewEventPublisher(Config{OutboxRepo: repo, Publisher: pub, Metrics: m, BatchSize: 10})
	require.NoError(t, ep.processEvents(context.Background()))

	remaining, err := repo.GetUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues(domain.EventTypeOfferCreated)))
}

func TestProcessEventsContinuesOnPublishError(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := seedOutbox(t, "evt-1", "evt-2")
	pub := mocks.NewMockPublisher(ctrl)
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())

	pub.EXPECT().Publish(gomock.Any(), gomock.Cond(func(e *domain.OutboxEvent) bool { return e.ID == "evt-1" })).Return(errors.New("broker down"))
	pub.EXPECT().Publish(gomock.Any(), gomock.Cond(func(e *domain.OutboxEvent) bool { return e.ID == "evt-2" })).Return(nil)

	ep := NewEventPublisher(Config{OutboxRepo: repo, Publisher: pub, Metrics: m, BatchSize: 10})
	require.NoError(t, ep.processEvents(context.Background()))

	remaining, err := repo.GetUnpublished(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "evt-1", remaining[0].ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishFailures.WithLabelValues(domain.EventTypeOfferCreated)))
}

func TestProcessEventsRespectsBatchSize(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := seedOutbox(t, "evt-1", "evt-2", "evt-3")
	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	ep := NewEventPublisher(Config{OutboxRepo: repo, Publisher: pub, BatchSize: 2})
	require.NoError(t, ep.processEvents(context.Background()))

	remaining, err := repo.GetUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestCyclePrunesPublishedEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := seedOutbox(t, "evt-1")
	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	ep := NewEventPublisher(Config{OutboxRepo: repo, Publisher: pub, Retention: time.Hour})
	published := time.Now()
	ep.now = func() time.Time { return published }
	ep.cycle(context.Background())

	events, err := repo.GetByAggregate(context.Background(), domain.AggregateTypeOffer, "offer-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1, "fresh events are kept")

	ep.now = func() time.Time { return published.Add(2 * time.Hour) }
	ep.cycle(context.Background())

	events, err = repo.GetByAggregate(context.Background(), domain.AggregateTypeOffer, "offer-1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestStartStopsOnContextCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	ep := NewEventPublisher(Config{
		OutboxRepo: usecasemocks.NewMockOutboxRepository(),
		Publisher:  pub,
		Interval:   10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ep.Start(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop after cancel")
	}
}

func TestLogPublisher(t *testing.T) {
	var buf safeBuffer
	p := NewLogPublisher(newBufferLogger(&buf))

	err := p.Publish(context.Background(), &domain.OutboxEvent{
		ID:        "evt-1",
		EventType: domain.EventTypeTransferCompleted,
		Payload:   map[string]any{"fee": 600000},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"payload":{"fee":600000}`)
	assert.Contains(t, buf.String(), domain.EventTypeTransferCompleted)

	err = p.Publish(context.Background(), &domain.OutboxEvent{ID: "evt-2", Payload: map[string]any{"bad": make(chan int)}})
	assert.Error(t, err)
}
