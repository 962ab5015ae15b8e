package main

import (
	"context"
	"errors"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/ordena-app/ordena-backend/pkg/config"
	"github.com/ordena-app/ordena-backend/pkg/db/models"
	"github.com/ordena-app/ordena-backend/pkg/enums"
	"github.com/ordena-app/ordena-backend/pkg/logger"
)

type fakeRepo struct {
	events    []models.OutboxEvent
	fetchErr  error
	published []uuid.UUID
	failed    []uuid.UUID
}

func (f *fakeRepo) FetchPublishable(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if limit < len(f.events) {
		return f.events[:limit], nil
	}
	return f.events, nil
}

func (f *fakeRepo) MarkPublished(id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailed(id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakePubSub struct{ err error }

func (f fakePubSub) Ping(context.Context) error            { return f.err }
func (f fakePubSub) OrdersPublisher() *gcppubsub.Publisher { return nil }

type fakePublishResult struct {
	id  string
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return f.id, f.err
}

type fakePublisher struct {
	messages []*gcppubsub.Message
	results  []publishResult
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return fakePublishResult{id: "msg"}
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

func testEvent(eventType enums.OutboxEventType) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1}`),
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub *fakePublisher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:           &config.Config{},
		Logger:           logger.New(logger.Options{ServiceName: "outbox-test"}),
		DB:               fakePinger{},
		PubSub:           fakePubSub{},
		Repository:       repo,
		PublisherFactory: func() publisher { return pub },
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	events := []models.OutboxEvent{
		testEvent(enums.EventOrderSubmitted),
		testEvent(enums.EventOrderCompleted),
	}
	repo := &fakeRepo{events: events}
	pub := &fakePublisher{}
	svc := newTestService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report work")
	}
	if len(repo.published) != 2 {
		t.Fatalf("expected 2 published marks, got %d", len(repo.published))
	}
	if len(pub.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(pub.messages))
	}
	if got := pub.messages[0].Attributes["event_type"]; got != string(enums.EventOrderSubmitted) {
		t.Fatalf("unexpected event type attribute %q", got)
	}
	if got := pub.messages[0].Attributes["aggregate_id"]; got != events[0].AggregateID.String() {
		t.Fatalf("unexpected aggregate id attribute %q", got)
	}
}

func TestProcessBatchContinuesAfterFailure(t *testing.T) {
	events := []models.OutboxEvent{
		testEvent(enums.EventOrderSubmitted),
		testEvent(enums.EventConsolidationRun),
	}
	repo := &fakeRepo{events: events}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{id: "msg-2"},
		},
	}
	svc := newTestService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report work")
	}
	if len(repo.failed) != 1 || repo.failed[0] != events[0].ID {
		t.Fatalf("expected first event to be marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != events[1].ID {
		t.Fatalf("expected second event to be marked published, got %v", repo.published)
	}
}

func TestProcessBatchEmptyReportsIdle(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(t, repo, &fakePublisher{})

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed {
		t.Fatal("expected no work on empty batch")
	}
}

func TestProcessBatchPropagatesFetchError(t *testing.T) {
	repo := &fakeRepo{fetchErr: errors.New("db down")}
	svc := newTestService(t, repo, &fakePublisher{})

	if _, err := svc.processBatch(context.Background()); err == nil {
		t.Fatal("expected fetch error to propagate")
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	if err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestServiceDefaultsTuning(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{})

	if svc.batchSize != defaultBatchSize {
		t.Fatalf("expected default batch size, got %d", svc.batchSize)
	}
	if svc.maxAttempts != defaultMaxAttempts {
		t.Fatalf("expected default max attempts, got %d", svc.maxAttempts)
	}
	if svc.pollInterval.Milliseconds() != defaultPollMs {
		t.Fatalf("expected default poll interval, got %s", svc.pollInterval)
	}
}
