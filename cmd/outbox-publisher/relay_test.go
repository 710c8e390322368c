package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

func TestDrainContinuesAfterTransientFailure(t *testing.T) {
	events := &fakeEvents{rows: []models.OutboxEvent{orderEvent(t, 0), orderEvent(t, 0)}}
	sender := &fakeSender{errs: []error{errors.New("transient")}}
	dlq := &fakeDLQ{}
	relay := newTestRelay(t, events, dlq, &fakeRegistry{topic: "orders-topic"}, sender, config.OutboxConfig{})

	n, err := relay.drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uuid.UUID{events.rows[0].ID}, events.failed)
	assert.Equal(t, []uuid.UUID{events.rows[1].ID}, events.published)
	assert.Empty(t, dlq.entries)
}

func TestPublishCarriesEnvelopeAndAttributes(t *testing.T) {
	event := orderEvent(t, 0)
	events := &fakeEvents{rows: []models.OutboxEvent{event}}
	sender := &fakeSender{}
	relay := newTestRelay(t, events, &fakeDLQ{}, &fakeRegistry{topic: "orders-topic"}, sender, config.OutboxConfig{})

	_, err := relay.drain(context.Background())
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "orders-topic", sender.topics[0])
	msg := sender.sent[0]
	assert.Equal(t, []byte(event.Payload), msg.Data)
	assert.Equal(t, string(enums.EventOrderCompleted), msg.Attributes["event_type"])
	assert.Equal(t, event.AggregateID.String(), msg.Attributes["aggregate_id"])
	assert.Equal(t, event.ID.String(), msg.Attributes["event_id"])
	assert.Equal(t, "1", msg.Attributes["version"])
	assert.Equal(t, []uuid.UUID{event.ID}, events.published)
}

func TestUnresolvableEventIsDeadLettered(t *testing.T) {
	event := orderEvent(t, 0)
	events := &fakeEvents{rows: []models.OutboxEvent{event}}
	dlq := &fakeDLQ{}
	sender := &fakeSender{}
	resolver := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	relay := newTestRelay(t, events, dlq, resolver, sender, config.OutboxConfig{})

	_, err := relay.drain(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	entry := dlq.entries[0]
	assert.Equal(t, event.ID, entry.EventID)
	assert.Equal(t, []byte(event.Payload), []byte(entry.Payload))
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "invalid payload")
	assert.Equal(t, []uuid.UUID{event.ID}, events.terminal)
	assert.Empty(t, sender.sent)
}

func TestLastAttemptIsDeadLettered(t *testing.T) {
	event := orderEvent(t, 1)
	events := &fakeEvents{rows: []models.OutboxEvent{event}}
	dlq := &fakeDLQ{}
	sender := &fakeSender{errs: []error{errors.New("transient")}}
	relay := newTestRelay(t, events, dlq, &fakeRegistry{topic: "orders-topic"}, sender, config.OutboxConfig{MaxAttempts: 2})

	_, err := relay.drain(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, dlq.entries[0].ErrorReason)
	assert.Empty(t, events.failed)
	assert.Equal(t, []uuid.UUID{event.ID}, events.terminal)
}

func TestUnknownTopicIsNotRetried(t *testing.T) {
	send := pubsubSender(&fakePubSub{})
	_, err := send(context.Background(), "missing", &gcppubsub.Message{})
	var nonRetryable registry.NonRetryableError
	assert.ErrorAs(t, err, &nonRetryable)
}

func TestNewRelayAppliesDefaults(t *testing.T) {
	relay := newTestRelay(t, &fakeEvents{}, &fakeDLQ{}, &fakeRegistry{}, &fakeSender{}, config.OutboxConfig{})
	assert.Equal(t, defaultBatchSize, relay.batchSize)
	assert.Equal(t, defaultMaxAttempts, relay.maxAttempts)
	assert.Equal(t, defaultPoll, relay.poll)

	_, err := NewRelay(RelayParams{Logger: relay.logg})
	assert.Error(t, err)
}

func TestRunStopsOnCancelAndFailsOnPing(t *testing.T) {
	relay := newTestRelay(t, &fakeEvents{}, &fakeDLQ{}, &fakeRegistry{}, &fakeSender{}, config.OutboxConfig{PollIntervalMS: 5})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, relay.Run(ctx), context.DeadlineExceeded)

	relay.pubsub = &fakePubSub{pingErr: errors.New("unreachable")}
	err := relay.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pubsub ping failed")
}

func newTestRelay(t *testing.T, events outboxRepository, dlq dlqRepository, resolver registryResolver, sender *fakeSender, cfg config.OutboxConfig) *Relay {
	t.Helper()
	relay, err := NewRelay(RelayParams{
		Outbox:   cfg,
		Logger:   logger.New(logger.Options{ServiceName: "outbox-relay-test", Output: io.Discard}),
		DB:       fakeDB{},
		PubSub:   &fakePubSub{},
		Events:   events,
		DLQ:      dlq,
		Registry: resolver,
		Send:     sender.send,
	})
	require.NoError(t, err)
	return relay
}

func orderEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	id := uuid.New()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    id.String(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            id,
		EventType:     enums.EventOrderCompleted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
		CreatedAt:     time.Now(),
	}
}

type fakeEvents struct {
	rows      []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeEvents) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.rows, nil
}

func (f *fakeEvents) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeEvents) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeEvents) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDLQ struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQ) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSub struct {
	pingErr error
}

func (f *fakePubSub) Ping(context.Context) error { return f.pingErr }

func (f *fakePubSub) Publisher(string) *gcppubsub.Publisher { return nil }

// fakeSender returns queued errors in order, then succeeds.
type fakeSender struct {
	errs   []error
	topics []string
	sent   []*gcppubsub.Message
}

func (f *fakeSender) send(_ context.Context, topic string, msg *gcppubsub.Message) (string, error) {
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	f.topics = append(f.topics, topic)
	f.sent = append(f.sent, msg)
	return "server-id", nil
}

type fakeRegistry struct {
	topic string
	err   error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	env, err := outbox.OpenEnvelope(event.Payload)
	if err != nil {
		return nil, err
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: f.topic, AggregateType: event.AggregateType},
		Envelope:   env,
		Payload:    &payloads.OrderCompletedEvent{},
	}, nil
}
