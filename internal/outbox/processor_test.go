package outbox

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"mailtrack/internal/domain"
)

type fakeOutboxRepo struct {
	pending   []domain.OutboxMessage
	sentIDs   []string
	failedIDs []string
	err       error
}

func (f *fakeOutboxRepo) CreateMessageTx(context.Context, *sql.Tx, *domain.OutboxMessage) error {
	return nil
}

func (f *fakeOutboxRepo) GetPendingMessages(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeOutboxRepo) MarkMessagesAsSent(_ context.Context, ids []string) error {
	f.sentIDs = append(f.sentIDs, ids...)
	return nil
}

func (f *fakeOutboxRepo) MarkMessagesAsFailed(_ context.Context, ids []string) error {
	f.failedIDs = append(f.failedIDs, ids...)
	return nil
}

type producedMessage struct {
	topic string
	key   string
	value []byte
}

type fakeProducer struct {
	produced []producedMessage
	failKeys map[string]bool
}

func (f *fakeProducer) Produce(_ context.Context, topic, key string, value []byte) error {
	if f.failKeys[key] {
		return errors.New("broker unavailable")
	}
	f.produced = append(f.produced, producedMessage{topic: topic, key: key, value: value})
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func pendingMessage(id, key string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:          id,
		MessageID:   key,
		MessageType: "email.opened",
		Topic:       "email-open-events",
		Key:         key,
		Payload:     []byte(`{"message_id":"` + key + `"}`),
		Status:      domain.OutboxStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

func newTestProcessor(repo *fakeOutboxRepo, producer *fakeProducer) *Processor {
	return NewProcessor(repo, producer, time.Second, time.Second, 10, zap.NewNop())
}

func TestProcessorPublishesPendingMessages(t *testing.T) {
	repo := &fakeOutboxRepo{pending: []domain.OutboxMessage{
		pendingMessage("o1", "m1"),
		pendingMessage("o2", "m2"),
	}}
	producer := &fakeProducer{}

	newTestProcessor(repo, producer).processOutboxMessages(context.Background())

	assert.Equal(t, []string{"o1", "o2"}, repo.sentIDs)
	assert.Empty(t, repo.failedIDs)
	assert.Len(t, producer.produced, 2)
	assert.Equal(t, "email-open-events", producer.produced[0].topic)
	assert.Equal(t, "m1", producer.produced[0].key)
}

func TestProcessorMarksFailedPublishes(t *testing.T) {
	repo := &fakeOutboxRepo{pending: []domain.OutboxMessage{
		pendingMessage("o1", "m1"),
		pendingMessage("o2", "m2"),
		pendingMessage("o3", "m3"),
	}}
	producer := &fakeProducer{failKeys: map[string]bool{"m2": true}}

	newTestProcessor(repo, producer).processOutboxMessages(context.Background())

	assert.Equal(t, []string{"o1", "o3"}, repo.sentIDs)
	assert.Equal(t, []string{"o2"}, repo.failedIDs)
	assert.Len(t, producer.produced, 2)
}

func TestProcessorNoPendingMessages(t *testing.T) {
	repo := &fakeOutboxRepo{}
	producer := &fakeProducer{}

	newTestProcessor(repo, producer).processOutboxMessages(context.Background())

	assert.Empty(t, producer.produced)
	assert.Empty(t, repo.sentIDs)
	assert.Empty(t, repo.failedIDs)
}

func TestProcessorRepoErrorSkipsCycle(t *testing.T) {
	repo := &fakeOutboxRepo{err: errors.New("store unreachable")}
	producer := &fakeProducer{}

	newTestProcessor(repo, producer).processOutboxMessages(context.Background())

	assert.Empty(t, producer.produced)
}

func TestProcessorStartStopsOnContextCancel(t *testing.T) {
	repo := &fakeOutboxRepo{}
	producer := &fakeProducer{}
	processor := NewProcessor(repo, producer, 10*time.Millisecond, 10*time.Millisecond, 10, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		processor.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop after context cancellation")
	}
}
