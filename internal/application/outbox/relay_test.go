package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jhoicas/storefront-api/internal/application/outbox"
	"github.com/jhoicas/storefront-api/internal/domain/entity"
	"github.com/jhoicas/storefront-api/internal/testutil/memstore"
	"github.com/jhoicas/storefront-api/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	failOn    map[string]error
}

func (p *fakePublisher) Publish(_ context.Context, e *entity.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.failOn[e.EventID]; ok {
		return err
	}
	p.published = append(p.published, e.EventID)
	return nil
}

func (p *fakePublisher) sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.published...)
}

func seed(t *testing.T, store *memstore.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, store.Outbox().Insert(context.Background(), &entity.OutboxEvent{
			EventID:   id,
			EventType: entity.EventOrderPlaced,
			Key:       "1",
			Payload:   json.RawMessage(`{}`),
		}))
	}
}

func TestFlush_PublicaEnOrdenYMarca(t *testing.T) {
	store := memstore.New()
	seed(t, store, "e1", "e2", "e3")
	pub := &fakePublisher{}
	relay := outbox.NewRelay(store.Outbox(), pub, time.Second, 10, logger.Nop())

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"e1", "e2", "e3"}, pub.sent())

	pending, err := store.Outbox().FetchPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	n, err = relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "nada se publica dos veces")
}

func TestFlush_SeDetieneEnElPrimerFallo(t *testing.T) {
	store := memstore.New()
	seed(t, store, "e1", "e2", "e3")
	pub := &fakePublisher{failOn: map[string]error{"e2": errors.New("broker caído")}}
	relay := outbox.NewRelay(store.Outbox(), pub, time.Second, 10, logger.Nop())

	n, err := relay.Flush(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"e1"}, pub.sent())

	pending, err := store.Outbox().FetchPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "e2", pending[0].EventID)

	delete(pub.failOn, "e2")
	n, err = relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"e1", "e2", "e3"}, pub.sent())
}

func TestFlush_RespetaTamañoDeLote(t *testing.T) {
	store := memstore.New()
	seed(t, store, "e1", "e2", "e3")
	pub := &fakePublisher{}
	relay := outbox.NewRelay(store.Outbox(), pub, time.Second, 2, logger.Nop())

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRun_TerminaConElContexto(t *testing.T) {
	store := memstore.New()
	seed(t, store, "e1")
	pub := &fakePublisher{}
	relay := outbox.NewRelay(store.Outbox(), pub, 10*time.Millisecond, 10, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(pub.sent()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run no terminó tras cancelar el contexto")
	}
}
