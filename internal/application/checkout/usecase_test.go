package checkout_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/storefront-api/internal/application/cart"
	"github.com/jhoicas/storefront-api/internal/application/checkout"
	"github.com/jhoicas/storefront-api/internal/application/dto"
	"github.com/jhoicas/storefront-api/internal/domain"
	"github.com/jhoicas/storefront-api/internal/domain/entity"
	"github.com/jhoicas/storefront-api/internal/domain/pricing"
	"github.com/jhoicas/storefront-api/internal/testutil/memstore"
	"github.com/jhoicas/storefront-api/pkg/logger"
)

const alice = "user-alice"

var (
	usd       = pricing.MustCurrency("USD")
	fixedTime = time.Date(2024, 5, 1, 12, 30, 0, 123456789, time.UTC)
)

type fixture struct {
	store    *memstore.Store
	cart     *cart.CartUseCase
	products []int64
}

func newFixture(t *testing.T, prices ...string) *fixture {
	t.Helper()
	store := memstore.New()
	f := &fixture{store: store, cart: cart.NewCartUseCase(store, usd)}
	for _, price := range prices {
		p := &entity.Product{Name: "producto " + price, Category: "general", Price: decimal.RequireFromString(price)}
		require.NoError(t, store.Products().Create(context.Background(), p))
		f.products = append(f.products, p.ID)
	}
	return f
}

func (f *fixture) add(t *testing.T, userID string, productID int64, qty int) {
	t.Helper()
	_, err := f.cart.AddItem(context.Background(), userID, dto.AddCartItemRequest{ProductID: productID, Quantity: qty})
	require.NoError(t, err)
}

func (f *fixture) useCase(opts ...checkout.Option) *checkout.CheckoutUseCase {
	opts = append([]checkout.Option{checkout.WithClock(func() time.Time { return fixedTime })}, opts...)
	return checkout.NewCheckoutUseCase(f.store, f.store.Orders(), usd, logger.Nop(), opts...)
}

// ── fakes ─────────────────────────────────────────────────────────────────────

type fakeIdempotency struct {
	mu       sync.Mutex
	keys     map[string]int64 // 0 = en curso
	released []string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{keys: map[string]int64{}}
}

func (f *fakeIdempotency) Reserve(_ context.Context, key string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.keys[key]; ok {
		return id, false, nil
	}
	f.keys[key] = 0
	return 0, true, nil
}

func (f *fakeIdempotency) Complete(_ context.Context, key string, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[key] = orderID
	return nil
}

func (f *fakeIdempotency) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	f.released = append(f.released, key)
	return nil
}

type fakeMetrics struct {
	completed []decimal.Decimal
	items     []int
	failed    []string
	replayed  int
}

func (m *fakeMetrics) CheckoutCompleted(total decimal.Decimal, items int) {
	m.completed = append(m.completed, total)
	m.items = append(m.items, items)
}
func (m *fakeMetrics) CheckoutFailed(reason string) { m.failed = append(m.failed, reason) }
func (m *fakeMetrics) CheckoutReplayed()            { m.replayed++ }

// ── tests ─────────────────────────────────────────────────────────────────────

func TestCheckout_EscenarioConcreto(t *testing.T) {
	f := newFixture(t, "9.99", "4.50")
	f.add(t, alice, f.products[0], 2)
	f.add(t, alice, f.products[1], 1)
	metrics := &fakeMetrics{}
	ctx := context.Background()

	out, err := f.useCase(checkout.WithMetrics(metrics)).Checkout(ctx, alice, "")
	require.NoError(t, err)

	assert.Equal(t, "24.48", out.Total.StringFixed(2))
	assert.Equal(t, "USD", out.Currency)
	assert.Equal(t, fixedTime.Truncate(time.Microsecond), out.CreatedAt)

	want := []dto.OrderLineResponse{
		{ProductID: f.products[0], Name: "producto 9.99", Price: dto.NewMoney(decimal.RequireFromString("9.99"), 2), Quantity: 2},
		{ProductID: f.products[1], Name: "producto 4.50", Price: dto.NewMoney(decimal.RequireFromString("4.50"), 2), Quantity: 1},
	}
	if diff := cmp.Diff(want, out.Items, cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })); diff != "" {
		t.Errorf("líneas del pedido (-want +got):\n%s", diff)
	}

	c, err := f.cart.GetCart(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, c.Items, "el carrito queda vacío tras el checkout")

	require.Len(t, metrics.completed, 1)
	assert.Equal(t, "24.48", metrics.completed[0].StringFixed(2))
	assert.Equal(t, []int{3}, metrics.items)
}

func TestCheckout_GeneraEventoOrderPlaced(t *testing.T) {
	f := newFixture(t, "10.00")
	f.add(t, alice, f.products[0], 3)
	ctx := context.Background()

	out, err := f.useCase().Checkout(ctx, alice, "")
	require.NoError(t, err)

	events, err := f.store.Outbox().FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, entity.EventOrderPlaced, e.EventType)
	assert.NotEmpty(t, e.EventID)

	var payload checkout.OrderPlaced
	require.NoError(t, json.Unmarshal(e.Payload, &payload))
	assert.Equal(t, e.EventID, payload.EventID)
	assert.Equal(t, out.ID, payload.OrderID)
	assert.Equal(t, alice, payload.UserID)
	assert.Equal(t, "30.00", payload.Total.StringFixed(2))
	require.Len(t, payload.Items, 1)
	assert.Equal(t, 3, payload.Items[0].Quantity)
}

func TestCheckout_CarritoVacio(t *testing.T) {
	f := newFixture(t)
	metrics := &fakeMetrics{}
	ctx := context.Background()

	_, err := f.useCase(checkout.WithMetrics(metrics)).Checkout(ctx, alice, "")
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Equal(t, []string{"empty_cart"}, metrics.failed)

	list, err := f.store.Orders().ListByUser(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCheckout_SinUsuario(t *testing.T) {
	f := newFixture(t)
	_, err := f.useCase().Checkout(context.Background(), "", "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestCheckout_FalloNoDejaEfectos(t *testing.T) {
	f := newFixture(t, "9.99")
	f.add(t, alice, f.products[0], 2)
	metrics := &fakeMetrics{}
	ctx := context.Background()

	f.store.FailNextCommit(errors.New("conexión perdida"))
	_, err := f.useCase(checkout.WithMetrics(metrics)).Checkout(ctx, alice, "")
	require.Error(t, err)
	assert.Equal(t, []string{"storage"}, metrics.failed)

	list, err := f.store.Orders().ListByUser(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, list, "sin pedido")

	events, err := f.store.Outbox().FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events, "sin evento")

	c, err := f.cart.GetCart(ctx, alice)
	require.NoError(t, err)
	require.Len(t, c.Items, 1, "el carrito conserva sus líneas")
	assert.Equal(t, 2, c.Items[0].Quantity)
}

func TestCheckout_SnapshotInmutable(t *testing.T) {
	f := newFixture(t, "9.99")
	f.add(t, alice, f.products[0], 1)
	ctx := context.Background()

	out, err := f.useCase().Checkout(ctx, alice, "")
	require.NoError(t, err)

	p, err := f.store.Products().GetByID(ctx, f.products[0])
	require.NoError(t, err)
	p.Name = "renombrado"
	p.Price = decimal.RequireFromString("99.00")
	require.NoError(t, f.store.Products().Update(ctx, p))

	o, err := f.store.Orders().GetByID(ctx, out.ID)
	require.NoError(t, err)
	assert.Equal(t, "producto 9.99", o.Lines[0].Name)
	assert.Equal(t, "9.99", o.Lines[0].Price.StringFixed(2))
	assert.Equal(t, "9.99", o.Total.StringFixed(2))
}

func TestCheckout_Idempotencia(t *testing.T) {
	f := newFixture(t, "5.00")
	f.add(t, alice, f.products[0], 1)
	idem := newFakeIdempotency()
	metrics := &fakeMetrics{}
	uc := f.useCase(checkout.WithIdempotency(idem), checkout.WithMetrics(metrics))
	ctx := context.Background()

	first, err := uc.Checkout(ctx, alice, "clave-1")
	require.NoError(t, err)

	second, err := uc.Checkout(ctx, alice, "clave-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, metrics.replayed)

	list, err := f.store.Orders().ListByUser(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCheckout_IdempotenciaEnCurso(t *testing.T) {
	f := newFixture(t, "5.00")
	f.add(t, alice, f.products[0], 1)
	idem := newFakeIdempotency()
	idem.keys[alice+":clave-1"] = 0
	ctx := context.Background()

	_, err := f.useCase(checkout.WithIdempotency(idem)).Checkout(ctx, alice, "clave-1")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCheckout_IdempotenciaLiberaTrasFallo(t *testing.T) {
	f := newFixture(t, "5.00")
	idem := newFakeIdempotency()
	uc := f.useCase(checkout.WithIdempotency(idem))
	ctx := context.Background()

	_, err := uc.Checkout(ctx, alice, "clave-1")
	require.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Equal(t, []string{alice + ":clave-1"}, idem.released)

	f.add(t, alice, f.products[0], 1)
	out, err := uc.Checkout(ctx, alice, "clave-1")
	require.NoError(t, err, "la misma clave puede reintentarse tras un fallo")
	assert.Equal(t, "5.00", out.Total.StringFixed(2))
}

func TestCheckout_ClavesPorUsuario(t *testing.T) {
	const bob = "user-bob"
	f := newFixture(t, "5.00")
	f.add(t, alice, f.products[0], 1)
	f.add(t, bob, f.products[0], 2)
	uc := f.useCase(checkout.WithIdempotency(newFakeIdempotency()))
	ctx := context.Background()

	a, err := uc.Checkout(ctx, alice, "misma")
	require.NoError(t, err)
	b, err := uc.Checkout(ctx, bob, "misma")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "10.00", b.Total.StringFixed(2))
}

func TestCheckout_ClaveDemasiadoLarga(t *testing.T) {
	f := newFixture(t)
	key := make([]byte, checkout.MaxIdempotencyKeyLength+1)
	for i := range key {
		key[i] = 'k'
	}
	_, err := f.useCase().Checkout(context.Background(), alice, string(key))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCheckout_ConcurrenteUnSoloPedido(t *testing.T) {
	f := newFixture(t, "1.00")
	f.add(t, alice, f.products[0], 1)
	uc := f.useCase()
	ctx := context.Background()

	const n = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		empties int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.Checkout(ctx, alice, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrEmptyCart):
				empties++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, empties)
}

func TestCheckout_TotalFueraDeRango(t *testing.T) {
	f := newFixture(t, "9999999999.99")
	f.add(t, alice, f.products[0], 200)
	metrics := &fakeMetrics{}
	ctx := context.Background()

	_, err := f.useCase(checkout.WithMetrics(metrics)).Checkout(ctx, alice, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, []string{"invalid"}, metrics.failed)

	list, err := f.store.Orders().ListByUser(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, list)

	c, err := f.cart.GetCart(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, c.Items, 1, "el carrito conserva sus líneas")
}

func TestCheckout_ImportesConEscalaFija(t *testing.T) {
	f := newFixture(t, "4.50")
	f.add(t, alice, f.products[0], 2)

	out, err := f.useCase().Checkout(context.Background(), alice, "")
	require.NoError(t, err)

	body, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"total":"9.00"`)
	assert.Contains(t, string(body), `"price":"4.50"`)
}
