package cart_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/storefront-api/internal/application/cart"
	"github.com/jhoicas/storefront-api/internal/application/dto"
	"github.com/jhoicas/storefront-api/internal/domain"
	"github.com/jhoicas/storefront-api/internal/domain/entity"
	"github.com/jhoicas/storefront-api/internal/domain/pricing"
	"github.com/jhoicas/storefront-api/internal/testutil/memstore"
)

const alice = "user-alice"

func setup(t *testing.T, prices ...string) (*cart.CartUseCase, *memstore.Store, []int64) {
	t.Helper()
	store := memstore.New()
	ids := make([]int64, 0, len(prices))
	for _, price := range prices {
		p := &entity.Product{Name: "p" + price, Category: "general", Price: decimal.RequireFromString(price)}
		require.NoError(t, store.Products().Create(context.Background(), p))
		ids = append(ids, p.ID)
	}
	return cart.NewCartUseCase(store, pricing.MustCurrency("USD")), store, ids
}

func qty(n int) *int { return &n }

func TestGetCart_CreaCarritoVacio(t *testing.T) {
	uc, _, _ := setup(t)
	ctx := context.Background()

	c, err := uc.GetCart(ctx, alice)
	require.NoError(t, err)
	assert.NotZero(t, c.CartID)
	assert.Empty(t, c.Items)
	assert.Equal(t, 0, c.ItemCount)
	assert.True(t, c.Subtotal.IsZero())

	again, err := uc.GetCart(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, c.CartID, again.CartID, "un usuario tiene un solo carrito")
}

func TestGetCart_SinUsuario(t *testing.T) {
	uc, _, _ := setup(t)
	_, err := uc.GetCart(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAddItem_SumaCantidades(t *testing.T) {
	uc, _, ids := setup(t, "9.99", "4.50")
	ctx := context.Background()

	_, err := uc.AddItem(ctx, alice, dto.AddCartItemRequest{ProductID: ids[0], Quantity: 1})
	require.NoError(t, err)
	_, err = uc.AddItem(ctx, alice, dto.AddCartItemRequest{ProductID: ids[1], Quantity: 1})
	require.NoError(t, err)
	c, err := uc.AddItem(ctx, alice, dto.AddCartItemRequest{ProductID: ids[0], Quantity: 1})
	require.NoError(t, err)

	require.Len(t, c.Items, 2)
	assert.Equal(t, ids[0], c.Items[0].ProductID)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, "19.98", c.Items[0].Subtotal.StringFixed(2))
	assert.Equal(t, 3, c.ItemCount)
	assert.Equal(t, "24.48", c.Subtotal.StringFixed(2))
	assert.Equal(t, "USD", c.Currency)
}

func TestAddItem_EntradaInvalida(t *testing.T) {
	uc, _, ids := setup(t, "1.00")
	ctx := context.Background()

	for _, in := range []dto.AddCartItemRequest{
		{ProductID: ids[0], Quantity: 0},
		{ProductID: ids[0], Quantity: -3},
		{ProductID: 0, Quantity: 1},
	} {
		_, err := uc.AddItem(ctx, alice, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%+v", in)
	}
}

func TestAddItem_ProductoInexistente(t *testing.T) {
	uc, _, _ := setup(t, "1.00")
	ctx := context.Background()

	_, err := uc.AddItem(ctx, alice, dto.AddCartItemRequest{ProductID: 999, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	c, err := uc.GetCart(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestAddItem_Concurrente(t *testing.T) {
	uc, _, ids := setup(t, "2.00")
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.AddItem(ctx, alice, dto.AddCartItemRequest{ProductID: ids[0], Quantity: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := uc.GetCart(ctx, alice)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, n, c.Items[0].Quantity)
}

func TestUpdateItem(t *testing.T) {
	uc, _, ids := setup(t, "3.00", "1.00")
	ctx := context.Background()
	_, err := uc.AddItem(ctx, alice, dto.AddCartItemRequest{ProductID: ids[0], Quantity: 1})
	require.NoError(t, err)

	t.Run("fija la cantidad", func(t *testing.T) {
		c, err := uc.UpdateItem(ctx, alice, ids[0], dto.UpdateCartItemRequest{Quantity: qty(4)})
		require.NoError(t, err)
		assert.Equal(t, 4, c.Items[0].Quantity)
		assert.Equal(t, "12.00", c.Subtotal.StringFixed(2))
	})

	t.Run("línea inexistente", func(t *testing.T) {
		_, err := uc.UpdateItem(ctx, alice, ids[1], dto.UpdateCartItemRequest{Quantity: qty(2)})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("sin cantidad", func(t *testing.T) {
		_, err := uc.UpdateItem(ctx, alice, ids[0], dto.UpdateCartItemRequest{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("cero elimina la línea", func(t *testing.T) {
		c, err := uc.UpdateItem(ctx, alice, ids[0], dto.UpdateCartItemRequest{Quantity: qty(0)})
		require.NoError(t, err)
		assert.Empty(t, c.Items)
	})

	t.Run("cero sobre línea inexistente", func(t *testing.T) {
		_, err := uc.UpdateItem(ctx, alice, ids[0], dto.UpdateCartItemRequest{Quantity: qty(0)})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestRemoveItem_Idempotente(t *testing.T) {
	uc, _, ids := setup(t, "3.00")
	ctx := context.Background()
	_, err := uc.AddItem(ctx, alice, dto.AddCartItemRequest{ProductID: ids[0], Quantity: 2})
	require.NoError(t, err)

	c, err := uc.RemoveItem(ctx, alice, ids[0])
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	c, err = uc.RemoveItem(ctx, alice, ids[0])
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestCarrito_PrecioVivo(t *testing.T) {
	uc, store, ids := setup(t, "5.00")
	ctx := context.Background()
	_, err := uc.AddItem(ctx, alice, dto.AddCartItemRequest{ProductID: ids[0], Quantity: 2})
	require.NoError(t, err)

	p, err := store.Products().GetByID(ctx, ids[0])
	require.NoError(t, err)
	p.Price = decimal.RequireFromString("6.25")
	require.NoError(t, store.Products().Update(ctx, p))

	c, err := uc.GetCart(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "6.25", c.Items[0].Price.StringFixed(2))
	assert.Equal(t, "12.50", c.Subtotal.StringFixed(2))
}

func TestCarrito_ProductoBorradoDesaparece(t *testing.T) {
	uc, store, ids := setup(t, "5.00", "1.00")
	ctx := context.Background()
	_, err := uc.AddItem(ctx, alice, dto.AddCartItemRequest{ProductID: ids[0], Quantity: 1})
	require.NoError(t, err)
	_, err = uc.AddItem(ctx, alice, dto.AddCartItemRequest{ProductID: ids[1], Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, store.Products().Delete(ctx, ids[0]))

	c, err := uc.GetCart(ctx, alice)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, ids[1], c.Items[0].ProductID)
}

func TestAddItem_CantidadFueraDeRango(t *testing.T) {
	uc, _, ids := setup(t, "1.00")
	ctx := context.Background()

	_, err := uc.AddItem(ctx, alice, dto.AddCartItemRequest{ProductID: ids[0], Quantity: entity.MaxLineQuantity + 1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = uc.AddItem(ctx, alice, dto.AddCartItemRequest{ProductID: ids[0], Quantity: 2_000_000_000})
	require.NoError(t, err)
	_, err = uc.AddItem(ctx, alice, dto.AddCartItemRequest{ProductID: ids[0], Quantity: 2_000_000_000})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "la suma excede el máximo de la línea")

	c, err := uc.GetCart(ctx, alice)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2_000_000_000, c.Items[0].Quantity, "el alta rechazada no modifica la línea")

	_, err = uc.UpdateItem(ctx, alice, ids[0], dto.UpdateCartItemRequest{Quantity: qty(entity.MaxLineQuantity + 1)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	c, err = uc.UpdateItem(ctx, alice, ids[0], dto.UpdateCartItemRequest{Quantity: qty(entity.MaxLineQuantity)})
	require.NoError(t, err)
	assert.Equal(t, entity.MaxLineQuantity, c.Items[0].Quantity)
}

func TestCarrito_ImportesConEscalaFija(t *testing.T) {
	uc, _, ids := setup(t, "4.50")

	c, err := uc.AddItem(context.Background(), alice, dto.AddCartItemRequest{ProductID: ids[0], Quantity: 2})
	require.NoError(t, err)

	body, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"price":"4.50"`)
	assert.Contains(t, string(body), `"subtotal":"9.00"`)
}
