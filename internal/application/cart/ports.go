package cart

import (
	"context"

	"github.com/jhoicas/storefront-api/internal/domain/repository"
)

// TxRunner ejecuta fn dentro de una transacción con repositorios atados a ella.
// El repositorio de productos es el Catalog Lookup visto desde la misma tx.
type TxRunner interface {
	RunCart(ctx context.Context, fn func(
		carts repository.CartRepository,
		products repository.ProductRepository,
	) error) error
}
