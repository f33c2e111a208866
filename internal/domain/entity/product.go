package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un artículo del catálogo. Es mutable (edición de admin);
// carrito y pedidos solo copian sus campos en el momento de uso.
type Product struct {
	ID        int64
	Name      string
	Category  string
	Price     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductFilter criterios de búsqueda del catálogo.
type ProductFilter struct {
	Search   string // subcadena sobre el nombre, sin distinguir mayúsculas
	Category string // coincidencia exacta sin distinguir mayúsculas
	Limit    int
	Offset   int
}
