package entity

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MaxLineQuantity cantidad máxima de una línea (columna INTEGER).
const MaxLineQuantity = math.MaxInt32

// Cart es el área de preparación de compra de un usuario. Existe a lo sumo uno por usuario.
type Cart struct {
	ID        int64
	UserID    string
	CreatedAt time.Time
}

// CartLine es una línea del carrito con los datos vivos del catálogo.
// Price refleja el precio actual del producto, no un snapshot.
type CartLine struct {
	ProductID int64
	Quantity  int
	Name      string
	Price     decimal.Decimal
	Category  string
}

// Subtotal precio vivo × cantidad.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
