package dto

import "github.com/shopspring/decimal"

// Money importe serializado como string con la escala de la moneda ("4.50", no "4.5").
// Al decodificar se acepta cualquier número decimal; Scale queda en 0.
type Money struct {
	decimal.Decimal
	Scale int32 `json:"-"`
}

// NewMoney asocia el importe a la escala con la que se publica.
func NewMoney(amount decimal.Decimal, scale int32) Money {
	return Money{Decimal: amount, Scale: scale}
}

// MarshalJSON escribe el importe con Scale decimales fijos.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.StringFixed(m.Scale) + `"`), nil
}
