package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Currency moneda única de la tienda. Scale es el número de decimales de la unidad menor.
type Currency struct {
	Code  string
	Scale int32
}

// ParseCurrency resuelve un código ISO 4217 y su escala estándar (USD -> 2, JPY -> 0).
func ParseCurrency(code string) (Currency, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return Currency{}, fmt.Errorf("moneda %q: %w", code, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return Currency{Code: unit.String(), Scale: int32(scale)}, nil
}

// MustCurrency como ParseCurrency pero entra en pánico; para constantes y tests.
func MustCurrency(code string) Currency {
	c, err := ParseCurrency(code)
	if err != nil {
		panic(err)
	}
	return c
}

// Round redondea amount a la unidad menor de la moneda (mitad hacia afuera de cero).
func (c Currency) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(c.Scale)
}
