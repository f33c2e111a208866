package pricing

import "github.com/shopspring/decimal"

// Line par precio/cantidad sobre el que se calcula un total.
type Line interface {
	Subtotal() decimal.Decimal
}

// Total = Σ(precio × cantidad), redondeado una sola vez a la unidad menor de la moneda.
// Los subtotales no se redondean por línea: el total es exacto hasta el último paso.
func Total[L Line](c Currency, lines []L) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return c.Round(sum)
}

// ItemCount suma las cantidades de las líneas.
func ItemCount(quantities []int) int {
	n := 0
	for _, q := range quantities {
		n += q
	}
	return n
}
