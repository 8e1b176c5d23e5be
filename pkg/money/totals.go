package money

import (
	"maps"
	"slices"
)

// Sum adds float amounts exactly in cents and returns the total as a float.
func Sum(amounts ...float64) float64 {
	total := Zero(BRL)
	for _, a := range amounts {
		total, _ = total.Add(Reais(a))
	}
	return total.ToFloat64()
}

// Totals accumulates amounts per key in a single currency. The zero value
// is not usable; call NewTotals.
type Totals struct {
	currency string
	total    *Money
	byKey    map[string]*Money
}

// NewTotals creates an empty accumulator for currencyCode.
func NewTotals(currencyCode string) *Totals {
	return &Totals{
		currency: currencyCode,
		total:    Zero(currencyCode),
		byKey:    make(map[string]*Money),
	}
}

// Add records amount under key. Amounts in another currency are ignored.
func (t *Totals) Add(key string, amount *Money) {
	if amount == nil || amount.Currency() != t.currency {
		return
	}
	t.total, _ = t.total.Add(amount)

	prev, ok := t.byKey[key]
	if !ok {
		prev = Zero(t.currency)
	}
	t.byKey[key], _ = prev.Add(amount)
}

// AddFloat is Add for a parsed float amount.
func (t *Totals) AddFloat(key string, amount float64) {
	t.Add(key, NewFromFloat(amount, t.currency))
}

// Total returns the sum over every key.
func (t *Totals) Total() *Money {
	return t.total
}

// Keys returns the recorded keys in sorted order.
func (t *Totals) Keys() []string {
	return slices.Sorted(maps.Keys(t.byKey))
}

// Floats returns the per-key sums as floats.
func (t *Totals) Floats() map[string]float64 {
	out := make(map[string]float64, len(t.byKey))
	for k, v := range t.byKey {
		out[k] = v.ToFloat64()
	}
	return out
}

// Merge folds other into t.
func (t *Totals) Merge(other *Totals) {
	for k, v := range other.byKey {
		t.Add(k, v)
	}
}
