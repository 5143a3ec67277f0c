package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency payment currency chosen at checkout
type Currency string

const (
	CurrencyUEC Currency = "UEC" // in-game currency
	CurrencyUSD Currency = "USD"
)

var (
	million  = decimal.NewFromInt(1_000_000)
	thousand = decimal.NewFromInt(1_000)
)

// ParseCurrency parses a currency code, case-insensitive
func ParseCurrency(s string) (Currency, error) {
	switch Currency(strings.ToUpper(strings.TrimSpace(s))) {
	case CurrencyUEC:
		return CurrencyUEC, nil
	case CurrencyUSD:
		return CurrencyUSD, nil
	}
	return "", fmt.Errorf("unknown currency %q", s)
}

// Valid reports whether c is a known currency
func (c Currency) Valid() bool {
	return c == CurrencyUEC || c == CurrencyUSD
}

// FormatUEC renders 1500000 as 1.5M and 250000 as 250k
func FormatUEC(v decimal.Decimal) string {
	switch {
	case v.GreaterThanOrEqual(million):
		return v.Div(million).StringFixed(1) + "M"
	case v.GreaterThanOrEqual(thousand):
		return v.Div(thousand).StringFixed(0) + "k"
	}
	return v.String()
}

// FormatUSD renders whole amounts without decimals, anything else with two
func FormatUSD(v decimal.Decimal) string {
	r := v.Round(2)
	if r.IsInteger() {
		return r.Truncate(0).String()
	}
	return r.StringFixed(2)
}

// FormatPrice renders an amount with its currency, e.g. "250k UEC" or "$12.50"
func FormatPrice(v decimal.Decimal, c Currency) string {
	if c == CurrencyUSD {
		return "$" + FormatUSD(v)
	}
	return FormatUEC(v) + " UEC"
}
