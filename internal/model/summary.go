package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MonthTotal sales of one calendar month
type MonthTotal struct {
	Month    string          `json:"month"` // YYYY-MM
	Orders   int             `json:"orders"`
	TotalUEC decimal.Decimal `json:"total_uec"`
	TotalUSD decimal.Decimal `json:"total_usd"`
}

// SalesSummary per-month and grand totals over a window
type SalesSummary struct {
	Since    time.Time       `json:"since"`
	Until    time.Time       `json:"until"`
	Months   []MonthTotal    `json:"months"`
	Orders   int             `json:"orders"`
	TotalUEC decimal.Decimal `json:"total_uec"`
	TotalUSD decimal.Decimal `json:"total_usd"`
}

// Clone returns a copy that shares nothing with s
func (s *SalesSummary) Clone() *SalesSummary {
	c := *s
	c.Months = append([]MonthTotal(nil), s.Months...)
	return &c
}

// Render formats the summary for the finance channel
func (s *SalesSummary) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 **Sales summary** (last %d months)\n\n", len(s.Months))
	for _, m := range s.Months {
		fmt.Fprintf(&b, "**%s**: %s UEC | $%s (%d orders)\n", m.Month, FormatUEC(m.TotalUEC), FormatUSD(m.TotalUSD), m.Orders)
	}
	fmt.Fprintf(&b, "\n**Total**: %s UEC | $%s (%d orders)\n", FormatUEC(s.TotalUEC), FormatUSD(s.TotalUSD), s.Orders)
	fmt.Fprintf(&b, "_Updated %s_", s.Until.UTC().Format("2006-01-02 15:04 MST"))
	return b.String()
}
