package core

import (
	"math"
	"sort"
	"time"
)

// Summary aggregates a set of transactions: income as a positive total,
// expenses as a positive magnitude, net as their difference.
type Summary struct {
	TotalIncome   float64
	TotalExpenses float64
	Net           float64
}

// Summarize computes totals over the given transactions.
func Summarize(txs []Transaction) Summary {
	var s Summary
	for _, tx := range txs {
		if tx.Amount > 0 {
			s.TotalIncome += tx.Amount
		} else {
			s.TotalExpenses += math.Abs(tx.Amount)
		}
	}
	s.Net = s.TotalIncome - s.TotalExpenses
	return s
}

// TransactionsInMonth filters to the calendar month containing asOf and
// returns the result sorted by date ascending.
func TransactionsInMonth(txs []Transaction, asOf time.Time) []Transaction {
	y, m, _ := asOf.UTC().Date()
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		ty, tm, _ := tx.Date.UTC().Date()
		if ty == y && tm == m {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
