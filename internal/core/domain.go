package core

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Income  CategoryType = "income"
	Expense CategoryType = "expense"
)

type (
	CategoryType string

	Budget struct {
		ID   uuid.UUID
		Name string
	}

	Category struct {
		ID       uuid.UUID
		Name     string
		Type     CategoryType
		ColorHex string
		IconName string
		IsActive bool
	}

	// Transaction is a single dated ledger entry. Amount is signed: positive
	// for income, negative for expenses, always agreeing with IsIncome.
	// RecurringRuleID is a weak back-reference to the rule that materialized
	// the entry; it never owns the rule.
	Transaction struct {
		ID          uuid.UUID
		BudgetID    uuid.UUID
		Date        time.Time
		Description string
		Amount      float64
		IsIncome    bool
		CategoryID  *uuid.UUID

		IsRecurringInstance bool
		RecurringRuleID     *uuid.UUID
	}

	// RecurringRule is the template that materializes dated transaction
	// instances. NextRunDate advances as occurrences are produced.
	RecurringRule struct {
		ID          uuid.UUID
		BudgetID    uuid.UUID
		Description string
		Amount      float64
		IsIncome    bool
		Frequency   Frequency
		NextRunDate time.Time
		CategoryID  *uuid.UUID
		IsActive    bool
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidType      = errors.New("invalid category type")
	ErrZeroDate         = errors.New("date cannot be zero")
	ErrZeroNextRunDate  = errors.New("next run date cannot be zero")
)

// SignedAmount normalizes an amount against the income flag: income entries
// are positive, expense entries negative. Applied at every write path.
func SignedAmount(amount float64, isIncome bool) float64 {
	if isIncome {
		return math.Abs(amount)
	}
	return -math.Abs(amount)
}

// Day truncates a time to midnight UTC. Transactions and rule anchors are
// compared at day granularity.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two times fall on the same calendar day in UTC.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	switch c.Type {
	case Income, Expense:
	default:
		return ErrInvalidType
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if t.Amount == 0 {
		return ErrInvalidAmount
	}
	if t.IsIncome != (t.Amount > 0) {
		return errors.New("amount sign disagrees with income flag")
	}
	return nil
}

func (r RecurringRule) Validate() error {
	if r.NextRunDate.IsZero() {
		return ErrZeroNextRunDate
	}
	if err := r.Frequency.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(r.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(r.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if r.Amount == 0 {
		return ErrInvalidAmount
	}
	if r.IsIncome != (r.Amount > 0) {
		return errors.New("amount sign disagrees with income flag")
	}
	return nil
}
