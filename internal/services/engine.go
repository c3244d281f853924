package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"budgetbuddy/internal/core"
)

// Engine materializes recurring rules into dated transaction instances and
// reconciles those instances when rules change. All persistence goes through
// the injected Store.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// MaterializeForCurrentMonth generates transaction instances for every active
// rule of the budget, over the calendar month containing asOf. It is
// idempotent: instances already present for a (rule, day) pair are never
// inserted again, and a second run for the same window leaves every rule's
// anchor untouched.
//
// A failure on one rule does not stop the others; per-rule errors are logged,
// joined, and returned alongside the count of instances actually created.
func (e *Engine) MaterializeForCurrentMonth(ctx context.Context, budgetID uuid.UUID, asOf time.Time) (int, error) {
	windowStart, windowEnd, err := core.MonthWindow(asOf)
	if err != nil {
		return 0, fmt.Errorf("compute month window: %w", err)
	}

	rules, err := e.store.FetchActiveRules(ctx, budgetID)
	if err != nil {
		return 0, fmt.Errorf("fetch active rules: %w", err)
	}

	existing, err := e.store.FetchTransactions(ctx, budgetID)
	if err != nil {
		return 0, fmt.Errorf("fetch transactions: %w", err)
	}

	seen := make(map[string]struct{}, len(existing))
	for _, tx := range existing {
		if tx.IsRecurringInstance && tx.RecurringRuleID != nil {
			seen[instanceKey(*tx.RecurringRuleID, tx.Date)] = struct{}{}
		}
	}

	slog.InfoContext(ctx, "Materializing recurring rules",
		"budget_id", budgetID,
		"active_rules", len(rules),
		"window_start", windowStart.Format("2006-01-02"),
		"window_end", windowEnd.Format("2006-01-02"))

	created := 0
	var ruleErrs []error
	for _, rule := range rules {
		n, err := e.materializeRule(ctx, rule, windowStart, windowEnd, seen)
		created += n
		if err != nil {
			slog.ErrorContext(ctx, "Failed to materialize rule",
				"rule_id", rule.ID,
				"description", rule.Description,
				"error", err)
			ruleErrs = append(ruleErrs, fmt.Errorf("rule %s: %w", rule.ID, err))
			continue
		}
	}

	slog.InfoContext(ctx, "Materialization pass complete",
		"budget_id", budgetID,
		"instances_created", created,
		"rules_failed", len(ruleErrs))

	return created, errors.Join(ruleErrs...)
}

// materializeRule runs the generate-check-insert-advance sequence for one
// rule. seen is shared across the pass and updated with inserted instances.
func (e *Engine) materializeRule(ctx context.Context, rule core.RecurringRule, windowStart, windowEnd time.Time, seen map[string]struct{}) (int, error) {
	if err := rule.Validate(); err != nil {
		return 0, fmt.Errorf("malformed rule: %w", err)
	}

	dates := Occurrences(rule, windowStart, windowEnd)

	created := 0
	for _, due := range dates {
		key := instanceKey(rule.ID, due)
		if _, ok := seen[key]; ok {
			continue
		}

		ruleID := rule.ID
		categoryID := rule.CategoryID
		tx := core.Transaction{
			ID:                  uuid.New(),
			BudgetID:            rule.BudgetID,
			Date:                core.Day(due),
			Description:         rule.Description,
			Amount:              core.SignedAmount(rule.Amount, rule.IsIncome),
			IsIncome:            rule.IsIncome,
			CategoryID:          categoryID,
			IsRecurringInstance: true,
			RecurringRuleID:     &ruleID,
		}
		if err := e.store.InsertTransaction(ctx, tx); err != nil {
			return created, fmt.Errorf("insert instance for %s: %w", due.Format("2006-01-02"), err)
		}
		seen[key] = struct{}{}
		created++
	}

	// Advance the anchor to the smallest step-reachable date strictly past
	// the window. With nothing emitted and the anchor already past the
	// window, this is a no-op and the rule is not rewritten.
	next := rule.NextRunDate
	if len(dates) > 0 {
		next = dates[len(dates)-1]
	}
	for !next.After(windowEnd) {
		next = rule.Frequency.Step(next)
	}
	if !next.Equal(rule.NextRunDate) {
		rule.NextRunDate = next
		if err := e.store.UpdateRule(ctx, rule); err != nil {
			return created, fmt.Errorf("advance next run date: %w", err)
		}
		slog.DebugContext(ctx, "Advanced rule anchor",
			"rule_id", rule.ID,
			"next_run_date", next.Format("2006-01-02"))
	}

	return created, nil
}

func instanceKey(ruleID uuid.UUID, date time.Time) string {
	return ruleID.String() + "|" + date.UTC().Format("2006-01-02")
}
