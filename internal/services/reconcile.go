package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"budgetbuddy/internal/core"
)

// ApplyRuleEdit reconciles a rule's materialized instances after the user
// saves an edit. A frequency change invalidates the cadence, so the windowed
// instances are deleted and regenerated; any other edit (amount, description,
// income flag, category) is patched onto the existing instances in place,
// keeping their identities, dates, and the rule's anchor.
func (e *Engine) ApplyRuleEdit(ctx context.Context, oldRule, newRule core.RecurringRule, asOf time.Time) error {
	newRule.Amount = core.SignedAmount(newRule.Amount, newRule.IsIncome)
	if err := newRule.Validate(); err != nil {
		return fmt.Errorf("validate edited rule: %w", err)
	}

	windowStart, windowEnd, err := core.MonthWindow(asOf)
	if err != nil {
		return fmt.Errorf("compute month window: %w", err)
	}

	if oldRule.Frequency != newRule.Frequency {
		return e.regenerateForNewCadence(ctx, newRule, windowStart, windowEnd, asOf)
	}
	return e.patchInstances(ctx, oldRule, newRule, windowStart, windowEnd)
}

func (e *Engine) regenerateForNewCadence(ctx context.Context, rule core.RecurringRule, windowStart, windowEnd, asOf time.Time) error {
	instances, err := e.windowedInstances(ctx, rule, windowStart, windowEnd)
	if err != nil {
		return err
	}

	// The old cadence already advanced the anchor past the window. Restart
	// the new cadence where the old one began in this window, so the
	// regenerated set covers the remaining days.
	anchor := core.Day(rule.NextRunDate)
	for i, tx := range instances {
		day := core.Day(tx.Date)
		if i == 0 || day.Before(anchor) {
			anchor = day
		}
	}
	rule.NextRunDate = anchor

	for _, tx := range instances {
		if err := e.store.DeleteTransaction(ctx, tx.ID); err != nil {
			return fmt.Errorf("delete instance %s: %w", tx.ID, err)
		}
	}

	if err := e.store.UpdateRule(ctx, rule); err != nil {
		return fmt.Errorf("update rule: %w", err)
	}

	slog.InfoContext(ctx, "Frequency changed, regenerating instances",
		"rule_id", rule.ID,
		"frequency", rule.Frequency,
		"deleted", len(instances))

	if _, err := e.MaterializeForCurrentMonth(ctx, rule.BudgetID, asOf); err != nil {
		return fmt.Errorf("rematerialize budget: %w", err)
	}
	return nil
}

func (e *Engine) patchInstances(ctx context.Context, oldRule, newRule core.RecurringRule, windowStart, windowEnd time.Time) error {
	// The anchor belongs to the materializer; an amount or description edit
	// must not disturb it.
	newRule.NextRunDate = oldRule.NextRunDate
	if err := e.store.UpdateRule(ctx, newRule); err != nil {
		return fmt.Errorf("update rule: %w", err)
	}

	instances, err := e.windowedInstances(ctx, newRule, windowStart, windowEnd)
	if err != nil {
		return err
	}

	for _, tx := range instances {
		tx.Description = newRule.Description
		tx.Amount = core.SignedAmount(newRule.Amount, newRule.IsIncome)
		tx.IsIncome = newRule.IsIncome
		tx.CategoryID = newRule.CategoryID
		if err := e.store.UpdateTransaction(ctx, tx); err != nil {
			return fmt.Errorf("patch instance %s: %w", tx.ID, err)
		}
	}

	slog.InfoContext(ctx, "Patched materialized instances in place",
		"rule_id", newRule.ID,
		"patched", len(instances))
	return nil
}

// DeleteRule removes the rule itself. Instances it already materialized stay
// behind as ordinary historical transactions with a dangling back-reference.
func (e *Engine) DeleteRule(ctx context.Context, ruleID uuid.UUID) error {
	if err := e.store.DeleteRule(ctx, ruleID); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	slog.InfoContext(ctx, "Deleted recurring rule", "rule_id", ruleID)
	return nil
}

// DeleteBudget cascades: transactions first, then rules, then the budget.
func (e *Engine) DeleteBudget(ctx context.Context, budgetID uuid.UUID) error {
	if err := e.store.DeleteTransactionsForBudget(ctx, budgetID); err != nil {
		return fmt.Errorf("delete transactions for budget: %w", err)
	}
	if err := e.store.DeleteRulesForBudget(ctx, budgetID); err != nil {
		return fmt.Errorf("delete rules for budget: %w", err)
	}
	if err := e.store.DeleteBudget(ctx, budgetID); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	slog.InfoContext(ctx, "Deleted budget and dependents", "budget_id", budgetID)
	return nil
}

func (e *Engine) windowedInstances(ctx context.Context, rule core.RecurringRule, windowStart, windowEnd time.Time) ([]core.Transaction, error) {
	all, err := e.store.FetchTransactions(ctx, rule.BudgetID)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}

	var out []core.Transaction
	for _, tx := range all {
		if !tx.IsRecurringInstance || tx.RecurringRuleID == nil || *tx.RecurringRuleID != rule.ID {
			continue
		}
		day := core.Day(tx.Date)
		if day.Before(windowStart) || day.After(windowEnd) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}
