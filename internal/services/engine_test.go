package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/memory"
)

func seedBudget(t *testing.T, store *memory.Store) core.Budget {
	t.Helper()
	b := core.Budget{ID: uuid.New(), Name: "Household"}
	if err := store.InsertBudget(context.Background(), b); err != nil {
		t.Fatalf("insert budget: %v", err)
	}
	return b
}

func seedRule(t *testing.T, store *memory.Store, budgetID uuid.UUID, freq core.Frequency, nextRun time.Time, amount float64, isIncome bool) core.RecurringRule {
	t.Helper()
	rule := core.RecurringRule{
		ID:          uuid.New(),
		BudgetID:    budgetID,
		Description: "Rent",
		Amount:      core.SignedAmount(amount, isIncome),
		IsIncome:    isIncome,
		Frequency:   freq,
		NextRunDate: nextRun,
		IsActive:    true,
	}
	if err := store.InsertRule(context.Background(), rule); err != nil {
		t.Fatalf("insert rule: %v", err)
	}
	return rule
}

func instancesOf(t *testing.T, store *memory.Store, budgetID, ruleID uuid.UUID) []core.Transaction {
	t.Helper()
	txs, err := store.FetchTransactions(context.Background(), budgetID)
	if err != nil {
		t.Fatalf("fetch transactions: %v", err)
	}
	var out []core.Transaction
	for _, tx := range txs {
		if tx.IsRecurringInstance && tx.RecurringRuleID != nil && *tx.RecurringRuleID == ruleID {
			out = append(out, tx)
		}
	}
	return out
}

func TestMaterializeMonthlyRuleDueYesterday(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	budget := seedBudget(t, store)

	asOf := day(2026, time.March, 15)
	yesterday := day(2026, time.March, 14)
	rule := seedRule(t, store, budget.ID, core.Monthly, yesterday, 1200, true)

	engine := NewEngine(store)
	created, err := engine.MaterializeForCurrentMonth(ctx, budget.ID, asOf)
	if err != nil {
		t.Fatalf("MaterializeForCurrentMonth() error = %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}

	instances := instancesOf(t, store, budget.ID, rule.ID)
	if len(instances) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(instances))
	}
	got := instances[0]
	if !got.Date.Equal(yesterday) {
		t.Errorf("instance date = %s, want %s", got.Date.Format("2006-01-02"), yesterday.Format("2006-01-02"))
	}
	if got.Amount != 1200 || !got.IsIncome {
		t.Errorf("instance amount = %v (income=%v), want 1200 income", got.Amount, got.IsIncome)
	}

	updated, ok := store.Rule(rule.ID)
	if !ok {
		t.Fatal("rule disappeared from store")
	}
	wantNext := day(2026, time.April, 14)
	if !updated.NextRunDate.Equal(wantNext) {
		t.Errorf("NextRunDate = %s, want %s", updated.NextRunDate.Format("2006-01-02"), wantNext.Format("2006-01-02"))
	}
}

func TestMaterializeTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	budget := seedBudget(t, store)
	asOf := day(2026, time.March, 15)
	rule := seedRule(t, store, budget.ID, core.Monthly, day(2026, time.March, 14), 1200, true)

	engine := NewEngine(store)
	if _, err := engine.MaterializeForCurrentMonth(ctx, budget.ID, asOf); err != nil {
		t.Fatalf("first pass error = %v", err)
	}
	afterFirst, _ := store.Rule(rule.ID)

	created, err := engine.MaterializeForCurrentMonth(ctx, budget.ID, asOf)
	if err != nil {
		t.Fatalf("second pass error = %v", err)
	}
	if created != 0 {
		t.Errorf("second pass created %d instances, want 0", created)
	}
	if got := instancesOf(t, store, budget.ID, rule.ID); len(got) != 1 {
		t.Errorf("expected 1 instance after two passes, got %d", len(got))
	}
	afterSecond, _ := store.Rule(rule.ID)
	if !afterSecond.NextRunDate.Equal(afterFirst.NextRunDate) {
		t.Errorf("NextRunDate moved on second pass: %s -> %s",
			afterFirst.NextRunDate.Format("2006-01-02"), afterSecond.NextRunDate.Format("2006-01-02"))
	}
}

func TestMaterializeBackfillsMissedWeeks(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	budget := seedBudget(t, store)
	rule := seedRule(t, store, budget.ID, core.Weekly, day(2026, time.March, 1), 30, false)

	engine := NewEngine(store)
	created, err := engine.MaterializeForCurrentMonth(ctx, budget.ID, day(2026, time.March, 22))
	if err != nil {
		t.Fatalf("MaterializeForCurrentMonth() error = %v", err)
	}
	// Mar 1, 8, 15, 22, 29: the whole window, not just dates up to asOf.
	if created != 5 {
		t.Errorf("created = %d, want 5", created)
	}

	updated, _ := store.Rule(rule.ID)
	if want := day(2026, time.April, 5); !updated.NextRunDate.Equal(want) {
		t.Errorf("NextRunDate = %s, want %s", updated.NextRunDate.Format("2006-01-02"), want.Format("2006-01-02"))
	}

	for _, tx := range instancesOf(t, store, budget.ID, rule.ID) {
		if tx.Amount != -30 || tx.IsIncome {
			t.Errorf("expense instance amount = %v (income=%v), want -30 expense", tx.Amount, tx.IsIncome)
		}
	}
}

func TestMaterializeRuleAnchoredPastWindow(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	budget := seedBudget(t, store)
	anchor := day(2026, time.April, 10)
	rule := seedRule(t, store, budget.ID, core.Monthly, anchor, 1200, true)

	engine := NewEngine(store)
	created, err := engine.MaterializeForCurrentMonth(ctx, budget.ID, day(2026, time.March, 15))
	if err != nil {
		t.Fatalf("MaterializeForCurrentMonth() error = %v", err)
	}
	if created != 0 {
		t.Errorf("created = %d, want 0", created)
	}
	updated, _ := store.Rule(rule.ID)
	if !updated.NextRunDate.Equal(anchor) {
		t.Errorf("NextRunDate = %s, want unchanged %s", updated.NextRunDate.Format("2006-01-02"), anchor.Format("2006-01-02"))
	}
}

func TestMaterializeSkipsInactiveRules(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	budget := seedBudget(t, store)
	rule := seedRule(t, store, budget.ID, core.Daily, day(2026, time.March, 1), 5, false)
	rule.IsActive = false
	if err := store.UpdateRule(ctx, rule); err != nil {
		t.Fatalf("update rule: %v", err)
	}

	engine := NewEngine(store)
	created, err := engine.MaterializeForCurrentMonth(ctx, budget.ID, day(2026, time.March, 15))
	if err != nil {
		t.Fatalf("MaterializeForCurrentMonth() error = %v", err)
	}
	if created != 0 {
		t.Errorf("inactive rule materialized %d instances, want 0", created)
	}
}

func TestMaterializeIsolatesMalformedRule(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	budget := seedBudget(t, store)

	// One rule with a frequency value no release ever wrote.
	broken := core.RecurringRule{
		ID:          uuid.New(),
		BudgetID:    budget.ID,
		Description: "Corrupted",
		Amount:      -10,
		Frequency:   "fortnightly",
		NextRunDate: day(2026, time.March, 1),
		IsActive:    true,
	}
	if err := store.InsertRule(ctx, broken); err != nil {
		t.Fatalf("insert rule: %v", err)
	}
	good := seedRule(t, store, budget.ID, core.Monthly, day(2026, time.March, 14), 1200, true)

	engine := NewEngine(store)
	created, err := engine.MaterializeForCurrentMonth(ctx, budget.ID, day(2026, time.March, 15))
	if err == nil {
		t.Error("expected a joined error surfacing the malformed rule")
	}
	if created != 1 {
		t.Errorf("created = %d, want 1 (healthy rule must still materialize)", created)
	}
	if got := instancesOf(t, store, budget.ID, good.ID); len(got) != 1 {
		t.Errorf("healthy rule produced %d instances, want 1", len(got))
	}
}

func TestMaterializeRejectsZeroAsOf(t *testing.T) {
	engine := NewEngine(memory.New())
	if _, err := engine.MaterializeForCurrentMonth(context.Background(), uuid.New(), time.Time{}); err == nil {
		t.Error("expected window error for zero asOf")
	}
}

// faultyStore wraps the in-memory store to simulate persistence failures.
type faultyStore struct {
	*memory.Store
	failInsertsFor uuid.UUID
	failRuleUpdate bool
}

var errStoreDown = errors.New("store unavailable")

func (s *faultyStore) InsertTransaction(ctx context.Context, tx core.Transaction) error {
	if tx.RecurringRuleID != nil && *tx.RecurringRuleID == s.failInsertsFor {
		return errStoreDown
	}
	return s.Store.InsertTransaction(ctx, tx)
}

func (s *faultyStore) UpdateRule(ctx context.Context, r core.RecurringRule) error {
	if s.failRuleUpdate {
		return errStoreDown
	}
	return s.Store.UpdateRule(ctx, r)
}

func TestMaterializeInsertFailureIsolatedPerRule(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	budget := seedBudget(t, store)
	broken := seedRule(t, store, budget.ID, core.Monthly, day(2026, time.March, 5), 1200, false)
	healthy := seedRule(t, store, budget.ID, core.Monthly, day(2026, time.March, 10), 3000, true)

	faulty := &faultyStore{Store: store, failInsertsFor: broken.ID}
	engine := NewEngine(faulty)

	count, err := engine.MaterializeForCurrentMonth(ctx, budget.ID, day(2026, time.March, 15))
	if err == nil {
		t.Fatal("expected error when one rule's inserts fail")
	}
	if !errors.Is(err, errStoreDown) {
		t.Errorf("error = %v, want wrapped errStoreDown", err)
	}
	if count != 1 {
		t.Errorf("instances created = %d, want 1 (the healthy rule's)", count)
	}

	// The failing rule inserted nothing and kept its anchor.
	if got := instancesOf(t, store, budget.ID, broken.ID); len(got) != 0 {
		t.Errorf("broken rule materialized %d instances, want 0", len(got))
	}
	if r, ok := store.Rule(broken.ID); !ok || !r.NextRunDate.Equal(broken.NextRunDate) {
		t.Errorf("broken rule anchor = %v, want unchanged %v", r.NextRunDate, broken.NextRunDate)
	}

	// The healthy rule materialized and advanced past the window.
	if got := instancesOf(t, store, budget.ID, healthy.ID); len(got) != 1 {
		t.Errorf("healthy rule materialized %d instances, want 1", len(got))
	}
	if r, ok := store.Rule(healthy.ID); !ok || !r.NextRunDate.After(day(2026, time.March, 31)) {
		t.Errorf("healthy rule anchor = %v, want past the window end", r.NextRunDate)
	}
}

func TestMaterializeAnchorUpdateFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	budget := seedBudget(t, store)
	rule := seedRule(t, store, budget.ID, core.Monthly, day(2026, time.March, 5), 1200, false)

	faulty := &faultyStore{Store: store, failRuleUpdate: true}
	engine := NewEngine(faulty)

	count, err := engine.MaterializeForCurrentMonth(ctx, budget.ID, day(2026, time.March, 15))
	if err == nil {
		t.Fatal("expected error when the anchor update fails")
	}
	if !errors.Is(err, errStoreDown) {
		t.Errorf("error = %v, want wrapped errStoreDown", err)
	}

	// The instance insert preceded the failed anchor update; the next sweep
	// dedups it and retries the advancement.
	if count != 1 {
		t.Errorf("instances created = %d, want 1", count)
	}
	if r, ok := store.Rule(rule.ID); !ok || !r.NextRunDate.Equal(rule.NextRunDate) {
		t.Errorf("anchor = %v, want unchanged %v after failed update", r.NextRunDate, rule.NextRunDate)
	}
}
