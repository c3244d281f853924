package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/memory"
)

func TestEnsureDefaultBudget(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewLedgerService(store, nil)

	first, err := svc.EnsureDefaultBudget(ctx)
	if err != nil {
		t.Fatalf("EnsureDefaultBudget() error = %v", err)
	}
	if first.Name != DefaultBudgetName {
		t.Errorf("Name = %q, want %q", first.Name, DefaultBudgetName)
	}

	second, err := svc.EnsureDefaultBudget(ctx)
	if err != nil {
		t.Fatalf("EnsureDefaultBudget() second call error = %v", err)
	}
	if second.ID != first.ID {
		t.Error("second call created another budget")
	}
	budgets, _, _ := store.Counts()
	if budgets != 1 {
		t.Errorf("budget count = %d, want 1", budgets)
	}
}

func TestRecordTransactionNormalizesSign(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewLedgerService(store, nil)
	budget, _ := svc.CreateBudget(ctx, "Household")

	tests := []struct {
		name     string
		amount   float64
		isIncome bool
		want     float64
	}{
		{"expense entered positive", 42.50, false, -42.50},
		{"income entered negative", -1200, true, 1200},
		{"expense entered negative", -10, false, -10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := svc.RecordTransaction(ctx, core.Transaction{
				BudgetID:    budget.ID,
				Date:        time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC),
				Description: "Entry",
				Amount:      tt.amount,
				IsIncome:    tt.isIncome,
			})
			if err != nil {
				t.Fatalf("RecordTransaction() error = %v", err)
			}
			if tx.Amount != tt.want {
				t.Errorf("Amount = %v, want %v", tx.Amount, tt.want)
			}
			if tx.ID == uuid.Nil {
				t.Error("expected an assigned identity")
			}
		})
	}
}

func TestRecordTransactionRejectsZeroAmount(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil)
	_, err := svc.RecordTransaction(context.Background(), core.Transaction{
		BudgetID:    uuid.New(),
		Date:        time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC),
		Description: "Nothing",
		Amount:      0,
	})
	if err == nil {
		t.Error("expected validation error for zero amount")
	}
}

func TestSaveRuleNormalizesAmountAndAnchor(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(memory.New(), nil)

	rule, err := svc.SaveRule(ctx, core.RecurringRule{
		BudgetID:    uuid.New(),
		Description: "Salary",
		Amount:      -3000, // entered with the wrong sign
		IsIncome:    true,
		Frequency:   core.Monthly,
		NextRunDate: time.Date(2026, time.April, 1, 13, 45, 0, 0, time.UTC),
		IsActive:    true,
	})
	if err != nil {
		t.Fatalf("SaveRule() error = %v", err)
	}
	if rule.Amount != 3000 {
		t.Errorf("Amount = %v, want 3000", rule.Amount)
	}
	if want := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC); !rule.NextRunDate.Equal(want) {
		t.Errorf("NextRunDate = %s, want day-truncated %s", rule.NextRunDate, want)
	}
}

func TestDeactivateCategoryExcludesFromPickers(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewLedgerService(store, nil)

	groceries, err := svc.CreateCategory(ctx, core.Category{Name: "Groceries", Type: core.Expense})
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	if _, err := svc.CreateCategory(ctx, core.Category{Name: "Salary", Type: core.Income}); err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}

	if err := svc.DeactivateCategory(ctx, groceries.ID); err != nil {
		t.Fatalf("DeactivateCategory() error = %v", err)
	}

	active, err := svc.ActiveCategories(ctx, "")
	if err != nil {
		t.Fatalf("ActiveCategories() error = %v", err)
	}
	if len(active) != 1 || active[0].Name != "Salary" {
		t.Errorf("active categories = %v, want only Salary", active)
	}

	// Historical lookups still see the deactivated record.
	all, err := store.FetchCategories(ctx, false)
	if err != nil {
		t.Fatalf("FetchCategories() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all categories = %d, want 2", len(all))
	}
}

func TestLedgerDeleteBudgetCascades(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewLedgerService(store, nil)

	budget, err := svc.CreateBudget(ctx, "Household")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordTransaction(ctx, core.Transaction{
		BudgetID:    budget.ID,
		Date:        day(2026, time.March, 3),
		Description: "Groceries",
		Amount:      54.20,
		IsIncome:    false,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SaveRule(ctx, core.RecurringRule{
		BudgetID:    budget.ID,
		Description: "Rent",
		Amount:      1200,
		IsIncome:    false,
		Frequency:   core.Monthly,
		NextRunDate: day(2026, time.April, 1),
		IsActive:    true,
	}); err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteBudget(ctx, budget.ID); err != nil {
		t.Fatalf("DeleteBudget() error = %v", err)
	}
	budgets, rules, txs := store.Counts()
	if budgets != 0 || rules != 0 || txs != 0 {
		t.Errorf("counts after delete = %d/%d/%d, want 0/0/0", budgets, rules, txs)
	}
}

func TestDeactivateCategoryUnknownID(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil)
	if err := svc.DeactivateCategory(context.Background(), uuid.New()); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestActiveCategoriesFiltersByType(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(memory.New(), nil)
	if _, err := svc.CreateCategory(ctx, core.Category{Name: "Rent", Type: core.Expense}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateCategory(ctx, core.Category{Name: "Salary", Type: core.Income}); err != nil {
		t.Fatal(err)
	}

	expenses, err := svc.ActiveCategories(ctx, core.Expense)
	if err != nil {
		t.Fatalf("ActiveCategories() error = %v", err)
	}
	if len(expenses) != 1 || expenses[0].Name != "Rent" {
		t.Errorf("expense categories = %v, want only Rent", expenses)
	}
}

func TestActiveCategoriesReflectWritesDespiteCaching(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(memory.New(), nil)

	if _, err := svc.CreateCategory(ctx, core.Category{Name: "Rent", Type: core.Expense}); err != nil {
		t.Fatal(err)
	}
	// Prime the picker cache.
	if cats, err := svc.ActiveCategories(ctx, core.Expense); err != nil || len(cats) != 1 {
		t.Fatalf("ActiveCategories() = %v, %v; want 1 category", cats, err)
	}

	groceries, err := svc.CreateCategory(ctx, core.Category{Name: "Groceries", Type: core.Expense})
	if err != nil {
		t.Fatal(err)
	}
	cats, err := svc.ActiveCategories(ctx, core.Expense)
	if err != nil {
		t.Fatalf("ActiveCategories() error = %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("new category missing from picker list, got %v", cats)
	}

	if err := svc.DeactivateCategory(ctx, groceries.ID); err != nil {
		t.Fatalf("DeactivateCategory() error = %v", err)
	}
	cats, err = svc.ActiveCategories(ctx, core.Expense)
	if err != nil {
		t.Fatalf("ActiveCategories() error = %v", err)
	}
	if len(cats) != 1 || cats[0].Name != "Rent" {
		t.Errorf("deactivated category still offered, got %v", cats)
	}
}

func TestMonthSummary(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewLedgerService(store, nil)
	budget, _ := svc.CreateBudget(ctx, "Household")

	entries := []struct {
		date     time.Time
		amount   float64
		isIncome bool
	}{
		{day(2026, time.March, 1), 3000, true},
		{day(2026, time.March, 5), 1200, false},
		{day(2026, time.March, 20), 300, false},
		{day(2026, time.April, 1), 9999, true}, // outside the month
	}
	for _, e := range entries {
		if _, err := svc.RecordTransaction(ctx, core.Transaction{
			BudgetID:    budget.ID,
			Date:        e.date,
			Description: "Entry",
			Amount:      e.amount,
			IsIncome:    e.isIncome,
		}); err != nil {
			t.Fatalf("RecordTransaction() error = %v", err)
		}
	}

	got, err := svc.MonthSummary(ctx, budget.ID, day(2026, time.March, 15))
	if err != nil {
		t.Fatalf("MonthSummary() error = %v", err)
	}
	if got.TotalIncome != 3000 || got.TotalExpenses != 1500 || got.Net != 1500 {
		t.Errorf("MonthSummary() = %+v, want income 3000, expenses 1500, net 1500", got)
	}
}
