package services

import (
	"context"

	"github.com/google/uuid"

	"budgetbuddy/internal/core"
)

// Store is the persistence capability consumed by the engine and the ledger
// service. Implemented by storage.SQLiteRepository and memory.Store; injected
// explicitly so tests can substitute an in-memory fake.
type Store interface {
	FetchBudgets(ctx context.Context) ([]core.Budget, error)
	InsertBudget(ctx context.Context, b core.Budget) error
	DeleteBudget(ctx context.Context, id uuid.UUID) error

	FetchCategories(ctx context.Context, activeOnly bool) ([]core.Category, error)
	InsertCategory(ctx context.Context, c core.Category) error
	UpdateCategory(ctx context.Context, c core.Category) error

	FetchActiveRules(ctx context.Context, budgetID uuid.UUID) ([]core.RecurringRule, error)
	InsertRule(ctx context.Context, r core.RecurringRule) error
	UpdateRule(ctx context.Context, r core.RecurringRule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error
	DeleteRulesForBudget(ctx context.Context, budgetID uuid.UUID) error

	FetchTransactions(ctx context.Context, budgetID uuid.UUID) ([]core.Transaction, error)
	InsertTransaction(ctx context.Context, t core.Transaction) error
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, id uuid.UUID) error
	DeleteTransactionsForBudget(ctx context.Context, budgetID uuid.UUID) error
}
