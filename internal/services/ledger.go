package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"budgetbuddy/internal/amqp"
	"budgetbuddy/internal/cache"
	"budgetbuddy/internal/core"
)

// DefaultBudgetName seeds the store on first run, matching the budget a
// fresh install starts with.
const DefaultBudgetName = "My Budget"

// ErrCategoryNotFound is returned when a category id does not resolve.
var ErrCategoryNotFound = errors.New("category not found")

// LedgerService is the write path for user-entered records: budgets,
// categories, manual transactions and recurring rules. Every write normalizes
// the amount sign and validates before persisting. Ledger events are
// published after successful writes; a publish failure never fails the write.
type LedgerService struct {
	store      Store
	amqpClient *amqp.Client

	// Picker lists are read far more often than categories change.
	categories *cache.Cache[[]core.Category]
}

const categoryCacheTTL = 30 * time.Second

func NewLedgerService(store Store, amqpClient *amqp.Client) *LedgerService {
	return &LedgerService{
		store:      store,
		amqpClient: amqpClient,
		categories: cache.New[[]core.Category](4, categoryCacheTTL),
	}
}

// EnsureDefaultBudget returns the first budget, creating "My Budget" when the
// store is empty.
func (s *LedgerService) EnsureDefaultBudget(ctx context.Context) (core.Budget, error) {
	budgets, err := s.store.FetchBudgets(ctx)
	if err != nil {
		return core.Budget{}, fmt.Errorf("fetch budgets: %w", err)
	}
	if len(budgets) > 0 {
		return budgets[0], nil
	}
	return s.CreateBudget(ctx, DefaultBudgetName)
}

func (s *LedgerService) CreateBudget(ctx context.Context, name string) (core.Budget, error) {
	b := core.Budget{ID: uuid.New(), Name: name}
	if err := b.Validate(); err != nil {
		return core.Budget{}, fmt.Errorf("validate budget: %w", err)
	}
	if err := s.store.InsertBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	slog.InfoContext(ctx, "Created budget", "budget_id", b.ID, "name", b.Name)
	return b, nil
}

// DeleteBudget cascades the deletion through the engine and announces it.
func (s *LedgerService) DeleteBudget(ctx context.Context, budgetID uuid.UUID) error {
	if err := NewEngine(s.store).DeleteBudget(ctx, budgetID); err != nil {
		return err
	}
	s.publish(ctx, amqp.EventBudgetDeleted, budgetID, budgetID)
	return nil
}

// RecordTransaction persists a manual transaction with a normalized signed
// amount.
func (s *LedgerService) RecordTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	tx.Amount = core.SignedAmount(tx.Amount, tx.IsIncome)
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}
	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	s.publish(ctx, amqp.EventTransactionRecorded, tx.ID, tx.BudgetID)
	return tx, nil
}

// UpdateTransaction rewrites an existing transaction. Materialized instances
// edited here become indistinguishable from manual entries except for the
// rule back-reference.
func (s *LedgerService) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	tx.Amount = core.SignedAmount(tx.Amount, tx.IsIncome)
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("validate transaction: %w", err)
	}
	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}

	s.publish(ctx, amqp.EventTransactionUpdated, tx.ID, tx.BudgetID)
	return nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

// SaveRule persists a new recurring rule with a normalized signed amount and
// a day-truncated anchor.
func (s *LedgerService) SaveRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	rule.Amount = core.SignedAmount(rule.Amount, rule.IsIncome)
	rule.NextRunDate = core.Day(rule.NextRunDate)
	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, fmt.Errorf("validate rule: %w", err)
	}
	if err := s.store.InsertRule(ctx, rule); err != nil {
		return core.RecurringRule{}, fmt.Errorf("insert rule: %w", err)
	}

	s.publish(ctx, amqp.EventRuleSaved, rule.ID, rule.BudgetID)
	return rule, nil
}

// CreateCategory persists a category, active by default.
func (s *LedgerService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.IsActive = true
	if err := c.Validate(); err != nil {
		return core.Category{}, fmt.Errorf("validate category: %w", err)
	}
	if err := s.store.InsertCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	s.invalidateCategoryCache()
	return c, nil
}

// DeactivateCategory soft-deletes a category. Historical transactions keep
// referencing it; pickers stop offering it.
func (s *LedgerService) DeactivateCategory(ctx context.Context, id uuid.UUID) error {
	cats, err := s.store.FetchCategories(ctx, false)
	if err != nil {
		return fmt.Errorf("fetch categories: %w", err)
	}
	for _, c := range cats {
		if c.ID == id {
			c.IsActive = false
			if err := s.store.UpdateCategory(ctx, c); err != nil {
				return fmt.Errorf("update category: %w", err)
			}
			s.invalidateCategoryCache()
			slog.InfoContext(ctx, "Deactivated category", "category_id", id, "name", c.Name)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrCategoryNotFound, id)
}

// ActiveCategories lists the categories offered by selection pickers,
// optionally restricted to one type.
func (s *LedgerService) ActiveCategories(ctx context.Context, categoryType core.CategoryType) ([]core.Category, error) {
	key := categoryCacheKey(categoryType)
	if cached, ok := s.categories.Get(key); ok {
		return cached, nil
	}

	cats, err := s.store.FetchCategories(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("fetch categories: %w", err)
	}
	if categoryType != "" {
		filtered := make([]core.Category, 0, len(cats))
		for _, c := range cats {
			if c.Type == categoryType {
				filtered = append(filtered, c)
			}
		}
		cats = filtered
	}
	s.categories.Set(key, cats)
	return cats, nil
}

func categoryCacheKey(categoryType core.CategoryType) string {
	if categoryType == "" {
		return "active:all"
	}
	return "active:" + string(categoryType)
}

func (s *LedgerService) invalidateCategoryCache() {
	s.categories.Delete(categoryCacheKey(""))
	s.categories.Delete(categoryCacheKey(core.Income))
	s.categories.Delete(categoryCacheKey(core.Expense))
}

// MonthSummary totals the budget's transactions for the calendar month
// containing asOf.
func (s *LedgerService) MonthSummary(ctx context.Context, budgetID uuid.UUID, asOf time.Time) (core.Summary, error) {
	txs, err := s.store.FetchTransactions(ctx, budgetID)
	if err != nil {
		return core.Summary{}, fmt.Errorf("fetch transactions: %w", err)
	}
	return core.Summarize(core.TransactionsInMonth(txs, asOf)), nil
}

func (s *LedgerService) publish(ctx context.Context, kind string, id, budgetID uuid.UUID) {
	if s.amqpClient == nil {
		return
	}
	msg := amqp.NewLedgerEventMessage(kind, id, budgetID)
	if err := s.amqpClient.PublishLedgerEvent(ctx, msg); err != nil {
		// The write already succeeded locally; consumers catch up later.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", kind, "id", id, "error", err)
	}
}
