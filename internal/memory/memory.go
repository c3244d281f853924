// Package memory provides an in-memory Store used by tests and by the
// memory backend. It mirrors the SQLite repository's behavior without I/O.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"budgetbuddy/internal/core"
)

type Store struct {
	mu           sync.Mutex
	budgets      map[uuid.UUID]core.Budget
	categories   map[uuid.UUID]core.Category
	rules        map[uuid.UUID]core.RecurringRule
	transactions map[uuid.UUID]core.Transaction
}

func New() *Store {
	return &Store{
		budgets:      map[uuid.UUID]core.Budget{},
		categories:   map[uuid.UUID]core.Category{},
		rules:        map[uuid.UUID]core.RecurringRule{},
		transactions: map[uuid.UUID]core.Transaction{},
	}
}

// Budgets

func (s *Store) FetchBudgets(_ context.Context) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Budget, 0, len(s.budgets))
	for _, b := range s.budgets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) InsertBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) DeleteBudget(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.budgets, id)
	return nil
}

// Categories

func (s *Store) FetchCategories(_ context.Context, activeOnly bool) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) InsertCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
	return nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
	return nil
}

// Recurring rules

func (s *Store) FetchActiveRules(_ context.Context, budgetID uuid.UUID) ([]core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringRule
	for _, r := range s.rules {
		if r.BudgetID == budgetID && r.IsActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Description < out[j].Description })
	return out, nil
}

func (s *Store) InsertRule(_ context.Context, r core.RecurringRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.ID] = r
	return nil
}

func (s *Store) UpdateRule(_ context.Context, r core.RecurringRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.ID] = r
	return nil
}

func (s *Store) DeleteRule(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, id)
	return nil
}

func (s *Store) DeleteRulesForBudget(_ context.Context, budgetID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.rules {
		if r.BudgetID == budgetID {
			delete(s.rules, id)
		}
	}
	return nil
}

// Transactions

func (s *Store) FetchTransactions(_ context.Context, budgetID uuid.UUID) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if t.BudgetID == budgetID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) InsertTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[t.ID] = t
	return nil
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[t.ID] = t
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transactions, id)
	return nil
}

func (s *Store) DeleteTransactionsForBudget(_ context.Context, budgetID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.transactions {
		if t.BudgetID == budgetID {
			delete(s.transactions, id)
		}
	}
	return nil
}

// Rule returns a rule by id for test assertions.
func (s *Store) Rule(id uuid.UUID) (core.RecurringRule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	return r, ok
}

// Counts reports stored record counts for test assertions.
func (s *Store) Counts() (budgets, rules, transactions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.budgets), len(s.rules), len(s.transactions)
}
