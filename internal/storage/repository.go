package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"budgetbuddy/internal/core"

	_ "modernc.org/sqlite"
)

// dateLayout is the day-granularity format for all persisted dates. The
// engine's dedup key is the calendar day, so storing anything finer would
// only invite drift.
const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Budgets

func (r *SQLiteRepository) FetchBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM budgets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var idStr, name string
		if err := rows.Scan(&idStr, &name); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			slog.WarnContext(ctx, "Skipping budget with unparseable id", "id", idStr, "error", err)
			continue
		}
		out = append(out, core.Budget{ID: id, Name: name})
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertBudget(ctx context.Context, b core.Budget) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, name) VALUES (?, ?)`,
		b.ID.String(), b.Name)
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

// Categories

func (r *SQLiteRepository) FetchCategories(ctx context.Context, activeOnly bool) ([]core.Category, error) {
	query := `SELECT id, name, type, color_hex, icon_name, is_active FROM categories`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			idStr, name, catType, colorHex, iconName string
			isActive                                 bool
		)
		if err := rows.Scan(&idStr, &name, &catType, &colorHex, &iconName, &isActive); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			slog.WarnContext(ctx, "Skipping category with unparseable id", "id", idStr, "error", err)
			continue
		}
		out = append(out, core.Category{
			ID:       id,
			Name:     name,
			Type:     core.CategoryType(catType),
			ColorHex: colorHex,
			IconName: iconName,
			IsActive: isActive,
		})
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, type, color_hex, icon_name, is_active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.Name, string(c.Type), c.ColorHex, c.IconName, c.IsActive)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ?, color_hex = ?, icon_name = ?, is_active = ?
		 WHERE id = ?`,
		c.Name, string(c.Type), c.ColorHex, c.IconName, c.IsActive, c.ID.String())
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

// Recurring rules

func (r *SQLiteRepository) FetchActiveRules(ctx context.Context, budgetID uuid.UUID) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, budget_id, description, amount, is_income, frequency, next_run_date, category_id, is_active
		 FROM recurring_rules
		 WHERE budget_id = ? AND is_active = 1
		 ORDER BY next_run_date`,
		budgetID.String())
	if err != nil {
		return nil, fmt.Errorf("query recurring rules: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			// Taxonomy: malformed persisted data is skipped, never fatal to
			// the siblings in the same pass.
			slog.WarnContext(ctx, "Skipping malformed recurring rule row", "error", err)
			continue
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertRule(ctx context.Context, rule core.RecurringRule) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_rules (id, budget_id, description, amount, is_income, frequency, next_run_date, category_id, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID.String(), rule.BudgetID.String(), rule.Description, rule.Amount, rule.IsIncome,
		rule.Frequency.String(), rule.NextRunDate.UTC().Format(dateLayout),
		uuidPtrToNull(rule.CategoryID), rule.IsActive)
	if err != nil {
		return fmt.Errorf("insert recurring rule: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateRule(ctx context.Context, rule core.RecurringRule) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE recurring_rules
		 SET description = ?, amount = ?, is_income = ?, frequency = ?, next_run_date = ?, category_id = ?, is_active = ?
		 WHERE id = ?`,
		rule.Description, rule.Amount, rule.IsIncome, rule.Frequency.String(),
		rule.NextRunDate.UTC().Format(dateLayout), uuidPtrToNull(rule.CategoryID),
		rule.IsActive, rule.ID.String())
	if err != nil {
		return fmt.Errorf("update recurring rule: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM recurring_rules WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete recurring rule: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteRulesForBudget(ctx context.Context, budgetID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM recurring_rules WHERE budget_id = ?`, budgetID.String())
	if err != nil {
		return fmt.Errorf("delete recurring rules for budget: %w", err)
	}
	return nil
}

// Transactions

func (r *SQLiteRepository) FetchTransactions(ctx context.Context, budgetID uuid.UUID) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, budget_id, date, description, amount, is_income, category_id, is_recurring_instance, recurring_rule_id
		 FROM transactions
		 WHERE budget_id = ?
		 ORDER BY date`,
		budgetID.String())
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed transaction row", "error", err)
			continue
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, budget_id, date, description, amount, is_income, category_id, is_recurring_instance, recurring_rule_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID.String(), tx.BudgetID.String(), tx.Date.UTC().Format(dateLayout),
		tx.Description, tx.Amount, tx.IsIncome, uuidPtrToNull(tx.CategoryID),
		tx.IsRecurringInstance, uuidPtrToNull(tx.RecurringRuleID))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET date = ?, description = ?, amount = ?, is_income = ?, category_id = ?
		 WHERE id = ?`,
		tx.Date.UTC().Format(dateLayout), tx.Description, tx.Amount, tx.IsIncome,
		uuidPtrToNull(tx.CategoryID), tx.ID.String())
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransactionsForBudget(ctx context.Context, budgetID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE budget_id = ?`, budgetID.String())
	if err != nil {
		return fmt.Errorf("delete transactions for budget: %w", err)
	}
	return nil
}

// Row scanning

func scanRule(rows *sql.Rows) (core.RecurringRule, error) {
	var (
		idStr, budgetIDStr, description, freqStr, nextRunStr string
		amount                                               float64
		isIncome, isActive                                   bool
		categoryID                                           sql.NullString
	)
	if err := rows.Scan(&idStr, &budgetIDStr, &description, &amount, &isIncome, &freqStr, &nextRunStr, &categoryID, &isActive); err != nil {
		return core.RecurringRule{}, fmt.Errorf("scan rule: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("parse rule id %q: %w", idStr, err)
	}
	budgetID, err := uuid.Parse(budgetIDStr)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("parse budget id %q: %w", budgetIDStr, err)
	}
	freq, err := core.ParseFrequency(freqStr)
	if err != nil {
		return core.RecurringRule{}, err
	}
	nextRun, err := time.ParseInLocation(dateLayout, nextRunStr, time.UTC)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("parse next run date %q: %w", nextRunStr, err)
	}
	catID, err := nullToUUIDPtr(categoryID)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("parse category id: %w", err)
	}

	return core.RecurringRule{
		ID:          id,
		BudgetID:    budgetID,
		Description: description,
		Amount:      amount,
		IsIncome:    isIncome,
		Frequency:   freq,
		NextRunDate: nextRun,
		CategoryID:  catID,
		IsActive:    isActive,
	}, nil
}

func scanTransaction(rows *sql.Rows) (core.Transaction, error) {
	var (
		idStr, budgetIDStr, dateStr, description string
		amount                                   float64
		isIncome, isRecurringInstance            bool
		categoryID, recurringRuleID              sql.NullString
	)
	if err := rows.Scan(&idStr, &budgetIDStr, &dateStr, &description, &amount, &isIncome, &categoryID, &isRecurringInstance, &recurringRuleID); err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction id %q: %w", idStr, err)
	}
	budgetID, err := uuid.Parse(budgetIDStr)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse budget id %q: %w", budgetIDStr, err)
	}
	date, err := time.ParseInLocation(dateLayout, dateStr, time.UTC)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date %q: %w", dateStr, err)
	}
	catID, err := nullToUUIDPtr(categoryID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse category id: %w", err)
	}
	ruleID, err := nullToUUIDPtr(recurringRuleID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse recurring rule id: %w", err)
	}

	return core.Transaction{
		ID:                  id,
		BudgetID:            budgetID,
		Date:                date,
		Description:         description,
		Amount:              amount,
		IsIncome:            isIncome,
		CategoryID:          catID,
		IsRecurringInstance: isRecurringInstance,
		RecurringRuleID:     ruleID,
	}, nil
}

func uuidPtrToNull(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func nullToUUIDPtr(ns sql.NullString) (*uuid.UUID, error) {
	if !ns.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(ns.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
