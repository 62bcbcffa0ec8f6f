// Package repository persists uploaded files and the transactions extracted
// from them.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/receipt-ledger/internal/domain/categorization"
)

// ErrNotFound is returned when a row does not exist for the user.
var ErrNotFound = errors.New("not found")

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// File is an uploaded document and the outcome of its extraction.
type File struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	ContentType string
	SizeBytes   int64
	Format      string
	Strategy    string
	CreatedAt   time.Time
}

// Transaction is a stored ledger entry.
type Transaction struct {
	ID          uuid.UUID                      `json:"id"`
	UserID      uuid.UUID                      `json:"user_id"`
	FileID      *uuid.UUID                     `json:"file_id,omitempty"`
	Type        categorization.TransactionType `json:"type"`
	Amount      decimal.Decimal                `json:"amount"`
	AmountMinor int64                          `json:"amount_minor"`
	Currency    string                         `json:"currency"`
	Category    string                         `json:"category"`
	Label       string                         `json:"label,omitempty"`
	Note        string                         `json:"note"`
	Date        time.Time                      `json:"date"`
	CreatedAt   time.Time                      `json:"created_at"`
}

// ListFilter selects a page of a user's transactions. From and To are
// inclusive; a nil bound is open.
type ListFilter struct {
	UserID uuid.UUID
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}

// Offset returns the row offset for the filter's page, counting from one.
func (f ListFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// LedgerRepository defines the persistence operations of the ledger.
type LedgerRepository interface {
	CreateFile(ctx context.Context, file *File) error
	CreateTransaction(ctx context.Context, tx *Transaction) error
	ListTransactions(ctx context.Context, filter ListFilter) ([]*Transaction, int64, error)
	DeleteTransaction(ctx context.Context, userID, id uuid.UUID) error
	DeleteFile(ctx context.Context, userID, id uuid.UUID) error
}
