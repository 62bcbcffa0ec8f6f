package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PostgresLedgerRepository implements LedgerRepository using PostgreSQL
type PostgresLedgerRepository struct {
	db DB
}

var _ LedgerRepository = (*PostgresLedgerRepository)(nil)

// NewPostgresLedgerRepository creates a new PostgreSQL ledger repository
func NewPostgresLedgerRepository(db DB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

// CreateFile records an uploaded file.
func (r *PostgresLedgerRepository) CreateFile(ctx context.Context, file *File) error {
	query := `
		INSERT INTO uploaded_files (id, user_id, name, content_type, size_bytes, format, strategy)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}

	err := r.db.QueryRow(ctx, query,
		file.ID,
		file.UserID,
		file.Name,
		file.ContentType,
		file.SizeBytes,
		file.Format,
		file.Strategy,
	).Scan(&file.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

// CreateTransaction inserts a transaction and fills its id and creation time.
func (r *PostgresLedgerRepository) CreateTransaction(ctx context.Context, tx *Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, file_id, type, amount, amount_minor, currency, category, label, note, date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}

	err := r.db.QueryRow(ctx, query,
		tx.ID,
		tx.UserID,
		tx.FileID,
		tx.Type,
		tx.Amount,
		tx.AmountMinor,
		tx.Currency,
		tx.Category,
		tx.Label,
		tx.Note,
		tx.Date,
	).Scan(&tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// ListTransactions returns one page of transactions, newest date first, and
// the total number matching the filter.
func (r *PostgresLedgerRepository) ListTransactions(ctx context.Context, filter ListFilter) ([]*Transaction, int64, error) {
	where := []string{"user_id = $1"}
	args := []any{filter.UserID}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("date <= $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, file_id, type, amount, amount_minor, currency, category, label, note, date, created_at
		FROM transactions
		WHERE %s
		ORDER BY date DESC, created_at DESC
		LIMIT $%d OFFSET $%d`, cond, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]*Transaction, 0, filter.Limit)
	for rows.Next() {
		tx := &Transaction{}
		err := rows.Scan(
			&tx.ID,
			&tx.UserID,
			&tx.FileID,
			&tx.Type,
			&tx.Amount,
			&tx.AmountMinor,
			&tx.Currency,
			&tx.Category,
			&tx.Label,
			&tx.Note,
			&tx.Date,
			&tx.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, total, nil
}

// DeleteFile removes an upload record. Its transactions keep their rows with
// file_id cleared by the foreign key.
func (r *PostgresLedgerRepository) DeleteFile(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM uploaded_files WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTransaction removes one of the user's transactions.
func (r *PostgresLedgerRepository) DeleteTransaction(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
