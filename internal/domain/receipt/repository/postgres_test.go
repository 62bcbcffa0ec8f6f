package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/receipt-ledger/internal/domain/categorization"
)

var transactionColumns = []string{
	"id", "user_id", "file_id", "type", "amount", "amount_minor", "currency",
	"category", "label", "note", "date", "created_at",
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

// ============================================================================
// Files and transactions
// ============================================================================

func TestCreateFile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresLedgerRepository(mock)
	now := time.Now()
	file := &File{UserID: uuid.New(), Name: "bill.pdf", ContentType: "application/pdf", SizeBytes: 2048, Format: "receipt", Strategy: "receipt"}

	mock.ExpectQuery(`INSERT INTO uploaded_files`).
		WithArgs(pgxmock.AnyArg(), file.UserID, "bill.pdf", "application/pdf", int64(2048), "receipt", "receipt").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))

	require.NoError(t, repo.CreateFile(context.Background(), file))
	assert.NotEqual(t, uuid.Nil, file.ID)
	assert.Equal(t, now, file.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresLedgerRepository(mock)
	fileID := uuid.New()
	now := time.Now()
	tx := &Transaction{
		UserID:      uuid.New(),
		FileID:      &fileID,
		Type:        categorization.Expense,
		Amount:      decimal.RequireFromString("500"),
		AmountMinor: 50000,
		Currency:    "INR",
		Category:    "Food",
		Label:       "Food",
		Note:        "Lunch",
		Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs(pgxmock.AnyArg(), tx.UserID, &fileID, categorization.Expense, tx.Amount, int64(50000), "INR", "Food", "Food", "Lunch", tx.Date).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))

	require.NoError(t, repo.CreateTransaction(context.Background(), tx))
	assert.NotEqual(t, uuid.Nil, tx.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransaction_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs(anyArgs(11)...).
		WillReturnError(errors.New("check constraint"))

	err = NewPostgresLedgerRepository(mock).CreateTransaction(context.Background(), &Transaction{UserID: uuid.New()})
	assert.ErrorContains(t, err, "failed to create transaction")
}

// ============================================================================
// Listing
// ============================================================================

func TestListTransactions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID := uuid.New()
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM transactions WHERE user_id = \$1 AND date >= \$2 AND date <= \$3`).
		WithArgs(userID, from, to).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(12)))
	mock.ExpectQuery(`ORDER BY date DESC, created_at DESC\s+LIMIT \$4 OFFSET \$5`).
		WithArgs(userID, from, to, 10, 10).
		WillReturnRows(pgxmock.NewRows(transactionColumns).
			AddRow(uuid.New(), userID, (*uuid.UUID)(nil), categorization.Income, decimal.RequireFromString("50000"), int64(5000000), "INR", "Salary", "Salary", "Monthly payment", to, now).
			AddRow(uuid.New(), userID, (*uuid.UUID)(nil), categorization.Expense, decimal.RequireFromString("500"), int64(50000), "INR", "Food", "Food", "Lunch", from, now))

	txs, total, err := NewPostgresLedgerRepository(mock).ListTransactions(context.Background(), ListFilter{
		UserID: userID, From: &from, To: &to, Page: 2, Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, txs, 2)
	assert.Equal(t, "Salary", txs[0].Category)
	assert.Equal(t, categorization.Income, txs[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTransactions_NoBounds(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID := uuid.New()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM transactions WHERE user_id = \$1$`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(`LIMIT \$2 OFFSET \$3`).
		WithArgs(userID, 10, 0).
		WillReturnRows(pgxmock.NewRows(transactionColumns))

	txs, total, err := NewPostgresLedgerRepository(mock).ListTransactions(context.Background(), ListFilter{UserID: userID, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, txs)
	assert.NotNil(t, txs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListFilter_Offset(t *testing.T) {
	assert.Equal(t, 0, ListFilter{Page: 0, Limit: 10}.Offset())
	assert.Equal(t, 0, ListFilter{Page: 1, Limit: 10}.Offset())
	assert.Equal(t, 20, ListFilter{Page: 3, Limit: 10}.Offset())
}

// ============================================================================
// Deletion
// ============================================================================

func TestDeleteTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID, id := uuid.New(), uuid.New()
	mock.ExpectExec(`DELETE FROM transactions`).
		WithArgs(id, userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM transactions`).
		WithArgs(id, userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := NewPostgresLedgerRepository(mock)
	assert.NoError(t, repo.DeleteTransaction(context.Background(), userID, id))
	assert.ErrorIs(t, repo.DeleteTransaction(context.Background(), userID, id), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteFile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID, id := uuid.New(), uuid.New()
	mock.ExpectExec(`DELETE FROM uploaded_files`).
		WithArgs(id, userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM uploaded_files`).
		WithArgs(id, userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM uploaded_files`).
		WithArgs(id, userID).
		WillReturnError(errors.New("connection reset"))

	repo := NewPostgresLedgerRepository(mock)
	assert.NoError(t, repo.DeleteFile(context.Background(), userID, id))
	assert.ErrorIs(t, repo.DeleteFile(context.Background(), userID, id), ErrNotFound)
	err = repo.DeleteFile(context.Background(), userID, id)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
