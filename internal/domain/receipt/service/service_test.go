package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/receipt-ledger/internal/domain/categorization"
	"github.com/FACorreiaa/receipt-ledger/internal/domain/receipt/repository"
	"github.com/FACorreiaa/receipt-ledger/pkg/metrics"
	"github.com/FACorreiaa/receipt-ledger/pkg/storage"
	"github.com/FACorreiaa/receipt-ledger/pkg/textract"
)

type fakeRepo struct {
	files        []*repository.File
	txs          []*repository.Transaction
	failCategory string
	fileErr      error
	lastFilter   repository.ListFilter
}

func (r *fakeRepo) CreateFile(_ context.Context, f *repository.File) error {
	if r.fileErr != nil {
		return r.fileErr
	}
	r.files = append(r.files, f)
	return nil
}

func (r *fakeRepo) CreateTransaction(_ context.Context, tx *repository.Transaction) error {
	if tx.Category == r.failCategory {
		return errors.New("insert failed")
	}
	tx.ID = uuid.New()
	r.txs = append(r.txs, tx)
	return nil
}

func (r *fakeRepo) ListTransactions(_ context.Context, f repository.ListFilter) ([]*repository.Transaction, int64, error) {
	r.lastFilter = f
	return r.txs, int64(len(r.txs)), nil
}

func (r *fakeRepo) DeleteFile(_ context.Context, _, id uuid.UUID) error {
	for i, f := range r.files {
		if f.ID == id {
			r.files = append(r.files[:i], r.files[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeRepo) DeleteTransaction(_ context.Context, _, id uuid.UUID) error {
	for i, tx := range r.txs {
		if tx.ID == id {
			r.txs = append(r.txs[:i], r.txs[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func staticText(text string, err error) textract.Router {
	fn := textract.ExtractorFunc(func(context.Context, []byte) (string, error) { return text, err })
	return textract.Router{PDF: fn, Image: fn}
}

func newTestService(t *testing.T, repo *fakeRepo, text TextSource, m *metrics.Metrics) *ReceiptService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewReceiptService(Config{
		Repo:            repo,
		Storage:         store,
		Text:            text,
		Metrics:         m,
		DefaultCurrency: "INR",
		Now:             func() time.Time { return testNow },
	})
}

func pdfUpload() Upload {
	return Upload{Name: "statement.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")}
}

// ============================================================================
// ProcessUpload
// ============================================================================

func TestProcessUpload_PersistsCandidates(t *testing.T) {
	repo := &fakeRepo{}
	m := metrics.New()
	svc := newTestService(t, repo, staticText("Grocery 500 2024-03-01 Weekly shopping Fuel 1200 2024-03-02 Bike", nil), m)
	userID := uuid.New()

	res, err := svc.ProcessUpload(context.Background(), userID, pdfUpload())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "statement.pdf", res.Filename)
	assert.Equal(t, "inline", res.Strategy)
	assert.Equal(t, "INR", res.Currency)
	assert.Equal(t, 2, res.ExtractedTransactions)
	assert.Equal(t, 2, res.AddedTransactions)
	assert.Equal(t, 0, res.IncomeTransactions)
	assert.Equal(t, 2, res.ExpenseTransactions)
	assert.Equal(t, int64(170000), res.ExpenseTotal.Amount())
	assert.Equal(t, "INR", res.ExpenseTotal.Currency())
	assert.Equal(t, int64(0), res.IncomeTotal.Amount())
	assert.Equal(t, "File uploaded successfully. 2 transactions found (0 income, 2 expense), 2 added to database.", res.Message)
	assert.Equal(t, "Grocery 500 2024-03-01 Weekly shopping Fuel 1200 2024-03-02 Bike", res.ExtractedText)

	require.Len(t, repo.files, 1)
	assert.Equal(t, res.FileID, repo.files[0].ID)
	assert.Equal(t, "inline", repo.files[0].Strategy)

	require.Len(t, repo.txs, 2)
	first := repo.txs[0]
	assert.Equal(t, userID, first.UserID)
	require.NotNil(t, first.FileID)
	assert.Equal(t, res.FileID, *first.FileID)
	assert.Equal(t, "Grocery", first.Category)
	assert.NotEmpty(t, first.Label)
	assert.Equal(t, int64(50000), first.AmountMinor)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, "Weekly shopping", first.Note)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionRuns.WithLabelValues("generic", "inline")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CandidatesExtracted.WithLabelValues("expense")))
}

func TestProcessUpload_FailedSaveDoesNotStopTheRest(t *testing.T) {
	repo := &fakeRepo{failCategory: "Grocery"}
	m := metrics.New()
	svc := newTestService(t, repo, staticText("Grocery 500 2024-03-01 Weekly shopping Fuel 1200 2024-03-02 Bike", nil), m)

	res, err := svc.ProcessUpload(context.Background(), uuid.New(), pdfUpload())
	require.NoError(t, err)

	assert.Equal(t, 2, res.ExtractedTransactions)
	assert.Equal(t, 1, res.AddedTransactions)
	assert.Equal(t, int64(120000), res.ExpenseTotal.Amount(), "only stored rows are totalled")
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "Fuel", res.Transactions[0].Category)
	assert.Equal(t, "File uploaded successfully. 2 transactions found (0 income, 1 expense), 1 added to database.", res.Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistFailures))
}

func TestProcessUpload_IncomeIsCounted(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(t, repo, staticText("Salary 50000 2024-01-01 Monthly payment", nil), nil)

	res, err := svc.ProcessUpload(context.Background(), uuid.New(), pdfUpload())
	require.NoError(t, err)
	assert.Equal(t, 1, res.IncomeTransactions)
	assert.Equal(t, 0, res.ExpenseTransactions)
	assert.Equal(t, categorization.Income, repo.txs[0].Type)
}

func TestProcessUpload_NothingExtracted(t *testing.T) {
	tests := []struct {
		name   string
		text   TextSource
		upload Upload
	}{
		{
			name:   "unsupported content type",
			text:   textract.Router{},
			upload: Upload{Name: "notes.txt", ContentType: "text/plain", Data: []byte("Food 500")},
		},
		{
			name:   "extractor error",
			text:   staticText("", errors.New("corrupt pdf")),
			upload: pdfUpload(),
		},
		{
			name:   "blank text",
			text:   staticText("   ", nil),
			upload: pdfUpload(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{}
			res, err := newTestService(t, repo, tt.text, nil).ProcessUpload(context.Background(), uuid.New(), tt.upload)
			require.NoError(t, err)

			assert.True(t, res.Success)
			assert.Equal(t, NoTextPreview, res.ExtractedText)
			assert.Zero(t, res.ExtractedTransactions)
			assert.NotNil(t, res.Transactions)
			assert.Equal(t, "File uploaded successfully, but no transactions could be extracted.", res.Message)
			assert.Len(t, repo.files, 1)
		})
	}
}

func TestProcessUpload_PreviewIsTruncated(t *testing.T) {
	long := ""
	for len(long) < 600 {
		long += "lorem ipsum "
	}
	res, err := newTestService(t, &fakeRepo{}, staticText(long, nil), nil).ProcessUpload(context.Background(), uuid.New(), pdfUpload())
	require.NoError(t, err)
	assert.Len(t, res.ExtractedText, 503)
	assert.Contains(t, res.ExtractedText[500:], "...")
}

func TestProcessUpload_CurrencyHint(t *testing.T) {
	res, err := newTestService(t, &fakeRepo{}, staticText("Lunch 12 USD", nil), nil).ProcessUpload(context.Background(), uuid.New(), pdfUpload())
	require.NoError(t, err)
	assert.Equal(t, "USD", res.Currency)
}

func TestProcessUpload_Errors(t *testing.T) {
	_, err := newTestService(t, &fakeRepo{}, staticText("", nil), nil).ProcessUpload(context.Background(), uuid.New(), Upload{Name: "x.pdf"})
	assert.ErrorIs(t, err, ErrEmptyUpload)

	repo := &fakeRepo{fileErr: errors.New("db down")}
	res, err := newTestService(t, repo, staticText("Lunch 250", nil), nil).ProcessUpload(context.Background(), uuid.New(), pdfUpload())
	require.Error(t, err)
	assert.NotEqual(t, uuid.Nil, res.FileID)
	assert.Empty(t, repo.txs)
}

type unwritableStore struct{ storage.Storage }

func (unwritableStore) Upload(context.Context, uuid.UUID, string, string, io.Reader) (*storage.FileInfo, error) {
	return nil, errors.New("disk full")
}

func TestProcessUpload_StoreFailureIsDistinct(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewReceiptService(Config{Repo: repo, Storage: unwritableStore{}, Text: staticText("Lunch 250", nil)})

	res, err := svc.ProcessUpload(context.Background(), uuid.New(), pdfUpload())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrStoreFailed)
	assert.Empty(t, repo.files)
}

func TestProcessUpload_StoredFileCanBeOpened(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, staticText("", nil), nil)
	userID := uuid.New()

	res, err := svc.ProcessUpload(context.Background(), userID, pdfUpload())
	require.NoError(t, err)

	rc, info, err := svc.OpenFile(context.Background(), userID, res.FileID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, "application/pdf", info.ContentType)

	_, _, err = svc.OpenFile(context.Background(), uuid.New(), res.FileID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// ============================================================================
// Manual transactions
// ============================================================================

func TestCreateTransaction(t *testing.T) {
	tests := []struct {
		name    string
		in      NewTransaction
		wantErr bool
	}{
		{"valid", NewTransaction{Type: categorization.Expense, Amount: decimal.NewFromInt(250), Category: "Lunch", Date: "2024-03-01"}, false},
		{"missing category", NewTransaction{Type: categorization.Expense, Amount: decimal.NewFromInt(250)}, true},
		{"bad type", NewTransaction{Type: "transfer", Amount: decimal.NewFromInt(250), Category: "Lunch"}, true},
		{"zero amount", NewTransaction{Type: categorization.Expense, Category: "Lunch"}, true},
		{"rounds to zero", NewTransaction{Type: categorization.Expense, Amount: decimal.RequireFromString("0.004"), Category: "Lunch"}, true},
		{"bad date", NewTransaction{Type: categorization.Income, Amount: decimal.NewFromInt(1), Category: "Gift", Date: "01/03/2024"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := newTestService(t, &fakeRepo{}, nil, nil).CreateTransaction(context.Background(), uuid.New(), tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransaction)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "INR", tx.Currency)
			assert.Equal(t, int64(25000), tx.AmountMinor)
		})
	}
}

func TestCreateTransaction_Defaults(t *testing.T) {
	tx, err := newTestService(t, &fakeRepo{}, nil, nil).CreateTransaction(context.Background(), uuid.New(), NewTransaction{
		Type: categorization.Income, Amount: decimal.NewFromInt(100), Category: "Gift", Currency: "eur",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), tx.Date)
	assert.Equal(t, "Added manually", tx.Note)
	assert.Equal(t, "EUR", tx.Currency)
}

// ============================================================================
// Listing and deletion
// ============================================================================

func TestListTransactions_AppliesPagingDefaults(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(t, repo, nil, nil)

	_, _, err := svc.ListTransactions(context.Background(), repository.ListFilter{UserID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lastFilter.Page)
	assert.Equal(t, 10, repo.lastFilter.Limit)
}

func TestDeleteTransaction(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(t, repo, nil, nil)
	userID := uuid.New()

	tx, err := svc.CreateTransaction(context.Background(), userID, NewTransaction{Type: categorization.Expense, Amount: decimal.NewFromInt(5), Category: "Tea"})
	require.NoError(t, err)

	assert.NoError(t, svc.DeleteTransaction(context.Background(), userID, tx.ID))
	assert.ErrorIs(t, svc.DeleteTransaction(context.Background(), userID, tx.ID), repository.ErrNotFound)
}

// ============================================================================
// Stored files
// ============================================================================

func TestListAndDeleteFiles(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(t, repo, staticText("Lunch 250", nil), nil)
	userID := uuid.New()
	ctx := context.Background()

	res, err := svc.ProcessUpload(ctx, userID, pdfUpload())
	require.NoError(t, err)

	files, err := svc.ListFiles(ctx, userID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, res.FileID, files[0].ID)

	require.NoError(t, svc.DeleteFile(ctx, userID, res.FileID))
	assert.Empty(t, repo.files)
	require.Len(t, repo.txs, 1, "extracted transactions survive")

	files, err = svc.ListFiles(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, files)
	_, _, err = svc.OpenFile(ctx, userID, res.FileID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteFile(ctx, userID, res.FileID), repository.ErrNotFound)
}
