package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/receipt-ledger/internal/domain/categorization"
	"github.com/FACorreiaa/receipt-ledger/internal/domain/receipt/repository"
	"github.com/FACorreiaa/receipt-ledger/internal/domain/receipt/service"
	"github.com/FACorreiaa/receipt-ledger/pkg/interceptors"
	"github.com/FACorreiaa/receipt-ledger/pkg/storage"
)

type fakeService struct {
	upload     service.Upload
	uploadRes  *service.UploadResult
	uploadErr  error
	files      map[uuid.UUID]string
	created    service.NewTransaction
	createErr  error
	filter     repository.ListFilter
	txs        []*repository.Transaction
	deleteErr  error
	deletedIDs []uuid.UUID
}

func (f *fakeService) ListFiles(context.Context, uuid.UUID) ([]*storage.FileInfo, error) {
	out := make([]*storage.FileInfo, 0, len(f.files))
	for id := range f.files {
		out = append(out, &storage.FileInfo{ID: id, Name: "bill.pdf"})
	}
	return out, nil
}

func (f *fakeService) DeleteFile(_ context.Context, _, fileID uuid.UUID) error {
	if _, ok := f.files[fileID]; !ok {
		return repository.ErrNotFound
	}
	delete(f.files, fileID)
	return nil
}

func (f *fakeService) ProcessUpload(_ context.Context, _ uuid.UUID, up service.Upload) (*service.UploadResult, error) {
	f.upload = up
	return f.uploadRes, f.uploadErr
}

func (f *fakeService) OpenFile(_ context.Context, _, fileID uuid.UUID) (io.ReadCloser, *storage.FileInfo, error) {
	body, ok := f.files[fileID]
	if !ok {
		return nil, nil, storage.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(body)), &storage.FileInfo{ID: fileID, Name: "bill.pdf", ContentType: "application/pdf", Size: int64(len(body))}, nil
}

func (f *fakeService) CreateTransaction(_ context.Context, userID uuid.UUID, in service.NewTransaction) (*repository.Transaction, error) {
	f.created = in
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &repository.Transaction{ID: uuid.New(), UserID: userID, Type: in.Type, Amount: in.Amount, Category: in.Category}, nil
}

func (f *fakeService) ListTransactions(_ context.Context, filter repository.ListFilter) ([]*repository.Transaction, int64, error) {
	f.filter = filter
	return f.txs, int64(len(f.txs)), nil
}

func (f *fakeService) DeleteTransaction(_ context.Context, _, id uuid.UUID) error {
	f.deletedIDs = append(f.deletedIDs, id)
	return f.deleteErr
}

var testUser = uuid.MustParse("8d1f5d8e-6d43-4b0c-9a47-2f1f0a5c7e11")

func asUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(interceptors.WithUserID(r.Context(), testUser.String())))
	})
}

func newTestMux(svc ReceiptService, health HealthFunc) *http.ServeMux {
	mux := http.NewServeMux()
	NewReceiptHandler(svc, 1<<20, health, nil).Register(mux, asUser)
	return mux
}

func serve(mux http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func multipartRequest(t *testing.T, field, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/file/receipt", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// ============================================================================
// Health and test routes
// ============================================================================

func TestHealth(t *testing.T) {
	rec := serve(newTestMux(&fakeService{}, nil), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	down := func(context.Context) error { return errors.New("db down") }
	rec = serve(newTestMux(&fakeService{}, down), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFileTestRoute(t *testing.T) {
	rec := serve(newTestMux(&fakeService{}, nil), httptest.NewRequest(http.MethodGet, "/api/file/test", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "File upload route is working", decode(t, rec)["message"])
}

// ============================================================================
// Uploads
// ============================================================================

func TestUploadReceipt(t *testing.T) {
	fileID := uuid.New()
	svc := &fakeService{uploadRes: &service.UploadResult{
		Success:               true,
		FileID:                fileID,
		Filename:              "bill.png",
		ExtractedTransactions: 1,
		AddedTransactions:     1,
		ExpenseTransactions:   1,
		Transactions:          []*repository.Transaction{},
		Message:               "File uploaded successfully. 1 transactions found (0 income, 1 expense), 1 added to database.",
	}}

	rec := serve(newTestMux(svc, nil), multipartRequest(t, "file", "bill.png", "image/png", []byte("pixels")))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, fileID.String(), body["fileId"])
	assert.Equal(t, float64(1), body["addedTransactions"])
	assert.Equal(t, "bill.png", svc.upload.Name)
	assert.Equal(t, "image/png", svc.upload.ContentType)
	assert.Equal(t, []byte("pixels"), svc.upload.Data)
}

func TestUploadReceipt_SniffsMissingContentType(t *testing.T) {
	svc := &fakeService{uploadRes: &service.UploadResult{Success: true}}

	rec := serve(newTestMux(svc, nil), multipartRequest(t, "file", "scan", "", []byte("%PDF-1.7 rest")))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", svc.upload.ContentType)
}

func TestUploadReceipt_Errors(t *testing.T) {
	fileID := uuid.New()
	tests := []struct {
		name       string
		svc        *fakeService
		req        func(t *testing.T) *http.Request
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "wrong field",
			svc:        &fakeService{},
			req:        func(t *testing.T) *http.Request { return multipartRequest(t, "upload", "a.pdf", "application/pdf", []byte("x")) },
			wantStatus: http.StatusBadRequest,
			wantMsg:    "No file uploaded",
		},
		{
			name:       "not multipart",
			svc:        &fakeService{},
			req:        func(t *testing.T) *http.Request { return httptest.NewRequest(http.MethodPost, "/api/file/receipt", strings.NewReader("{}")) },
			wantStatus: http.StatusBadRequest,
			wantMsg:    "No file uploaded",
		},
		{
			name:       "empty file",
			svc:        &fakeService{uploadErr: service.ErrEmptyUpload},
			req:        func(t *testing.T) *http.Request { return multipartRequest(t, "file", "a.pdf", "application/pdf", nil) },
			wantStatus: http.StatusBadRequest,
			wantMsg:    "No file uploaded",
		},
		{
			name:       "storage failure",
			svc:        &fakeService{uploadErr: fmt.Errorf("%w: disk full", service.ErrStoreFailed)},
			req:        func(t *testing.T) *http.Request { return multipartRequest(t, "file", "a.pdf", "application/pdf", []byte("x")) },
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Upload failed",
		},
		{
			name:       "processing failure",
			svc:        &fakeService{uploadRes: &service.UploadResult{FileID: fileID}, uploadErr: errors.New("db down")},
			req:        func(t *testing.T) *http.Request { return multipartRequest(t, "file", "a.pdf", "application/pdf", []byte("x")) },
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "File uploaded but processing failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newTestMux(tt.svc, nil), tt.req(t))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, decode(t, rec)["message"])
		})
	}
}

func TestUploadReceipt_RequiresAuth(t *testing.T) {
	mux := http.NewServeMux()
	tm := interceptors.NewTokenManager([]byte("secret"), time.Hour)
	NewReceiptHandler(&fakeService{}, 1<<20, nil, nil).Register(mux, interceptors.Auth(tm))

	rec := serve(mux, multipartRequest(t, "file", "a.pdf", "application/pdf", []byte("x")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "No token, authorization denied", decode(t, rec)["message"])

	// Health stays public.
	rec = serve(mux, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ============================================================================
// File retrieval
// ============================================================================

func TestGetReceipt(t *testing.T) {
	fileID := uuid.New()
	mux := newTestMux(&fakeService{files: map[uuid.UUID]string{fileID: "%PDF-1.4"}}, nil)

	rec := serve(mux, httptest.NewRequest(http.MethodGet, "/api/file/receipt/"+fileID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.4", rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))

	rec = serve(mux, httptest.NewRequest(http.MethodGet, "/api/file/receipt/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "File not found", decode(t, rec)["message"])

	rec = serve(mux, httptest.NewRequest(http.MethodGet, "/api/file/receipt/not-an-id", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid file id", decode(t, rec)["message"])
}

func TestListAndDeleteReceipts(t *testing.T) {
	fileID := uuid.New()
	svc := &fakeService{files: map[uuid.UUID]string{fileID: "%PDF-1.4"}}
	mux := newTestMux(svc, nil)

	rec := serve(mux, httptest.NewRequest(http.MethodGet, "/api/file/receipt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["files"], 1)

	rec = serve(mux, httptest.NewRequest(http.MethodDelete, "/api/file/receipt/"+fileID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])
	assert.Empty(t, svc.files)

	rec = serve(mux, httptest.NewRequest(http.MethodDelete, "/api/file/receipt/"+fileID.String(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "File not found", decode(t, rec)["message"])

	rec = serve(mux, httptest.NewRequest(http.MethodDelete, "/api/file/receipt/nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================================================
// Transactions
// ============================================================================

func TestCreateTransaction(t *testing.T) {
	svc := &fakeService{}
	req := httptest.NewRequest(http.MethodPost, "/api/transactions",
		strings.NewReader(`{"type":"expense","amount":"250.50","category":"Lunch","date":"2024-03-01"}`))

	rec := serve(newTestMux(svc, nil), req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, categorization.Expense, svc.created.Type)
	assert.True(t, decimal.RequireFromString("250.5").Equal(svc.created.Amount))
	assert.Equal(t, "Lunch", decode(t, rec)["category"])
}

func TestCreateTransaction_Errors(t *testing.T) {
	rec := serve(newTestMux(&fakeService{}, nil), httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc := &fakeService{createErr: service.ErrInvalidTransaction}
	rec = serve(newTestMux(svc, nil), httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(`{"type":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc = &fakeService{createErr: errors.New("db down")}
	rec = serve(newTestMux(svc, nil), httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListTransactions(t *testing.T) {
	svc := &fakeService{txs: []*repository.Transaction{{ID: uuid.New(), Category: "Rent"}}}

	rec := serve(newTestMux(svc, nil), httptest.NewRequest(http.MethodGet, "/api/transactions?from=2024-03-01&to=2024-03-31&page=2&limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["count"])
	assert.Len(t, body["transactions"], 1)

	assert.Equal(t, testUser, svc.filter.UserID)
	assert.Equal(t, 2, svc.filter.Page)
	assert.Equal(t, 5, svc.filter.Limit)
	require.NotNil(t, svc.filter.From)
	require.NotNil(t, svc.filter.To)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), *svc.filter.To)
}

func TestListTransactions_Defaults(t *testing.T) {
	svc := &fakeService{}
	rec := serve(newTestMux(svc, nil), httptest.NewRequest(http.MethodGet, "/api/transactions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.filter.Page)
	assert.Equal(t, 10, svc.filter.Limit)
	assert.Nil(t, svc.filter.From)
}

func TestListTransactions_BadQuery(t *testing.T) {
	for _, q := range []string{"from=03/01/2024", "page=0", "limit=abc"} {
		t.Run(q, func(t *testing.T) {
			rec := serve(newTestMux(&fakeService{}, nil), httptest.NewRequest(http.MethodGet, "/api/transactions?"+q, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestExportTransactions(t *testing.T) {
	svc := &fakeService{txs: []*repository.Transaction{{
		Type: categorization.Expense, Amount: decimal.NewFromInt(15000), Currency: "INR",
		Category: "Rent", Note: "March", Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}}}

	rec := serve(newTestMux(svc, nil), httptest.NewRequest(http.MethodGet, "/api/transactions/export?format=csv", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "2024-03-01,expense,Rent,,15000.00,INR,March")
	assert.Equal(t, exportLimit, svc.filter.Limit)

	rec = serve(newTestMux(svc, nil), httptest.NewRequest(http.MethodGet, "/api/transactions/export?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteTransaction(t *testing.T) {
	id := uuid.New()
	svc := &fakeService{}
	rec := serve(newTestMux(svc, nil), httptest.NewRequest(http.MethodDelete, "/api/transactions/"+id.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])
	assert.Equal(t, []uuid.UUID{id}, svc.deletedIDs)

	svc = &fakeService{deleteErr: repository.ErrNotFound}
	rec = serve(newTestMux(svc, nil), httptest.NewRequest(http.MethodDelete, "/api/transactions/"+id.String(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(newTestMux(svc, nil), httptest.NewRequest(http.MethodDelete, "/api/transactions/xyz", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
