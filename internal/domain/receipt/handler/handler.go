// Package handler exposes the receipt upload and ledger endpoints over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/receipt-ledger/internal/domain/receipt/export"
	"github.com/FACorreiaa/receipt-ledger/internal/domain/receipt/repository"
	"github.com/FACorreiaa/receipt-ledger/internal/domain/receipt/service"
	"github.com/FACorreiaa/receipt-ledger/pkg/interceptors"
	"github.com/FACorreiaa/receipt-ledger/pkg/storage"
)

// exportLimit caps rows written by one export request.
const exportLimit = 10000

// ReceiptService is what the handler needs from the service layer.
type ReceiptService interface {
	ProcessUpload(ctx context.Context, userID uuid.UUID, up service.Upload) (*service.UploadResult, error)
	OpenFile(ctx context.Context, userID, fileID uuid.UUID) (io.ReadCloser, *storage.FileInfo, error)
	ListFiles(ctx context.Context, userID uuid.UUID) ([]*storage.FileInfo, error)
	DeleteFile(ctx context.Context, userID, fileID uuid.UUID) error
	CreateTransaction(ctx context.Context, userID uuid.UUID, in service.NewTransaction) (*repository.Transaction, error)
	ListTransactions(ctx context.Context, filter repository.ListFilter) ([]*repository.Transaction, int64, error)
	DeleteTransaction(ctx context.Context, userID, id uuid.UUID) error
}

// HealthFunc reports whether the backing services are reachable.
type HealthFunc func(ctx context.Context) error

// ReceiptHandler serves the file and transaction routes.
type ReceiptHandler struct {
	svc       ReceiptService
	maxUpload int64
	health    HealthFunc
	logger    *slog.Logger
}

// NewReceiptHandler constructs a new handler. health may be nil.
func NewReceiptHandler(svc ReceiptService, maxUpload int64, health HealthFunc, logger *slog.Logger) *ReceiptHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ReceiptHandler{svc: svc, maxUpload: maxUpload, health: health, logger: logger}
}

// Register mounts the routes. Everything except health and the test route
// goes through auth.
func (h *ReceiptHandler) Register(mux *http.ServeMux, auth func(http.Handler) http.Handler) {
	protected := func(fn http.HandlerFunc) http.Handler { return auth(fn) }

	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("GET /api/file/test", h.Test)

	mux.Handle("POST /api/file/receipt", protected(h.UploadReceipt))
	mux.Handle("GET /api/file/receipt", protected(h.ListReceipts))
	mux.Handle("GET /api/file/receipt/{id}", protected(h.GetReceipt))
	mux.Handle("DELETE /api/file/receipt/{id}", protected(h.DeleteReceipt))

	mux.Handle("POST /api/transactions", protected(h.CreateTransaction))
	mux.Handle("GET /api/transactions", protected(h.ListTransactions))
	mux.Handle("GET /api/transactions/export", protected(h.ExportTransactions))
	mux.Handle("DELETE /api/transactions/{id}", protected(h.DeleteTransaction))
}

// Health answers liveness checks.
func (h *ReceiptHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warn("health check failed", slog.Any("error", err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Test confirms the file routes are mounted.
func (h *ReceiptHandler) Test(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "File upload route is working"})
}

// UploadReceipt accepts a multipart upload in the "file" field.
func (h *ReceiptHandler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeMessage(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Could not read uploaded file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	res, err := h.svc.ProcessUpload(r.Context(), userID, service.Upload{
		Name:        header.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmptyUpload) {
			writeMessage(w, http.StatusBadRequest, "No file uploaded")
			return
		}
		if errors.Is(err, service.ErrStoreFailed) {
			h.logger.Error("upload could not be stored",
				slog.String("user_id", userID.String()),
				slog.String("filename", header.Filename),
				slog.Any("error", err),
			)
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"message": "Upload failed",
				"error":   err.Error(),
			})
			return
		}
		h.logger.Error("upload processing failed",
			slog.String("user_id", userID.String()),
			slog.String("filename", header.Filename),
			slog.Any("error", err),
		)
		body := map[string]any{
			"success": false,
			"message": "File uploaded but processing failed",
			"error":   err.Error(),
		}
		if res != nil && res.FileID != uuid.Nil {
			body["fileId"] = res.FileID
		}
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// GetReceipt streams a stored upload back to its owner.
func (h *ReceiptHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	fileID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid file id")
		return
	}

	rc, info, err := h.svc.OpenFile(r.Context(), userID, fileID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "File not found")
			return
		}
		h.logger.Error("failed to open file", slog.String("file_id", fileID.String()), slog.Any("error", err))
		writeMessage(w, http.StatusInternalServerError, "Could not read file")
		return
	}
	defer rc.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", info.Name))
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("file stream interrupted", slog.String("file_id", fileID.String()), slog.Any("error", err))
	}
}

// ListReceipts returns {files} for the caller's stored uploads.
func (h *ReceiptHandler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	files, err := h.svc.ListFiles(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list files", slog.Any("error", err))
		writeMessage(w, http.StatusInternalServerError, "Could not list files")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// DeleteReceipt removes a stored upload. Its transactions are kept.
func (h *ReceiptHandler) DeleteReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	fileID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid file id")
		return
	}

	if err := h.svc.DeleteFile(r.Context(), userID, fileID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "File not found")
			return
		}
		h.logger.Error("failed to delete file", slog.String("file_id", fileID.String()), slog.Any("error", err))
		writeMessage(w, http.StatusInternalServerError, "Could not delete file")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// CreateTransaction stores a manually entered transaction.
func (h *ReceiptHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var in service.NewTransaction
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.svc.CreateTransaction(r.Context(), userID, in)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTransaction) {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to create transaction", slog.Any("error", err))
		writeMessage(w, http.StatusInternalServerError, "Could not save transaction")
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// ListTransactions returns {transactions, count}, newest first.
func (h *ReceiptHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.listFilter(w, r)
	if !ok {
		return
	}

	txs, count, err := h.svc.ListTransactions(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list transactions", slog.Any("error", err))
		writeMessage(w, http.StatusInternalServerError, "Could not list transactions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs, "count": count})
}

// ExportTransactions writes the filtered transactions as CSV or XLSX.
func (h *ReceiptHandler) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.listFilter(w, r)
	if !ok {
		return
	}
	format, err := export.ParseFormat(valueOr(r.URL.Query().Get("format"), "csv"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Page, filter.Limit = 1, exportLimit

	txs, _, err := h.svc.ListTransactions(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to load transactions for export", slog.Any("error", err))
		writeMessage(w, http.StatusInternalServerError, "Could not export transactions")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "transactions."+string(format)))
	if err := export.Write(w, format, export.FromTransactions(txs)); err != nil {
		h.logger.Error("export failed", slog.Any("error", err))
	}
}

// DeleteTransaction removes one transaction.
func (h *ReceiptHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	if err := h.svc.DeleteTransaction(r.Context(), userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.logger.Error("failed to delete transaction", slog.String("id", id.String()), slog.Any("error", err))
		writeMessage(w, http.StatusInternalServerError, "Could not delete transaction")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *ReceiptHandler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := interceptors.UserUUID(r.Context())
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "No token, authorization denied")
		return uuid.Nil, false
	}
	return id, true
}

// listFilter reads from, to (YYYY-MM-DD), page and limit.
func (h *ReceiptHandler) listFilter(w http.ResponseWriter, r *http.Request) (repository.ListFilter, bool) {
	userID, ok := h.userID(w, r)
	if !ok {
		return repository.ListFilter{}, false
	}
	q := r.URL.Query()
	filter := repository.ListFilter{UserID: userID, Page: 1, Limit: 10}

	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s date, expected YYYY-MM-DD", name))
			return repository.ListFilter{}, false
		}
		*dst = &d
	}
	for name, dst := range map[string]*int{"page": &filter.Page, "limit": &filter.Limit} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeMessage(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", name))
			return repository.ListFilter{}, false
		}
		*dst = n
	}
	return filter, true
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
