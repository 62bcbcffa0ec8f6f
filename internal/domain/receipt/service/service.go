// Package service orchestrates receipt uploads: storing the file, recovering
// its text, running the extraction engine and persisting what it finds.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/receipt-ledger/internal/domain/categorization"
	"github.com/FACorreiaa/receipt-ledger/internal/domain/extraction"
	"github.com/FACorreiaa/receipt-ledger/internal/domain/receipt/repository"
	"github.com/FACorreiaa/receipt-ledger/pkg/metrics"
	"github.com/FACorreiaa/receipt-ledger/pkg/money"
	"github.com/FACorreiaa/receipt-ledger/pkg/storage"
	"github.com/FACorreiaa/receipt-ledger/pkg/textract"
)

const (
	previewLen = 500
	dateLayout = "2006-01-02"

	// NoTextPreview is reported when no text could be recovered from a file.
	NoTextPreview = "No text extracted"
)

var (
	ErrEmptyUpload        = errors.New("no file uploaded")
	ErrInvalidTransaction = errors.New("invalid transaction")
	// ErrStoreFailed means the upload never reached storage.
	ErrStoreFailed = errors.New("upload could not be stored")
)

// TextSource picks the text extractor for a content type.
type TextSource interface {
	For(contentType string) (textract.Extractor, error)
}

// Upload is one file handed to ProcessUpload.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadResult reports what happened to an upload.
type UploadResult struct {
	Success               bool                      `json:"success"`
	FileID                uuid.UUID                 `json:"fileId"`
	Filename              string                    `json:"filename"`
	ContentType           string                    `json:"contentType"`
	ExtractedText         string                    `json:"extractedText"`
	Format                extraction.Format         `json:"format"`
	Strategy              string                    `json:"strategy,omitempty"`
	Currency              string                    `json:"currency"`
	ExtractedTransactions int                       `json:"extractedTransactions"`
	AddedTransactions     int                       `json:"addedTransactions"`
	IncomeTransactions    int                       `json:"incomeTransactions"`
	ExpenseTransactions   int                       `json:"expenseTransactions"`
	IncomeTotal           *money.Money              `json:"incomeTotal,omitempty"`
	ExpenseTotal          *money.Money              `json:"expenseTotal,omitempty"`
	Transactions          []*repository.Transaction `json:"transactions"`
	Message               string                    `json:"message"`
}

// NewTransaction is a manually entered transaction.
type NewTransaction struct {
	Type     categorization.TransactionType `json:"type"`
	Amount   decimal.Decimal                `json:"amount"`
	Currency string                         `json:"currency"`
	Category string                         `json:"category"`
	Note     string                         `json:"note"`
	Date     string                         `json:"date"` // YYYY-MM-DD, empty means today
}

// Config holds the service dependencies. Metrics and Logger are optional.
type Config struct {
	Repo            repository.LedgerRepository
	Storage         storage.Storage
	Text            TextSource
	Engine          *extraction.Engine
	Labels          *categorization.LabelNormalizer
	Metrics         *metrics.Metrics
	DefaultCurrency string
	Now             func() time.Time
	Logger          *slog.Logger
}

// ReceiptService handles uploads and the transactions they produce.
type ReceiptService struct {
	repo            repository.LedgerRepository
	store           storage.Storage
	text            TextSource
	engine          *extraction.Engine
	labels          *categorization.LabelNormalizer
	metrics         *metrics.Metrics
	defaultCurrency string
	now             func() time.Time
	logger          *slog.Logger
	tracer          trace.Tracer
}

// NewReceiptService creates a receipt service.
func NewReceiptService(cfg Config) *ReceiptService {
	s := &ReceiptService{
		repo:            cfg.Repo,
		store:           cfg.Storage,
		text:            cfg.Text,
		engine:          cfg.Engine,
		labels:          cfg.Labels,
		metrics:         cfg.Metrics,
		defaultCurrency: money.ResolveCurrency(cfg.DefaultCurrency, money.INR),
		now:             cfg.Now,
		logger:          cfg.Logger,
		tracer:          otel.Tracer("github.com/FACorreiaa/receipt-ledger/internal/domain/receipt/service"),
	}
	if s.engine == nil {
		s.engine = extraction.NewEngine(extraction.DefaultConfig(), s.logger)
	}
	if s.labels == nil {
		s.labels = categorization.NewLabelNormalizer()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// ProcessUpload stores the file, extracts candidate transactions from its
// text and saves each one. A candidate that fails to save is logged and
// skipped. Only storage and file bookkeeping failures are returned.
func (s *ReceiptService) ProcessUpload(ctx context.Context, userID uuid.UUID, up Upload) (*UploadResult, error) {
	if len(up.Data) == 0 {
		return nil, ErrEmptyUpload
	}

	ctx, span := s.tracer.Start(ctx, "receipt.ProcessUpload", trace.WithAttributes(
		attribute.String("file.name", up.Name),
		attribute.String("file.content_type", up.ContentType),
		attribute.Int("file.size", len(up.Data)),
	))
	defer span.End()

	start := s.now()
	if s.metrics != nil {
		s.metrics.UploadBytes.Observe(float64(len(up.Data)))
		defer func() {
			s.metrics.ProcessingSeconds.WithLabelValues(contentKind(up.ContentType)).Observe(s.now().Sub(start).Seconds())
		}()
	}

	info, err := s.store.Upload(ctx, userID, up.Name, up.ContentType, bytes.NewReader(up.Data))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return nil, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}

	text := s.extractText(ctx, up.ContentType, up.Data)
	res := s.extract(ctx, text)
	currency := money.ResolveCurrency(extraction.DetectCurrency(text), s.defaultCurrency)

	file := &repository.File{
		ID:          info.ID,
		UserID:      userID,
		Name:        up.Name,
		ContentType: up.ContentType,
		SizeBytes:   info.Size,
		Format:      string(res.Format),
		Strategy:    res.Strategy,
	}
	if err := s.repo.CreateFile(ctx, file); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "file record failed")
		return &UploadResult{FileID: info.ID, Filename: up.Name, ContentType: up.ContentType},
			fmt.Errorf("failed to record upload: %w", err)
	}

	added := s.persist(ctx, userID, &info.ID, currency, res.Candidates)

	result := &UploadResult{
		Success:               true,
		FileID:                info.ID,
		Filename:              up.Name,
		ContentType:           up.ContentType,
		ExtractedText:         NoTextPreview,
		Format:                res.Format,
		Strategy:              res.Strategy,
		Currency:              currency,
		ExtractedTransactions: len(res.Candidates),
		AddedTransactions:     len(added),
		Transactions:          added,
	}
	if text != "" {
		result.ExtractedText = textract.Preview(text, previewLen)
	}
	var income, expense []*money.Money
	for _, tx := range added {
		m := money.New(tx.AmountMinor, tx.Currency)
		if tx.Type == categorization.Income {
			result.IncomeTransactions++
			income = append(income, m)
		} else {
			result.ExpenseTransactions++
			expense = append(expense, m)
		}
	}
	if result.IncomeTotal, err = money.Sum(currency, income...); err != nil {
		s.logger.Warn("failed to total income", slog.Any("error", err))
	}
	if result.ExpenseTotal, err = money.Sum(currency, expense...); err != nil {
		s.logger.Warn("failed to total expenses", slog.Any("error", err))
	}
	result.Message = uploadMessage(result)

	span.SetAttributes(
		attribute.String("extraction.format", string(res.Format)),
		attribute.String("extraction.strategy", res.Strategy),
		attribute.Int("extraction.candidates", len(res.Candidates)),
		attribute.Int("ledger.added", len(added)),
	)
	s.logger.Info("upload processed",
		slog.String("user_id", userID.String()),
		slog.String("file_id", info.ID.String()),
		slog.String("format", string(res.Format)),
		slog.String("strategy", res.Strategy),
		slog.Int("extracted", len(res.Candidates)),
		slog.Int("added", len(added)),
	)
	return result, nil
}

func uploadMessage(r *UploadResult) string {
	if r.ExtractedTransactions == 0 {
		return "File uploaded successfully, but no transactions could be extracted."
	}
	return fmt.Sprintf("File uploaded successfully. %d transactions found (%d income, %d expense), %d added to database.",
		r.ExtractedTransactions, r.IncomeTransactions, r.ExpenseTransactions, r.AddedTransactions)
}

// extractText never fails: unsupported types and extractor errors give "".
func (s *ReceiptService) extractText(ctx context.Context, contentType string, data []byte) string {
	ctx, span := s.tracer.Start(ctx, "receipt.ExtractText")
	defer span.End()

	if s.text == nil {
		return ""
	}
	ex, err := s.text.For(contentType)
	if err != nil {
		s.logger.Debug("no text extractor for content type", slog.String("content_type", contentType))
		return ""
	}
	text, err := ex.ExtractText(ctx, data)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("text extraction failed",
			slog.String("content_type", contentType),
			slog.Any("error", err),
		)
		return ""
	}
	span.SetAttributes(attribute.Int("text.length", len(text)))
	return strings.TrimSpace(text)
}

func (s *ReceiptService) extract(ctx context.Context, text string) *extraction.Result {
	_, span := s.tracer.Start(ctx, "receipt.Extract")
	defer span.End()

	res := s.engine.Extract(text)
	if s.metrics != nil {
		s.metrics.ExtractionRuns.WithLabelValues(string(res.Format), strategyLabel(res.Strategy)).Inc()
		for _, c := range res.Candidates {
			s.metrics.CandidatesExtracted.WithLabelValues(string(c.Type)).Inc()
		}
	}
	return res
}

// persist saves every candidate on its own and returns the ones stored.
func (s *ReceiptService) persist(ctx context.Context, userID uuid.UUID, fileID *uuid.UUID, currency string, candidates []extraction.Candidate) []*repository.Transaction {
	ctx, span := s.tracer.Start(ctx, "receipt.Persist", trace.WithAttributes(attribute.Int("candidates", len(candidates))))
	defer span.End()

	added := make([]*repository.Transaction, 0, len(candidates))
	for _, c := range candidates {
		tx, err := s.toTransaction(userID, fileID, currency, c)
		if err == nil {
			err = s.repo.CreateTransaction(ctx, tx)
		}
		if err != nil {
			if s.metrics != nil {
				s.metrics.PersistFailures.Inc()
			}
			s.logger.Warn("failed to save transaction",
				slog.String("category", c.Category),
				slog.String("amount", c.Amount.String()),
				slog.Any("error", err),
			)
			continue
		}
		added = append(added, tx)
	}
	return added
}

func (s *ReceiptService) toTransaction(userID uuid.UUID, fileID *uuid.UUID, currency string, c extraction.Candidate) (*repository.Transaction, error) {
	date, err := time.Parse(dateLayout, c.Date)
	if err != nil {
		return nil, fmt.Errorf("bad candidate date %q: %w", c.Date, err)
	}
	amount := money.NewFromDecimal(c.Amount, currency)
	return &repository.Transaction{
		UserID:      userID,
		FileID:      fileID,
		Type:        c.Type,
		Amount:      c.Amount,
		AmountMinor: amount.Amount(),
		Currency:    currency,
		Category:    c.Category,
		Label:       s.labels.Normalize(c.Category).Label,
		Note:        c.Note,
		Date:        date,
	}, nil
}

// CreateTransaction stores a manually entered transaction.
func (s *ReceiptService) CreateTransaction(ctx context.Context, userID uuid.UUID, in NewTransaction) (*repository.Transaction, error) {
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", ErrInvalidTransaction)
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: type must be income or expense", ErrInvalidTransaction)
	}

	date := s.now().UTC().Truncate(24 * time.Hour)
	if in.Date != "" {
		d, err := time.Parse(dateLayout, in.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidTransaction)
		}
		date = d
	}

	note := strings.TrimSpace(in.Note)
	if note == "" {
		note = "Added manually"
	}

	currency := money.ResolveCurrency(in.Currency, s.defaultCurrency)
	minor := money.NewFromDecimal(in.Amount, currency)
	if !minor.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	}
	tx := &repository.Transaction{
		UserID:      userID,
		Type:        in.Type,
		Amount:      in.Amount,
		AmountMinor: minor.Amount(),
		Currency:    currency,
		Category:    category,
		Label:       s.labels.Normalize(category).Label,
		Note:        note,
		Date:        date,
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// ListTransactions returns a page of the user's transactions and the total.
// Page defaults to 1 and limit to 10.
func (s *ReceiptService) ListTransactions(ctx context.Context, filter repository.ListFilter) ([]*repository.Transaction, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}
	return s.repo.ListTransactions(ctx, filter)
}

// DeleteTransaction removes one of the user's transactions.
func (s *ReceiptService) DeleteTransaction(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.DeleteTransaction(ctx, userID, id)
}

// ListFiles returns the uploads still held in storage for a user.
func (s *ReceiptService) ListFiles(ctx context.Context, userID uuid.UUID) ([]*storage.FileInfo, error) {
	return s.store.List(ctx, userID)
}

// DeleteFile removes an upload's record and its stored bytes. Transactions
// extracted from it are kept and lose their file reference. Bytes already
// removed by the retention sweep are not an error.
func (s *ReceiptService) DeleteFile(ctx context.Context, userID, fileID uuid.UUID) error {
	if err := s.repo.DeleteFile(ctx, userID, fileID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, userID, fileID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to delete stored file: %w", err)
	}
	return nil
}

// OpenFile returns a stored upload for streaming back to its owner.
func (s *ReceiptService) OpenFile(ctx context.Context, userID, fileID uuid.UUID) (io.ReadCloser, *storage.FileInfo, error) {
	return s.store.Download(ctx, userID, fileID)
}

func contentKind(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "application/pdf"):
		return "pdf"
	case strings.HasPrefix(ct, "image/"):
		return "image"
	default:
		return "other"
	}
}

func strategyLabel(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
