package extraction

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/receipt-ledger/internal/domain/categorization"
)

// strategy is one stage of the cascade.
type strategy interface {
	name() string
	extract(r *run) []Candidate
}

// cascade is the fixed strategy order. The detected format only picks the
// entry point; an empty stage always falls through to the next one.
var cascade = []strategy{
	receiptStrategy{},
	tableStrategy{},
	manualStrategy{},
	genericStrategy{},
	inlineStrategy{},
}

var entryPoints = map[Format]int{
	FormatReceipt: 0,
	FormatTable:   1,
	FormatGeneric: 3,
}

// Result is the outcome of one extraction call.
type Result struct {
	Format     Format      `json:"format"`
	Strategy   string      `json:"strategy,omitempty"` // stage that produced the candidates
	Candidates []Candidate `json:"candidates"`
}

// Empty reports whether nothing was extracted.
func (r *Result) Empty() bool {
	return len(r.Candidates) == 0
}

// Engine runs the strategy cascade. One Engine can serve concurrent calls.
//
// Compiling the keyword matcher dominates the cost of a call and a compiled
// classifier keeps scratch state while matching, so compiled classifiers are
// pooled and each call borrows one for its whole cascade.
type Engine struct {
	cfg         Config
	logger      *slog.Logger
	classifiers sync.Pool
	compiled    atomic.Int64 // classifiers built so far
}

// NewEngine creates an engine. Zero-valued config fields take defaults.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	def := DefaultConfig()
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}
	if cfg.Keywords.Rules == nil {
		cfg.Keywords = def.Keywords
	}
	if cfg.Limits == (Limits{}) {
		cfg.Limits = def.Limits
	}
	if cfg.MaxReceiptItems <= 0 {
		cfg.MaxReceiptItems = def.MaxReceiptItems
	}
	if cfg.InlineThreshold <= 0 {
		cfg.InlineThreshold = def.InlineThreshold
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Engine{cfg: cfg, logger: logger}
	e.classifiers.New = func() any {
		e.compiled.Add(1)
		return categorization.NewClassifier(e.cfg.Keywords)
	}
	e.classifiers.Put(e.classifiers.New())
	return e
}

// Extract normalizes raw text and returns the candidates of the first
// cascade stage that yields any. Empty input gives an empty result.
func (e *Engine) Extract(raw string) *Result {
	text := NormalizeText(raw)
	if text == "" {
		return &Result{Format: FormatGeneric, Candidates: []Candidate{}}
	}

	format := ClassifyFormat(text)
	res := &Result{Format: format, Candidates: []Candidate{}}

	classifier := e.classifiers.Get().(*categorization.Classifier)
	defer e.classifiers.Put(classifier)

	for _, s := range cascade[entryPoints[format]:] {
		r := e.newRun(text, s.name(), classifier)
		if out := s.extract(r); len(out) > 0 {
			res.Strategy = s.name()
			res.Candidates = out
			break
		}
	}

	e.logger.Debug("extraction finished",
		slog.String("format", string(format)),
		slog.String("strategy", res.Strategy),
		slog.Int("candidates", len(res.Candidates)),
	)
	return res
}

// run carries per-call state. Nothing in it is shared between calls.
type run struct {
	text            string
	stage           string
	dates           *DateNormalizer
	classifier      *categorization.Classifier
	dedup           *Deduplicator
	limits          Limits
	maxReceiptItems int
	inlineThreshold int
	logger          *slog.Logger
}

func (e *Engine) newRun(text, stage string, classifier *categorization.Classifier) *run {
	return &run{
		text:            text,
		stage:           stage,
		dates:           NewDateNormalizer(e.cfg.Clock),
		classifier:      classifier,
		dedup:           NewDeduplicator(),
		limits:          e.cfg.Limits,
		maxReceiptItems: e.cfg.MaxReceiptItems,
		inlineThreshold: e.cfg.InlineThreshold,
		logger:          e.logger,
	}
}

// emit validates a candidate, classifies it against the whole text and
// records it unless it duplicates an earlier one. An empty or unparsable
// date becomes today; an empty note gets the default placeholder.
func (r *run) emit(category string, amount decimal.Decimal, date, note string, bound AmountBound) (Candidate, bool) {
	category = collapseSpaces(dropPunctuation(category))
	if len(category) < MinCategoryLen || len(category) > MaxCategoryLen {
		return Candidate{}, false
	}
	if !bound.Allows(amount) {
		return Candidate{}, false
	}
	if !IsCanonicalDate(date) {
		date = r.dates.Normalize(date)
	}
	note = collapseSpaces(note)

	c := Candidate{
		Amount:   amount,
		Category: category,
		Note:     note,
		Date:     date,
		Type:     r.classifier.Classify(category, note, r.text),
	}
	if c.Note == "" {
		c.Note = NoteExtracted
	}
	if !r.dedup.Add(c) {
		return Candidate{}, false
	}
	return c, true
}

// emitRow parses the raw fields of a shape match and emits them. clean, when
// set, is applied to category and note first.
func (r *run) emitRow(fields row, bound AmountBound, clean func(string) string) (Candidate, bool) {
	if clean != nil {
		fields.category = clean(fields.category)
		fields.note = clean(fields.note)
	}
	amount, ok := parseAmount(fields.amount)
	if !ok {
		return Candidate{}, false
	}
	return r.emit(fields.category, amount, fields.date, fields.note, bound)
}

func (r *run) logShape(shape string, n int) {
	r.logger.Debug("shape matched",
		slog.String("strategy", r.stage),
		slog.String("shape", shape),
		slog.Int("candidates", n),
	)
}
