// Package categorization decides whether an extracted transaction is income or
// an expense, and suggests canonical labels for free-text categories.
package categorization

// TransactionType is the direction of money for a candidate transaction.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Scope controls which text a keyword rule is checked against.
type Scope int

const (
	// ScopeAny checks the category+note fields and the surrounding document text.
	ScopeAny Scope = iota
	// ScopeFields checks only the category+note fields.
	ScopeFields
)

// KeywordRule maps a set of lowercase keywords to a transaction type.
// Higher priority rules win when several rules match.
type KeywordRule struct {
	Name     string
	Keywords []string
	Type     TransactionType
	Priority int
	Scope    Scope
}

// KeywordTable is the ordered rule set consumed by a Classifier.
type KeywordTable struct {
	Rules    []KeywordRule
	Fallback TransactionType // used when no rule matches
}

// Rule priorities. Bill keywords override everything else.
const (
	PriorityBill       = 400
	PriorityIncome     = 300
	PriorityExpense    = 200
	PriorityContextual = 100
)

// DefaultKeywordTable returns the built-in rules.
func DefaultKeywordTable() KeywordTable {
	return KeywordTable{
		Rules: []KeywordRule{
			{
				Name: "bill",
				Keywords: []string{
					"bill", "receipt", "invoice", "electricity bill", "water bill", "gas bill",
					"phone bill", "internet bill", "utility bill", "subscription", "maintenance",
					"repair", "service", "tax", "fine", "penalty", "fee", "charge",
				},
				Type:     Expense,
				Priority: PriorityBill,
				Scope:    ScopeAny,
			},
			{
				Name: "income",
				Keywords: []string{
					"salary", "wage", "income", "earning", "payment received", "received",
					"bonus", "commission", "dividend", "interest", "refund", "cashback", "reward",
					"freelance", "consulting", "profit", "revenue", "deposit", "gift received",
					"prize", "winning", "allowance", "pension", "rent received", "sale",
				},
				Type:     Income,
				Priority: PriorityIncome,
				Scope:    ScopeAny,
			},
			{
				Name: "expense",
				Keywords: []string{
					"expense", "cost", "spent", "paid for", "purchase", "bought", "rent",
					"food", "fuel", "grocery", "shopping", "medical", "doctor", "hospital",
					"medicine", "insurance", "loan", "emi", "donation", "entertainment",
					"movie", "restaurant", "travel", "transport", "utility",
				},
				Type:     Expense,
				Priority: PriorityExpense,
				Scope:    ScopeAny,
			},
			{
				Name:     "contextual",
				Keywords: []string{"received", "credit", "deposit", "earning"},
				Type:     Income,
				Priority: PriorityContextual,
				Scope:    ScopeFields,
			},
		},
		Fallback: Expense,
	}
}
