package categorization

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Match describes the rule that decided a classification.
type Match struct {
	Rule     string          // Name of the winning rule, empty for the fallback
	Keyword  string          // Keyword that triggered the rule
	Type     TransactionType // Resulting transaction type
	Priority int
}

type keywordHit struct {
	rule     string
	typ      TransactionType
	priority int
	scope    Scope
}

// Classifier assigns income or expense to a (category, note, context) triple
// using a single Aho-Corasick pass per text over every keyword in the table.
//
// A Classifier is not safe for concurrent use: the underlying matcher keeps
// scratch state between calls. Build one per extraction run.
type Classifier struct {
	matcher  *ahocorasick.Matcher
	keywords []string       // unique keywords in matcher order
	hits     [][]keywordHit // rules owning each keyword
	fallback TransactionType
}

// NewClassifier compiles a keyword table into a classifier.
// Keywords shared by several rules are grouped under one pattern.
func NewClassifier(table KeywordTable) *Classifier {
	c := &Classifier{fallback: table.Fallback}
	if !c.fallback.Valid() {
		c.fallback = Expense
	}

	index := make(map[string]int)
	for _, rule := range table.Rules {
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			hit := keywordHit{rule: rule.Name, typ: rule.Type, priority: rule.Priority, scope: rule.Scope}
			if idx, ok := index[kw]; ok {
				c.hits[idx] = append(c.hits[idx], hit)
				continue
			}
			index[kw] = len(c.keywords)
			c.keywords = append(c.keywords, kw)
			c.hits = append(c.hits, []keywordHit{hit})
		}
	}

	if len(c.keywords) > 0 {
		c.matcher = ahocorasick.NewStringMatcher(c.keywords)
	}
	return c
}

// Classify returns the transaction type for the given fields.
func (c *Classifier) Classify(category, note, context string) TransactionType {
	return c.Explain(category, note, context).Type
}

// Explain is Classify plus the rule and keyword that decided it.
//
// Rules in ScopeAny match against category+note or the context text, rules in
// ScopeFields only against category+note. The highest priority hit wins; ties
// keep the rule declared first.
func (c *Classifier) Explain(category, note, context string) Match {
	best := Match{Type: c.fallback}
	if c.matcher == nil {
		return best
	}

	fields := strings.ToLower(strings.TrimSpace(category + " " + note))
	consider := func(text string, fieldsOnly bool) {
		if text == "" {
			return
		}
		for _, idx := range c.matcher.Match([]byte(text)) {
			if idx < 0 || idx >= len(c.hits) {
				continue
			}
			for _, h := range c.hits[idx] {
				if h.scope == ScopeFields && !fieldsOnly {
					continue
				}
				if h.priority > best.Priority {
					best = Match{Rule: h.rule, Keyword: c.keywords[idx], Type: h.typ, Priority: h.priority}
				}
			}
		}
	}

	consider(fields, true)
	consider(strings.ToLower(context), false)
	return best
}

// KeywordCount returns the number of distinct keywords loaded.
func (c *Classifier) KeywordCount() int {
	return len(c.keywords)
}
