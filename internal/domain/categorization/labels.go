package categorization

import (
	"regexp"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// LabelInfo is the canonical form suggested for an extracted category.
type LabelInfo struct {
	Original string `json:"original"`
	Label    string `json:"label"`
	Group    string `json:"group,omitempty"`
	Fuzzy    bool   `json:"fuzzy,omitempty"`
}

// LabelPattern maps a category pattern to a canonical label and group.
type LabelPattern struct {
	Pattern *regexp.Regexp
	Label   string
	Group   string
}

// LabelNormalizer suggests a canonical label for free-text categories.
// It never changes the extracted category itself; the label is stored next to it.
type LabelNormalizer struct {
	patterns []LabelPattern
	maxDist  int
}

// NewLabelNormalizer creates a normalizer with the built-in household patterns.
func NewLabelNormalizer() *LabelNormalizer {
	return &LabelNormalizer{
		patterns: defaultLabelPatterns(),
		maxDist:  2,
	}
}

var (
	labelNoise  = regexp.MustCompile(`[^\p{L}\p{N}\s&]+`)
	labelSpaces = regexp.MustCompile(`\s+`)
)

// Normalize returns the canonical label for category.
// Exact pattern hits win, then the closest known label within a small edit
// distance, then the title-cased category.
func (n *LabelNormalizer) Normalize(category string) LabelInfo {
	cleaned := cleanLabel(category)
	// Casers keep state, so each call gets its own.
	info := LabelInfo{Original: category, Label: cases.Title(language.English).String(cleaned)}
	if cleaned == "" {
		return info
	}

	for _, p := range n.patterns {
		if p.Pattern.MatchString(cleaned) {
			info.Label = p.Label
			info.Group = p.Group
			return info
		}
	}

	if p, ok := n.closest(cleaned); ok {
		info.Label = p.Label
		info.Group = p.Group
		info.Fuzzy = true
	}
	return info
}

// AddPattern registers an extra label pattern ahead of the defaults.
func (n *LabelNormalizer) AddPattern(pattern, label, group string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	n.patterns = append([]LabelPattern{{Pattern: re, Label: label, Group: group}}, n.patterns...)
	return nil
}

// closest finds the known label with the smallest Levenshtein distance to
// each word of the category.
func (n *LabelNormalizer) closest(cleaned string) (LabelPattern, bool) {
	type candidate struct {
		pattern LabelPattern
		dist    int
	}
	var found []candidate

	words := strings.Fields(strings.ToLower(cleaned))
	for _, p := range n.patterns {
		target := strings.ToLower(p.Label)
		for _, w := range words {
			if len(w) < 4 {
				continue
			}
			d := fuzzy.LevenshteinDistance(w, target)
			if d <= n.maxDist {
				found = append(found, candidate{pattern: p, dist: d})
			}
		}
	}
	if len(found) == 0 {
		return LabelPattern{}, false
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].dist < found[j].dist })
	return found[0].pattern, true
}

func cleanLabel(raw string) string {
	s := labelNoise.ReplaceAllString(raw, " ")
	s = labelSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func defaultLabelPatterns() []LabelPattern {
	return []LabelPattern{
		// Food
		{regexp.MustCompile(`(?i)\bgrocer(y|ies)\b|supermarket|\bkirana\b|vegetables?`), "Groceries", "Food"},
		{regexp.MustCompile(`(?i)restaurant|\bdining\b|\blunch\b|\bdinner\b|\bbreakfast\b`), "Dining", "Food"},
		{regexp.MustCompile(`(?i)\bcoffee\b|\bcafe\b|\btea\b`), "Coffee", "Food"},
		{regexp.MustCompile(`(?i)\bfood\b|\bsnacks?\b|swiggy|zomato`), "Food", "Food"},

		// Transport
		{regexp.MustCompile(`(?i)\bfuel\b|petrol|diesel|\bgas station\b`), "Fuel", "Transport"},
		{regexp.MustCompile(`(?i)\btaxi\b|\bcab\b|\buber\b|\bola\b|\bauto\b`), "Taxi", "Transport"},
		{regexp.MustCompile(`(?i)\btrain\b|\bbus\b|\bmetro\b|\bflight\b|\btravel\b`), "Travel", "Transport"},
		{regexp.MustCompile(`(?i)brake|\btyres?\b|\btires?\b|\bservic(e|ing)\b|\bcables?\b`), "Vehicle Maintenance", "Transport"},

		// Utilities
		{regexp.MustCompile(`(?i)electric(ity)?`), "Electricity", "Utilities"},
		{regexp.MustCompile(`(?i)\bwater\b`), "Water", "Utilities"},
		{regexp.MustCompile(`(?i)internet|broadband|wi-?fi`), "Internet", "Utilities"},
		{regexp.MustCompile(`(?i)\bmobile\b|\bphone\b|recharge`), "Phone", "Utilities"},

		// Housing
		{regexp.MustCompile(`(?i)\brent\b`), "Rent", "Housing"},
		{regexp.MustCompile(`(?i)\bemi\b|\bloan\b`), "Loan Repayment", "Housing"},

		// Health
		{regexp.MustCompile(`(?i)medic(al|ine)|pharmacy|\bdoctor\b|hospital`), "Health", "Health"},
		{regexp.MustCompile(`(?i)insurance`), "Insurance", "Health"},

		// Income
		{regexp.MustCompile(`(?i)salary|\bwages?\b|payroll`), "Salary", "Income"},
		{regexp.MustCompile(`(?i)freelance|consulting`), "Freelance", "Income"},
		{regexp.MustCompile(`(?i)dividend|interest`), "Investment Income", "Income"},
		{regexp.MustCompile(`(?i)refund|cashback`), "Refund", "Income"},

		// Leisure
		{regexp.MustCompile(`(?i)movie|cinema|netflix|spotify|entertainment`), "Entertainment", "Leisure"},
		{regexp.MustCompile(`(?i)shopping|clothes|clothing|amazon|flipkart`), "Shopping", "Leisure"},
	}
}
