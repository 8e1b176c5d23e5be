package normalizer

import (
	"sync"

	"github.com/cloudflare/ahocorasick"

	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
)

// keywordSet matches many keywords in one pass. The underlying matcher
// keeps internal state during Match, so access is serialized.
type keywordSet struct {
	mu       sync.Mutex
	matcher  *ahocorasick.Matcher
	keywords []string
}

func newKeywordSet(keywords []string) *keywordSet {
	return &keywordSet{
		matcher:  ahocorasick.NewStringMatcher(keywords),
		keywords: keywords,
	}
}

// match returns the indices of the keywords found in s.
func (k *keywordSet) match(s string) []int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.matcher.Match([]byte(s))
}

var incomeKeywords = newKeywordSet([]string{"receita", "entrada", "income", "+"})

// ParseKind maps a textual type cell to receita or despesa. Any income
// keyword wins; everything else, including unknown text, is an expense.
// ok is false only for empty input.
func ParseKind(raw string) (model.TransactionKind, bool) {
	folded := Fold(raw)
	if folded == "" {
		return "", false
	}
	if len(incomeKeywords.match(folded)) > 0 {
		return model.KindIncome, true
	}
	return model.KindExpense, true
}
