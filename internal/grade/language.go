package grade

import (
	"fmt"
	"strings"

	"github.com/ppiankov/truckeval/internal/model"
	"github.com/ppiankov/truckeval/internal/policy"
)

// Language checks that an output is written in German. Diacritics are a
// bonus signal, not a requirement: many correct German sentences have none.
type Language struct {
	diacritics string
	keywords   []string
	threshold  int
}

// NewLanguage creates a language compliance checker
func NewLanguage(p policy.LanguagePolicy) *Language {
	return &Language{
		diacritics: p.Diacritics,
		keywords:   lowerAll(p.Keywords),
		threshold:  p.KeywordThreshold,
	}
}

// Name implements Grader
func (l *Language) Name() string { return NameLanguage }

// Evaluate implements Grader
func (l *Language) Evaluate(in model.Input) model.Result {
	diacritics := 0
	for _, r := range in.Output {
		if strings.ContainsRune(l.diacritics, r) {
			diacritics++
		}
	}

	lower := strings.ToLower(in.Output)
	keywords := 0
	for _, kw := range l.keywords {
		if strings.Contains(lower, kw) {
			keywords++
		}
	}

	hasDiacritics := diacritics > 0
	hasKeywords := keywords >= l.threshold

	switch {
	case hasDiacritics && hasKeywords:
		return model.Passed(1.0, fmt.Sprintf("response is in German (diacritics: %d, German words: %d)", diacritics, keywords))
	case hasKeywords:
		return model.Passed(0.8, fmt.Sprintf("response contains German words (%d) but no diacritics", keywords))
	default:
		return model.Failed(0.0, fmt.Sprintf("response does not appear to be German (diacritics: %d, German words: %d, need %d)", diacritics, keywords, l.threshold))
	}
}
