package grade

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/truckeval/internal/model"
	"github.com/ppiankov/truckeval/internal/policy"
	"github.com/ppiankov/truckeval/internal/score"
)

// Deductions applied by the tone checker
const (
	toneInformalPenalty    = 0.3
	toneEmojiPenalty       = 0.2
	toneExclamationPenalty = 0.1
	toneCapsPenalty        = 0.1
	toneMaxCapsReported    = 3
)

// Tone scores formality by accumulating independent deductions
type Tone struct {
	informal        []string
	matchMode       policy.MatchMode
	emoji           []policy.RuneRange
	maxExclamations int
	capsMinLength   int
	capsLetters     string
	allowedCaps     map[string]bool
	passThreshold   float64
}

// NewTone creates a tone compliance checker
func NewTone(p policy.TonePolicy) *Tone {
	allowed := make(map[string]bool, len(p.AllowedCaps))
	for _, a := range p.AllowedCaps {
		allowed[a] = true
	}
	return &Tone{
		informal:        lowerAll(p.InformalLexicon),
		matchMode:       p.InformalMatch,
		emoji:           append([]policy.RuneRange(nil), p.EmojiRanges...),
		maxExclamations: p.MaxExclamations,
		capsMinLength:   p.CapsMinLength,
		capsLetters:     p.CapsLetters,
		allowedCaps:     allowed,
		passThreshold:   p.PassThreshold,
	}
}

// Name implements Grader
func (t *Tone) Name() string { return NameTone }

// Evaluate implements Grader
func (t *Tone) Evaluate(in model.Input) model.Result {
	card := score.NewCard()

	// 1. Informal lexicon
	if found := t.informalHits(in.Output); len(found) > 0 {
		card.Deduct(toneInformalPenalty, "informal language: "+strings.Join(found, ", "))
	}

	// 2. Emoji
	if n := t.countEmoji(in.Output); n > 0 {
		card.Deduct(toneEmojiPenalty, fmt.Sprintf("emoji found: %d", n))
	}

	// 3. Exclamation marks
	if n := strings.Count(in.Output, "!"); n > t.maxExclamations {
		card.Deduct(toneExclamationPenalty, fmt.Sprintf("too many exclamation marks: %d", n))
	}

	// 4. Shouting
	if caps := t.capsWords(in.Output); len(caps) > 0 {
		if len(caps) > toneMaxCapsReported {
			caps = caps[:toneMaxCapsReported]
		}
		card.Deduct(toneCapsPenalty, "all-caps words: "+strings.Join(caps, ", "))
	}

	s := card.Score()
	if s >= t.passThreshold {
		if card.HasIssues() {
			return model.Passed(s, "compliant with minor issues: "+card.Joined("; "))
		}
		return model.Passed(s, "response is professionally worded")
	}
	return model.Failed(s, "non-compliant: "+card.Joined("; "))
}

// informalHits returns the lexicon tokens found in the output
func (t *Tone) informalHits(output string) []string {
	lower := strings.ToLower(output)
	var found []string
	for _, tok := range t.informal {
		if t.matchMode == policy.MatchWord {
			if containsWord(lower, tok) {
				found = append(found, tok)
			}
			continue
		}
		if strings.Contains(lower, tok) {
			found = append(found, tok)
		}
	}
	return found
}

// countEmoji counts code points inside the configured emoji ranges.
// Invalid bytes and U+FFFD are not emoji.
func (t *Tone) countEmoji(output string) int {
	n := 0
	for _, r := range output {
		if r == utf8.RuneError {
			continue
		}
		for _, rr := range t.emoji {
			if rr.Contains(r) {
				n++
				break
			}
		}
	}
	return n
}

// capsWords returns whole words made only of capital letters, at least
// capsMinLength long and not on the allow-list, in order of appearance
func (t *Tone) capsWords(output string) []string {
	var words []string
	for _, w := range splitWords(output) {
		if utf8.RuneCountInString(w) < t.capsMinLength || t.allowedCaps[w] {
			continue
		}
		if t.allCaps(w) {
			words = append(words, w)
		}
	}
	return words
}

func (t *Tone) allCaps(w string) bool {
	for _, r := range w {
		if (r < 'A' || r > 'Z') && !strings.ContainsRune(t.capsLetters, r) {
			return false
		}
	}
	return true
}

// isWordRune matches the characters of a regexp \w in Unicode mode
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// splitWords returns the maximal runs of word runes
func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !isWordRune(r) })
}

// containsWord reports whether tok occurs in s delimited by non-word runes
func containsWord(s, tok string) bool {
	offset := 0
	for {
		idx := strings.Index(s[offset:], tok)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(tok)

		before := start == 0 || !isWordRune(lastRune(s[:start]))
		after := end == len(s) || !isWordRune(firstRune(s[end:]))
		if before && after {
			return true
		}
		offset = start + 1
	}
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}
