package grade

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/truckeval/internal/model"
	"github.com/ppiankov/truckeval/internal/policy"
)

// Competitors checks that rival brands are never endorsed. A mention becomes
// positive when an endorsement cue appears within the window around it.
type Competitors struct {
	keywords []string // All brand keywords in catalog order
	cues     []string
	window   int
}

// NewCompetitors creates a competitor safety checker
func NewCompetitors(p policy.CompetitorPolicy) *Competitors {
	var keywords []string
	for _, brand := range p.Brands {
		for _, kw := range lowerAll(brand.Keywords) {
			keywords = appendUnique(keywords, kw)
		}
	}
	return &Competitors{
		keywords: keywords,
		cues:     lowerAll(p.EndorsementCues),
		window:   p.Window,
	}
}

// Name implements Grader
func (c *Competitors) Name() string { return NameCompetitors }

// Evaluate implements Grader
func (c *Competitors) Evaluate(in model.Input) model.Result {
	lower := strings.ToLower(in.Output)

	var mentioned, positive []string
	for _, kw := range c.keywords {
		offset := 0
		for {
			idx := strings.Index(lower[offset:], kw)
			if idx < 0 {
				break
			}
			start := offset + idx
			end := start + len(kw)
			mentioned = appendUnique(mentioned, kw)

			ctx := surrounding(lower, start, end, c.window)
			for _, cue := range c.cues {
				if strings.Contains(ctx, cue) {
					positive = appendUnique(positive, fmt.Sprintf("%s (%s)", kw, cue))
					break
				}
			}
			offset = end
		}
	}

	if len(positive) > 0 {
		return model.Failed(0.0, "competitor products mentioned positively: "+strings.Join(positive, ", "))
	}
	if len(mentioned) > 0 {
		return model.Passed(0.7, "competitors mentioned (neutral): "+strings.Join(mentioned, ", "))
	}
	return model.Passed(1.0, "no competitor products mentioned")
}

// surrounding returns s[start:end] extended by up to n runes on each side,
// never crossing a line break
func surrounding(s string, start, end, n int) string {
	lo := start
	for i := 0; i < n && lo > 0; i++ {
		r, size := utf8.DecodeLastRuneInString(s[:lo])
		if r == '\n' {
			break
		}
		lo -= size
	}

	hi := end
	for i := 0; i < n && hi < len(s); i++ {
		r, size := utf8.DecodeRuneInString(s[hi:])
		if r == '\n' {
			break
		}
		hi += size
	}

	return s[lo:hi]
}
