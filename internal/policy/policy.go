// Package policy holds the versionable grading policy: keyword lists,
// competitor catalogs, technical constants and allow-lists. It is pure data;
// graders compile their own private copies at construction time, so a Table
// can be edited, loaded from YAML or substituted in tests without touching
// checker logic.
package policy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is returned when a policy table fails validation
var ErrInvalid = errors.New("invalid policy")

// MatchMode selects how lexicon tokens are matched against output text
type MatchMode string

const (
	MatchSubstring MatchMode = "substring" // Token may appear inside a longer word
	MatchWord      MatchMode = "word"      // Token must be delimited by non-letters
)

// Table is the complete grading policy
type Table struct {
	Version    string           `yaml:"version"`
	Language   LanguagePolicy   `yaml:"language"`
	Competitor CompetitorPolicy `yaml:"competitor"`
	Tone       TonePolicy       `yaml:"tone"`
	Technical  TechnicalFacts   `yaml:"technical"`
	Validity   ValidityPolicy   `yaml:"validity"`
}

// LanguagePolicy configures target-language detection
type LanguagePolicy struct {
	Diacritics       string   `yaml:"diacritics"`        // Characters specific to the target language
	Keywords         []string `yaml:"keywords"`          // Closed-class words and domain nouns, lowercase
	KeywordThreshold int      `yaml:"keyword_threshold"` // Distinct keyword hits required
}

// Brand is one competitor with its keyword and model variants
type Brand struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"` // Lowercase; overlapping variants are matched independently
}

// CompetitorPolicy configures competitor mention detection
type CompetitorPolicy struct {
	Brands          []Brand  `yaml:"brands"`
	EndorsementCues []string `yaml:"endorsement_cues"` // Lowercase cue stems
	Window          int      `yaml:"window"`           // Characters inspected on each side of a mention
}

// RuneRange is an inclusive range of code points
type RuneRange struct {
	Lo rune `yaml:"lo"`
	Hi rune `yaml:"hi"`
}

// Contains reports whether r lies inside the range
func (rr RuneRange) Contains(r rune) bool {
	return r >= rr.Lo && r <= rr.Hi
}

// TonePolicy configures formality scoring
type TonePolicy struct {
	InformalLexicon []string    `yaml:"informal_lexicon"`
	InformalMatch   MatchMode   `yaml:"informal_match"`
	EmojiRanges     []RuneRange `yaml:"emoji_ranges"`
	MaxExclamations int         `yaml:"max_exclamations"`
	CapsMinLength   int         `yaml:"caps_min_length"`
	CapsLetters     string      `yaml:"caps_letters"` // Upper-case letters beyond A-Z that count as capitals
	AllowedCaps     []string    `yaml:"allowed_caps"` // Domain abbreviations exempt from the caps check
	PassThreshold   float64     `yaml:"pass_threshold"`
}

// TechnicalFacts are the ground-truth constants checked against claims
type TechnicalFacts struct {
	VINLength            int      `yaml:"vin_length"`
	WMILength            int      `yaml:"wmi_length"`
	ForbiddenVINChars    string   `yaml:"forbidden_vin_chars"`
	ManufacturerWMIs     []string `yaml:"manufacturer_wmis"`
	EmissionLabels       []string `yaml:"emission_labels"`        // Labels that exist today
	FutureEmissionLabels []string `yaml:"future_emission_labels"` // Lowercase labels that do not exist yet
	Models               []string `yaml:"models"`
	AxleConfigs          []string `yaml:"axle_configs"`
	VINLengthUnits       []string `yaml:"vin_length_units"` // Words following a VIN length claim
	WMILengthUnits       []string `yaml:"wmi_length_units"` // Words following a WMI length claim
	ClaimLookahead       int      `yaml:"claim_lookahead"`  // Max characters between identifier and number
}

// ValidityPolicy configures the binary validity classifier applied to
// stored generations
type ValidityPolicy struct {
	InvalidMarker  string `yaml:"invalid_marker"` // Checked first; wins when both markers are present
	ValidMarker    string `yaml:"valid_marker"`
	InvalidComment string `yaml:"invalid_comment"`
	ValidComment   string `yaml:"valid_comment"`
}

// Validate checks the table for values the graders cannot work with
func (t Table) Validate() error {
	var problems []string

	if len(t.Language.Keywords) == 0 {
		problems = append(problems, "language.keywords is empty")
	}
	if t.Language.KeywordThreshold <= 0 {
		problems = append(problems, "language.keyword_threshold must be positive")
	}
	if t.Competitor.Window < 0 {
		problems = append(problems, "competitor.window must not be negative")
	}
	for _, b := range t.Competitor.Brands {
		for _, kw := range b.Keywords {
			if strings.TrimSpace(kw) == "" {
				problems = append(problems, fmt.Sprintf("competitor brand %q has an empty keyword", b.Name))
			}
		}
	}
	switch t.Tone.InformalMatch {
	case MatchSubstring, MatchWord:
	default:
		problems = append(problems, fmt.Sprintf("tone.informal_match %q is not one of substring, word", t.Tone.InformalMatch))
	}
	for _, rr := range t.Tone.EmojiRanges {
		if rr.Lo > rr.Hi {
			problems = append(problems, fmt.Sprintf("tone.emoji_ranges: %#x > %#x", rr.Lo, rr.Hi))
		}
	}
	if t.Tone.CapsMinLength <= 0 {
		problems = append(problems, "tone.caps_min_length must be positive")
	}
	if t.Tone.PassThreshold < 0 || t.Tone.PassThreshold > 1 {
		problems = append(problems, "tone.pass_threshold must be within [0, 1]")
	}
	if t.Technical.VINLength <= 0 || t.Technical.WMILength <= 0 {
		problems = append(problems, "technical.vin_length and technical.wmi_length must be positive")
	}
	if len(t.Technical.VINLengthUnits) == 0 || len(t.Technical.WMILengthUnits) == 0 {
		problems = append(problems, "technical length units must not be empty")
	}
	if t.Technical.ClaimLookahead <= 0 || t.Technical.ClaimLookahead > 1000 {
		problems = append(problems, "technical.claim_lookahead must be within (0, 1000]")
	}

	if t.Validity.InvalidMarker == "" || t.Validity.ValidMarker == "" {
		problems = append(problems, "validity markers must not be empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
