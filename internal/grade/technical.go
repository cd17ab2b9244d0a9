package grade

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/truckeval/internal/model"
	"github.com/ppiankov/truckeval/internal/policy"
)

// Findings is the full outcome of a technical accuracy inspection
type Findings struct {
	Errors   []string // Wrong facts; any error fails the output
	Warnings []string // Doubtful facts; lower the score but pass
	Notes    []string // Informational observations; never affect the verdict
}

// Technical checks explicit numeric claims about VIN and WMI lengths and
// flags emission standards that do not exist yet
type Technical struct {
	vinClaim        *regexp.Regexp
	wmiClaim        *regexp.Regexp
	vinLength       int
	wmiLength       int
	forbidden       []string // Forbidden VIN letters, lowercase
	futureEmissions []string
}

// NewTechnical creates a technical accuracy checker
func NewTechnical(facts policy.TechnicalFacts) *Technical {
	var forbidden []string
	for _, r := range strings.ToLower(facts.ForbiddenVINChars) {
		forbidden = appendUnique(forbidden, string(r))
	}
	return &Technical{
		vinClaim:        lengthClaimPattern("vin", facts.VINLengthUnits, facts.ClaimLookahead),
		wmiClaim:        lengthClaimPattern("wmi", facts.WMILengthUnits, facts.ClaimLookahead),
		vinLength:       facts.VINLength,
		wmiLength:       facts.WMILength,
		forbidden:       forbidden,
		futureEmissions: lowerAll(facts.FutureEmissionLabels),
	}
}

// lengthClaimPattern matches "<ident> ... <number> <unit>" within lookahead
// characters on one line
func lengthClaimPattern(ident string, units []string, lookahead int) *regexp.Regexp {
	quoted := make([]string, 0, len(units))
	for _, u := range lowerAll(units) {
		quoted = append(quoted, regexp.QuoteMeta(u))
	}
	return regexp.MustCompile(fmt.Sprintf(`%s.{0,%d}?(\d+)[\s-]*(?:%s)`,
		regexp.QuoteMeta(ident), lookahead, strings.Join(quoted, "|")))
}

// Name implements Grader
func (t *Technical) Name() string { return NameTechnical }

// Evaluate implements Grader
func (t *Technical) Evaluate(in model.Input) model.Result {
	f := t.Inspect(in.Output)

	switch {
	case len(f.Errors) > 0:
		return model.Failed(0.0, "technical errors: "+strings.Join(f.Errors, "; "))
	case len(f.Warnings) > 0:
		return model.Passed(0.7, "technically correct with warnings: "+strings.Join(f.Warnings, "; "))
	default:
		return model.Passed(1.0, "technically correct")
	}
}

// Inspect runs every technical rule and returns all findings
func (t *Technical) Inspect(output string) Findings {
	var f Findings
	lower := strings.ToLower(output)

	f.Errors = append(f.Errors, checkLengthClaims(lower, t.vinClaim, "VIN", t.vinLength)...)
	f.Errors = append(f.Errors, checkLengthClaims(lower, t.wmiClaim, "WMI", t.wmiLength)...)

	if note := t.disclosureNote(lower); note != "" {
		f.Notes = append(f.Notes, note)
	}

	for _, label := range t.futureEmissions {
		if strings.Contains(lower, label) {
			f.Warnings = append(f.Warnings, fmt.Sprintf("'%s' mentioned - does not exist yet for trucks", label))
		}
	}

	return f
}

// checkLengthClaims returns one error per claim whose number differs from want
func checkLengthClaims(lower string, re *regexp.Regexp, ident string, want int) []string {
	var errs []string
	for _, m := range re.FindAllStringSubmatch(lower, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil && n == want {
			continue
		}
		errs = appendUnique(errs, fmt.Sprintf("%s length wrong: %s instead of %d", ident, m[1], want))
	}
	return errs
}

// disclosureNote reports whether an explanation of the VIN character rules
// names the forbidden letters or the confusion risk behind them. It is
// informational only.
func (t *Technical) disclosureNote(lower string) string {
	if !strings.Contains(lower, "vin") {
		return ""
	}
	if !strings.Contains(lower, "buchstabe") && !strings.Contains(lower, "zeichen") {
		return ""
	}

	words := make(map[string]bool)
	for _, w := range splitWords(lower) {
		words[w] = true
	}
	named := len(t.forbidden) > 0
	for _, letter := range t.forbidden {
		if !words[letter] {
			named = false
			break
		}
	}
	if named {
		return "forbidden VIN letters named: " + strings.ToUpper(strings.Join(t.forbidden, ", "))
	}
	if strings.Contains(lower, "verwechsl") {
		return "VIN letter confusion risk explained"
	}
	return ""
}
