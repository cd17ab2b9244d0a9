package grade

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/truckeval/internal/model"
	"github.com/ppiankov/truckeval/internal/policy"
)

// VIN validates the format of vehicle identification numbers in an output.
// Candidates are whole words of the exact VIN length over A-Z and 0-9; each
// is then re-scanned for forbidden letters so a mis-typed VIN is reported
// instead of silently ignored.
type VIN struct {
	candidate *regexp.Regexp
	forbidden string
}

// NewVIN creates a VIN format validator
func NewVIN(facts policy.TechnicalFacts) *VIN {
	return &VIN{
		candidate: regexp.MustCompile(fmt.Sprintf(`\b[A-Z0-9]{%d}\b`, facts.VINLength)),
		forbidden: strings.ToUpper(facts.ForbiddenVINChars),
	}
}

// Name implements Grader
func (v *VIN) Name() string { return NameVIN }

// Evaluate implements Grader
func (v *VIN) Evaluate(in model.Input) model.Result {
	var candidates []string
	for _, c := range v.candidate.FindAllString(strings.ToUpper(in.Output), -1) {
		candidates = appendUnique(candidates, c)
	}

	if len(candidates) == 0 {
		return model.Passed(1.0, "no VIN found in output (neutral)")
	}

	var valid, invalid []string
	for _, c := range candidates {
		if bad := v.forbiddenIn(c); bad != "" {
			invalid = append(invalid, fmt.Sprintf("%s (contains %s)", c, bad))
			continue
		}
		valid = append(valid, c)
	}

	if len(invalid) > 0 {
		return model.Failed(0.0, "invalid VINs found: "+strings.Join(invalid, ", "))
	}
	return model.Passed(1.0, "all VINs correctly formatted: "+strings.Join(valid, ", "))
}

// forbiddenIn returns the distinct forbidden letters in vin, comma separated
func (v *VIN) forbiddenIn(vin string) string {
	var found []string
	for _, r := range vin {
		if strings.ContainsRune(v.forbidden, r) {
			found = appendUnique(found, string(r))
		}
	}
	return strings.Join(found, ", ")
}
