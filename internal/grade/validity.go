package grade

import (
	"strings"

	"github.com/ppiankov/truckeval/internal/model"
	"github.com/ppiankov/truckeval/internal/policy"
)

// Validity is the binary classifier applied to stored generations. The
// invalid marker is checked first, so it wins when both markers appear.
type Validity struct {
	invalidMarker  string
	validMarker    string
	invalidComment string
	validComment   string
}

// NewValidity creates a validity classifier
func NewValidity(p policy.ValidityPolicy) *Validity {
	return &Validity{
		invalidMarker:  p.InvalidMarker,
		validMarker:    p.ValidMarker,
		invalidComment: p.InvalidComment,
		validComment:   p.ValidComment,
	}
}

// Name implements Grader
func (v *Validity) Name() string { return NameValidity }

// Classify returns the verdict for output and whether any marker matched.
// Outputs with no marker carry no signal and must not be scored.
func (v *Validity) Classify(output string) (model.Result, bool) {
	if strings.Contains(output, v.invalidMarker) {
		return model.Failed(0, v.invalidComment), true
	}
	if strings.Contains(output, v.validMarker) {
		return model.Passed(1, v.validComment), true
	}
	return model.Result{}, false
}

// Evaluate implements Grader. Outputs without a marker pass neutrally.
func (v *Validity) Evaluate(in model.Input) model.Result {
	if r, ok := v.Classify(in.Output); ok {
		return r
	}
	return model.Passed(1.0, "no validity marker found (neutral)")
}
