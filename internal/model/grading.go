package model

// Input is a single grading request: the assistant's free-text response and
// the prompt variables it was produced with.
type Input struct {
	ID      string         `json:"id,omitempty"`      // Optional caller-supplied case identifier
	Output  string         `json:"output"`            // The assistant's response text
	Context map[string]any `json:"context,omitempty"` // Prompt variables (vars, prompt, ...)
}

// Result is the verdict every grader returns.
// It serializes to exactly the keys pass, score and reason.
type Result struct {
	Pass   bool    `json:"pass"`   // Whether the output satisfies the policy
	Score  float64 `json:"score"`  // Policy score in [0.0, 1.0]
	Reason string  `json:"reason"` // Human-readable explanation naming every issue found
}

// Map returns the result in its open mapping form for harnesses that expect
// a plain dictionary.
func (r Result) Map() map[string]any {
	return map[string]any{
		"pass":   r.Pass,
		"score":  r.Score,
		"reason": r.Reason,
	}
}

// Passed builds a passing result.
func Passed(score float64, reason string) Result {
	return Result{Pass: true, Score: score, Reason: reason}
}

// Failed builds a failing result.
func Failed(score float64, reason string) Result {
	return Result{Pass: false, Score: score, Reason: reason}
}

// NamedResult pairs a grader name with its result
type NamedResult struct {
	Grader string `json:"grader"`
	Result
}

// Report aggregates the results of several graders for one input
type Report struct {
	ID      string        `json:"id,omitempty"`
	Pass    bool          `json:"pass"`  // True only when every grader passed
	Score   float64       `json:"score"` // Mean of the grader scores
	Results []NamedResult `json:"results"`
}
