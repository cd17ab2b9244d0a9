// Package score implements the shared deduct-and-floor scoring convention:
// every grader starts from a perfect score, subtracts a fixed amount per
// triggered check and clamps the result to [0, 1]. Each deduction keeps the
// human-readable issue that caused it so verdicts stay explainable.
package score

import (
	"math"
	"strings"
)

const (
	// Max is the score of an output with no issues
	Max = 1.0
	// Min is the floor every score is clamped to
	Min = 0.0
)

// Deduction records a single triggered check
type Deduction struct {
	Amount float64 // Points subtracted
	Issue  string  // Human-readable description
}

// Card accumulates deductions from a starting score of Max
type Card struct {
	deductions []Deduction
}

// NewCard creates an empty score card
func NewCard() *Card {
	return &Card{}
}

// Deduct subtracts amount from the score and records issue
func (c *Card) Deduct(amount float64, issue string) {
	c.deductions = append(c.deductions, Deduction{Amount: amount, Issue: issue})
}

// Score returns the floored score rounded to two decimals
func (c *Card) Score() float64 {
	total := Max
	for _, d := range c.deductions {
		total -= d.Amount
	}
	return Round(Clamp(total))
}

// Issues returns the recorded issues in the order they were deducted
func (c *Card) Issues() []string {
	issues := make([]string, len(c.deductions))
	for i, d := range c.deductions {
		issues[i] = d.Issue
	}
	return issues
}

// HasIssues reports whether any deduction was recorded
func (c *Card) HasIssues() bool {
	return len(c.deductions) > 0
}

// Joined returns the issues joined with sep
func (c *Card) Joined(sep string) string {
	return strings.Join(c.Issues(), sep)
}

// Clamp bounds s to [Min, Max]. NaN is treated as Min.
func Clamp(s float64) float64 {
	if math.IsNaN(s) || s < Min {
		return Min
	}
	if s > Max {
		return Max
	}
	return s
}

// Round rounds s to two decimals so accumulated float error does not move a
// score across a pass threshold
func Round(s float64) float64 {
	return math.Round(s*100) / 100
}

// Mean returns the average of scores, or Max for an empty slice
func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		return Max
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return Round(Clamp(sum / float64(len(scores))))
}
