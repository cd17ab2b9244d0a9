package score

import (
	"math"
	"testing"
)

func TestCard_NoDeductions(t *testing.T) {
	card := NewCard()

	if card.Score() != Max {
		t.Errorf("Expected score %.1f, got %.2f", Max, card.Score())
	}
	if card.HasIssues() {
		t.Error("Expected no issues on a fresh card")
	}
	if len(card.Issues()) != 0 {
		t.Errorf("Expected empty issues, got %v", card.Issues())
	}
}

func TestCard_DeductionsAccumulate(t *testing.T) {
	card := NewCard()
	card.Deduct(0.2, "first")
	card.Deduct(0.1, "second")

	if card.Score() != 0.7 {
		t.Errorf("Expected 0.7, got %v", card.Score())
	}
	if got := card.Joined("; "); got != "first; second" {
		t.Errorf("Expected issues in deduction order, got %q", got)
	}
}

func TestCard_FloorsAtZero(t *testing.T) {
	card := NewCard()
	for i := 0; i < 5; i++ {
		card.Deduct(0.3, "issue")
	}

	if card.Score() != Min {
		t.Errorf("Expected score floored at 0, got %v", card.Score())
	}
}

func TestCard_ToneCombination(t *testing.T) {
	// All four tone deductions: 1.0 - 0.3 - 0.2 - 0.1 - 0.1
	card := NewCard()
	card.Deduct(0.3, "informal")
	card.Deduct(0.2, "emoji")
	card.Deduct(0.1, "exclamations")
	card.Deduct(0.1, "caps")

	if card.Score() != 0.3 {
		t.Errorf("Expected 0.3, got %v", card.Score())
	}
}

func TestClamp(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.7, 1},
		{math.NaN(), 0},
	}
	for _, c := range cases {
		if got := Clamp(c.in); got != c.want {
			t.Errorf("Clamp(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestMean(t *testing.T) {
	if got := Mean(nil); got != Max {
		t.Errorf("Mean(nil) = %v, want %v", got, Max)
	}
	if got := Mean([]float64{1, 0.7, 0.4}); got != 0.7 {
		t.Errorf("Mean = %v, want 0.7", got)
	}
}
