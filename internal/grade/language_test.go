package grade

import (
	"strings"
	"testing"

	"github.com/ppiankov/truckeval/internal/model"
	"github.com/ppiankov/truckeval/internal/policy"
)

func TestLanguage_Evaluate(t *testing.T) {
	checker := NewLanguage(policy.Default().Language)

	tests := []struct {
		name      string
		output    string
		wantPass  bool
		wantScore float64
	}{
		{
			name:      "diacritics and keywords",
			output:    "Für den Fahrzeugwechsel können Sie die Achse prüfen.",
			wantPass:  true,
			wantScore: 1.0,
		},
		{
			name:      "keywords without diacritics",
			output:    "Der LKW hat eine Achse und einen Motor.",
			wantPass:  true,
			wantScore: 0.8,
		},
		{
			name:      "english",
			output:    "The truck has a new engine.",
			wantPass:  false,
			wantScore: 0.0,
		},
		{
			name:      "diacritics alone are not enough",
			output:    "Grüße",
			wantPass:  false,
			wantScore: 0.0,
		},
		{
			name:      "empty output",
			output:    "",
			wantPass:  false,
			wantScore: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := checker.Evaluate(model.Input{Output: tt.output})

			if result.Pass != tt.wantPass {
				t.Errorf("Expected pass=%v, got %v (%s)", tt.wantPass, result.Pass, result.Reason)
			}
			if result.Score != tt.wantScore {
				t.Errorf("Expected score %.1f, got %.2f", tt.wantScore, result.Score)
			}
			if result.Reason == "" {
				t.Error("Expected a reason")
			}
		})
	}
}

func TestLanguage_ReasonIncludesCounts(t *testing.T) {
	checker := NewLanguage(policy.Default().Language)

	// und, der, ein, eine, lkw, motor, achse
	result := checker.Evaluate(model.Input{Output: "Der LKW hat eine Achse und einen Motor."})
	if !strings.Contains(result.Reason, "(7)") {
		t.Errorf("Expected keyword count 7 in reason, got %q", result.Reason)
	}

	result = checker.Evaluate(model.Input{Output: "Grüße"})
	if !strings.Contains(result.Reason, "diacritics: 2") || !strings.Contains(result.Reason, "German words: 0") {
		t.Errorf("Expected raw counts in failing reason, got %q", result.Reason)
	}
}

func TestLanguage_NeverFullScoreWithoutDiacritics(t *testing.T) {
	checker := NewLanguage(policy.Default().Language)

	outputs := []string{
		"Das Fahrzeug ist mit einer neuen Achse ausgestattet.",
		"Der Motor wird bei Bedarf gewartet und kann auch getauscht werden.",
		"Ein Truck oder ein LKW ist nicht immer gleich.",
	}
	for _, out := range outputs {
		result := checker.Evaluate(model.Input{Output: out})
		if result.Score != 0.8 || !result.Pass {
			t.Errorf("%q: expected pass with 0.8, got pass=%v score=%.2f", out, result.Pass, result.Score)
		}
	}
}

func TestLanguage_CustomThreshold(t *testing.T) {
	p := policy.Default().Language
	p.KeywordThreshold = 10
	checker := NewLanguage(p)

	result := checker.Evaluate(model.Input{Output: "Der LKW hat eine Achse und einen Motor."})
	if result.Pass {
		t.Errorf("Expected fail with threshold 10, got %+v", result)
	}
}
