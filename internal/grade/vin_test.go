package grade

import (
	"strings"
	"testing"

	"github.com/ppiankov/truckeval/internal/model"
	"github.com/ppiankov/truckeval/internal/policy"
)

func TestVIN_Evaluate(t *testing.T) {
	checker := NewVIN(policy.Default().Technical)

	tests := []struct {
		name       string
		output     string
		wantPass   bool
		wantScore  float64
		wantReason string
	}{
		{
			name:       "too short is not a VIN",
			output:     "Die Nummer WMA1234567890123 ist unvollständig.",
			wantPass:   true,
			wantScore:  1.0,
			wantReason: "no VIN found in output (neutral)",
		},
		{
			name:       "too long is not a VIN",
			output:     "WMA06XZZ7BP1234567",
			wantPass:   true,
			wantScore:  1.0,
			wantReason: "no VIN found in output (neutral)",
		},
		{
			name:       "forbidden O",
			output:     "VIN: WMA06XZZ0OP123456",
			wantPass:   false,
			wantScore:  0.0,
			wantReason: "invalid VINs found: WMA06XZZ0OP123456 (contains O)",
		},
		{
			name:       "valid",
			output:     "Ihre VIN lautet WMA06XZZ7BP123456.",
			wantPass:   true,
			wantScore:  1.0,
			wantReason: "all VINs correctly formatted: WMA06XZZ7BP123456",
		},
		{
			name:       "lowercase is normalised",
			output:     "vin wma06xzz7bp123456",
			wantPass:   true,
			wantScore:  1.0,
			wantReason: "all VINs correctly formatted: WMA06XZZ7BP123456",
		},
		{
			name:       "several forbidden letters",
			output:     "WMAQ6XZZ7IP123456",
			wantPass:   false,
			wantScore:  0.0,
			wantReason: "invalid VINs found: WMAQ6XZZ7IP123456 (contains Q, I)",
		},
		{
			name:       "empty output",
			output:     "",
			wantPass:   true,
			wantScore:  1.0,
			wantReason: "no VIN found in output (neutral)",
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
			if result.Reason != tt.wantReason {
				t.Errorf("Expected reason %q, got %q", tt.wantReason, result.Reason)
			}
		})
	}
}

func TestVIN_OneInvalidFailsAll(t *testing.T) {
	checker := NewVIN(policy.Default().Technical)

	result := checker.Evaluate(model.Input{Output: "WMA06XZZ7BP123456 und WMA06XZZ0OP123456"})

	if result.Pass {
		t.Fatalf("Expected fail, got %+v", result)
	}
	if strings.Contains(result.Reason, "WMA06XZZ7BP123456") {
		t.Errorf("Expected only invalid VINs in reason, got %q", result.Reason)
	}
}

func TestVIN_DuplicatesReportedOnce(t *testing.T) {
	checker := NewVIN(policy.Default().Technical)

	result := checker.Evaluate(model.Input{Output: "WMA06XZZ7BP123456, nochmals WMA06XZZ7BP123456"})

	if n := strings.Count(result.Reason, "WMA06XZZ7BP123456"); n != 1 {
		t.Errorf("Expected VIN listed once, got %d in %q", n, result.Reason)
	}
}
