package grade

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/truckeval/internal/model"
	"github.com/ppiankov/truckeval/internal/policy"
)

func TestNewSuiteFromNames(t *testing.T) {
	suite, err := NewSuiteFromNames(policy.Default())
	if err != nil {
		t.Fatalf("NewSuiteFromNames() error = %v", err)
	}

	var names []string
	for _, g := range suite.Graders() {
		names = append(names, g.Name())
	}
	if diff := cmp.Diff(DefaultNames, names); diff != "" {
		t.Errorf("Default graders mismatch (-want +got):\n%s", diff)
	}

	suite, err = NewSuiteFromNames(policy.Default(), NameTone, NameVIN, NameTone)
	if err != nil {
		t.Fatalf("NewSuiteFromNames() error = %v", err)
	}
	if n := len(suite.Graders()); n != 2 {
		t.Errorf("Expected duplicates removed, got %d graders", n)
	}

	if _, err := NewSuiteFromNames(policy.Default(), "spelling"); err == nil {
		t.Error("Expected error for unknown grader")
	}
}

func TestNames(t *testing.T) {
	want := []string{"competitors", "language", "technical", "tone", "validity", "vin"}
	if diff := cmp.Diff(want, Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
}

func TestSuite_Evaluate(t *testing.T) {
	suite, err := NewSuiteFromNames(policy.Default())
	if err != nil {
		t.Fatal(err)
	}

	t.Run("clean output", func(t *testing.T) {
		report, err := suite.Evaluate(context.Background(), model.Input{
			ID:     "clean",
			Output: "Der MAN TGX ist für den Fernverkehr geeignet und bietet eine moderne Achse.",
		})
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if !report.Pass || report.Score != 1.0 {
			t.Errorf("Expected pass with 1.0, got pass=%v score=%v: %+v", report.Pass, report.Score, report.Results)
		}
		if report.ID != "clean" {
			t.Errorf("Expected ID to be carried, got %q", report.ID)
		}
	})

	t.Run("one failing grader fails the report", func(t *testing.T) {
		report, err := suite.Evaluate(context.Background(), model.Input{Output: "DAS IST MEGA COOL!!!! 😀"})
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if report.Pass {
			t.Error("Expected report to fail")
		}
		if len(report.Results) != len(DefaultNames) {
			t.Fatalf("Expected %d results, got %d", len(DefaultNames), len(report.Results))
		}
		for i, r := range report.Results {
			if r.Grader != DefaultNames[i] {
				t.Errorf("Result %d: expected grader %q, got %q", i, DefaultNames[i], r.Grader)
			}
		}
	})
}

func TestSuite_EvaluateCancelled(t *testing.T) {
	suite, err := NewSuiteFromNames(policy.Default())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = suite.Evaluate(ctx, model.Input{ID: "x", Output: "Hallo"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// Every grader must stay within [0, 1] and explain itself, whatever the input
func TestGraders_ScoreBoundsAndReason(t *testing.T) {
	outputs := []string{
		"",
		"   ",
		"\n\n\n",
		"!!!!!!!!!!!!!!!!!!!!",
		"😀😀😀😀😀😀😀😀",
		"WMA06XZZ0OP123456 WMAQ6XZZ7IP123456",
		"Die VIN hat 3 Zeichen und die WMI hat 17 Stellen. Euro 7, Euro 8!",
		"Volvo Trucks, Scania, DAF, Iveco und Actros sind besser, gut und eine Option.",
		"LOL OMG WTF KRASS GEIL MEGA HAMMER!!!!! 🚚🚚",
		"Für Fahrzeuge mit Achse und Motor können Sie auch die Werkstatt nutzen.",
		"Valid: true Valid: false",
	}

	table := policy.Default()
	for _, name := range Names() {
		g, err := New(name, table)
		if err != nil {
			t.Fatal(err)
		}
		for _, out := range outputs {
			r := g.Evaluate(model.Input{Output: out})
			if r.Score < 0 || r.Score > 1 {
				t.Errorf("%s(%q): score %v out of range", name, out, r.Score)
			}
			if r.Reason == "" {
				t.Errorf("%s(%q): empty reason", name, out)
			}
		}
	}
}
