// Package grade contains the deterministic graders that turn an assistant
// output into a pass/score/reason verdict. Graders are pure: no I/O, no
// shared mutable state, safe for concurrent use. Each one compiles its slice
// of the policy table at construction time.
package grade

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/truckeval/internal/model"
	"github.com/ppiankov/truckeval/internal/policy"
)

// Grader names
const (
	NameLanguage    = "language"
	NameCompetitors = "competitors"
	NameTone        = "tone"
	NameTechnical   = "technical"
	NameVIN         = "vin"
	NameValidity    = "validity"
)

// Grader evaluates one output against one policy
type Grader interface {
	// Name returns the stable grader identifier
	Name() string

	// Evaluate grades the output. Policy failures are reported through
	// Result.Pass, never through a panic or error.
	Evaluate(in model.Input) model.Result
}

// constructors maps grader names to their factories
var constructors = map[string]func(policy.Table) Grader{
	NameLanguage:    func(t policy.Table) Grader { return NewLanguage(t.Language) },
	NameCompetitors: func(t policy.Table) Grader { return NewCompetitors(t.Competitor) },
	NameTone:        func(t policy.Table) Grader { return NewTone(t.Tone) },
	NameTechnical:   func(t policy.Table) Grader { return NewTechnical(t.Technical) },
	NameVIN:         func(t policy.Table) Grader { return NewVIN(t.Technical) },
	NameValidity:    func(t policy.Table) Grader { return NewValidity(t.Validity) },
}

// DefaultNames lists the policy graders run by default, in reporting order
var DefaultNames = []string{NameLanguage, NameCompetitors, NameTone, NameTechnical, NameVIN}

// New builds the named grader from the policy table
func New(name string, table policy.Table) (Grader, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown grader %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return ctor(table), nil
}

// Names returns every registered grader name, sorted
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// appendUnique appends s unless it is already present
func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

// lowerAll returns lower-cased, de-duplicated, non-empty copies of words
func lowerAll(words []string) []string {
	var out []string
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		out = appendUnique(out, w)
	}
	return out
}
