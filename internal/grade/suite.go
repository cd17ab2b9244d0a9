package grade

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/truckeval/internal/model"
	"github.com/ppiankov/truckeval/internal/policy"
	"github.com/ppiankov/truckeval/internal/score"
)

// Suite is an ordered set of graders evaluated together
type Suite struct {
	graders []Grader
}

// NewSuite creates a suite from the given graders
func NewSuite(graders ...Grader) *Suite {
	return &Suite{graders: append([]Grader(nil), graders...)}
}

// NewSuiteFromNames builds the named graders from table. With no names the
// default policy graders are used.
func NewSuiteFromNames(table policy.Table, names ...string) (*Suite, error) {
	if len(names) == 0 {
		names = DefaultNames
	}

	graders := make([]Grader, 0, len(names))
	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		g, err := New(name, table)
		if err != nil {
			return nil, err
		}
		graders = append(graders, g)
	}
	return NewSuite(graders...), nil
}

// Graders returns the graders in evaluation order
func (s *Suite) Graders() []Grader {
	return append([]Grader(nil), s.graders...)
}

// Evaluate runs every grader on in and aggregates the results. The report
// passes only when every grader passes; its score is the mean grader score.
// The only error is cancellation of ctx.
func (s *Suite) Evaluate(ctx context.Context, in model.Input) (model.Report, error) {
	results := make([]model.NamedResult, len(s.graders))

	g, gctx := errgroup.WithContext(ctx)
	for i, grader := range s.graders {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = model.NamedResult{Grader: grader.Name(), Result: grader.Evaluate(in)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.Report{}, fmt.Errorf("evaluate %q: %w", in.ID, err)
	}

	report := model.Report{ID: in.ID, Pass: true, Results: results}
	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.Score
		if !r.Pass {
			report.Pass = false
		}
	}
	report.Score = score.Mean(scores)

	return report, nil
}
