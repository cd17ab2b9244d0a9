package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/truckeval/internal/model"
)

// maxLineSize bounds a single JSONL record
const maxLineSize = 1 << 20

// Evaluator grades a single input
type Evaluator interface {
	Evaluate(ctx context.Context, in model.Input) (model.Report, error)
}

// GradeJob grades one input
type GradeJob struct {
	Index     int
	Input     model.Input
	Evaluator Evaluator
}

// Execute executes the grading job
func (j *GradeJob) Execute(ctx context.Context) Result {
	report, err := j.Evaluator.Evaluate(ctx, j.Input)
	if err != nil {
		return &GradeResult{Index: j.Index, ID: j.Input.ID, Error: err}
	}
	return &GradeResult{Index: j.Index, ID: j.Input.ID, Report: &report}
}

// GradeResult represents the outcome of a grading job
type GradeResult struct {
	Index  int           `json:"-"`
	ID     string        `json:"id"`
	Report *model.Report `json:"report,omitempty"`
	Error  error         `json:"-"`
}

// GetError returns the error from the grading result
func (r *GradeResult) GetError() error {
	return r.Error
}

// BatchProcessor grades multiple inputs concurrently
type BatchProcessor struct {
	evaluator   Evaluator
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(evaluator Evaluator, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		evaluator:   evaluator,
		concurrency: concurrency,
	}
}

// ProcessInputs grades inputs concurrently and returns results in input order.
// Inputs not started before ctx is cancelled are reported with ctx's error.
func (b *BatchProcessor) ProcessInputs(ctx context.Context, inputs []model.Input) []*GradeResult {
	if len(inputs) == 0 {
		return []*GradeResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, in := range inputs {
		pool.Submit(&GradeJob{Index: i, Input: in, Evaluator: b.evaluator})
	}

	results := make([]*GradeResult, len(inputs))
	for _, r := range pool.Wait() {
		gr := r.(*GradeResult)
		results[gr.Index] = gr
	}

	for i, r := range results {
		if r != nil {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		results[i] = &GradeResult{Index: i, ID: inputs[i].ID, Error: fmt.Errorf("evaluate %q: %w", inputs[i].ID, err)}
	}

	return results
}

// ReadInputsFromFile reads grading inputs from a JSONL file
func ReadInputsFromFile(filePath string) ([]model.Input, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadInputs(file)
}

// ReadInputs reads one JSON object per line ({"id","output","context"}).
// Empty lines and lines starting with # are skipped. Inputs without an id
// are named after their line number; a repeated id is an error.
func ReadInputs(r io.Reader) ([]model.Input, error) {
	var inputs []model.Input
	seen := make(map[string]int)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var in model.Input
		if err := json.Unmarshal([]byte(line), &in); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if in.ID == "" {
			in.ID = fmt.Sprintf("line-%d", lineNo)
		}
		if first, dup := seen[in.ID]; dup {
			return nil, fmt.Errorf("line %d: duplicate id %q (first on line %d)", lineNo, in.ID, first)
		}
		seen[in.ID] = lineNo

		inputs = append(inputs, in)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan inputs: %w", err)
	}

	return inputs, nil
}

// Failed returns the results that carry an error, sorted by input order
func Failed(results []*GradeResult) []*GradeResult {
	var failed []*GradeResult
	for _, r := range results {
		if r.Error != nil {
			failed = append(failed, r)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Index < failed[j].Index })
	return failed
}
