package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/truckeval/internal/grade"
	"github.com/ppiankov/truckeval/internal/model"
	"github.com/ppiankov/truckeval/internal/worker"
)

var (
	checkers     []string
	jsonlPath    string
	gradeVars    map[string]string
	concurrency  int
	gradeTimeout time.Duration
	strict       bool
)

// gradeCmd represents the grade command
var gradeCmd = &cobra.Command{
	Use:   "grade [text]",
	Short: "Grade assistant output against the policy",
	Long: `Grade runs the policy graders over one assistant answer and prints a JSON
report with the verdict of every grader, an overall pass flag and the mean
score.

The answer is taken from the argument, or from stdin when no argument is
given. With --jsonl, one {"id","output","context"} object per line is graded
in parallel and one report per line is printed.

Available graders: ` + strings.Join(grade.Names(), ", ") + `

Example:
  truckeval grade "Der TGX bietet Euro 6 und 480 PS."
  echo "Valid: true" | truckeval grade --checker validity
  truckeval grade --jsonl outputs.jsonl --concurrency 8 --strict`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGrade,
}

func init() {
	rootCmd.AddCommand(gradeCmd)

	gradeCmd.Flags().StringSliceVar(&checkers, "checker", nil, "graders to run (default: "+strings.Join(grade.DefaultNames, ",")+")")
	gradeCmd.Flags().StringVar(&jsonlPath, "jsonl", "", "grade a JSONL file of inputs (- for stdin)")
	gradeCmd.Flags().StringToStringVar(&gradeVars, "var", nil, "prompt variable passed as context (key=value, repeatable)")
	gradeCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers in --jsonl mode")
	gradeCmd.Flags().DurationVar(&gradeTimeout, "timeout", 5*time.Minute, "total timeout for grading")
	gradeCmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any input fails the policy")
}

func runGrade(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), gradeTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := loadPolicy()
	if err != nil {
		return err
	}
	suite, err := grade.NewSuiteFromNames(table, checkers...)
	if err != nil {
		return err
	}

	if jsonlPath != "" {
		if len(args) > 0 {
			return fmt.Errorf("--jsonl cannot be combined with a text argument")
		}
		return runGradeBatch(ctx, cmd, suite)
	}

	text, err := readText(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	in := model.Input{Output: text}
	if len(gradeVars) > 0 {
		in.Context = map[string]any{"vars": stringMap(gradeVars)}
	}

	report, err := suite.Evaluate(ctx, in)
	if err != nil {
		return err
	}

	if err := writeJSON(cmd.OutOrStdout(), report, cfg.Output.Pretty); err != nil {
		return err
	}
	if strict && !report.Pass {
		return fmt.Errorf("output failed the policy (score %.2f)", report.Score)
	}
	return nil
}

func runGradeBatch(ctx context.Context, cmd *cobra.Command, suite *grade.Suite) error {
	var (
		inputs []model.Input
		err    error
	)
	if jsonlPath == "-" {
		inputs, err = worker.ReadInputs(cmd.InOrStdin())
	} else {
		inputs, err = worker.ReadInputsFromFile(jsonlPath)
	}
	if err != nil {
		return fmt.Errorf("read inputs: %w", err)
	}

	errOut := cmd.ErrOrStderr()
	if verbose {
		fmt.Fprintf(errOut, "\n")
		fmt.Fprintf(errOut, "═══════════════════════════════════════════════════════════\n")
		fmt.Fprintf(errOut, "  truckeval Batch Grading\n")
		fmt.Fprintf(errOut, "═══════════════════════════════════════════════════════════\n")
		fmt.Fprintf(errOut, "\n")
		fmt.Fprintf(errOut, "  Input:     %s\n", jsonlPath)
		fmt.Fprintf(errOut, "  Inputs:    %d\n", len(inputs))
		fmt.Fprintf(errOut, "  Workers:   %d\n", concurrency)
		fmt.Fprintf(errOut, "  Graders:   %s\n", strings.Join(graderNames(suite), ", "))
		fmt.Fprintf(errOut, "\n")
	}

	processor := worker.NewBatchProcessor(suite, concurrency)
	results := processor.ProcessInputs(ctx, inputs)

	passed, failed := 0, 0
	out := cmd.OutOrStdout()
	for _, result := range results {
		if result.Error != nil {
			continue
		}
		if result.Report.Pass {
			passed++
		} else {
			failed++
		}
		if err := writeJSON(out, result.Report, false); err != nil {
			return err
		}
	}

	errored := worker.Failed(results)
	for _, result := range errored {
		fmt.Fprintf(errOut, "✗ %s: %v\n", result.ID, result.Error)
	}

	fmt.Fprintf(errOut, "\n")
	fmt.Fprintf(errOut, "  Total:    %d\n", len(results))
	fmt.Fprintf(errOut, "  Passed:   %d\n", passed)
	fmt.Fprintf(errOut, "  Failed:   %d\n", failed)
	fmt.Fprintf(errOut, "  Errors:   %d\n", len(errored))
	fmt.Fprintf(errOut, "\n")

	if len(errored) > 0 {
		return fmt.Errorf("%d of %d inputs could not be graded", len(errored), len(results))
	}
	if strict && failed > 0 {
		return fmt.Errorf("%d of %d inputs failed the policy", failed, len(results))
	}
	return nil
}

func graderNames(suite *grade.Suite) []string {
	var names []string
	for _, g := range suite.Graders() {
		names = append(names, g.Name())
	}
	return names
}

// readText returns the text argument, or all of stdin when there is none
func readText(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func stringMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
