package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/druarnfield/mantis-core-sub001/internal/cost"
	"github.com/druarnfield/mantis-core-sub001/internal/logical"
	"github.com/druarnfield/mantis-core-sub001/internal/physical"
	"github.com/druarnfield/mantis-core-sub001/internal/planner"
	"github.com/druarnfield/mantis-core-sub001/internal/sqlir"
	"github.com/druarnfield/mantis-core-sub001/internal/statstore"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Dialect    string // target SQL dialect
	Stats      string // statistics snapshot path
	Output     string // output file path
	NoFallback bool   // disable the self-join fallback
}

// CompileResult is the compile command's JSON payload.
type CompileResult struct {
	SessionID string  `json:"session_id"`
	SQL       string  `json:"sql"`
	Dialect   string  `json:"dialect"`
	TotalCost float64 `json:"total_cost"`
	Rows      float64 `json:"estimated_rows"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <model-dir> <report-file>",
		Short: "Compile a report against a semantic model into SQL",
		Long: `Compile a YAML report request against a CUE semantic model.

The model directory holds the entity, column, measure and relationship
definitions; the report file names what to show, group and filter. The
output is one SQL statement in the target dialect.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], args[1], cmd)
		},
	}

	addPlanFlags(cmd, &opts.Dialect, &opts.Stats, &opts.NoFallback)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

// addPlanFlags registers the flags shared by compile and explain.
func addPlanFlags(cmd *cobra.Command, dialect, stats *string, noFallback *bool) {
	cmd.Flags().StringVarP(dialect, "dialect", "d", string(sqlir.DialectPostgres), "target SQL dialect (duckdb|postgres|snowflake|mysql56)")
	cmd.Flags().StringVar(stats, "stats", "", "statistics snapshot file (SQLite)")
	cmd.Flags().BoolVar(noFallback, "no-self-join-fallback", false, "fail instead of emitting self-join SQL on dialects without window functions")
}

func runCompile(opts *CompileOptions, modelDir, reportPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	result, err := compileReport(cmd.Context(), formatter, planInputs{
		ModelDir:   modelDir,
		ReportPath: reportPath,
		Dialect:    opts.Dialect,
		Stats:      opts.Stats,
		NoFallback: opts.NoFallback,
	})
	if err != nil {
		return err
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(result.SQL+"\n"), 0644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
		formatter.VerboseLog("Wrote SQL to %s", opts.Output)
	}

	if formatter.Format == "json" {
		return formatter.Success(CompileResult{
			SessionID: result.SessionID.String(),
			SQL:       result.SQL,
			Dialect:   opts.Dialect,
			TotalCost: result.Cost.Total,
			Rows:      result.Cost.Rows,
		})
	}

	fmt.Fprintln(formatter.Writer, result.SQL)
	return nil
}

// planInputs collects everything compile and explain need to run the
// planner once.
type planInputs struct {
	ModelDir   string
	ReportPath string
	Dialect    string
	Stats      string
	NoFallback bool
}

// compileReport loads the model and report, runs the planner and reports
// failures through the formatter. Load and model errors exit with
// ExitCommandError; planning errors are report-fixable and exit with
// ExitFailure.
func compileReport(ctx context.Context, formatter *OutputFormatter, in planInputs) (*planner.Result, error) {
	dialect, err := sqlir.ParseDialect(in.Dialect)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "invalid dialect", err)
	}

	var stats *statstore.Stats
	if in.Stats != "" {
		stats, err = statstore.Load(ctx, in.Stats)
		if err != nil {
			_ = formatter.Error(ErrCodeStatsFailed, err.Error(), nil)
			return nil, WrapExitError(ExitCommandError, "loading statistics snapshot", err)
		}
		formatter.VerboseLog("Loaded statistics for %d table(s)", len(stats.Tables))
	}

	loadResult, loadErrs := LoadModel(in.ModelDir, stats, LoadModeCollectAll)
	if len(loadErrs) > 0 {
		return nil, outputLoadErrors(formatter, loadErrs)
	}
	formatter.VerboseLog("Loaded %d entity(ies), %d measure(s), %d relationship(s) from %d file(s)",
		loadResult.EntityCount, loadResult.MeasureCount, loadResult.ReferenceCount, loadResult.FileCount)

	report, err := LoadReport(in.ReportPath)
	if err != nil {
		code := ErrCodeReportParse
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			code = loadErr.Code
		}
		_ = formatter.Error(code, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "loading report", err)
	}
	formatter.VerboseLog("Compiling report: %s", report.Name)

	var planOpts []planner.Option
	if in.NoFallback {
		planOpts = append(planOpts, planner.WithoutSelfJoinFallback())
	}
	p := planner.New(loadResult.Graph, dialect, planOpts...)

	result, err := p.Compile(report)
	if err != nil {
		_ = formatter.Error(planErrorCode(err), err.Error(), nil)
		return nil, WrapExitError(ExitFailure, "planning failed", err)
	}
	return result, nil
}

// outputLoadErrors renders model-loading errors and returns the command
// error.
func outputLoadErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code := ErrCodeGeneric
			var loadErr *LoadError
			if errors.As(err, &loadErr) {
				code = loadErr.Code
				cliErrors[i] = CLIError{Code: code, Message: loadErr.Message}
				continue
			}
			cliErrors[i] = CLIError{Code: code, Message: err.Error()}
		}
		_ = formatter.Error(cliErrors[0].Code, cliErrors[0].Message, cliErrors)
		return NewExitError(ExitCommandError, fmt.Sprintf("model loading failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Model loading failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			if loadErr.Pos.IsValid() {
				fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
			}
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", loadErr.Code, loadErr.Message)
			continue
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", ErrCodeGeneric, err.Error())
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("model loading failed with %d error(s)", len(errs)))
}

// planErrorCode maps a planning error onto its pipeline error code.
func planErrorCode(err error) string {
	var logicalErr *logical.Error
	if errors.As(err, &logicalErr) {
		return string(logicalErr.Code)
	}
	var physicalErr *physical.Error
	if errors.As(err, &physicalErr) {
		return string(physicalErr.Code)
	}
	var costErr *cost.Error
	if errors.As(err, &costErr) {
		return string(costErr.Code)
	}
	return ErrCodePlanFailed
}
