package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Dialect    string
	Stats      string
	NoFallback bool
}

// ExplainResult is the explain command's JSON payload.
type ExplainResult struct {
	SessionID  string        `json:"session_id"`
	SQL        string        `json:"sql"`
	Dialect    string        `json:"dialect"`
	Cost       ExplainCost   `json:"cost"`
	Candidates []ExplainCost `json:"candidates"`
	Chosen     int           `json:"chosen"`
	Plan       string        `json:"plan"`
}

// ExplainCost is one candidate's cost breakdown.
type ExplainCost struct {
	Total  float64 `json:"total"`
	Rows   float64 `json:"rows"`
	CPU    float64 `json:"cpu"`
	IO     float64 `json:"io"`
	Memory float64 `json:"memory"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <model-dir> <report-file>",
		Short: "Show the costed plan for a report",
		Long: `Compile a report and show the chosen plan instead of just the SQL.

The output lists every candidate's cost, marks the chosen one, and renders
the physical operator tree alongside the emitted statement.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], args[1], cmd)
		},
	}

	addPlanFlags(cmd, &opts.Dialect, &opts.Stats, &opts.NoFallback)

	return cmd
}

func runExplain(opts *ExplainOptions, modelDir, reportPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
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

	if formatter.Format == "json" {
		candidates := make([]ExplainCost, len(result.CandidateCosts))
		for i, c := range result.CandidateCosts {
			candidates[i] = ExplainCost{Total: c.Total, Rows: c.Rows, CPU: c.CPU, IO: c.IO, Memory: c.Memory}
		}
		return formatter.Success(ExplainResult{
			SessionID:  result.SessionID.String(),
			SQL:        result.SQL,
			Dialect:    opts.Dialect,
			Cost:       ExplainCost{Total: result.Cost.Total, Rows: result.Cost.Rows, CPU: result.Cost.CPU, IO: result.Cost.IO, Memory: result.Cost.Memory},
			Candidates: candidates,
			Chosen:     result.ChosenIndex,
			Plan:       result.Explain(),
		})
	}

	fmt.Fprint(formatter.Writer, result.Explain())
	fmt.Fprintln(formatter.Writer, "sql:")
	fmt.Fprintf(formatter.Writer, "  %s\n", result.SQL)
	return nil
}
