package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// output is the report destination shared by the reporting commands.
type output struct {
	format     string
	reportFile string
	writer     io.Writer
}

func (x *output) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "output",
			Usage:       "Report format [text|json]",
			Value:       outputText,
			Sources:     cli.EnvVars("OCTOMEND_OUTPUT"),
			Destination: &x.format,
		},
		&cli.StringFlag{
			Name:        "report-file",
			Usage:       "Also write the JSON report to this file",
			Sources:     cli.EnvVars("OCTOMEND_REPORT_FILE"),
			Destination: &x.reportFile,
		},
	}
}

func (x *output) validate() error {
	if x.format != outputText && x.format != outputJSON {
		return goerr.Wrap(types.ErrInvalidOption, "output must be text or json", goerr.V("output", x.format))
	}
	return nil
}

func (x *output) w() io.Writer {
	if x.writer != nil {
		return x.writer
	}
	return os.Stdout
}

func (x *output) write(v any, text func(io.Writer)) error {
	if x.reportFile != "" {
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return goerr.Wrap(err, "failed to marshal report")
		}
		if err := os.WriteFile(filepath.Clean(x.reportFile), raw, 0600); err != nil {
			return goerr.Wrap(err, "failed to write report file", goerr.V("path", x.reportFile))
		}
	}

	if x.format == outputJSON {
		enc := json.NewEncoder(x.w())
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return goerr.Wrap(err, "failed to write report")
		}
		return nil
	}

	text(x.w())
	return nil
}

var (
	headerColor  = color.New(color.FgHiWhite, color.Bold)
	okColor      = color.New(color.FgGreen)
	failColor    = color.New(color.FgRed)
	skipColor    = color.New(color.FgYellow)
	subtextColor = color.New(color.FgHiBlack)
)

// runSummary is the printed result of one cycle.
type runSummary struct {
	Run             *model.ScheduledRun      `json:"run"`
	Tasks           []*model.RemediationTask `json:"tasks"`
	DroppedTriggers int64                    `json:"dropped_triggers"`
}

func printRunSummary(w io.Writer, s *runSummary) {
	run := s.Run
	mode := "apply"
	if run.DryRun {
		mode = "dry-run"
	}

	headerColor.Fprintf(w, "Run %s (%s, %s)\n", run.ID, run.Trigger, mode)
	fmt.Fprintf(w, "  attempted: %d\n", run.TasksAttempted)
	okColor.Fprintf(w, "  succeeded: %d\n", run.TasksSucceeded)
	failColor.Fprintf(w, "  failed:    %d\n", run.TasksFailed)
	skipColor.Fprintf(w, "  skipped:   %d\n", run.TasksSkipped)
	if s.DroppedTriggers > 0 {
		fmt.Fprintf(w, "  dropped triggers: %d\n", s.DroppedTriggers)
	}

	if len(s.Tasks) > 0 {
		headerColor.Fprintln(w, "Tasks")
		for _, task := range s.Tasks {
			c := okColor
			switch task.Status {
			case types.TaskFailed, types.TaskInFlight:
				c = failColor
			case types.TaskSkipped:
				c = skipColor
			}
			c.Fprintf(w, "  %-9s", task.Status)
			fmt.Fprintf(w, " %s %s", task.Kind, task.TargetEntityID)
			if task.Reason != "" {
				subtextColor.Fprintf(w, " (%s)", task.Reason)
			}
			fmt.Fprintln(w)
		}
	}

	if len(run.GapNotes) > 0 {
		headerColor.Fprintln(w, "Gap notes")
		for _, note := range run.GapNotes {
			fmt.Fprintf(w, "  %s: %s\n", note.Target, note.Note)
		}
	}

	printFailures(w, run.AuthFailures, run.DiscoveryErrors)
	if run.FatalError != "" {
		failColor.Fprintf(w, "Cycle aborted: %s\n", run.FatalError)
	}
}

func printAuditReport(w io.Writer, report *model.AuditReport) {
	headerColor.Fprintf(w, "Repositories (%d)\n", len(report.Repositories))
	for _, repo := range report.Repositories {
		fmt.Fprintf(w, "  %s [%s]", repo.ID, repo.State)
		if repo.Canonical {
			okColor.Fprint(w, " canonical")
		}
		if repo.DuplicateOf != "" {
			skipColor.Fprintf(w, " duplicate of %s", repo.DuplicateOf)
		}
		fmt.Fprintln(w)
		subtextColor.Fprintf(w, "    open PRs: %d, unmerged branches: %d, stale branches: %d\n",
			repo.OpenPullRequests, repo.BranchesWithUnmergedWork, repo.StaleBranches)
	}

	headerColor.Fprintf(w, "Integrations (%d)\n", len(report.Integrations))
	for _, ig := range report.Integrations {
		c := skipColor
		switch ig.ActivationState {
		case types.ActivationActive:
			c = okColor
		case types.ActivationFailed:
			c = failColor
		}
		fmt.Fprintf(w, "  %s ", ig.ID)
		c.Fprintf(w, "%s", ig.ActivationState)
		if ig.LastError != "" {
			subtextColor.Fprintf(w, " (%s)", ig.LastError)
		}
		fmt.Fprintln(w)
	}

	headerColor.Fprintf(w, "Planned tasks (%d)\n", len(report.PlannedTasks))
	for _, task := range report.PlannedTasks {
		fmt.Fprintf(w, "  %s %s\n", task.Kind, task.TargetEntityID)
	}

	printFailures(w, report.AuthFailures, report.DiscoveryErrors)
}

func printFailures(w io.Writer, authFailures []types.ProviderTag, discoveryErrors []string) {
	for _, provider := range authFailures {
		failColor.Fprintf(w, "Authentication failed: %s\n", provider)
	}
	for _, msg := range discoveryErrors {
		failColor.Fprintf(w, "Discovery error: %s\n", msg)
	}
}
