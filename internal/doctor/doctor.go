// Package doctor runs preflight connectivity diagnostics: it verifies the
// configuration is complete, the control plane is reachable with the supplied
// token, and the target instance and network actually exist, before a hunt
// spends any quota on ports.
package doctor

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/iphunt/iphunt/internal/cloud"
	"github.com/iphunt/iphunt/internal/config"
)

// API is the slice of the control-plane client the diagnostics consume.
type API interface {
	ListNetworks(ctx context.Context) ([]cloud.Network, error)
	GetServer(ctx context.Context, id string) (cloud.Server, error)
}

// Doctor orchestrates the preflight checks.
type Doctor struct {
	checkers []Checker
	output   *Output
	options  Options
}

// New creates a Doctor with the default checkers for the given configuration.
func New(cfg *config.Config, api API, opts Options) *Doctor {
	d := &Doctor{options: opts}

	useColors := !opts.JSON && isTerminal(os.Stdout)
	d.output = NewOutput(os.Stdout, useColors)

	d.checkers = []Checker{
		NewConfigChecker(cfg),
		NewRangeChecker(cfg),
		NewAuthChecker(api),
		NewServerChecker(api, cfg.Hunt.ServerID),
		NewNetworkChecker(api, cfg.Hunt.NetworkID),
		NewTelegramChecker(cfg),
	}

	return d
}

// NewWithWriter creates a Doctor with a custom writer (useful for testing)
func NewWithWriter(cfg *config.Config, api API, opts Options, w io.Writer, useColors bool) *Doctor {
	d := New(cfg, api, opts)
	d.output = NewOutput(w, useColors)
	return d
}

// AddChecker adds a custom checker
func (d *Doctor) AddChecker(c Checker) {
	d.checkers = append(d.checkers, c)
}

// Run executes all checks and returns a report
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		Checks: make([]CheckResult, 0, len(d.checkers)),
	}

	checkers := d.filterCheckers()

	if d.options.JSON {
		for _, checker := range checkers {
			result := checker.Check(ctx)
			report.Checks = append(report.Checks, result)
			d.updateSummary(&report.Summary, result)
		}
		return report, d.outputJSON(report)
	}

	d.output.Header()

	for i, checker := range checkers {
		d.output.CheckStart(i+1, len(checkers), checker.Name())
		result := checker.Check(ctx)
		d.output.CheckResult(result)
		report.Checks = append(report.Checks, result)
		d.updateSummary(&report.Summary, result)
	}

	d.output.Summary(report.Summary)

	return report, nil
}

// filterCheckers returns checkers filtered by category if specified
func (d *Doctor) filterCheckers() []Checker {
	if d.options.Category == "" {
		return d.checkers
	}

	filtered := make([]Checker, 0)
	for _, c := range d.checkers {
		if c.Category() == d.options.Category {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// updateSummary updates the summary based on a check result
func (d *Doctor) updateSummary(summary *Summary, result CheckResult) {
	summary.Total++
	switch result.Status {
	case StatusOK:
		summary.Passed++
	case StatusError:
		summary.Failed++
	case StatusWarning:
		summary.Warned++
	case StatusSkipped:
		summary.Skipped++
	}
}

// outputJSON outputs the report as JSON
func (d *Doctor) outputJSON(report *Report) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// isTerminal checks if the writer is a terminal
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		fi, err := f.Stat()
		if err != nil {
			return false
		}
		return (fi.Mode() & os.ModeCharDevice) != 0
	}
	return false
}
