package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iphunt/iphunt/internal/cloud"
	"github.com/iphunt/iphunt/internal/config"
	"github.com/iphunt/iphunt/internal/doctor"
)

var (
	doctorJSON     bool
	doctorCategory string
)

func NewDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and control-plane connectivity",
		Long: `Run preflight checks before spending quota on ports.

The doctor command checks:
- Configuration completeness and range validity
- API reachability and token acceptance
- Target instance and external network visibility
- Notification wiring

Examples:
  iphunt doctor                   # Run all checks
  iphunt doctor --json            # Output results as JSON
  iphunt doctor --category cloud  # Only check control-plane access`,
		RunE: runDoctor,
	}

	cmd.Flags().BoolVar(&doctorJSON, "json", false, "Output results as JSON")
	cmd.Flags().StringVar(&doctorCategory, "category", "", "Filter checks by category (config, cloud, notify)")

	return cmd
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		cancel()
	}()

	var category doctor.Category
	if doctorCategory != "" {
		switch doctorCategory {
		case "config":
			category = doctor.CategoryConfig
		case "cloud":
			category = doctor.CategoryCloud
		case "notify":
			category = doctor.CategoryNotify
		default:
			return fmt.Errorf("invalid category: %s (valid: config, cloud, notify)", doctorCategory)
		}
	}

	// The doctor reports an incomplete configuration as a failed check
	// rather than refusing to run.
	cfg, err := config.Load(DefaultConfigPath())
	if err != nil {
		cfg = config.Default()
	}

	api := cloud.New(cfg.Cloud)
	d := doctor.New(cfg, api, doctor.Options{JSON: doctorJSON, Category: category})

	report, err := d.Run(ctx)
	if err != nil {
		return fmt.Errorf("doctor check failed: %w", err)
	}

	if !report.Summary.IsHealthy() && !doctorJSON {
		os.Exit(1)
	}

	return nil
}
