package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iphunt/iphunt/internal/cloud"
	"github.com/iphunt/iphunt/internal/config"
	"github.com/iphunt/iphunt/internal/hunter"
	"github.com/iphunt/iphunt/internal/logging"
	"github.com/iphunt/iphunt/internal/metrics"
	"github.com/iphunt/iphunt/internal/notify"
	"github.com/iphunt/iphunt/internal/util"
)

var (
	huntMaxAttempts int
	huntTimeout     string
)

func NewHuntCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hunt",
		Short: "Hunt for an address inside the configured ranges",
		Long: `Provision network interfaces against the target instance until one is
assigned an address inside a configured range, keep it, and tear down
everything else. Leftovers from prior runs are reconciled first.

Examples:
  iphunt hunt                      # Run with the configured bounds
  iphunt hunt --max-attempts 50    # Give up after 50 ports
  iphunt hunt --timeout 30m        # Give up after 30 minutes`,
		RunE: runHunt,
	}

	cmd.Flags().IntVar(&huntMaxAttempts, "max-attempts", 0, "Total attempts before giving up (0 = use config)")
	cmd.Flags().StringVar(&huntTimeout, "timeout", "", "Overall hunt deadline, e.g. 30m (empty = use config)")

	return cmd
}

func runHunt(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(DefaultConfigPath())
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	if huntMaxAttempts > 0 {
		cfg.Hunt.MaxAttempts = huntMaxAttempts
	}
	if huntTimeout != "" {
		d, err := time.ParseDuration(huntTimeout)
		if err != nil {
			return fmt.Errorf("%w: --timeout: %v", config.ErrInvalid, err)
		}
		cfg.Hunt.HuntTimeout = d
	}

	ranges, err := cfg.RangeSet()
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		util.SafeGo("metrics-listener", func() {
			m.Serve(ctx, cfg.Metrics.Addr)
		})
	}

	api := cloud.New(cfg.Cloud, cloud.WithRecorder(m))
	h := hunter.New(api, cfg, ranges, notify.FromConfig(cfg.Telegram), m, nil)

	// First signal asks the engine to wind down; in-flight teardowns still
	// run on their detached context. A second signal kills the process.
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		logging.Warn("shutdown requested, winding down")
		h.Stop().Trip()
		cancel()
		<-sigChan
		logging.Error("second signal, exiting immediately")
		os.Exit(1)
	}()

	result, err := h.Run(ctx)
	renderHuntResult(result)
	return err
}

// renderHuntResult prints the run outcome for humans; logs carry the same
// information for machines.
func renderHuntResult(result hunter.Result) {
	if !isTTY() {
		return
	}

	if result.Matched {
		body := fmt.Sprintf("%s\n%s%s\n%s%s\n%s%d",
			StyleSuccess.Render("Address captured"),
			StyleLabel.Render("Address"), StyleValue.Render(result.Address),
			StyleLabel.Render("Port"), StyleValue.Render(result.PortID),
			StyleLabel.Render("Attempts"), result.Attempts,
		)
		fmt.Println(StyleBoxSuccess.Render(body))
		if len(result.Matches) > 1 {
			fmt.Println(StyleWarning.Render(
				fmt.Sprintf("%d interfaces matched simultaneously; the extras were kept and need manual review", len(result.Matches))))
		}
		return
	}

	body := fmt.Sprintf("%s\n%s%d",
		StyleError.Render("No address captured"),
		StyleLabel.Render("Attempts"), result.Attempts,
	)
	fmt.Println(StyleBoxError.Render(body))
}
