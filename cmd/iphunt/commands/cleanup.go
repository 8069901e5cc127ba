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
	"github.com/iphunt/iphunt/internal/hunter"
	"github.com/iphunt/iphunt/internal/logging"
)

var cleanupDryRun bool

func NewCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove leftover ports without starting a hunt",
		Long: `Run the reconciliation pass on its own: delete unattached orphan ports
and stale extra ports on the target instance. The protected address and
ports attached to other devices are never touched.

Examples:
  iphunt cleanup            # Remove leftovers
  iphunt cleanup --dry-run  # Report what would be removed`,
		RunE: runCleanup,
	}

	cmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Report without deleting anything")

	return cmd
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(DefaultConfigPath())
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		cancel()
	}()

	api := cloud.New(cfg.Cloud)
	r := hunter.NewReconciler(api, cfg.Hunt.ServerID, cfg.Hunt.ProtectedIP, nil)
	r.DryRun = cleanupDryRun

	removed, err := r.Run(ctx)
	if err != nil {
		return err
	}

	if isTTY() {
		if cleanupDryRun {
			fmt.Println(StyleMuted.Render("Dry run: nothing was deleted"))
		} else {
			fmt.Println(StyleSuccess.Render(fmt.Sprintf("Removed %d leftover ports", removed)))
		}
	}
	return nil
}
