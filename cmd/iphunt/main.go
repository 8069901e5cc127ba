package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iphunt/iphunt/cmd/iphunt/commands"
	"github.com/iphunt/iphunt/internal/config"
)

// Exit codes: 0 an address was captured, 1 runtime failure or exhaustion,
// 2 the configuration is invalid.
const (
	exitOK            = 0
	exitFailure       = 1
	exitInvalidConfig = 2
)

var rootCmd = &cobra.Command{
	Use:   "iphunt",
	Short: "Hunt cloud networks for addresses inside target ranges",
	Long: "Provision network interfaces until one lands inside a configured " +
		"address range, keep it, and clean up everything else.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&commands.ConfigPath, "config", "", "Path to config file (default: ~/.iphunt/config.yaml)")
}

func main() {
	rootCmd.AddCommand(commands.NewHuntCmd())
	rootCmd.AddCommand(commands.NewCleanupCmd())
	rootCmd.AddCommand(commands.NewDoctorCmd())
	rootCmd.AddCommand(commands.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, config.ErrInvalid) {
			os.Exit(exitInvalidConfig)
		}
		os.Exit(exitFailure)
	}
	os.Exit(exitOK)
}
