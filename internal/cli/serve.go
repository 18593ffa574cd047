package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arpith/higate/internal/config"
	"github.com/arpith/higate/internal/daemon"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the higate daemon",
	Long: `Run the higate daemon in the foreground.
The daemon logs into the Higress console, builds the tool catalog, and
serves invocations over the gateway until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	d, err := daemon.New(cfg, loader)
	if err != nil {
		return err
	}

	return d.Run(context.Background())
}
