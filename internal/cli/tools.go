package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/arpith/higate/internal/config"
	"github.com/arpith/higate/pkg/catalog"
	"github.com/arpith/higate/pkg/higress"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tool catalog",
	Long: `List every tool higate exposes, including whether invoking it
requires a confirmation ticket.`,
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// The catalog only needs a client to bind handlers; nothing is called.
	client, err := higress.NewClient(higress.Config{
		BaseURL:       cfg.Higress.BaseURL,
		SessionCookie: "unused",
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		return err
	}

	reg, err := catalog.Build(client)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tCONFIRMATION\tDESCRIPTION")
	for _, info := range reg.List() {
		confirmation := "-"
		if info.Sensitive {
			confirmation = "required"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name, confirmation, info.Description)
	}
	return w.Flush()
}
