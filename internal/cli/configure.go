package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arpith/higate/internal/config"
)

var (
	configureConsoleURL string
	configureUsername   string
	configurePassword   string
	configureDeadline   int
	configureGatewayKey string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write the higate configuration file",
	Long: `Write the higate configuration file from flags, keeping defaults
for anything not provided. Existing settings in the file are preserved.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&configureConsoleURL, "console-url", "", "Higress console base URL")
	configureCmd.Flags().StringVar(&configureUsername, "username", "", "Higress console username")
	configureCmd.Flags().StringVar(&configurePassword, "password", "", "Higress console password")
	configureCmd.Flags().IntVar(&configureDeadline, "confirm-deadline", 0, "confirmation deadline in seconds")
	configureCmd.Flags().StringVar(&configureGatewayKey, "gateway-secret", "", "gateway shared secret")

	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if configureConsoleURL != "" {
		cfg.Higress.BaseURL = configureConsoleURL
	}
	if configureUsername != "" {
		cfg.Higress.Username = configureUsername
	}
	if configurePassword != "" {
		cfg.Higress.Password = configurePassword
	}
	if configureDeadline > 0 {
		cfg.Confirm.DeadlineSeconds = configureDeadline
	}
	if configureGatewayKey != "" {
		cfg.Gateway.SharedSecret = configureGatewayKey
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	path, err := loader.Path()
	if err != nil {
		return err
	}
	fmt.Printf("Configuration saved to: %s\n", path)
	fmt.Println("Start the daemon with: higate serve")

	return nil
}
