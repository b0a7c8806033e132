package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"skyroute-hq/skyroute/pkg/config"
	"skyroute-hq/skyroute/pkg/routing"
)

var validateFlags struct {
	routesOnly bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and route table",
	Long: `Validate the gateway configuration file and the route table it
references without starting the gateway.

Examples:
  # Validate the default config
  skyroute validate

  # Validate a specific config
  skyroute validate --config /etc/skyroute/config.yaml

  # Validate only the route table
  skyroute validate --routes-only`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.routesOnly, "routes-only", false, "validate only the route table")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !validateFlags.routesOnly {
		if err := config.Validate(cfg); err != nil {
			return err
		}
		fmt.Println("✓ Configuration valid")
	}

	table, err := routing.LoadTable(cfg.Routes.File)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Route table valid (%d routes)\n", table.Len())

	return nil
}
