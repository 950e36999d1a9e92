package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/order-resolution/internal/config"
	"github.com/garyjia/order-resolution/internal/container"
	"github.com/garyjia/order-resolution/pkg/utils"
)

var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "resolutionctl",
		Short:         "Operator tooling for the order resolution service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to config file")

	open := func() (*container.Container, error) {
		return openContainer(configPath)
	}
	rootCmd.AddCommand(migrateCmd(open))
	rootCmd.AddCommand(replayFallbackCmd(open))
	rootCmd.AddCommand(exportLedgerCmd(open))
	rootCmd.AddCommand(payrollCmd(open))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type opener func() (*container.Container, error)

// openContainer loads config and opens storage and services. Workers and
// transports are left stopped.
func openContainer(configPath string) (*container.Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: "stderr",
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return nil, err
	}
	if err := c.Open(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func closeContainer(c *container.Container) {
	if err := c.Close(); err != nil {
		c.Logger().Error("Container close failed", zap.Error(err))
	}
	_ = c.Logger().Sync()
}
