package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"electoral-service/internal/config"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "electoral.yaml"

// env is filled before any subcommand runs.
type env struct {
	cfg    config.Config
	logger hclog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	e := &env{}

	root := &cobra.Command{
		Use:           "electoral",
		Short:         "Electoral middle tier: report proxy, notification hub and batch orchestrator",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, cmd.Flag("config").Changed)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.logger = hclog.New(&hclog.LoggerOptions{
				Name:       "electoral",
				Level:      hclog.LevelFromString(cfg.Log.Level),
				JSONFormat: cfg.Log.JSON,
				Output:     os.Stderr,
			})
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Path to the YAML configuration file")

	root.AddCommand(
		newProxyCmd(e),
		newHubCmd(e),
		newOrchestratorCmd(e),
		newObserveCmd(e),
	)
	return root
}

func defaultConfigPath() string {
	if p := os.Getenv("ELECTORAL_CONFIG"); p != "" {
		return p
	}
	return defaultConfigFile
}

// loadConfig reads path. A missing file is only an error when it was asked
// for explicitly; otherwise the defaults apply.
func loadConfig(path string, explicit bool) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) && !explicit && os.Getenv("ELECTORAL_CONFIG") == "" {
		return config.Default(), nil
	}
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
