package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/greencredits/greencredits/internal/daemon"
	"github.com/greencredits/greencredits/internal/logger"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("storage", "", "Storage backend: memory or sqlite (overrides config)")
	serveCmd.Flags().Int("port", 0, "Listen port (overrides config)")
	serveCmd.Flags().Bool("init-config", false, "Write the default config file if none exists")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the GreenCredits HTTP API. Configuration is read from
$GREENCREDITS_HOME/config.toml, then from GREENCREDITS_* environment variables,
then from flags. The server stops cleanly on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	dir := home()

	if initConfig, _ := cmd.Flags().GetBool("init-config"); initConfig {
		path := daemon.ConfigPath(dir)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := daemon.Save(path, daemon.DefaultConfig()); err != nil {
				return fmt.Errorf("write default config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		}
	}

	cfg, err := daemon.Load(dir)
	if err != nil {
		return err
	}
	if backend, _ := cmd.Flags().GetString("storage"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.API.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Initialize(cfg.Log.Level); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Log.Sync()

	d, err := daemon.New(cfg, logger.Log)
	if err != nil {
		logger.Log.Error("failed to start", zap.Error(err))
		return err
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}
