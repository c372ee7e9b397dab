// Package cli implements the greencredits command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greencredits/greencredits/internal/daemon"
	"github.com/greencredits/greencredits/internal/domain"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

var homeDir string

var rootCmd = &cobra.Command{
	Use:   "greencredits",
	Short: "Waste reporting with green credits and badges",
	Long: `GreenCredits lets citizens report waste and earn credits and badges,
while municipal staff triage and resolve reports.

Run 'greencredits serve' to start the API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "Config and data directory (default $GREENCREDITS_HOME or ~/.greencredits)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func home() string {
	if homeDir != "" {
		return homeDir
	}
	return daemon.Home()
}

// openPersistentStore opens the configured store for offline commands. The
// memory backend holds nothing outside a running server, so it is refused.
func openPersistentStore() (domain.Store, daemon.Config, error) {
	cfg, err := daemon.Load(home())
	if err != nil {
		return nil, cfg, err
	}
	if cfg.Storage.Backend != daemon.BackendSQLite {
		return nil, cfg, fmt.Errorf("storage backend is %q; offline commands need %q (set [storage].backend or %s)",
			cfg.Storage.Backend, daemon.BackendSQLite, daemon.EnvStorage)
	}
	store, err := daemon.OpenStore(cfg.Storage)
	return store, cfg, err
}
