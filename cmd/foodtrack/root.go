package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/foodtrack/internal/config"
	"github.com/sakif/foodtrack/internal/logger"
	"github.com/sakif/foodtrack/internal/server"
	"github.com/sakif/foodtrack/internal/storage"
)

// cli carries what every subcommand needs. open fills it before a command
// runs; the caller of Execute releases the store with close, which also
// covers commands that fail.
type cli struct {
	configFile string

	cfg      *config.Config
	logger   *slog.Logger
	store    storage.Store
	services *server.Services
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "foodtrack",
		Short: "Admin tools for the food tracking server",
		Long: `foodtrack manages accounts and cycles directly in the store.

Configuration is read exactly like the server reads it: .env, then the
--config YAML file (or CONFIG_FILE), then environment variables.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.open,
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "YAML config file (default: $CONFIG_FILE)")

	root.AddCommand(
		newUsersCmd(c),
		newExportCmd(c),
		newRemindCmd(c),
		newRestartCmd(c),
	)
	return root
}

func (c *cli) open(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

	store, err := storage.Open(cfg, c.logger)
	if err != nil {
		return err
	}
	services, err := server.NewServices(cfg, store, c.logger)
	if err != nil {
		store.Close()
		return err
	}
	c.store = store
	c.services = services
	return nil
}

func (c *cli) close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}
