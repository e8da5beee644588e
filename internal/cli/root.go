// Package cli is the command tree of the server binary.
package cli

import (
	"context"
	"fmt"
	"os"

	"realtime-backend/internal/app"
	"realtime-backend/internal/config"
	"realtime-backend/internal/db"
	"realtime-backend/internal/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd builds the root command. Flags are bound into v, so a flag set on
// the command line wins over the environment and the config file.
func NewRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "realtime-backend",
		Short:         "Real-time chat, presence and connection-request server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	_ = v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("database_url", root.PersistentFlags().Lookup("database-url"))

	load := func() (*config.Config, zerolog.Logger, error) {
		cfg, err := config.Load(v, cfgFile)
		if err != nil {
			return nil, zerolog.Nop(), err
		}
		return cfg, logger.New(cfg.LogLevel, cfg.Environment), nil
	}

	root.AddCommand(newServeCmd(v, load), newMigrateCmd(load))
	return root
}

type loader func() (*config.Config, zerolog.Logger, error)

func newServeCmd(v *viper.Viper, load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
	cmd.Flags().String("port", "3001", "HTTP listen port")
	cmd.Flags().String("store", config.DriverPostgres, "store driver (postgres or memory)")
	cmd.Flags().Bool("migrate", false, "apply the schema before serving")
	_ = v.BindPFlag("port", cmd.Flags().Lookup("port"))
	_ = v.BindPFlag("store_driver", cmd.Flags().Lookup("store"))
	_ = v.BindPFlag("auto_migrate", cmd.Flags().Lookup("migrate"))
	return cmd
}

func newMigrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			pool, err := db.Connect(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			log.Info().Msg("schema up to date")
			return nil
		},
	}
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd(config.NewViper()).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
