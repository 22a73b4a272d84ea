package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dataportal/internal/config"
	"dataportal/internal/logger"
)

// app carries what every command needs once the root command has run.
type app struct {
	envFile string
	cfg     *config.AppConfig
	lggr    logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "dataportal",
		Short:         "Data portal server and model tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.envFile)
			if err != nil {
				return err
			}
			lggr, err := logger.New(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			a.cfg, a.lggr = cfg, lggr
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.lggr != nil {
				_ = a.lggr.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Optional dotenv file loaded before the environment is parsed")

	root.AddCommand(
		a.newServeCmd(),
		a.newSyncCmd(),
		a.newDDLCmd(),
		a.newUserCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
