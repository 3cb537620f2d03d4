package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hyperterse/querygate/core/cli/internal"
	"github.com/hyperterse/querygate/core/logger"
	"github.com/hyperterse/querygate/core/parser"
	"github.com/hyperterse/querygate/core/runtime/server"
)

var (
	port  string
	watch bool
)

// serveCmd runs the HTTP gateway
var serveCmd = &cobra.Command{
	Use:           "serve",
	Short:         "Serve the query gateway over HTTP",
	RunE:          runServe,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&port, "port", "p", "", "Server port (overrides config file and PORT env var)")
	serveCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload data sources when the config file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.New("serve")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log.Infof("Configuration loaded (%d data sources)", len(cfg.DataSources))

	rt, err := server.NewRuntime(cfg,
		server.WithPort(internal.ResolvePort(port, cfg)),
		server.WithVersion(GetVersion()),
	)
	if err != nil {
		return logger.WithTag("serve", err)
	}
	if err := rt.StartAsync(); err != nil {
		return logger.WithTag("serve", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watch {
		go func() {
			err := parser.Watch(ctx, configPath(), func(next *parser.Config) {
				_ = rt.ReloadCatalog(next)
			})
			if err != nil {
				log.Warnf("Config watch stopped: %v", err)
			}
		}()
	}

	<-ctx.Done()
	return rt.Stop()
}
