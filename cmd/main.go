package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokconfig "golang.ngrok.com/ngrok/config"

	"standupbot/config"
	"standupbot/utils"
	"standupbot/worker"
)

const shutdownTimeout = 10 * time.Second

var (
	cfg    *config.Config
	logger *zap.Logger

	tunnel bool
)

var rootCmd = &cobra.Command{
	Use:          "standup",
	Short:        "Slack standup bot",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger, err = utils.NewLogger(cfg.LogLevel)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the Slack endpoints",
	Long: `Serves the Slack events, commands and interactions endpoints and the
worker endpoint. With --tunnel (or NGROK_TUNNEL=true) the server is exposed
through an ngrok endpoint instead of a local port; NGROK_AUTHTOKEN must be set.`,
	RunE: runServe,
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume delegated submissions from redis",
	RunE:  runWorker,
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create tables, collections and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStores(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.provision(cmd.Context()); err != nil {
			return err
		}
		logger.Info("provisioned", zap.String("driver", cfg.StoreDriver))
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired records once",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStores(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		return st.sweeper(logger).Sweep(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&tunnel, "tunnel", false, "expose the server through ngrok")
	rootCmd.AddCommand(serveCmd, workerCmd, provisionCmd, sweepCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.stores.needsSweep() {
		sweeper := a.stores.sweeper(logger)
		if err := sweeper.Start(cfg.SweepSchedule); err != nil {
			return err
		}
		defer sweeper.Stop()
	}

	ln, err := listen(ctx, tunnel || cfg.NgrokTunnel)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: a.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func listen(ctx context.Context, viaNgrok bool) (net.Listener, error) {
	if !viaNgrok {
		logger.Info("server running", zap.String("port", cfg.Port))
		return net.Listen("tcp", ":"+cfg.Port)
	}
	ln, err := ngrok.Listen(ctx, ngrokconfig.HTTPEndpoint(), ngrok.WithAuthtokenFromEnv())
	if err != nil {
		return nil, fmt.Errorf("listen: failed to open ngrok tunnel: %w", err)
	}
	logger.Info("tunnel established", zap.String("url", ln.URL()))
	return ln, nil
}

func runWorker(cmd *cobra.Command, args []string) error {
	if cfg.DelegateTransport != config.TransportRedis {
		return fmt.Errorf("worker: DELEGATE_TRANSPORT must be %q, got %q", config.TransportRedis, cfg.DelegateTransport)
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	client, err := utils.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer client.Close()

	return worker.NewConsumer(client, cfg.WorkerQueue, a.router, logger).Run(ctx)
}
