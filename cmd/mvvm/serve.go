package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/mvvm"
	"github.com/aretw0/mvvm/internal/demo"
	httpAdapter "github.com/aretw0/mvvm/pkg/adapters/http"
	redisAdapter "github.com/aretw0/mvvm/pkg/adapters/redis"
	"github.com/aretw0/mvvm/pkg/observability"
	"github.com/aretw0/mvvm/pkg/viewmodel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the transfer view-model over HTTP",
	Long: `Starts the main loop and exposes the transfer view-model as a JSON/SSE API
with Prometheus metrics. With redis.addr set, busy changes are shared with peer processes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.HTTP.Addr, _ = cmd.Flags().GetString("addr")
		}
		opts, err := runtimeOptions(cfg, logger)
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics := observability.NewMetrics(reg)

		rt := mvvm.New(append(opts, mvvm.WithMetrics(metrics))...)
		tr := demo.NewTransfer(rt,
			demo.WithSteps(cfg.Demo.Steps),
			demo.WithInterval(cfg.Demo.Interval),
			demo.WithCommandHooks(metrics.CommandHooks),
		)
		defer tr.Dispose()

		api := httpAdapter.NewServer(tr,
			httpAdapter.WithCommand("start", tr.StartCommand()),
			httpAdapter.WithCommand("cancel", tr.CancelCommand()),
			httpAdapter.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
			httpAdapter.WithLogger(logger),
		)
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           api,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return rt.Run(gctx)
		})

		g.Go(func() error {
			logger.Info("Starting mvvm server", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			api.Close()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				return srv.Close()
			}
			return nil
		})

		if cfg.Redis.Addr != "" {
			client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
			defer client.Close()

			bridge := redisAdapter.NewRequeryBridge(client, rt.Requery(),
				redisAdapter.WithChannel(cfg.Redis.Channel),
				redisAdapter.WithLogger(logger),
			)
			g.Go(func() error {
				return bridge.Run(gctx)
			})

			unsubscribe := tr.Subscribe(func(e viewmodel.PropertyChanged) {
				if e.Name != viewmodel.BusyProperty {
					return
				}
				// Publishing must not block the main loop.
				go func() {
					if err := bridge.Broadcast(gctx); err != nil {
						logger.Warn("Requery broadcast failed", "err", err)
					}
				}()
			})
			defer unsubscribe()
		}

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("mvvm server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
}
