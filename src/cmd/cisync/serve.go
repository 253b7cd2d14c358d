package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cisync/src/api"
	"cisync/src/metrics"
	"cisync/src/pipeline"
	"cisync/src/scheduler"
	"cisync/src/worker"
)

const shutdownTimeout = 10 * time.Second

// serveCmd runs the long-lived server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the HTTP API",
	Long: `Checks every configured build on the scheduler's cron spec and syncs
those whose repository moved. Serves /metrics, /healthz and the build API
on server.addr.

In distributed mode (Postgres and Redpanda configured) the process also
consumes sync requests unless --worker=false.

Example:
  cisync serve
  cisync serve --addr :8080 --run-now`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.cfg.Server.Addr
		}
		runNow, _ := cmd.Flags().GetBool("run-now")
		withWorker := a.mode == pipeline.DistributedMode
		if cmd.Flags().Changed("worker") {
			withWorker, _ = cmd.Flags().GetBool("worker")
		}

		metrics.RegisterAll()
		a.log.Info("[Serve] Starting in %s mode", a.mode)

		sched := scheduler.New(a.store, a.pipeline, a.cfg.Scheduler.Concurrency, a.log)
		if runNow {
			if _, err := sched.RunOnce(ctx); err != nil {
				a.log.Error("[Serve] Initial pass failed: %v", err)
			}
		}
		if err := sched.Start(ctx, a.cfg.Scheduler.Spec); err != nil {
			return err
		}
		defer sched.Stop()

		srv := &http.Server{
			Addr:              addr,
			Handler:           api.NewServer(a.pipeline, a.store, a.log).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			a.log.Info("[Serve] HTTP API listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		if withWorker {
			agent := worker.NewAgent(a.broker, a.pipeline, a.store, a.log)
			g.Go(func() error {
				if err := agent.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		}

		err = g.Wait()
		a.log.Info("[Serve] Stopped")
		return err
	},
}

// workerCmd consumes sync requests
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume sync requests from Redpanda",
	Long: `Subscribes to cisync.sync.requested and runs each request against the
shared store. Requests are submitted with 'cisync sync --async'.

Requires redpanda.brokers and, to share state with other processes, database.dsn.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(a.cfg.Redpanda.Brokers) == 0 {
			return fmt.Errorf("worker requires redpanda.brokers (current mode: %s)", a.mode)
		}

		a.log.Info("[Worker] Redpanda brokers: %v", a.cfg.Redpanda.Brokers)
		agent := worker.NewAgent(a.broker, a.pipeline, a.store, a.log)
		if err := agent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("agent error: %w", err)
		}
		a.log.Info("[Worker] Stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default server.addr)")
	serveCmd.Flags().Bool("run-now", false, "Run one pass over all builds before the first scheduled one")
	serveCmd.Flags().Bool("worker", false, "Also consume sync requests (default on in distributed mode)")
}
