package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

const shutdownTimeout = 30 * time.Second

var metricsAddr string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the scheduler and serve metrics until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if metricsAddr != "" {
			cfg.Metrics.Addr = metricsAddr
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return a.run(ctx)
	},
}

func init() {
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Listen address for /metrics and /healthz (overrides config)")
}

func (a *app) run(ctx context.Context) error {
	if err := a.startNodeIndex(ctx); err != nil {
		return err
	}

	a.log.Infow("drift monitor starting",
		"version", Version,
		"monitors", a.scheduler.Names(),
		"metricsAddr", a.cfg.Metrics.Addr,
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.exporter.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	server := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		klog.Infof("Serving metrics on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		a.scheduler.Start(gctx)
		for _, name := range a.scheduler.Names() {
			klog.Infof("Monitor %s next run at %s", name, a.scheduler.Next(name).Format(time.RFC3339))
		}
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		select {
		case <-a.scheduler.Stop().Done():
			klog.Info("All running monitor cycles finished")
		case <-shutdownCtx.Done():
			klog.Warning("Timed out waiting for running monitor cycles")
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	klog.Info("Drift monitor stopped")
	return nil
}
