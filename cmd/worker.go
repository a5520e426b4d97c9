package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that periodically audits recurring event instances for missing templates`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Dur("interval", a.cfg.Worker.AuditInterval).Msg("Starting integrity audit job")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return errors.Wrap(err, "failed to create scheduler")
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(a.cfg.Worker.AuditInterval),
			gocron.NewTask(func() {
				if _, err := a.service.AuditSeriesIntegrity(ctx, a.cfg.Worker.AuditBatchSize); err != nil {
					log.Error().Err(err).Msg("Integrity audit job failed")
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return errors.Wrap(err, "failed to schedule integrity audit")
		}

		scheduler.Start()
		<-ctx.Done()

		return scheduler.Shutdown()
	})

	// The worker has no API server, so it exposes its own metrics listener.
	if a.cfg.Metrics.Enabled && a.cfg.Metrics.Address != "" {
		metricsServer := &http.Server{
			Addr:              a.cfg.Metrics.Address,
			Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			log.Info().Str("address", metricsServer.Addr).Msg("Starting metrics listener")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics listener error")
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
