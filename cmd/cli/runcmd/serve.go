package runcmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"prowfetch/internal/api"
	"prowfetch/internal/config"
	"prowfetch/internal/crawler"
	"prowfetch/internal/models"
	"prowfetch/internal/report"
)

var ServeCmd = &cobra.Command{
	Use:   "serve <job-name>",
	Short: "Serve a live failed-build report over HTTP",
	Long: `Serve runs the crawl pipeline for the named job and serves the resulting
report as an HTML page and as JSON. The report is refreshed on the configured
cron schedule so repeat page loads stay cheap.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		conf := config.FromCobraCmd(cmd)
		zerolog.SetGlobalLevel(conf.Level())

		jobName := args[0]
		port, _ := cmd.Flags().GetInt("port")
		hoursBack, _ := cmd.Flags().GetInt("hours-back")
		if port == 0 {
			port = conf.Server.Port
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store := mustStore(conf, true)
		defer closeStore(store)

		pipeline := crawler.NewPipeline(conf, store)
		run := func(ctx context.Context) (*report.Report, error) {
			session, err := pipeline.Run(ctx, crawler.RunInput{
				JobName: jobName,
				Options: models.RunOptions{
					Resolve:   true,
					HoursBack: hoursBack,
					Output:    models.OutputFull,
					UseCache:  true,
				},
			})
			if err != nil {
				return nil, err
			}
			return report.Build(session), nil
		}

		srv, err := api.New(ctx, run, conf.Server.RefreshCron)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not create report server")
		}
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Str("job", jobName).Msg("Initial crawl failed")
		}
		defer srv.Stop()

		addr := fmt.Sprintf("%s:%d", conf.Server.Host, port)
		httpServer := &http.Server{Addr: addr, Handler: srv}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", addr).Str("job", jobName).Msg("Report server listening")
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Report server stopped unexpectedly")
			}
		case <-ctx.Done():
			log.Info().Msg("Received shutdown signal, draining...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Could not shut down server cleanly")
				os.Exit(1)
			}
		}
	},
}

func init() {
	ServeCmd.Flags().IntP("port", "p", 0, "port to listen on (defaults to config)")
	ServeCmd.Flags().Int("hours-back", 0, "only consider failures started within the last N hours (0 = all)")
}
