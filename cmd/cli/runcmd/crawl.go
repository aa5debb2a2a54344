package runcmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"prowfetch/internal/archive"
	"prowfetch/internal/config"
	"prowfetch/internal/crawler"
	"prowfetch/internal/models"
	"prowfetch/internal/report"
)

var CrawlCmd = &cobra.Command{
	Use:   "crawl <job-name>",
	Short: "Crawl a job's history and report its failed builds",
	Long: `Crawl fetches the job-history feed for the named job (or loads a snapshot
file), isolates the FAILURE builds, resolves each build's artifact location
and prints a report. With --download-artifacts it also bulk-copies each
resolved artifact tree into a local directory.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		conf := config.FromCobraCmd(cmd)
		zerolog.SetGlobalLevel(conf.Level())

		jobName := args[0]
		snapshot, _ := cmd.Flags().GetString("snapshot")
		noResolve, _ := cmd.Flags().GetBool("no-resolve")
		download, _ := cmd.Flags().GetBool("download-artifacts")
		destRoot, _ := cmd.Flags().GetString("artifacts-dir")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		hoursBack, _ := cmd.Flags().GetInt("hours-back")
		output, _ := cmd.Flags().GetString("output")
		noCache, _ := cmd.Flags().GetBool("no-cache")

		if download && noResolve {
			log.Fatal().Msg("--download-artifacts requires artifact resolution; drop --no-resolve")
		}
		if destRoot == "" {
			destRoot = conf.Downloader.DestRoot
		}

		format, ok := parseOutput(output)
		if !ok {
			log.Fatal().Str("output", output).Msg("Unknown output format, want full, artifacts, prs or json")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store := mustStore(conf, !noCache)
		defer closeStore(store)

		pipeline := crawler.NewPipeline(conf, store)
		session, err := pipeline.Run(ctx, crawler.RunInput{
			JobName:  jobName,
			Snapshot: snapshot,
			Options: models.RunOptions{
				Resolve:   !noResolve,
				Download:  download,
				DryRun:    dryRun,
				DestRoot:  destRoot,
				HoursBack: hoursBack,
				Output:    format,
				UseCache:  !noCache,
			},
		})
		if err != nil {
			log.Fatal().Err(err).Str("job", jobName).Msg("Crawl failed")
		}

		rep := report.Build(session)

		if conf.Archive.Host != "" {
			saveToArchive(ctx, conf, rep)
		}

		if err := rep.Render(os.Stdout, format); err != nil {
			log.Fatal().Err(err).Msg("Could not render report")
		}
	},
}

func init() {
	CrawlCmd.Flags().String("snapshot", "", "load builds from a JSON snapshot file instead of fetching live")
	CrawlCmd.Flags().Bool("no-resolve", false, "skip artifact URL resolution (faster)")
	CrawlCmd.Flags().Bool("download-artifacts", false, "bulk-download artifacts for each resolved failed build")
	CrawlCmd.Flags().String("artifacts-dir", "", "destination root for downloaded artifacts")
	CrawlCmd.Flags().Bool("dry-run", false, "show the commands that would run without executing them")
	CrawlCmd.Flags().Int("hours-back", 0, "only consider failures started within the last N hours (0 = all)")
	CrawlCmd.Flags().StringP("output", "o", "full", "output format: full, artifacts, prs or json")
	CrawlCmd.Flags().Bool("no-cache", false, "always fetch a fresh job history")
}

func parseOutput(s string) (models.OutputFormat, bool) {
	switch models.OutputFormat(s) {
	case models.OutputFull, models.OutputArtifacts, models.OutputPRs, models.OutputJSON:
		return models.OutputFormat(s), true
	default:
		return "", false
	}
}

// saveToArchive records the run in the outcome archive. The archive is a
// best-effort sink: failures are logged, never fatal to the run.
func saveToArchive(ctx context.Context, conf *config.PFConfig, rep *report.Report) {
	db, err := archive.Open(conf)
	if err != nil {
		log.Error().Err(err).Msg("Could not connect to archive database")
		return
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Could not close archive database cleanly")
		}
	}()

	if err := archive.New(db).SaveRun(ctx, rep); err != nil {
		log.Error().Err(err).Str("run_id", rep.RunID).Msg("Could not archive run outcome")
	}
}
