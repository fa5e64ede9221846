// Command ingest loads the archive into the vector store: every PDF under the sources table's
// folders, the curated web pages, or an explicit list of PDF files.
//
//	ingest                       # all configured folders
//	ingest -web                  # curated web pages
//	ingest -category Opas a.pdf  # just these files
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/klvl/alynappi/internal/app"
	"github.com/klvl/alynappi/internal/config"
	"github.com/klvl/alynappi/internal/core/ingestion_engine"
)

func main() {
	sourcesFile := flag.String("sources", "", "sources table (default SOURCES_FILE or sources.yaml)")
	web := flag.Bool("web", false, "ingest the curated web pages instead of PDF folders")
	category := flag.String("category", "", "category for the PDF files given as arguments")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-sources file] [-web | -category name file.pdf...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	config.ConfigureLogging(cfg.LogLevel, cfg.LogFormat)
	if *sourcesFile != "" {
		cfg.SourcesFile = *sourcesFile
	}

	if flag.NArg() > 0 && *category == "" {
		flag.Usage()
		os.Exit(2)
	}

	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		os.Exit(1)
	}
	defer application.Close()

	var report ingestion_engine.RunReport
	switch {
	case *web:
		report, err = application.Ingestor.IngestWeb(ctx, application.Sources)
	case flag.NArg() > 0:
		if !application.Sources.HasCategory(*category) {
			log.Warn().Str("category", *category).Msg("category is not in the sources table")
		}
		report, err = application.Ingestor.IngestFiles(ctx, flag.Args(), *category)
	default:
		report, err = application.Ingestor.IngestDirectory(ctx, application.Sources)
	}

	log.Info().
		Int("processed", report.Processed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("ingestion finished")
	if err != nil {
		log.Error().Err(err).Msg("ingestion aborted")
		application.Close()
		os.Exit(1)
	}
}
