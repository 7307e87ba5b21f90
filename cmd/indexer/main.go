package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/seanblong/resumematch/internal/ai"
	"github.com/seanblong/resumematch/internal/config"
	"github.com/seanblong/resumematch/internal/indexer"
)

func main() {
	fs := pflag.NewFlagSet("resumematch-indexer", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("invalid log level")
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if cfg.IDFTable == "" {
		log.Fatal().Msg("--idf-table is required: it names the output file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ix := indexer.New(cfg.CorpusRoot)
	ix.Workers = cfg.Match.Workers

	table, _, err := ix.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("root", cfg.CorpusRoot).Msg("indexing failed")
	}

	if err := ai.SaveIDFTable(cfg.IDFTable, table); err != nil {
		log.Fatal().Err(err).Str("path", cfg.IDFTable).Msg("failed to write idf table")
	}
	log.Info().Str("path", cfg.IDFTable).Int("documents", table.Documents).Msg("idf table written")
}
