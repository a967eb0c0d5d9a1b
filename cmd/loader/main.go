// Command loader indexes an RF2 snapshot release directory into the binary
// segment store the query service serves from.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/snograph/snoquery/internal/rf2"
	"github.com/snograph/snoquery/internal/store"
	"github.com/snograph/snoquery/pkg/config"
	"github.com/snograph/snoquery/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	releaseDir := flag.String("release", "", "path to the RF2 snapshot release directory")
	flag.Parse()

	if *releaseDir == "" {
		fmt.Fprintln(os.Stderr, "usage: loader -release <snapshot-dir> [-config <file>]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	start := time.Now()
	slog.Info("loading release", "release_dir", *releaseDir, "data_dir", cfg.Store.DataDir)

	docs, summary, err := rf2.NewLoader(*releaseDir).Load()
	if err != nil {
		slog.Error("failed to read release files", "error", err)
		os.Exit(1)
	}

	// Build fills the component counts and build time from the documents
	info := store.ReleaseInfo{EffectiveTime: summary.EffectiveTime}
	if err := store.New(cfg.Store.DataDir).Build(docs, info); err != nil {
		slog.Error("failed to build release store", "error", err)
		os.Exit(1)
	}

	slog.Info("release indexed",
		"effective_time", summary.EffectiveTime,
		"concepts", summary.Concepts,
		"descriptions", summary.Descriptions,
		"relationships", summary.Relationships,
		"documents", len(docs),
		"took", time.Since(start).Round(time.Millisecond),
	)
}
