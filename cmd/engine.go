package main

import (
	"context"

	"github.com/heritage-watch/heritage-cli/internal/heritage"
	"github.com/heritage-watch/heritage-cli/internal/history"
	"github.com/heritage-watch/heritage-cli/internal/ingest"
	"github.com/heritage-watch/heritage-cli/internal/refresh"
)

// ingestOptions builds the dataset filters from the configured coverage box.
func ingestOptions() ingest.Options {
	return ingest.Options{Coverage: cfg.Engine.ServiceConfig().Coverage}
}

// manifestSource reads the configured dataset manifest on every load, so a
// refresh picks up manifest edits without a restart.
func manifestSource() refresh.ManifestSource {
	return refresh.ManifestSource{Path: cfg.Datasets.Manifest, Options: ingestOptions()}
}

// openHistory opens and migrates the resolution audit store. A "none" driver
// yields a nil store.
func openHistory(ctx context.Context) (history.Store, error) {
	store, err := history.Open(ctx, cfg.History.Driver, cfg.History.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, nil
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// newService builds the resolution service over a store, optionally with an
// audit recorder attached.
func newService(store *heritage.Store, recorder heritage.Recorder) *heritage.Service {
	opts := []heritage.ServiceOption{}
	if recorder != nil {
		opts = append(opts, heritage.WithRecorder(recorder))
	}
	return heritage.NewService(cfg.Engine.ServiceConfig(), store, opts...)
}
