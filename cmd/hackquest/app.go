package main

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/hackquest/hackquest/pkg/authentication"
	"github.com/hackquest/hackquest/pkg/logging"
	"github.com/hackquest/hackquest/pkg/metrics"
	"github.com/hackquest/hackquest/pkg/retry"
	"github.com/hackquest/hackquest/pkg/session"
	"github.com/hackquest/hackquest/pkg/teams"
)

// openRowStore creates the row store selected by config.Store.Backend
func openRowStore(ctx context.Context, config StoreConfig, fs afero.Fs) (teams.RowStore, error) {
	switch config.Backend {
	case "memory":
		return teams.NewMemorySource(), nil
	case "xlsx":
		return teams.NewFileSource(fs, config.XLSXPath, config.SheetName), nil
	case "sheets":
		src, err := teams.NewSheetsSource(ctx, teams.SheetsConfig{
			SpreadsheetID:     config.SpreadsheetID,
			SheetName:         config.SheetName,
			CredentialsFile:   config.CredentialsFile,
			RequestsPerMinute: config.RequestsPerMinute,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", config.Backend)
}

// openSink creates the metrics sink selected by config.Sink
func openSink(config MetricsConfig) (metrics.Sink, error) {
	switch config.Sink {
	case "none":
		return metrics.Nop{}, nil
	case "datadog":
		dd, err := metrics.NewDatadog(config.DatadogAPIKey, config.DatadogURL, nil)
		if err != nil {
			return nil, err
		}
		return dd, nil
	case "prometheus":
		p, err := metrics.NewPrometheus(config.PushgatewayURL)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown metrics sink %q", config.Sink)
}

// newOrchestrator wires the store, credentials and metrics sink from config
func newOrchestrator(ctx context.Context, config *Config, fs afero.Fs) (*session.Orchestrator, error) {
	rows, err := openRowStore(ctx, config.Store, fs)
	if err != nil {
		return nil, fmt.Errorf("failed to open team store: %w", err)
	}

	exec := retry.NewExecutor(retry.Config{
		MaxAttempts: config.Retry.MaxAttempts,
		BaseDelay:   config.Retry.BaseDelay,
		Timeout:     config.Retry.Timeout,
	})
	store, err := teams.NewStore(rows, exec)
	if err != nil {
		return nil, err
	}

	sink, err := openSink(config.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics sink: %w", err)
	}

	logging.App.Debug("Session orchestrator ready",
		"backend", config.Store.Backend,
		"metrics", config.Metrics.Sink,
		"max_attempts", exec.MaxAttempts())

	return session.NewOrchestrator(store, authentication.NewCredentials(authentication.DefaultArgon2Params), sink, session.Config{
		MetricsTimeout: config.Metrics.Timeout,
	}), nil
}
