package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"metacore/internal/blob"
	"metacore/internal/config"
	"metacore/internal/core"
	"metacore/internal/logging"
	"metacore/pkg/domain"
)

// app holds the wired service for one command invocation.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	service *core.Service
	obs     *observability
	closers []io.Closer
}

func openApp(ctx context.Context, flags *globalFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}

	store, err := core.OpenPersistentStore(cfg.StorageOptions(), core.NewDefaultRulesEngine())
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("open store: %w", err)
	}
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	blobs, err := blob.Open(ctx, cfg.BlobOptions())
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	obs, err := openObservability(cfg, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.obs = obs

	opts := append([]core.ServiceOption{
		core.WithLogger(logging.NewServiceLogger(log)),
		core.WithBlobStore(blobs),
		core.WithImportWorkers(cfg.Import.Workers),
	}, obs.options()...)
	a.service = core.NewService(store, opts...)
	return a, nil
}

// Close flushes metrics, releases the store and syncs the logger.
func (a *app) Close() error {
	var errs []error
	if a.obs != nil {
		errs = append(errs, a.obs.Close())
	}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	_ = a.log.Sync()
	return errors.Join(errs...)
}

// withApp opens the service for the command's actor and runs fn.
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, a *app) error) (err error) {
	a, err := openApp(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.Close()) }()
	return fn(core.WithActor(cmd.Context(), flags.actor), a)
}

// reportViolations prints non-blocking rule findings.
func reportViolations(cmd *cobra.Command, res domain.Result) {
	for _, v := range res.Violations {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s [%s] %s %s: %s\n", v.Severity, v.Rule, v.Entity, v.EntityID, v.Message)
	}
}
