package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/gophdrive/internal/client/client"
	"github.com/dmitrijs2005/gophdrive/internal/client/config"
	"github.com/dmitrijs2005/gophdrive/internal/client/services"
	"github.com/dmitrijs2005/gophdrive/internal/client/upload"
	"github.com/dmitrijs2005/gophdrive/internal/filex"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
)

// NewApp wires the client from cfg: file logger, local database, backend
// clients, upload orchestrator and services. Uploads journaled by a previous
// run are released once a user is logged in.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	for _, dir := range []*string{&cfg.LogDir, &cfg.DownloadDir} {
		abs, err := filex.EnsureDir(*dir)
		if err != nil {
			return nil, err
		}
		*dir = abs
	}
	if _, err := filex.EnsureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, err
	}

	log, logFile := logging.NewFileLogger(cfg.LogDir, logging.ParseLevel(cfg.LogLevel))
	closers := []io.Closer{logFile}
	fail := func(err error) (*App, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		return nil, err
	}

	db, err := client.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return fail(fmt.Errorf("error initializing database: %w", err))
	}
	closers = append(closers, db)
	repos := client.NewRepositories(db)

	session := &client.Session{}
	rest := client.NewRESTClient(cfg.BaseURL, cfg.RequestTimeout, session, log.With("component", "rest"))
	backend := rest.Backend()

	if cfg.Backend == config.BackendS3 {
		store, err := client.NewS3Store(ctx, client.S3Config{
			Endpoint:     cfg.S3.Endpoint,
			Region:       cfg.S3.Region,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			Bucket:       cfg.S3.Bucket,
			BucketSuffix: cfg.S3.BucketSuffix,
		}, session, log.With("component", "s3"))
		if err != nil {
			return fail(fmt.Errorf("error initializing object storage: %w", err))
		}
		backend.Objects = store
	}

	orch := upload.New(backend.Objects, repos.Uploads, log.With("component", "upload"), upload.Config{
		ChunkSize:    cfg.ChunkSize,
		MaxParallel:  cfg.MaxParallelUploads,
		PartAttempts: cfg.PartAttempts,
	})

	auth := services.NewAuthService(backend.Auth, session, db, cfg.CredentialTTL, log.With("component", "auth"))
	browser := services.NewBrowser(backend, auth, session, orch, log.With("component", "browser"))
	sharing := services.NewSharingService(backend.Sharing, log.With("component", "sharing"))
	groups := services.NewGroupService(backend.Groups, log.With("component", "groups"))

	app := newApp(cfg, auth, browser, sharing, groups, log, os.Stdin, os.Stdout)
	app.closers = closers
	app.orchestrator = orch
	return app, nil
}
