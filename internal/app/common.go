package app

import (
	"fmt"

	"github.com/blackwell-systems/appvault/internal/catalog"
	"github.com/blackwell-systems/appvault/internal/config"
	"github.com/blackwell-systems/appvault/internal/errlog"
	"github.com/blackwell-systems/appvault/internal/store"
)

// env bundles everything a command needs: config, artifact store,
// catalog client, and the error log.
type env struct {
	cfg     *config.Config
	store   *store.Store
	catalog *catalog.Client
	errors  *errlog.Log
}

// loadEnv resolves config (file, then flags) and opens the local
// state directories.
func loadEnv() (*env, error) {
	path := configPath
	if path == "" {
		defaultPath, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}

	st, err := store.New(cfg.AppsDir)
	if err != nil {
		return nil, fmt.Errorf("opening artifact store: %w", err)
	}

	log, err := errlog.New(cfg.ErrorLogPath())
	if err != nil {
		return nil, fmt.Errorf("opening error log: %w", err)
	}

	return &env{
		cfg:     cfg,
		store:   st,
		catalog: catalog.New(cfg.ServerURL),
		errors:  log,
	}, nil
}
