// Command appvaultd serves the app catalog: version lookups, artifact
// downloads, and icon assets. Releases are published by dropping
// {prefix}{MM.mm}.exe files into the static directory; appvaultd
// indexes them on startup and keeps watching for changes.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/blackwell-systems/appvault/internal/server"
)

func main() {
	var (
		listenAddr  = flag.String("listen", ":5000", "address to serve on")
		dataDir     = flag.String("data", "./data", "server state directory (catalog database)")
		staticDir   = flag.String("static", "./static", "artifact directory")
		assetsDir   = flag.String("assets", "./assets", "icon asset directory")
		catalogFile = flag.String("catalog", "./apps.yaml", "YAML file defining the served apps")
		verbose     = flag.Bool("verbose", false, "log at debug level")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "appvaultd"})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if err := run(*listenAddr, *dataDir, *staticDir, *assetsDir, *catalogFile, logger); err != nil {
		logger.Fatal("server failed", "err", err)
	}
}

func run(listenAddr, dataDir, staticDir, assetsDir, catalogFile string, logger *log.Logger) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.MkdirAll(assetsDir, 0o755); err != nil {
		return fmt.Errorf("creating assets directory: %w", err)
	}

	catalog, err := server.NewCatalog(filepath.Join(dataDir, "catalog.db"))
	if err != nil {
		return err
	}
	defer catalog.Close()

	if err := catalog.SeedFromFile(catalogFile); err != nil {
		return err
	}

	publisher, err := server.NewPublisher(catalog, staticDir, logger)
	if err != nil {
		return err
	}
	if err := publisher.Rescan(); err != nil {
		return err
	}
	if err := publisher.Watch(); err != nil {
		return err
	}
	defer publisher.Stop()

	srv := &http.Server{
		Addr:    listenAddr,
		Handler: server.NewServer(catalog, staticDir, assetsDir, logger).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving catalog", "addr", listenAddr, "static", staticDir)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig)
		return srv.Close()
	}
}
