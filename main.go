// avatarchat - A 3D avatar chat front-end over pluggable LLM providers.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/avatarchat/internal/catalog"
	"github.com/jeranaias/avatarchat/internal/config"
	"github.com/jeranaias/avatarchat/internal/provider"
	"github.com/jeranaias/avatarchat/internal/server"
	"github.com/jeranaias/avatarchat/internal/session"
	"github.com/jeranaias/avatarchat/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	port := flag.Int("port", server.DefaultPort, "port to listen on (loopback only)")
	staticDir := flag.String("static", "web", "directory with the browser front-end (empty disables)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("avatarchat %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if err := run(*port, *staticDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(port int, staticDir string) error {
	store, err := storage.NewBlobStore()
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}

	settings, err := config.Resolve(store)
	if err != nil {
		return fmt.Errorf("failed to resolve settings: %w", err)
	}

	dispatcher := provider.NewDispatcher()
	mgr := session.NewManager(settings, dispatcher, store)

	// Reload settings when an external tool edits the persisted blob.
	watcher, err := config.NewWatcher(store, 500*time.Millisecond, func(updated *config.Settings) {
		log.Printf("MAIN | settings reloaded from disk")
		mgr.SwapSettings(updated)
	})
	if err != nil {
		log.Printf("MAIN | settings watcher unavailable: %v", err)
	} else {
		if err := watcher.Watch(); err != nil {
			log.Printf("MAIN | settings watcher failed to start: %v", err)
		}
		defer watcher.Close()
	}

	srv := server.NewServer(port, mgr).
		WithModelSource(provider.NewOpenRouterAdapter()).
		WithAgentSource(provider.NewOpenClawAdapter())

	catalogPath, err := catalog.DefaultPath()
	if err == nil {
		if cache, cacheErr := catalog.Open(catalogPath); cacheErr == nil {
			defer cache.Close()
			srv = srv.WithCatalogCache(cache)
		} else {
			log.Printf("MAIN | catalog cache unavailable: %v", cacheErr)
		}
	}

	if staticDir != "" {
		if _, statErr := os.Stat(staticDir); statErr == nil {
			srv = srv.WithStaticDir(staticDir)
		} else {
			log.Printf("MAIN | static dir %q not found, serving API only", staticDir)
		}
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("MAIN | received %v, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
