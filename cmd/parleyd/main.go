// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// parleyd is the Parley process shell: it wires an object store, the
// channel establisher, and the contact coordinator into one process
// and runs until signalled.
//
// Configuration comes from a single YAML file named by PARLEY_CONFIG
// or --config; there is no discovery. Single-process deployments use
// the in-memory store and the loopback transport, which keeps both
// peers of a pairing inside one address space. The file store backend
// persists objects across restarts; grants, the channel directory, and
// the contact tables remain volatile.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/parley-foundation/parley/channel"
	"github.com/parley-foundation/parley/contact"
	"github.com/parley-foundation/parley/lib/clock"
	"github.com/parley-foundation/parley/lib/config"
	"github.com/parley-foundation/parley/lib/ref"
	"github.com/parley-foundation/parley/lib/version"
	"github.com/parley-foundation/parley/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var logLevel string

	flagSet := pflag.NewFlagSet("parleyd", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to parley.yaml (overrides PARLEY_CONFIG)")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	// Handle --version before flag parsing to match other Parley
	// binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("parleyd")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	local, err := ref.NewPersonID(cfg.Identity)
	if err != nil {
		return fmt.Errorf("config identity: %w", err)
	}

	backing, directory, access, err := buildStore(cfg, logger)
	if err != nil {
		return err
	}

	baseline, err := config.ReadBaselineFile(cfg.Contacts.BaselineFile)
	if err != nil {
		return fmt.Errorf("permission baseline: %w", err)
	}

	grants := channel.NewGrantPort(access, logger)
	coordinator := channel.NewAccessCoordinator(grants, logger)
	establisher := channel.NewEstablisher(backing, directory, coordinator, clock.Real(), channel.RetryPolicy{
		MaxAttempts: cfg.Establish.MaxAttempts,
		Delay:       cfg.Establish.RetryDelay.Std(),
	}, logger)

	transport := contact.NewLoopbackTransport(local)
	contacts := contact.NewCoordinator(contact.CoordinatorConfig{
		Local:       local,
		Establisher: establisher,
		Directory:   directory,
		Transport:   transport,
		Clock:       clock.Real(),
		Logger:      logger,
		Baseline: contact.Permissions{
			CanMessage:     baseline.CanMessage,
			CanCall:        baseline.CanCall,
			CanShareFiles:  baseline.CanShareFiles,
			CanSeePresence: baseline.CanSeePresence,
			Custom:         baseline.Custom,
		},
		ItemTimeout: cfg.Contacts.ItemTimeout.Std(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runInbox(ctx, transport.Register(local), contacts, logger)

	logger.Info("parleyd ready",
		"version", version.Short(),
		"identity", local,
		"store_backend", cfg.Store.Backend,
	)
	<-ctx.Done()

	logger.Info("parleyd shutting down")
	return nil
}

// runInbox routes loopback deliveries addressed to this process into
// the contact coordinator until the context is cancelled.
func runInbox(ctx context.Context, inbox <-chan contact.Delivery, contacts *contact.Coordinator, logger *slog.Logger) {
	for {
		select {
		case delivery := <-inbox:
			switch delivery.Kind {
			case contact.KindCredential:
				credential, err := contact.OpenCredential(delivery.Payload, "")
				if err != nil {
					logger.Warn("dropping undecodable credential", "from", delivery.From, "error", err)
					continue
				}
				if err := contacts.HandleReceivedDedicatedCredential(credential, delivery.From); err != nil {
					logger.Warn("rejected peer credential", "from", delivery.From, "error", err)
				}
			case contact.KindRejection:
				logger.Info("contact request rejected by peer",
					"peer", delivery.From, "reason", string(delivery.Payload))
			default:
				logger.Warn("unknown delivery kind", "kind", delivery.Kind, "from", delivery.From)
			}
		case <-ctx.Done():
			return
		}
	}
}

// loadConfig resolves the config path: the flag wins, then the
// PARLEY_CONFIG environment variable.
func loadConfig(flagPath string) (*config.Config, error) {
	if flagPath != "" {
		return config.LoadFile(flagPath)
	}
	return config.Load()
}

// buildStore constructs the configured store backend. Both backends
// serve the Store, AccessController, and Directory ports from one
// value; the file backend persists objects only.
func buildStore(cfg *config.Config, logger *slog.Logger) (store.Store, store.Directory, store.AccessController, error) {
	switch cfg.Store.Backend {
	case "file":
		fileStore, err := store.NewFileStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening file store at %s: %w", cfg.Store.Path, err)
		}
		logger.Info("file store opened", "path", cfg.Store.Path)
		return fileStore, fileStore, fileStore, nil
	default:
		memory := store.NewMemoryStore()
		return memory, memory, memory, nil
	}
}

// newLogger builds the process logger: JSON records on stderr.
func newLogger(level string) (*slog.Logger, error) {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})
	return slog.New(handler), nil
}
