package main

import (
	"context"
	"fmt"

	"Verity/internal/contracts"
	"Verity/internal/contracts/cash"
	"Verity/internal/contractvm"
	"Verity/internal/ledger"
	"Verity/internal/logger"
	"Verity/internal/storage"
	"Verity/internal/txstore"
)

// app is the opened store with its contracts.
type app struct {
	cfg      *Config
	db       *storage.Storage
	store    *txstore.Store
	codecs   *contracts.Codecs
	registry *contracts.ContractRegistry
	pool     *contractvm.Pool
}

// openApp opens the store and registers the built-in and wasm contracts.
func openApp(ctx context.Context, cfg *Config) (*app, error) {
	a := &app{
		cfg:      cfg,
		codecs:   contracts.NewCodecs(),
		registry: contracts.NewContractRegistry(),
	}

	cash.Register(a.registry, a.codecs)

	opts := storage.DefaultOptions()
	opts.SyncInterval = cfg.SyncInterval

	db, err := storage.Open(cfg.DataPath, opts)
	if err != nil {
		return nil, fmt.Errorf("open storage:\n%w", err)
	}
	a.db = db

	a.store, err = txstore.New(db, a.codecs, txstore.Config{CacheSize: cfg.CacheSize})
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("open transaction store:\n%w", err)
	}

	if cfg.ContractsDir != "" {
		if err := a.loadContracts(ctx); err != nil {
			a.close(ctx)
			return nil, err
		}
	}

	return a, nil
}

func (a *app) loadContracts(ctx context.Context) error {
	pool, err := contractvm.New(ctx)
	if err != nil {
		return fmt.Errorf("create contract pool:\n%w", err)
	}
	a.pool = pool

	if _, err := contractvm.LoadDir(ctx, pool, a.cfg.ContractsDir, a.registry, a.codecs, a.cfg.GasLimit); err != nil {
		return fmt.Errorf("load contracts:\n%w", err)
	}

	return nil
}

func (a *app) resolver() *ledger.Resolver {
	return ledger.NewResolver(a.store, a.registry, a.identities(),
		ledger.ResolverConfig{MaxDepth: a.cfg.MaxDepth})
}

func (a *app) identities() ledger.StaticIdentities {
	return ledger.NewStaticIdentities(a.cfg.Identities...)
}

func (a *app) close(ctx context.Context) {
	if a.pool != nil {
		if err := a.pool.Close(ctx); err != nil {
			logger.Warn("close contract pool", "error", err)
		}
	}

	if a.store != nil {
		a.store.Close()
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warn("close storage", "error", err)
		}
	}
}
