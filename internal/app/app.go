// Package app wires together configuration, the warehouse client, the local
// store and the bank cache into a single Deps struct that commands receive
// at runtime. Expensive handles are opened on first use.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/derickschaefer/bankview/internal/bankcache"
	"github.com/derickschaefer/bankview/internal/config"
	"github.com/derickschaefer/bankview/internal/dashboard"
	"github.com/derickschaefer/bankview/internal/query"
	"github.com/derickschaefer/bankview/internal/store"
	"github.com/derickschaefer/bankview/internal/warehouse"
)

// ErrNoWarehouse is returned when the warehouse file does not exist yet.
var ErrNoWarehouse = errors.New("warehouse not found")

// Deps holds all runtime dependencies injected into command Run functions.
type Deps struct {
	Config    *config.Config
	Warehouse *warehouse.Client
	Store     *store.Store
	Banks     *bankcache.Cache
	Dashboard *dashboard.Dashboard
}

// New builds a Deps from resolved config. Nothing is opened yet.
func New(cfg *config.Config) *Deps {
	return &Deps{Config: cfg}
}

// QueryOptions returns the query filters with the configured overrides.
func (d *Deps) QueryOptions() query.Options {
	opts := query.DefaultOptions()
	if d.Config.Cutoff != "" {
		opts.Cutoff = d.Config.Cutoff
	}
	if d.Config.Unit != "" {
		opts.Unit = d.Config.Unit
	}
	return opts
}

// RequireStore opens the local bbolt store if it is not open already.
func (d *Deps) RequireStore() error {
	if d.Store != nil {
		return nil
	}
	s, err := store.Open(d.Config.DBPath)
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}
	d.Store = s
	return nil
}

// RequireWarehouse opens the warehouse. Unless create is set, a missing
// file is ErrNoWarehouse rather than a silently created empty database.
func (d *Deps) RequireWarehouse(create bool) error {
	if d.Warehouse != nil {
		return nil
	}
	path := d.Config.WarehousePath
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if !create {
			return fmt.Errorf("%w at %s (run 'bankview warehouse init' and 'bankview warehouse seed')", ErrNoWarehouse, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return fmt.Errorf("creating warehouse directory: %w", err)
		}
	}
	c, err := warehouse.Open(path, warehouse.Options{
		Timeout:    d.Config.Timeout,
		RatePerSec: d.Config.Rate,
		Debug:      d.Config.Debug,
	})
	if err != nil {
		return err
	}
	d.Warehouse = c
	return nil
}

// RequireDashboard builds the bank cache and dashboard over the warehouse.
// The store backs the cache's persisted tier when it can be opened; without
// it the listing is only cached for the life of the process.
func (d *Deps) RequireDashboard() error {
	if d.Dashboard != nil {
		return nil
	}
	if err := d.RequireWarehouse(false); err != nil {
		return err
	}
	var persist bankcache.Persister
	if err := d.RequireStore(); err != nil {
		slog.Warn("bank list will not be persisted", "err", err)
	} else {
		persist = d.Store
	}

	qopts := d.QueryOptions()
	wh := d.Warehouse
	d.Banks = bankcache.New(func(ctx context.Context) ([]string, error) {
		return wh.ListBanks(ctx, query.LargestBanksQuery(qopts))
	}, bankcache.Options{TTL: d.Config.BankTTL, Persist: persist})
	d.Dashboard = dashboard.New(wh, d.Banks, dashboard.Options{
		Query:        qopts,
		DefaultCount: d.Config.BankCount,
	})
	return nil
}

// Close releases every open handle.
func (d *Deps) Close() error {
	var errs []error
	if d.Warehouse != nil {
		errs = append(errs, d.Warehouse.Close())
		d.Warehouse = nil
	}
	if d.Store != nil {
		errs = append(errs, d.Store.Close())
		d.Store = nil
	}
	return errors.Join(errs...)
}
