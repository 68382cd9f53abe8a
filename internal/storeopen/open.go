// Package storeopen builds the RecordStore selected in configuration.
package storeopen

import (
	"context"
	"errors"
	"fmt"

	"github.com/protoarbol/catastro/config"
	"github.com/protoarbol/catastro/internal/filestore"
	"github.com/protoarbol/catastro/internal/httpstore"
	"github.com/protoarbol/catastro/internal/pgstore"
	"github.com/protoarbol/catastro/internal/sqlitestore"
	"github.com/protoarbol/catastro/trees"
)

// ErrNoSeed is returned by Seed for stores that cannot load records with
// their own ids.
var ErrNoSeed = errors.New("store does not support seeding")

// Seeder is implemented by stores that accept bulk loads with explicit ids.
type Seeder interface {
	Seed(ctx context.Context, records []trees.Tree) error
}

// Opened is a RecordStore together with its release function.
type Opened struct {
	trees.RecordStore
	Kind  string
	close func() error
}

// Close releases connections held by the store.
func (o *Opened) Close() error {
	if o.close == nil {
		return nil
	}
	return o.close()
}

// Seed loads records when the backend supports it.
func (o *Opened) Seed(ctx context.Context, records []trees.Tree) error {
	s, ok := o.RecordStore.(Seeder)
	if !ok {
		return fmt.Errorf("%s: %w", o.Kind, ErrNoSeed)
	}
	return s.Seed(ctx, records)
}

// Open connects to the backend named by cfg.Kind.
func Open(ctx context.Context, cfg config.Store) (*Opened, error) {
	switch cfg.Kind {
	case config.StoreHTTP:
		if cfg.URL == "" {
			return nil, errors.New("store.url is required for the http store")
		}
		return &Opened{RecordStore: httpstore.New(cfg.URL), Kind: cfg.Kind}, nil

	case config.StoreFile:
		if cfg.Path == "" {
			return nil, errors.New("store.path is required for the file store")
		}
		return &Opened{RecordStore: filestore.New(cfg.Path), Kind: cfg.Kind}, nil

	case config.StoreSQLite:
		if cfg.Path == "" {
			return nil, errors.New("store.path is required for the sqlite store")
		}
		s, err := sqlitestore.Open(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return &Opened{RecordStore: s, Kind: cfg.Kind, close: s.Close}, nil

	case config.StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("store.database_url is required for the postgres store")
		}
		s, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &Opened{RecordStore: s, Kind: cfg.Kind, close: func() error { s.Close(); return nil }}, nil
	}
	return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
}
