// cmd/supervisor/store.go
package main

import (
	"log/slog"

	"github.com/tamzrod/safety-supervisor/internal/config"
	"github.com/tamzrod/safety-supervisor/internal/store"
)

// stores bundles the store and its two views.
type stores struct {
	db  *store.DB
	nv  *store.NV
	log *store.ErrorLog
}

func openStores(c config.StoreConfig, logger *slog.Logger) (*stores, error) {
	sc := store.DefaultConfig(c.Path)
	if c.InMemory {
		sc = store.InMemoryConfig()
	}
	sc.Logger = logger

	db, err := store.Open(sc)
	if err != nil {
		return nil, err
	}
	el, err := store.NewErrorLog(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &stores{db: db, nv: store.NewNV(db), log: el}, nil
}

func (s *stores) Close() error { return s.db.Close() }
