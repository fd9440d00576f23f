package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/markdave123-py/guardian/internal/config"
	"github.com/markdave123-py/guardian/internal/core"
	"github.com/markdave123-py/guardian/internal/logger"
)

const (
	ModeMemory   = "memory"
	ModePostgres = "postgres"
	ModeSQLite   = "sqlite"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionCompleted = errors.New("session already completed")
	// ErrStorageUnavailable is what the Gateway hands back after it has logged an I/O failure.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// NewStore picks the backing store once for the process lifetime.
// No DATABASE_URL, or one that does not parse, selects the in-memory store.
// A well-formed URL always selects the durable store; if the database cannot
// be reached yet, that is logged and each operation retries the connection,
// degrading through the Gateway until it succeeds.
func NewStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (core.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	raw := strings.TrimSpace(cfg.DatabaseURL)
	if raw == "" {
		log.Warn("DATABASE_URL not set, using in-memory storage")
		return NewMemoryStore(), nil
	}

	var (
		d   = postgresDialect
		dsn string
		err error
	)
	if strings.HasPrefix(raw, "sqlite:") || strings.HasPrefix(raw, "file:") {
		d, dsn = sqliteDialect, sqlitePath(raw)
	} else if dsn, err = postgresDSN(raw, cfg.SslCertPath); err != nil {
		log.Warn("DATABASE_URL is malformed, using in-memory storage", "error", err)
		return NewMemoryStore(), nil
	}

	store, err := newSQLStore(d, dsn)
	if err != nil {
		return nil, err
	}
	if err := store.Ready(ctx); err != nil {
		log.Warn("database unreachable, will retry on first use", "mode", store.Mode(), "error", err)
		return store, nil
	}
	log.Info("database initialized", "mode", store.Mode())
	return store, nil
}
