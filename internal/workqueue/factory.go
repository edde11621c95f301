package workqueue

import (
	"fmt"
	"strings"
)

// NewStore builds a Store from cfg, defaulting to SQLite the way
// internal/db/factory.go defaults an unspecified store type.
func NewStore(cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Type) {
	case "postgres", "postgresql":
		if cfg.ConnectionString == "" {
			return nil, fmt.Errorf("postgres connection string is required")
		}
		return NewPostgresStore(cfg.ConnectionString)
	case "sqlite", "sqlite3", "":
		path := cfg.ConnectionString
		if path == "" {
			path = ".jotnar-queue.db"
		}
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unsupported work queue store type: %s", cfg.Type)
	}
}
