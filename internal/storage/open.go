package storage

import (
	"context"
	"fmt"
	"strings"

	logx "duyurubot/pkg/logx"
)

// Open initializes the configured store and applies migrations.
func Open(ctx context.Context, cfg Config, log logx.Logger) (*Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
