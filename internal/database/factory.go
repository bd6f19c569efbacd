package database

import (
	"fmt"

	"mactime-go/internal/config"
)

// NewStoreFromConfig opens the timeline store named by the output config.
// The sqlite format needs a real file; "-" and "" are rejected.
func NewStoreFromConfig(cfg config.OutputConfig) (*SQLiteStore, error) {
	switch cfg.Path {
	case "", "-":
		return nil, fmt.Errorf("output path required for sqlite format")
	case ":memory:":
		return NewSQLiteStore(":memory:")
	default:
		return NewSQLiteStore(cfg.Path)
	}
}
