package storage

import (
	"fmt"

	"github.com/rohankatakam/codelineage/internal/config"
	"github.com/sirupsen/logrus"
)

// Open returns the store selected by configuration, or ErrDisabled
func Open(cfg config.StorageConfig, logger *logrus.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.LocalPath, logger)
	case "postgres":
		return NewPostgresStore(cfg.PostgresDSN, logger)
	case "none", "":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
