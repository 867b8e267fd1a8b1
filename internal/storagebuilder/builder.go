package storagebuilder

import (
	"context"
	"fmt"
	"time"

	"github.com/lomoval/sked/internal/storage"
	memorystorage "github.com/lomoval/sked/internal/storage/memory"
	sqlstorage "github.com/lomoval/sked/internal/storage/sql"
	log "github.com/sirupsen/logrus"
)

const defaultConnectTimeout = 15 * time.Second

type Config struct {
	StorageType    string
	ConnectTimeout time.Duration
	Database       sqlstorage.Config
}

// New builds and connects the configured storage.
// Storage types are "memory" and "sql"; the SQL driver comes from Database.Driver.
func New(ctx context.Context, config Config) (storage.Storage, error) {
	var s storage.Storage
	switch config.StorageType {
	case "memory", "":
		s = memorystorage.New()
	case "sql", "postgres":
		s = sqlstorage.New(config.Database)
	default:
		return nil, fmt.Errorf("unknown storage type %q", config.StorageType)
	}

	timeout := config.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		return nil, fmt.Errorf(
			"failed to connect to storage %s (%s:%d): %w",
			config.StorageType, config.Database.Host, config.Database.Port, err)
	}
	log.Debugf("storage %q is ready", config.StorageType)
	return s, nil
}
