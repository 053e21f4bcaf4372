package storage

import (
	"fmt"

	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/interfaces"
	"github.com/bobmcallan/tickercal/internal/storage/surrealdb"
)

// NewRegistryStore creates the registry document store selected by config.
// Supported backends: "file" (default), "surrealdb".
func NewRegistryStore(logger *common.Logger, config *common.StorageConfig) (interfaces.BlobStore, error) {
	switch config.Backend {
	case "", common.StorageBackendFile:
		return NewFileStore(logger, &config.File)

	case common.StorageBackendSurrealDB:
		return surrealdb.NewRegistryStore(logger, &config.SurrealDB)

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: file, surrealdb)", config.Backend)
	}
}
