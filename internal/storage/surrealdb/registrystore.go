// Package surrealdb stores the ticker registry document in SurrealDB.
package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/interfaces"
)

const (
	registryTable    = "registry"
	registryRecordID = "tickers"
)

// Compile-time interface check
var _ interfaces.BlobStore = (*RegistryStore)(nil)

// registryRecord holds the whole registry as one JSON string so a write is a
// single record upsert.
type registryRecord struct {
	Document  string `json:"document"`
	UpdatedAt string `json:"updated_at"`
}

// RegistryStore implements interfaces.BlobStore on a single SurrealDB record.
type RegistryStore struct {
	db     *surrealdb.DB
	logger *common.Logger
	owned  bool
}

// NewRegistryStore connects, signs in and selects the namespace/database.
func NewRegistryStore(logger *common.Logger, config *common.SurrealDBConfig) (*RegistryStore, error) {
	ctx := context.Background()

	db, err := surrealdb.New(config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Username,
		"pass": config.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Namespace, config.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	s, err := NewRegistryStoreWithDB(db, logger)
	if err != nil {
		db.Close(ctx)
		return nil, err
	}
	s.owned = true

	logger.Info().
		Str("address", config.Address).
		Str("namespace", config.Namespace).
		Str("database", config.Database).
		Msg("SurrealDB registry store initialized")

	return s, nil
}

// NewRegistryStoreWithDB wraps an existing connection. The caller keeps ownership.
func NewRegistryStoreWithDB(db *surrealdb.DB, logger *common.Logger) (*RegistryStore, error) {
	// SurrealDB v3 errors on querying non-existent tables
	sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", registryTable)
	if _, err := surrealdb.Query[any](context.Background(), db, sql, nil); err != nil {
		return nil, fmt.Errorf("failed to define table %s: %w", registryTable, err)
	}
	return &RegistryStore{db: db, logger: logger}, nil
}

// ReadAll returns the stored document, or false when none was written yet.
func (s *RegistryStore) ReadAll(ctx context.Context) ([]byte, bool, error) {
	rec, err := surrealdb.Select[registryRecord](ctx, s.db, surrealmodels.NewRecordID(registryTable, registryRecordID))
	if err != nil {
		return nil, false, fmt.Errorf("failed to select registry: %w", err)
	}
	if rec == nil {
		return nil, false, nil
	}
	return []byte(rec.Document), true, nil
}

// WriteAll upserts the document. A single record write is atomic in SurrealDB.
func (s *RegistryStore) WriteAll(ctx context.Context, data []byte) error {
	rec := registryRecord{
		Document:  string(data),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	sql := "UPSERT type::record('registry', $id) CONTENT $rec"
	vars := map[string]any{"id": registryRecordID, "rec": rec}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]registryRecord](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to save registry after retries: %w", err)
		}
		s.logger.Debug().Err(err).Int("attempt", attempt).Msg("Registry upsert failed, retrying")
	}
	return nil
}

// Close closes the connection when this store opened it.
func (s *RegistryStore) Close() error {
	if !s.owned || s.db == nil {
		return nil
	}
	return s.db.Close(context.Background())
}
