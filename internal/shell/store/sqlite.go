package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/servekit/internal/core/wire"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	// Open database connection
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	// Run migrations
	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Definition Operations
// =============================================================================

// definitionRow represents a definition row in the database.
type definitionRow struct {
	ID           string  `db:"id"`
	Name         string  `db:"name"`
	BaseID       *string `db:"base_id"`
	Status       string  `db:"status"`
	Payload      []byte  `db:"payload"`
	Opaque       []byte  `db:"opaque"`
	OpaqueSealed bool    `db:"opaque_sealed"`
	CreatedAt    string  `db:"created_at"`
	UpdatedAt    string  `db:"updated_at"`
}

func (s *SQLiteStore) CreateDefinition(ctx context.Context, record *Record) error {
	return createDefinition(ctx, s.db, record)
}

func (s *SQLiteStore) GetDefinition(ctx context.Context, id string) (*Record, error) {
	return getDefinition(ctx, s.db, id)
}

func (s *SQLiteStore) GetDefinitionByName(ctx context.Context, name string) (*Record, error) {
	return getDefinitionByName(ctx, s.db, name)
}

func (s *SQLiteStore) ListDefinitions(ctx context.Context, opts ListOptions) ([]*Record, error) {
	return listDefinitions(ctx, s.db, opts)
}

func (s *SQLiteStore) ArchiveDefinition(ctx context.Context, id string) error {
	return archiveDefinition(ctx, s.db, id)
}

func (s *SQLiteStore) DeleteDefinition(ctx context.Context, id string) error {
	return deleteDefinition(ctx, s.db, id)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateDefinition(ctx context.Context, record *Record) error {
	return createDefinition(ctx, s.tx, record)
}

func (s *txSQLiteStore) GetDefinition(ctx context.Context, id string) (*Record, error) {
	return getDefinition(ctx, s.tx, id)
}

func (s *txSQLiteStore) GetDefinitionByName(ctx context.Context, name string) (*Record, error) {
	return getDefinitionByName(ctx, s.tx, name)
}

func (s *txSQLiteStore) ListDefinitions(ctx context.Context, opts ListOptions) ([]*Record, error) {
	return listDefinitions(ctx, s.tx, opts)
}

func (s *txSQLiteStore) ArchiveDefinition(ctx context.Context, id string) error {
	return archiveDefinition(ctx, s.tx, id)
}

func (s *txSQLiteStore) DeleteDefinition(ctx context.Context, id string) error {
	return deleteDefinition(ctx, s.tx, id)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func createDefinition(ctx context.Context, exec executor, record *Record) error {
	if record.Config == nil {
		return NewStoreError("CreateDefinition", "definition", record.ID, "record has no config", ErrInvalidData)
	}

	name := record.Config.Name()
	if name == "" {
		return NewStoreError("CreateDefinition", "definition", record.ID, "config has no deployment name", ErrInvalidData)
	}

	payload, err := wire.Encode(record.Config)
	if err != nil {
		return NewStoreError("CreateDefinition", "definition", record.ID, "failed to encode config", ErrInvalidData)
	}

	var baseID *string
	if record.BaseID != "" {
		baseID = &record.BaseID
	}

	status := record.Status
	if status == "" {
		status = StatusActive
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	query := `
		INSERT INTO definitions (
			id, name, base_id, status, payload, opaque, opaque_sealed,
			created_at, updated_at
		) VALUES (
			:id, :name, :base_id, :status, :payload, :opaque, :opaque_sealed,
			:created_at, :updated_at
		)`

	row := map[string]any{
		"id":            record.ID,
		"name":          name,
		"base_id":       baseID,
		"status":        status,
		"payload":       payload,
		"opaque":        record.Opaque,
		"opaque_sealed": record.OpaqueSealed,
		"created_at":    createdAt.Format(time.RFC3339),
		"updated_at":    updatedAt.Format(time.RFC3339),
	}

	_, err = exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: definitions.id") {
			return NewStoreError("CreateDefinition", "definition", record.ID, "definition with this ID already exists", ErrDuplicateID)
		}
		if strings.Contains(err.Error(), "UNIQUE constraint failed: definitions.name") {
			return NewStoreError("CreateDefinition", "definition", record.ID, "active definition with this name already exists", ErrDuplicateName)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("CreateDefinition", "definition", record.ID, "base definition not found", ErrForeignKey)
		}
		return NewStoreError("CreateDefinition", "definition", record.ID, err.Error(), err)
	}

	return nil
}

func getDefinition(ctx context.Context, exec executor, id string) (*Record, error) {
	query := `SELECT * FROM definitions WHERE id = ?`

	var row definitionRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetDefinition", "definition", id, "definition not found", ErrNotFound)
		}
		return nil, NewStoreError("GetDefinition", "definition", id, err.Error(), err)
	}

	return rowToRecord(&row)
}

func getDefinitionByName(ctx context.Context, exec executor, name string) (*Record, error) {
	query := `SELECT * FROM definitions WHERE name = ? AND status = ?`

	var row definitionRow
	err := exec.GetContext(ctx, &row, query, name, StatusActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetDefinitionByName", "definition", name, "active definition not found", ErrNotFound)
		}
		return nil, NewStoreError("GetDefinitionByName", "definition", name, err.Error(), err)
	}

	return rowToRecord(&row)
}

func listDefinitions(ctx context.Context, exec executor, opts ListOptions) ([]*Record, error) {
	opts = opts.Normalize()
	// rowid breaks ties between rows created within the same second.
	query := `SELECT * FROM definitions ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`

	var rows []definitionRow
	err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListDefinitions", "definition", "", err.Error(), err)
	}

	records := make([]*Record, 0, len(rows))
	for i := range rows {
		record, err := rowToRecord(&rows[i])
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

func archiveDefinition(ctx context.Context, exec executor, id string) error {
	query := `UPDATE definitions SET status = ?, updated_at = ? WHERE id = ?`

	result, err := exec.ExecContext(ctx, query, StatusArchived, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return NewStoreError("ArchiveDefinition", "definition", id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("ArchiveDefinition", "definition", id, "definition not found", ErrNotFound)
	}

	return nil
}

func deleteDefinition(ctx context.Context, exec executor, id string) error {
	query := `DELETE FROM definitions WHERE id = ?`

	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("DeleteDefinition", "definition", id, "definition is the base of other definitions", ErrForeignKey)
		}
		return NewStoreError("DeleteDefinition", "definition", id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteDefinition", "definition", id, "definition not found", ErrNotFound)
	}

	return nil
}

// =============================================================================
// Row Conversion Functions
// =============================================================================

// rowToRecord converts a database row to a Record.
func rowToRecord(row *definitionRow) (*Record, error) {
	cfg, err := wire.Decode(row.Payload)
	if err != nil {
		return nil, NewStoreError("rowToRecord", "definition", row.ID, "failed to decode config payload", ErrInvalidData)
	}

	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, row.UpdatedAt)

	baseID := ""
	if row.BaseID != nil {
		baseID = *row.BaseID
	}

	return &Record{
		ID:           row.ID,
		BaseID:       baseID,
		Status:       row.Status,
		Config:       cfg,
		Opaque:       row.Opaque,
		OpaqueSealed: row.OpaqueSealed,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}
