package contract

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/simone-weiss/ankaios/internal/store"
)

// expectedSchema defines the contract for the audit log's database
// schema. If a column is removed or renamed, this test fails, catching a
// breaking change to the audit trail before it ships.
var expectedSchema = map[string][]string{
	"audit_log": {
		"audit_id", "actor", "action", "target_type", "target_id", "ts", "detail_json",
	},
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "contract_test.db")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sqliteStore, err := store.NewSQLiteStore(dbPath, logger)
	require.NoError(t, err, "failed to create SQLite store")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err, "failed to open database")

	t.Cleanup(func() {
		db.Close()
		sqliteStore.Close()
	})

	return db
}

func getTableColumns(ctx context.Context, db *sql.DB, tableName string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return nil, fmt.Errorf("querying table info: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scanning column info: %w", err)
		}
		columns[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating columns: %w", err)
	}
	return columns, nil
}

func TestSchemaSurface(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for table, expectedCols := range expectedSchema {
		t.Run(table, func(t *testing.T) {
			actualCols, err := getTableColumns(ctx, db, table)
			if !assert.NoError(t, err, "failed to get columns for table %s", table) {
				return
			}
			if !assert.NotEmpty(t, actualCols, "table %s should exist and have columns", table) {
				return
			}
			for _, col := range expectedCols {
				assert.True(t, actualCols[col], "column %s.%s should exist", table, col)
			}
		})
	}
}

func TestTablesExist(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	require.NoError(t, err)
	defer rows.Close()

	actualTables := make(map[string]bool)
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		actualTables[name] = true
	}
	require.NoError(t, rows.Err())

	for table := range expectedSchema {
		assert.True(t, actualTables[table], "table %s should exist", table)
	}
}

func TestSchemaHasIndexes(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	expectedIndexes := []string{"idx_audit_ts", "idx_audit_actor", "idx_audit_target"}

	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='index' AND name NOT LIKE 'sqlite_%'")
	require.NoError(t, err)
	defer rows.Close()

	actualIndexes := make(map[string]bool)
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		actualIndexes[name] = true
	}
	require.NoError(t, rows.Err())

	for _, idx := range expectedIndexes {
		assert.True(t, actualIndexes[idx], "index %s should exist", idx)
	}
}
