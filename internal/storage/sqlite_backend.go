package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"episodic-memory/internal/types"
)

// SQLiteBackend implements Backend over a single key/value table, persisted
// with modernc.org/sqlite, following the teacher's connection-pool and
// pragma configuration conventions.
type SQLiteBackend struct {
	db *sql.DB

	stmtGet    *sql.Stmt
	stmtPut    *sql.Stmt
	stmtDelete *sql.Stmt
	stmtScan   *sql.Stmt
}

// NewSQLiteBackend opens (creating if absent) a SQLite database at dbPath.
func NewSQLiteBackend(dbPath string, busyTimeoutMs int) (*SQLiteBackend, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=%d", dbPath, busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := configureSQLite(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}
	if err := initializeSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteBackend{db: db}
	if err := s.prepareStatements(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return s, nil
}

func (s *SQLiteBackend) prepareStatements() error {
	var err error
	if s.stmtGet, err = s.db.Prepare(`SELECT value FROM kv WHERE key = ?`); err != nil {
		return fmt.Errorf("prepare get: %w", err)
	}
	if s.stmtPut, err = s.db.Prepare(`
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`); err != nil {
		return fmt.Errorf("prepare put: %w", err)
	}
	if s.stmtDelete, err = s.db.Prepare(`DELETE FROM kv WHERE key = ?`); err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	if s.stmtScan, err = s.db.Prepare(`
		SELECT key, value FROM kv WHERE key >= ? AND key < ? ORDER BY key
	`); err != nil {
		return fmt.Errorf("prepare scan: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := s.stmtGet.QueryRowContext(ctx, string(key)).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFound("key not found")
	}
	if err != nil {
		return nil, types.NewStorageError(fmt.Sprintf("get: %v", err))
	}
	return value, nil
}

func (s *SQLiteBackend) Put(ctx context.Context, key, value []byte) error {
	if _, err := s.stmtPut.ExecContext(ctx, string(key), value); err != nil {
		return types.NewStorageError(fmt.Sprintf("put: %v", err))
	}
	return nil
}

func (s *SQLiteBackend) Delete(ctx context.Context, key []byte) error {
	if _, err := s.stmtDelete.ExecContext(ctx, string(key)); err != nil {
		return types.NewStorageError(fmt.Sprintf("delete: %v", err))
	}
	return nil
}

// Scan relies on the prefix's exclusive upper bound being the prefix with
// its last byte incremented; a prefix of all 0xFF bytes falls back to an
// unbounded scan since no successor exists.
func (s *SQLiteBackend) Scan(ctx context.Context, prefix []byte) ([]KV, error) {
	upper, unbounded := prefixUpperBound(prefix)

	var rows *sql.Rows
	var err error
	if unbounded {
		rows, err = s.db.QueryContext(ctx, `SELECT key, value FROM kv WHERE key >= ? ORDER BY key`, string(prefix))
	} else {
		rows, err = s.stmtScan.QueryContext(ctx, string(prefix), string(upper))
	}
	if err != nil {
		return nil, types.NewStorageError(fmt.Sprintf("scan: %v", err))
	}
	defer rows.Close()

	var out []KV
	for rows.Next() {
		var k string
		var v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, types.NewStorageError(fmt.Sprintf("scan row: %v", err))
		}
		out = append(out, KV{Key: []byte(k), Value: v})
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError(fmt.Sprintf("scan iterate: %v", err))
	}
	sort.Slice(out, func(i, j int) bool { return string(out[i].Key) < string(out[j].Key) })
	return out, nil
}

func (s *SQLiteBackend) BatchCommit(ctx context.Context, ops []BatchOp) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.NewStorageError(fmt.Sprintf("begin tx: %v", err))
	}
	defer tx.Rollback()

	for _, op := range ops {
		switch op.Kind {
		case OpPut:
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO kv (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value
			`, string(op.Key), op.Value); err != nil {
				return types.NewStorageError(fmt.Sprintf("batch put: %v", err))
			}
		case OpDelete:
			if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, string(op.Key)); err != nil {
				return types.NewStorageError(fmt.Sprintf("batch delete: %v", err))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return types.NewStorageError(fmt.Sprintf("commit tx: %v", err))
	}
	return nil
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

func prefixUpperBound(prefix []byte) (upper []byte, unbounded bool) {
	upper = make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xFF {
			upper[i]++
			return upper[:i+1], false
		}
	}
	return nil, true
}
