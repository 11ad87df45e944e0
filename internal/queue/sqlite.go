package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"syncgate/internal/core"
)

// SQLiteStore persists queued operations in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the queue table and indexes if needed.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS queue_operations (
			id TEXT PRIMARY KEY,
			op_type TEXT NOT NULL,
			query TEXT NOT NULL,
			data BLOB,
			timestamp INTEGER NOT NULL,
			status TEXT NOT NULL,
			retry_count INTEGER NOT NULL,
			priority INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue_operations table: %w", err)
	}

	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_queue_replay ON queue_operations(priority DESC, timestamp ASC)"); err != nil {
		return nil, fmt.Errorf("failed to create queue replay index: %w", err)
	}
	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_queue_status ON queue_operations(status)"); err != nil {
		return nil, fmt.Errorf("failed to create queue status index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Enqueue persists an operation, overwriting any duplicate id.
func (s *SQLiteStore) Enqueue(ctx context.Context, id string, op core.Operation) error {
	if err := validateEnqueue(id, op); err != nil {
		return err
	}

	item := newQueuedOperation(id, op, time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queue_operations (id, op_type, query, data, timestamp, status, retry_count, priority)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			op_type = excluded.op_type,
			query = excluded.query,
			data = excluded.data,
			timestamp = excluded.timestamp,
			status = excluded.status,
			retry_count = excluded.retry_count,
			priority = excluded.priority
	`, id, string(op.Type), op.Query, []byte(op.Data), item.Meta.Timestamp.UnixMilli(),
		string(item.Meta.Status), item.Meta.RetryCount, item.Meta.Priority)
	if err != nil {
		return core.NewStorageError("insert queued operation", err)
	}
	return nil
}

// Pending returns queued operations in replay order.
func (s *SQLiteStore) Pending(ctx context.Context, filter Filter) ([]*core.QueuedOperation, error) {
	q := `
		SELECT id, op_type, query, data, timestamp, status, retry_count, priority
		FROM queue_operations
	`
	args := []any{}
	if filter.Status != "" {
		q += " WHERE status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.ByTimestamp {
		q += " ORDER BY timestamp ASC, id ASC"
	} else {
		q += " ORDER BY priority DESC, timestamp ASC, id ASC"
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, core.NewStorageError("query pending operations", err)
	}
	defer rows.Close()

	ops := make([]*core.QueuedOperation, 0)
	for rows.Next() {
		item, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, item)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("iterate pending operations", err)
	}
	return ops, nil
}

func scanOperation(rows *sql.Rows) (*core.QueuedOperation, error) {
	var item core.QueuedOperation
	var opType, status string
	var data []byte
	var timestamp int64
	if err := rows.Scan(&item.ID, &opType, &item.Op.Query, &data, &timestamp, &status,
		&item.Meta.RetryCount, &item.Meta.Priority); err != nil {
		return nil, core.NewStorageError("scan queued operation", err)
	}
	item.Op.Type = core.OperationKind(opType)
	item.Op.Data = data
	item.Meta.Timestamp = time.UnixMilli(timestamp)
	item.Meta.Status = core.OperationStatus(status)
	return &item, nil
}

// PatchMeta merges the patch into stored metadata.
func (s *SQLiteStore) PatchMeta(ctx context.Context, id string, patch core.MetaPatch) error {
	if id == "" {
		return core.NewValidationError("operation id is required")
	}

	sets := []string{}
	args := []any{}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.RetryCount != nil {
		sets = append(sets, "retry_count = ?")
		args = append(args, *patch.RetryCount)
	}
	if patch.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *patch.Priority)
	}
	if len(sets) == 0 {
		// Nothing to merge, but the operation must still exist.
		var one int
		err := s.db.QueryRowContext(ctx, "SELECT 1 FROM queue_operations WHERE id = ?", id).Scan(&one)
		if err == sql.ErrNoRows {
			return core.ErrNotFound
		}
		if err != nil {
			return core.NewStorageError("query queued operation", err)
		}
		return nil
	}

	q := "UPDATE queue_operations SET " + joinSets(sets) + " WHERE id = ?"
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return core.NewStorageError("update operation metadata", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.NewStorageError("read metadata update rows affected", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

func joinSets(sets []string) string {
	out := ""
	for i, s := range sets {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// Remove deletes one operation.
func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	if id == "" {
		return core.NewValidationError("operation id is required")
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM queue_operations WHERE id = ?", id)
	if err != nil {
		return core.NewStorageError("delete queued operation", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.NewStorageError("read delete rows affected", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Clear empties the queue.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM queue_operations"); err != nil {
		return core.NewStorageError("clear queue", err)
	}
	return nil
}

// Len returns the number of queued operations.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM queue_operations").Scan(&count); err != nil {
		return 0, core.NewStorageError("count queued operations", err)
	}
	return count, nil
}

// Close is a no-op; DB lifecycle is managed by the storage layer.
func (s *SQLiteStore) Close() error {
	return nil
}
