package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"syncgate/internal/core"
)

// PostgreSQLStore persists queued operations in PostgreSQL.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLStore creates the queue table and indexes if needed.
func NewPostgreSQLStore(pool *pgxpool.Pool) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool is required")
	}

	ctx := context.Background()
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS queue_operations (
			id TEXT PRIMARY KEY,
			op_type TEXT NOT NULL,
			query TEXT NOT NULL,
			data BYTEA,
			timestamp BIGINT NOT NULL,
			status TEXT NOT NULL,
			retry_count INTEGER NOT NULL,
			priority INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue_operations table: %w", err)
	}

	if _, err := pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_queue_replay ON queue_operations(priority DESC, timestamp ASC)"); err != nil {
		return nil, fmt.Errorf("failed to create queue replay index: %w", err)
	}
	if _, err := pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_queue_status ON queue_operations(status)"); err != nil {
		return nil, fmt.Errorf("failed to create queue status index: %w", err)
	}

	return &PostgreSQLStore{pool: pool}, nil
}

// Enqueue persists an operation, overwriting any duplicate id.
func (s *PostgreSQLStore) Enqueue(ctx context.Context, id string, op core.Operation) error {
	if err := validateEnqueue(id, op); err != nil {
		return err
	}

	item := newQueuedOperation(id, op, time.Now())
	_, err := s.pool.Exec(ctx, `
		INSERT INTO queue_operations (id, op_type, query, data, timestamp, status, retry_count, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			op_type = EXCLUDED.op_type,
			query = EXCLUDED.query,
			data = EXCLUDED.data,
			timestamp = EXCLUDED.timestamp,
			status = EXCLUDED.status,
			retry_count = EXCLUDED.retry_count,
			priority = EXCLUDED.priority
	`, id, string(op.Type), op.Query, []byte(op.Data), item.Meta.Timestamp.UnixMilli(),
		string(item.Meta.Status), item.Meta.RetryCount, item.Meta.Priority)
	if err != nil {
		return core.NewStorageError("insert queued operation", err)
	}
	return nil
}

// Pending returns queued operations in replay order.
func (s *PostgreSQLStore) Pending(ctx context.Context, filter Filter) ([]*core.QueuedOperation, error) {
	q := `
		SELECT id, op_type, query, data, timestamp, status, retry_count, priority
		FROM queue_operations
	`
	args := []any{}
	if filter.Status != "" {
		q += " WHERE status = $1"
		args = append(args, string(filter.Status))
	}
	if filter.ByTimestamp {
		q += " ORDER BY timestamp ASC, id ASC"
	} else {
		q += " ORDER BY priority DESC, timestamp ASC, id ASC"
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, core.NewStorageError("query pending operations", err)
	}
	defer rows.Close()

	ops := make([]*core.QueuedOperation, 0)
	for rows.Next() {
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
		ops = append(ops, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("iterate pending operations", err)
	}
	return ops, nil
}

// PatchMeta merges the patch into stored metadata.
func (s *PostgreSQLStore) PatchMeta(ctx context.Context, id string, patch core.MetaPatch) error {
	if id == "" {
		return core.NewValidationError("operation id is required")
	}

	sets := []string{}
	args := []any{}
	if patch.Status != nil {
		args = append(args, string(*patch.Status))
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if patch.RetryCount != nil {
		args = append(args, *patch.RetryCount)
		sets = append(sets, fmt.Sprintf("retry_count = $%d", len(args)))
	}
	if patch.Priority != nil {
		args = append(args, *patch.Priority)
		sets = append(sets, fmt.Sprintf("priority = $%d", len(args)))
	}
	if len(sets) == 0 {
		// Nothing to merge, but the operation must still exist.
		var one int
		err := s.pool.QueryRow(ctx, "SELECT 1 FROM queue_operations WHERE id = $1", id).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return core.ErrNotFound
		}
		if err != nil {
			return core.NewStorageError("query queued operation", err)
		}
		return nil
	}

	args = append(args, id)
	q := fmt.Sprintf("UPDATE queue_operations SET %s WHERE id = $%d", joinSets(sets), len(args))
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return core.NewStorageError("update operation metadata", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Remove deletes one operation.
func (s *PostgreSQLStore) Remove(ctx context.Context, id string) error {
	if id == "" {
		return core.NewValidationError("operation id is required")
	}

	tag, err := s.pool.Exec(ctx, "DELETE FROM queue_operations WHERE id = $1", id)
	if err != nil {
		return core.NewStorageError("delete queued operation", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Clear empties the queue.
func (s *PostgreSQLStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM queue_operations"); err != nil {
		return core.NewStorageError("clear queue", err)
	}
	return nil
}

// Len returns the number of queued operations.
func (s *PostgreSQLStore) Len(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM queue_operations").Scan(&count); err != nil {
		return 0, core.NewStorageError("count queued operations", err)
	}
	return count, nil
}

// Close is a no-op; the shared pool is closed by the storage layer.
func (s *PostgreSQLStore) Close() error {
	return nil
}
