package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const DefaultPostgresTable = "substreams_cursors"

var _ Checkpointer = (*PostgresCheckpointer)(nil)

// PostgresCheckpointer stores checkpoints in a table keyed by split id.
type PostgresCheckpointer struct {
	db        *sql.DB
	tableName string
	zlogger   *zap.Logger
}

func NewPostgresCheckpointer(db *sql.DB, tableName string, zlogger *zap.Logger) *PostgresCheckpointer {
	if tableName == "" {
		tableName = DefaultPostgresTable
	}

	return &PostgresCheckpointer{
		db:        db,
		tableName: tableName,
		zlogger:   zlogger,
	}
}

func (s *PostgresCheckpointer) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		split_id TEXT PRIMARY KEY,
		cursor TEXT NOT NULL,
		block_num BIGINT NOT NULL,
		block_id TEXT NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`, pq.QuoteIdentifier(s.tableName))

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table %q: %w", s.tableName, err)
	}

	return nil
}

func (s *PostgresCheckpointer) Load(ctx context.Context, splitID string) (*Checkpoint, error) {
	if err := validateSplitID(splitID); err != nil {
		return nil, err
	}

	var token string
	query := fmt.Sprintf("SELECT cursor FROM %s WHERE split_id = $1", pq.QuoteIdentifier(s.tableName))
	err := s.db.QueryRowContext(ctx, query, splitID).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.zlogger.Info("no checkpoint found", zap.String("split_id", splitID))
			return nil, nil
		}

		return nil, fmt.Errorf("select cursor of split %q: %w", splitID, err)
	}

	checkpoint, err := NewCheckpoint(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor of split %q: %w", splitID, err)
	}

	return checkpoint, nil
}

func (s *PostgresCheckpointer) Save(ctx context.Context, splitID string, checkpoint *Checkpoint) error {
	if err := validateSplitID(splitID); err != nil {
		return err
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (split_id, cursor, block_num, block_id, updated_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT (split_id) DO UPDATE
	SET cursor = EXCLUDED.cursor, block_num = EXCLUDED.block_num, block_id = EXCLUDED.block_id, updated_at = NOW()`,
		pq.QuoteIdentifier(s.tableName))

	if _, err := s.db.ExecContext(ctx, query, splitID, checkpoint.Token, int64(checkpoint.Cursor.Block.Num), checkpoint.Cursor.Block.ID); err != nil {
		return fmt.Errorf("upsert cursor of split %q: %w", splitID, err)
	}

	return nil
}
