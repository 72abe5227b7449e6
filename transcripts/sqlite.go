package transcripts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLiteSchema creates the key/value table SQLiteSlot reads and writes.
const SQLiteSchema = `
	create table if not exists kv (
		key text primary key not null,
		value blob not null
	);`

type (
	// SQLiteSlot stores the slot as one row of the kv table.
	SQLiteSlot struct {
		db  *sql.DB
		key string
	}
)

var _ Slot = SQLiteSlot{}

// NewSQLiteSlot returns a slot for key. An empty key selects DefaultKey.
func NewSQLiteSlot(db *sql.DB, key string) SQLiteSlot {
	if key == "" {
		key = DefaultKey
	}
	return SQLiteSlot{db: db, key: key}
}

// MigrateSQLite creates the kv table when it does not exist yet.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, SQLiteSchema); err != nil {
		return fmt.Errorf("creating kv table: %w", err)
	}
	return nil
}

func (s SQLiteSlot) Read(ctx context.Context) ([]byte, bool, error) {
	var data []byte
	err := s.db.
		QueryRowContext(ctx, "select value from kv where key = $1", s.key).
		Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading slot %q: %w", s.key, err)
	}

	return data, true, nil
}

func (s SQLiteSlot) Write(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(
		ctx,
		`insert into kv (key, value) values ($1, $2)
		on conflict (key) do update set value = excluded.value`,
		s.key,
		data,
	)
	if err != nil {
		return fmt.Errorf("writing slot %q: %w", s.key, err)
	}

	return nil
}

func (s SQLiteSlot) Remove(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "delete from kv where key = $1", s.key)
	if err != nil {
		return fmt.Errorf("removing slot %q: %w", s.key, err)
	}

	return nil
}
