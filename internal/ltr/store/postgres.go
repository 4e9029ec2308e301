package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const schema = `
CREATE TABLE IF NOT EXISTS ltr_elements (
	store      TEXT        NOT NULL,
	type       TEXT        NOT NULL,
	name       TEXT        NOT NULL,
	definition JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (store, type, name)
)`

// PostgresBackend stores definitions in the ltr_elements table, one row per
// store, type and name.
type PostgresBackend struct {
	db    *sql.DB
	store string
}

func NewPostgresBackend(db *sql.DB, store string) *PostgresBackend {
	return &PostgresBackend{db: db, store: store}
}

// EnsureSchema creates the ltr_elements table when it does not exist.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating ltr_elements: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Get(ctx context.Context, typ ElementType, name string) ([]byte, error) {
	var definition []byte
	err := b.db.QueryRowContext(ctx,
		`SELECT definition FROM ltr_elements WHERE store = $1 AND type = $2 AND name = $3`,
		b.store, string(typ), name,
	).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(typ, name)
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s [%s]: %w", typ, name, err)
	}
	return definition, nil
}

func (b *PostgresBackend) Put(ctx context.Context, typ ElementType, name string, definition []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO ltr_elements (store, type, name, definition)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (store, type, name)
		 DO UPDATE SET definition = EXCLUDED.definition, updated_at = now()`,
		b.store, string(typ), name, string(definition),
	)
	if err != nil {
		return fmt.Errorf("upserting %s [%s]: %w", typ, name, err)
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context, typ ElementType, name string) error {
	result, err := b.db.ExecContext(ctx,
		`DELETE FROM ltr_elements WHERE store = $1 AND type = $2 AND name = $3`,
		b.store, string(typ), name,
	)
	if err != nil {
		return fmt.Errorf("deleting %s [%s]: %w", typ, name, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return notFound(typ, name)
	}
	return nil
}

func (b *PostgresBackend) Search(ctx context.Context, typ ElementType, pattern string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT name FROM ltr_elements
		 WHERE store = $1 AND type = $2 AND name LIKE $3 ESCAPE '\'
		 ORDER BY name`,
		b.store, string(typ), likePattern(pattern),
	)
	if err != nil {
		return nil, fmt.Errorf("searching %s [%s]: %w", typ, pattern, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning %s name: %w", typ, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// likePattern turns a '*' glob into a LIKE pattern.
func likePattern(glob string) string {
	var sb strings.Builder
	for _, r := range glob {
		switch r {
		case '%', '_', '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case '*':
			sb.WriteByte('%')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
