package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var postgresDialect = dialect{
	name: "postgres",
	schema: `CREATE TABLE IF NOT EXISTS documents (
        collection TEXT NOT NULL,
        id TEXT NOT NULL,
        body JSONB NOT NULL,
        PRIMARY KEY (collection, id)
    );`,
	list: `SELECT body FROM documents WHERE collection = $1 ORDER BY id`,
	get:  `SELECT body FROM documents WHERE collection = $1 AND id = $2`,
	set: `INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3::jsonb)
        ON CONFLICT (collection, id) DO UPDATE SET body = EXCLUDED.body`,
	merge: `INSERT INTO documents (collection, id, body) VALUES ($1, $2, jsonb_strip_nulls($3::jsonb))
        ON CONFLICT (collection, id) DO UPDATE
        SET body = jsonb_strip_nulls(documents.body || $3::jsonb)`,
	delete: `DELETE FROM documents WHERE collection = $1 AND id = $2`,
}

// NewPostgres connects to databaseURL through the pgx driver and ensures the
// schema exists.
func NewPostgres(ctx context.Context, databaseURL string) (*SQLStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres store: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return newSQLStore(ctx, db, postgresDialect)
}
