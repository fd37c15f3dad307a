package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `CREATE TABLE IF NOT EXISTS documents (
        collection TEXT NOT NULL,
        id TEXT NOT NULL,
        body TEXT NOT NULL,
        PRIMARY KEY(collection, id)
    );`,
	list: `SELECT body FROM documents WHERE collection = ?1 ORDER BY id`,
	get:  `SELECT body FROM documents WHERE collection = ?1 AND id = ?2`,
	set: `INSERT INTO documents (collection, id, body) VALUES (?1, ?2, json(?3))
        ON CONFLICT(collection, id) DO UPDATE SET body = excluded.body`,
	merge: `INSERT INTO documents (collection, id, body) VALUES (?1, ?2, json_patch('{}', ?3))
        ON CONFLICT(collection, id) DO UPDATE SET body = json_patch(documents.body, ?3)`,
	delete: `DELETE FROM documents WHERE collection = ?1 AND id = ?2`,
}

// NewSQLite opens or creates the database file at path and ensures the schema.
func NewSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %s: %w", path, err)
	}
	// A single connection serialises writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, sqliteDialect)
}
