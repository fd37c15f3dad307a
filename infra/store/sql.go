// Package store provides persistent backends for the core store boundary.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kilianp07/darkstore/core/model"
	core "github.com/kilianp07/darkstore/core/store"
)

// dialect holds the statements that differ between SQL engines. Every
// statement takes (collection, id[, body]) positionally.
type dialect struct {
	name   string
	schema string
	list   string
	get    string
	set    string
	merge  string
	delete string
}

// SQLStore keeps each record as a JSON document in a single table keyed by
// collection and id.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, unreachable(d.name, "ping", err)
	}
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s store: create schema: %w", d.name, err)
	}
	return &SQLStore{db: db, d: d}, nil
}

func (s *SQLStore) List(ctx context.Context, collection string) ([]core.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.d.list, collection)
	if err != nil {
		return nil, unreachable(s.d.name, "list "+collection, err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.Record
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("%s store: scan %s: %w", s.d.name, collection, err)
		}
		rec, err := decodeBody(body)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unreachable(s.d.name, "list "+collection, err)
	}
	return out, nil
}

func (s *SQLStore) Get(ctx context.Context, collection, id string) (core.Record, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, s.d.get, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, unreachable(s.d.name, "get "+collection+"/"+id, err)
	}
	return decodeBody(body)
}

func (s *SQLStore) Merge(ctx context.Context, collection, id string, fields core.Record) error {
	patch := make(core.Record, len(fields)+1)
	for k, v := range fields {
		patch[k] = v
	}
	patch[core.IDField] = id
	body, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.d.merge, collection, id, string(body)); err != nil {
		return unreachable(s.d.name, "merge "+collection+"/"+id, err)
	}
	return nil
}

func (s *SQLStore) Set(ctx context.Context, collection, id string, rec core.Record) error {
	doc, err := core.Normalize(rec)
	if err != nil {
		return err
	}
	doc[core.IDField] = id
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.d.set, collection, id, string(body)); err != nil {
		return unreachable(s.d.name, "set "+collection+"/"+id, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.ExecContext(ctx, s.d.delete, collection, id); err != nil {
		return unreachable(s.d.name, "delete "+collection+"/"+id, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error { return s.db.Close() }

func decodeBody(body []byte) (core.Record, error) {
	var rec core.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return rec, nil
}

func unreachable(backend, op string, err error) error {
	return fmt.Errorf("%s store: %s: %w: %w", backend, op, model.ErrStoreUnreachable, err)
}
