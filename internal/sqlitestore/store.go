// Package sqlitestore keeps the inventory in a local SQLite database for field
// work without the API server.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/protoarbol/catastro/internal/sqlquery"
	"github.com/protoarbol/catastro/trees"
)

// Store persists trees in a SQLite file.
type Store struct {
	db   *sql.DB
	path string
	qb   sqlquery.Builder
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, qb: sqlquery.SQLite()}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS arboles (
            id_arbol INTEGER PRIMARY KEY AUTOINCREMENT,
            nom_arbol TEXT NOT NULL,
            nom_cientifico TEXT,
            especie TEXT,
            edad INTEGER,
            altura REAL,
            estado TEXT,
            lat REAL NOT NULL,
            lng REAL NOT NULL,
            descripcion TEXT,
            imagen TEXT
        )`,
		`CREATE INDEX IF NOT EXISTS arboles_especie_idx ON arboles (especie)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func transport(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, trees.ErrTransport, err)
}

func (s *Store) List(ctx context.Context) ([]trees.Tree, error) {
	query, args, err := s.qb.List()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, transport("list trees", err)
	}
	defer rows.Close()

	out := make([]trees.Tree, 0)
	for rows.Next() {
		t, err := trees.ScanTree(rows)
		if err != nil {
			return nil, transport("scan tree", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, transport("list trees", err)
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, t trees.Tree) (trees.Tree, error) {
	query, args, err := s.qb.Insert(t, false)
	if err != nil {
		return trees.Tree{}, err
	}
	created, err := trees.ScanTree(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return trees.Tree{}, transport("create tree", err)
	}
	return created, nil
}

func (s *Store) Update(ctx context.Context, id int64, t trees.Tree) (trees.Tree, error) {
	query, args, err := s.qb.Update(id, t)
	if err != nil {
		return trees.Tree{}, err
	}
	updated, err := trees.ScanTree(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return trees.Tree{}, trees.ErrNotFound
		}
		return trees.Tree{}, transport("update tree", err)
	}
	return updated, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	query, args, err := s.qb.Delete(id)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return transport("delete tree", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return transport("delete tree", err)
	}
	if n == 0 {
		return trees.ErrNotFound
	}
	return nil
}

// Seed inserts records with their own ids in one transaction. Records whose
// id is zero get one assigned.
func (s *Store) Seed(ctx context.Context, records []trees.Tree) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return transport("seed trees", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range records {
		query, args, err := s.qb.Insert(t, t.ID != 0)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return transport("seed trees", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return transport("seed trees", err)
	}
	return nil
}
