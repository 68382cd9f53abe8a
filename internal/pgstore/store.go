// Package pgstore is the Postgres RecordStore behind the API server.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/protoarbol/catastro/internal/sqlquery"
	"github.com/protoarbol/catastro/trees"
)

// Store persists trees in the arboles table.
type Store struct {
	db *pgxpool.Pool
	qb sqlquery.Builder
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db, qb: sqlquery.Postgres()}
}

// Open connects to databaseURL and makes sure the schema exists.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return New(pool), nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.db.Close()
}

// Ping checks connectivity for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS arboles (
            id_arbol SERIAL PRIMARY KEY,
            nom_arbol TEXT NOT NULL,
            nom_cientifico TEXT,
            especie TEXT,
            edad INTEGER,
            altura DOUBLE PRECISION,
            estado TEXT,
            lat DOUBLE PRECISION NOT NULL,
            lng DOUBLE PRECISION NOT NULL,
            descripcion TEXT,
            imagen TEXT
        )`,
		`CREATE INDEX IF NOT EXISTS arboles_especie_idx ON arboles (especie)`,
		`CREATE INDEX IF NOT EXISTS arboles_estado_idx ON arboles (estado)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
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
	rows, err := s.db.Query(ctx, query, args...)
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
	created, err := trees.ScanTree(s.db.QueryRow(ctx, query, args...))
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
	updated, err := trees.ScanTree(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	res, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return transport("delete tree", err)
	}
	if res.RowsAffected() == 0 {
		return trees.ErrNotFound
	}
	return nil
}

// Seed inserts records in one batch. Records with an id keep it and the id
// sequence is moved past the highest one afterwards.
func (s *Store) Seed(ctx context.Context, records []trees.Tree) error {
	batch := &pgx.Batch{}
	for _, t := range records {
		query, args, err := s.qb.Insert(t, t.ID != 0)
		if err != nil {
			return err
		}
		batch.Queue(query, args...)
	}
	batch.Queue(`SELECT setval(pg_get_serial_sequence('arboles', 'id_arbol'), GREATEST((SELECT COALESCE(MAX(id_arbol), 0) FROM arboles), 1))`)

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return transport("seed trees", err)
		}
	}
	return nil
}
