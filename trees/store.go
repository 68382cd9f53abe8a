package trees

import (
	"context"
	"database/sql"
	"errors"
)

var (
	// ErrNotFound is returned when a mutation targets an id the store does not hold.
	ErrNotFound = errors.New("tree not found")
	// ErrTransport wraps network and storage failures.
	ErrTransport = errors.New("record store unavailable")
)

// RecordStore is the persistence collaborator behind the Sync Controller.
type RecordStore interface {
	// List returns the full inventory.
	List(ctx context.Context) ([]Tree, error)
	// Create persists t and returns it with its assigned id.
	Create(ctx context.Context, t Tree) (Tree, error)
	// Update overwrites the record with the given id. A nil image keeps the
	// stored one.
	Update(ctx context.Context, id int64, t Tree) (Tree, error)
	// Delete removes the record with the given id.
	Delete(ctx context.Context, id int64) error
}

// Columns is the arboles column list in scan order.
var Columns = []string{
	"id_arbol", "nom_arbol", "nom_cientifico", "especie", "edad", "altura",
	"estado", "lat", "lng", "descripcion", "imagen",
}

// Scanner is satisfied by pgx.Row, *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanTree reads one row selected with Columns.
func ScanTree(row Scanner) (Tree, error) {
	var t Tree
	var scientific, species, health, description, image sql.NullString
	var age sql.NullInt64
	var height sql.NullFloat64

	if err := row.Scan(
		&t.ID,
		&t.CommonName,
		&scientific,
		&species,
		&age,
		&height,
		&health,
		&t.Lat,
		&t.Lng,
		&description,
		&image,
	); err != nil {
		return t, err
	}

	t.ScientificName = scientific.String
	t.Species = species.String
	t.Health = health.String
	t.Description = description.String
	if age.Valid {
		t.Age = AgeOf(int(age.Int64))
	}
	if height.Valid {
		h := height.Float64
		t.Height = &h
	}
	if image.Valid {
		img := image.String
		t.Image = &img
	}
	return t, nil
}
