// Package sqlquery builds the arboles statements shared by the SQL stores.
package sqlquery

import (
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/protoarbol/catastro/trees"
)

// Table is the inventory table name.
const Table = "arboles"

// Builder wraps squirrel with the placeholder format of one driver.
type Builder struct {
	sq squirrel.StatementBuilderType
}

// Postgres returns a builder using $n placeholders.
func Postgres() Builder {
	return Builder{sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)}
}

// SQLite returns a builder using ? placeholders.
func SQLite() Builder {
	return Builder{sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)}
}

func returning() string {
	return "RETURNING " + strings.Join(trees.Columns, ", ")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List selects every row, newest first.
func (b Builder) List() (string, []any, error) {
	return b.sq.Select(trees.Columns...).From(Table).OrderBy("id_arbol DESC").ToSql()
}

// Get selects one row by id.
func (b Builder) Get(id int64) (string, []any, error) {
	return b.sq.Select(trees.Columns...).From(Table).Where(squirrel.Eq{"id_arbol": id}).ToSql()
}

// Insert adds t and returns the stored row. With explicitID the record's own
// id is written instead of letting the database assign one.
func (b Builder) Insert(t trees.Tree, explicitID bool) (string, []any, error) {
	columns := trees.Columns[1:]
	values := []any{
		t.CommonName,
		nullable(t.ScientificName),
		nullable(t.Species),
		t.Age.Nullable(),
		t.Height,
		t.Health,
		t.Lat,
		t.Lng,
		nullable(t.Description),
		t.Image,
	}
	if explicitID {
		columns = trees.Columns
		values = append([]any{t.ID}, values...)
	}
	return b.sq.Insert(Table).Columns(columns...).Values(values...).Suffix(returning()).ToSql()
}

// Update overwrites the editable columns of row id. Position is left alone and
// a nil image keeps the stored one.
func (b Builder) Update(id int64, t trees.Tree) (string, []any, error) {
	return b.sq.Update(Table).
		Set("nom_arbol", t.CommonName).
		Set("nom_cientifico", nullable(t.ScientificName)).
		Set("especie", nullable(t.Species)).
		Set("edad", t.Age.Nullable()).
		Set("altura", t.Height).
		Set("estado", t.Health).
		Set("descripcion", nullable(t.Description)).
		Set("imagen", squirrel.Expr("COALESCE(?, imagen)", t.Image)).
		Where(squirrel.Eq{"id_arbol": id}).
		Suffix(returning()).
		ToSql()
}

// Delete removes row id.
func (b Builder) Delete(id int64) (string, []any, error) {
	return b.sq.Delete(Table).Where(squirrel.Eq{"id_arbol": id}).ToSql()
}
