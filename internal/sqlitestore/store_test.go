package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/protoarbol/catastro/trees"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "arboles.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateListOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"Peumo", "Boldo", "Quillay"} {
		if _, err := s.Create(ctx, trees.Tree{CommonName: name, Health: "Saludable", Lat: -36.8, Lng: -73}); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}
	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	names := make([]string, 0, len(got))
	for _, r := range got {
		names = append(names, r.CommonName)
	}
	if diff := cmp.Diff([]string{"Quillay", "Boldo", "Peumo"}, names); diff != "" {
		t.Fatalf("expected newest first (-want +got):\n%s", diff)
	}
}

func TestCreateRoundTripsNullableColumns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	h := 7.25
	img := "data:image/png;base64,aGVsbG8="
	in := trees.Tree{
		CommonName: "Peumo", ScientificName: "Cryptocarya alba", Species: "Lauraceae",
		Age: trees.AgeOf(30), Height: &h, Health: "Regular", Lat: -36.82, Lng: -73.04,
		Description: "junto al canal", Image: &img,
	}
	created, err := s.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	in.ID = created.ID
	if diff := cmp.Diff(in, created); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}

	bare, err := s.Create(ctx, trees.Tree{CommonName: "Boldo", Health: "Malo", Lat: 1, Lng: 2})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if bare.Age.Present() || bare.Height != nil || bare.Image != nil {
		t.Fatalf("expected null columns to stay empty: %+v", bare)
	}
}

func TestUpdateKeepsImageAndPosition(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	img := "data:image/png;base64,aGVsbG8="
	created, err := s.Create(ctx, trees.Tree{CommonName: "Peumo", Health: "Saludable", Lat: -36.8, Lng: -73, Image: &img})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	edit := created
	edit.Image = nil
	edit.Health = "Muerto"
	edit.Lat, edit.Lng = 10, 10
	updated, err := s.Update(ctx, created.ID, edit)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Health != "Muerto" || updated.Image == nil || *updated.Image != img {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if updated.Lat != -36.8 || updated.Lng != -73 {
		t.Fatalf("position changed: %v,%v", updated.Lat, updated.Lng)
	}

	newImg := "data:image/png;base64,b3Rybw=="
	edit.Image = &newImg
	updated, err = s.Update(ctx, created.ID, edit)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if *updated.Image != newImg {
		t.Fatalf("image not replaced")
	}
}

func TestMissingIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.Update(ctx, 99, trees.Tree{CommonName: "x"}); !errors.Is(err, trees.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
	if err := s.Delete(ctx, 99); !errors.Is(err, trees.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on delete, got %v", err)
	}
}

func TestSeedKeepsIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	records := trees.Synthetic(20, 1)
	if err := s.Seed(ctx, records); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 20 || got[0].ID != 2019 || got[19].ID != 2000 {
		t.Fatalf("unexpected ids after seed: first=%d last=%d n=%d", got[0].ID, got[len(got)-1].ID, len(got))
	}

	next, err := s.Create(ctx, trees.Tree{CommonName: "Peumo", Health: "Malo", Lat: 1, Lng: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if next.ID != 2020 {
		t.Fatalf("expected id after the seeded range, got %d", next.ID)
	}
}
