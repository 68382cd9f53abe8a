package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/protoarbol/catastro/trees"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "arboles.json"))
}

func names(records []trees.Tree) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.CommonName)
	}
	return out
}

func TestMissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)
	got, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty inventory, got %#v", got)
	}
}

func TestCreateAssignsMaxPlusOne(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Seed(ctx, []trees.Tree{{ID: 5, CommonName: "Peumo"}, {ID: 2, CommonName: "Boldo"}}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	created, err := s.Create(ctx, trees.Tree{CommonName: "Quillay", PendingID: "pending-1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID != 6 || created.Pending() {
		t.Fatalf("unexpected created record %+v", created)
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff([]string{"Quillay", "Peumo", "Boldo"}, names(got)); diff != "" {
		t.Fatalf("expected newest first (-want +got):\n%s", diff)
	}
}

func TestUpdateKeepsImagePositionAndLegacyHealth(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	img := "data:image/png;base64,aGVsbG8="
	if err := s.Seed(ctx, []trees.Tree{{ID: 1, CommonName: "Peumo", LegacyHealth: "Malo", Lat: -36.8, Lng: -73, Image: &img}}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	updated, err := s.Update(ctx, 1, trees.Tree{CommonName: "Peumo viejo", Health: "Regular", Lat: 1, Lng: 1})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Image == nil || *updated.Image != img {
		t.Fatalf("image lost: %v", updated.Image)
	}
	if updated.Lat != -36.8 || updated.Lng != -73 {
		t.Fatalf("position changed: %v,%v", updated.Lat, updated.Lng)
	}
	if updated.LegacyHealth != "Malo" {
		t.Fatalf("legacy health lost")
	}

	if _, err := s.Update(ctx, 99, trees.Tree{}); !errors.Is(err, trees.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Seed(ctx, []trees.Tree{{ID: 1, CommonName: "a"}, {ID: 2, CommonName: "b"}}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, 1); !errors.Is(err, trees.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	got, _ := s.List(ctx)
	if diff := cmp.Diff([]string{"b"}, names(got)); diff != "" {
		t.Fatalf("remaining (-want +got):\n%s", diff)
	}
}

func TestReadsBareArrayAndLegacyFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arboles.json")
	raw := `[{"id_arbol": 3, "nom_arbol": "Boldo", "estado_actual": "Malo", "edad": "12", "lat": -36.8, "lng": -73.0, "imagen": null}]`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := New(path).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].HealthValue(true) != "Malo" {
		t.Fatalf("unexpected records %+v", got)
	}
	if years, ok := got[0].Age.Years(); !ok || years != 12 {
		t.Fatalf("string age not parsed: %v", got[0].Age)
	}
}

func TestCorruptFileIsATransportError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arboles.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path).List(context.Background()); !errors.Is(err, trees.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestConcurrentCreatesGetDistinctIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arboles.json")
	a, b := New(path), New(path)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _, _ = a.Create(ctx, trees.Tree{CommonName: "a"}) }()
		go func() { defer wg.Done(); _, _ = b.Create(ctx, trees.Tree{CommonName: "b"}) }()
	}
	wg.Wait()

	got, err := a.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	seen := map[int64]bool{}
	for _, r := range got {
		if seen[r.ID] {
			t.Fatalf("duplicate id %d", r.ID)
		}
		seen[r.ID] = true
	}
	if len(got) != 20 {
		t.Fatalf("expected 20 records, got %d", len(got))
	}
}

func TestWatchReportsWrites(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 4)
	errc := make(chan error, 1)
	go func() {
		errc <- s.Watch(ctx, func() { changed <- struct{}{} }, nil)
	}()
	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	other := New(s.Path())
	if _, err := other.Create(context.Background(), trees.Tree{CommonName: "Peumo"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatalf("no change notification")
	}
	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Watch: %v", err)
	}
}
