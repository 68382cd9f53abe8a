package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/protoarbol/catastro/cache"
	"github.com/protoarbol/catastro/trees"
)

// fakeStore is an in-memory RecordStore with injectable failures and an
// optional gate that blocks mutations until released.
type fakeStore struct {
	mu      sync.Mutex
	records map[int64]trees.Tree
	nextID  int64
	fail    error
	calls   int
	gate    chan struct{}
	entered chan struct{}
	lastPut trees.Tree
	// deaf makes gated calls ignore ctx cancellation.
	deaf bool
}

func newFakeStore(records ...trees.Tree) *fakeStore {
	s := &fakeStore{records: make(map[int64]trees.Tree), nextID: 100}
	for _, r := range records {
		s.records[r.ID] = r.Clone()
	}
	return s
}

func (s *fakeStore) enter(ctx context.Context) error {
	s.mu.Lock()
	s.calls++
	gate, entered, fail, deaf := s.gate, s.entered, s.fail, s.deaf
	s.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil && deaf {
		<-gate
		return fail
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fail
}

func (s *fakeStore) List(ctx context.Context) ([]trees.Tree, error) {
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]trees.Tree, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *fakeStore) Create(ctx context.Context, t trees.Tree) (trees.Tree, error) {
	if err := s.enter(ctx); err != nil {
		return trees.Tree{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	s.records[t.ID] = t.Clone()
	return t, nil
}

func (s *fakeStore) Update(ctx context.Context, id int64, t trees.Tree) (trees.Tree, error) {
	if err := s.enter(ctx); err != nil {
		return trees.Tree{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPut = t.Clone()
	stored, ok := s.records[id]
	if !ok {
		return trees.Tree{}, trees.ErrNotFound
	}
	t.ID = id
	if t.Image == nil {
		t.Image = stored.Image
	}
	s.records[id] = t.Clone()
	return t, nil
}

func (s *fakeStore) Delete(ctx context.Context, id int64) error {
	if err := s.enter(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return trees.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func draft(name string) trees.Tree {
	return trees.Tree{CommonName: name, Health: "Saludable", Lat: -36.82, Lng: -73.04, Age: trees.AgeOf(5)}
}

func cachedKeys(c *cache.Cache) []string {
	out := []string{}
	for _, r := range c.Snapshot().Records() {
		out = append(out, r.Key())
	}
	return out
}

func TestCreateReplacesPendingInPlace(t *testing.T) {
	store := newFakeStore()
	store.gate = make(chan struct{})
	store.entered = make(chan struct{}, 1)
	c := cache.New(trees.Tree{ID: 1, CommonName: "Peumo"})
	ctl := New(store, c, WithLogger(quietLogger()))

	done := make(chan trees.Tree)
	go func() {
		saved, err := ctl.Create(context.Background(), draft("Boldo"))
		if err != nil {
			t.Errorf("Create: %v", err)
		}
		done <- saved
	}()

	<-store.entered
	records := c.Snapshot().Records()
	if len(records) != 2 || !records[0].Pending() || !strings.HasPrefix(records[0].Key(), PendingPrefix) {
		t.Fatalf("expected a pending record at the head, got %v", cachedKeys(c))
	}
	pendingKey := records[0].Key()
	close(store.gate)

	saved := <-done
	if saved.ID != 101 || saved.Pending() {
		t.Fatalf("unexpected saved record %+v", saved)
	}
	if diff := cmp.Diff([]string{"101", "1"}, cachedKeys(c)); diff != "" {
		t.Fatalf("cache keys (-want +got):\n%s", diff)
	}
	if c.Snapshot().Has(pendingKey) {
		t.Fatalf("pending record survived confirmation")
	}
}

func TestCreateFailureRemovesPending(t *testing.T) {
	store := newFakeStore()
	store.fail = errors.New("connection refused")
	c := cache.New(trees.Tree{ID: 1, CommonName: "Peumo"})
	ctl := New(store, c, WithLogger(quietLogger()))

	_, err := ctl.Create(context.Background(), draft("Boldo"))
	if !errors.Is(err, ErrOperationFailed) {
		t.Fatalf("expected ErrOperationFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("cause not wrapped: %v", err)
	}
	if diff := cmp.Diff([]string{"1"}, cachedKeys(c)); diff != "" {
		t.Fatalf("cache keys (-want +got):\n%s", diff)
	}
}

func TestCreateValidatesBeforeSubmitting(t *testing.T) {
	store := newFakeStore()
	c := cache.New()
	ctl := New(store, c, WithLogger(quietLogger()), WithRules(trees.Rules{MaxImageBytes: 4}))

	bad := draft("")
	_, err := ctl.Create(context.Background(), bad)
	var verr *trees.ValidationError
	if !errors.As(err, &verr) || verr.Field != "nom_arbol" {
		t.Fatalf("expected nom_arbol validation error, got %v", err)
	}

	big := draft("Boldo")
	img := "data:image/png;base64,aGVsbG8gd29ybGQ="
	big.Image = &img
	if _, err := ctl.Create(context.Background(), big); !errors.As(err, &verr) || verr.Field != "imagen" {
		t.Fatalf("expected imagen validation error, got %v", err)
	}

	if store.callCount() != 0 || c.Snapshot().Len() != 0 {
		t.Fatalf("invalid records reached the store or the cache")
	}
}

func TestCreateSpeciesFallback(t *testing.T) {
	store := newFakeStore()
	ctl := New(store, cache.New(), WithLogger(quietLogger()), WithSpeciesFallback(true))
	saved, err := ctl.Create(context.Background(), draft("Quillay"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if saved.Species != "Quillay" {
		t.Fatalf("expected species to default to the common name, got %q", saved.Species)
	}
}

func TestUpdateKeepsStoredImage(t *testing.T) {
	img := "data:image/jpeg;base64,/9j/4AAQSkZJRg=="
	base := draft("Peumo")
	base.ID = 7
	base.Image = &img
	store := newFakeStore(base)
	c := cache.New(base)
	ctl := New(store, c, WithLogger(quietLogger()))

	health := "Malo"
	saved, err := ctl.Update(context.Background(), 7, trees.Edit{Health: &health})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if store.lastPut.Image != nil {
		t.Fatalf("expected the submission to omit the image")
	}
	if saved.Image == nil || *saved.Image != img {
		t.Fatalf("image changed: %v", saved.Image)
	}
	cached, _ := c.Snapshot().Get("7")
	if cached.Health != "Malo" || cached.Image == nil || *cached.Image != img {
		t.Fatalf("cache not updated correctly: %+v", cached)
	}
}

func TestUpdateFailureLeavesCacheUntouched(t *testing.T) {
	base := draft("Peumo")
	base.ID = 7
	store := newFakeStore(base)
	store.fail = errors.New("timeout")
	c := cache.New(base)
	ctl := New(store, c, WithLogger(quietLogger()))

	name := "Peumo grande"
	if _, err := ctl.Update(context.Background(), 7, trees.Edit{CommonName: &name}); !errors.Is(err, ErrOperationFailed) {
		t.Fatalf("expected ErrOperationFailed, got %v", err)
	}
	cached, _ := c.Snapshot().Get("7")
	if cached.CommonName != "Peumo" {
		t.Fatalf("cache changed after a failed update: %q", cached.CommonName)
	}
}

func TestUpdateUnknownID(t *testing.T) {
	ctl := New(newFakeStore(), cache.New(), WithLogger(quietLogger()))
	_, err := ctl.Update(context.Background(), 42, trees.Edit{})
	if !errors.Is(err, ErrOperationFailed) || !errors.Is(err, trees.ErrNotFound) {
		t.Fatalf("expected wrapped ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	base := draft("Peumo")
	base.ID = 7
	store := newFakeStore(base)
	c := cache.New(base)
	ctl := New(store, c, WithLogger(quietLogger()))

	store.fail = errors.New("500")
	if err := ctl.Delete(context.Background(), 7); !errors.Is(err, ErrOperationFailed) {
		t.Fatalf("expected ErrOperationFailed, got %v", err)
	}
	if !c.Snapshot().Has("7") {
		t.Fatalf("record removed before the store confirmed")
	}

	store.fail = nil
	if err := ctl.Delete(context.Background(), 7); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if c.Snapshot().Has("7") {
		t.Fatalf("record still cached after delete")
	}
}

func TestSecondMutationForSameIDIsRejected(t *testing.T) {
	base := draft("Peumo")
	base.ID = 7
	store := newFakeStore(base)
	store.gate = make(chan struct{})
	store.entered = make(chan struct{}, 1)
	ctl := New(store, cache.New(base), WithLogger(quietLogger()))

	errc := make(chan error)
	go func() {
		_, err := ctl.Update(context.Background(), 7, trees.Edit{})
		errc <- err
	}()
	<-store.entered

	if err := ctl.Delete(context.Background(), 7); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}
	if got := store.callCount(); got != 1 {
		t.Fatalf("expected one store call, got %d", got)
	}

	close(store.gate)
	if err := <-errc; err != nil {
		t.Fatalf("first update: %v", err)
	}
	if ctl.InFlight("7") {
		t.Fatalf("key still held after completion")
	}
}

func TestKeyHeldUntilStoreReturns(t *testing.T) {
	base := draft("Peumo")
	base.ID = 7
	store := newFakeStore(base)
	store.gate = make(chan struct{})
	store.entered = make(chan struct{}, 1)
	store.deaf = true
	ctl := New(store, cache.New(base), WithLogger(quietLogger()), WithTimeout(5*time.Millisecond))

	errc := make(chan error)
	go func() {
		errc <- ctl.Delete(context.Background(), 7)
	}()
	<-store.entered

	time.Sleep(50 * time.Millisecond)
	if !ctl.InFlight("7") {
		t.Fatalf("key released while the store call is still running")
	}
	if _, err := ctl.Update(context.Background(), 7, trees.Edit{}); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}

	close(store.gate)
	if err := <-errc; err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ctl.InFlight("7") {
		t.Fatalf("key still held after completion")
	}
}

func TestOperationsResolveAfterTimeout(t *testing.T) {
	base := draft("Peumo")
	base.ID = 7
	store := newFakeStore(base)
	store.gate = make(chan struct{})
	ctl := New(store, cache.New(base), WithLogger(quietLogger()), WithTimeout(20*time.Millisecond))

	err := ctl.Delete(context.Background(), 7)
	if !errors.Is(err, ErrOperationFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected a timed out failure, got %v", err)
	}
}

func TestRefresh(t *testing.T) {
	store := newFakeStore(trees.Tree{ID: 1}, trees.Tree{ID: 2})
	c := cache.New(trees.Tree{ID: 9})
	ctl := New(store, c, WithLogger(quietLogger()))
	if err := ctl.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if c.Snapshot().Len() != 2 || c.Snapshot().Has("9") {
		t.Fatalf("working set not replaced: %v", cachedKeys(c))
	}
}

func TestInflightExclusive(t *testing.T) {
	s := newInflight()
	if !s.acquire("a") || s.acquire("a") {
		t.Fatalf("expected exclusive acquire")
	}
	if !s.acquire("b") {
		t.Fatalf("keys must not block each other")
	}
	s.release("a")
	if s.held("a") || !s.acquire("a") {
		t.Fatalf("expected a released key to be free")
	}
}
