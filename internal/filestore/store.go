// Package filestore keeps the inventory in a JSON file, the offline mode of the
// field client. Ids are assigned locally as max+1.
package filestore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"

	"github.com/protoarbol/catastro/trees"
)

const lockTimeout = 3 * time.Second

// Store persists trees in a JSON file guarded by a sibling .lock file.
type Store struct {
	path     string
	fileLock *flock.Flock
	mu       sync.Mutex
	now      func() time.Time
}

// storeData is the file layout.
type storeData struct {
	Arboles  []trees.Tree `json:"arboles"`
	Metadata metadata     `json:"metadata"`
}

type metadata struct {
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

func New(path string) *Store {
	return &Store{
		path:     path,
		fileLock: flock.New(path + ".lock"),
		now:      time.Now,
	}
}

// Path returns the data file path.
func (s *Store) Path() string {
	return s.path
}

func transport(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, trees.ErrTransport, err)
}

// withLock runs fn holding both the in-process and the cross-process lock.
func (s *Store) withLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := s.fileLock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("could not lock %s", s.path)
	}
	defer func() { _ = s.fileLock.Unlock() }()
	return fn()
}

// load reads the file. A missing or empty file is an empty inventory; a bare
// JSON array of records is accepted as exported by the browser client.
func (s *Store) load() (storeData, error) {
	var data storeData
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return data, nil
	}
	if err != nil {
		return data, fmt.Errorf("read %s: %w", s.path, err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return data, nil
	}
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &data.Arboles); err != nil {
			return data, fmt.Errorf("parse %s: %w", s.path, err)
		}
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return data, nil
}

// save writes to a temporary file and renames it into place.
func (s *Store) save(data storeData) error {
	data.Metadata.Version = "1"
	data.Metadata.UpdatedAt = s.now().UTC()
	if data.Arboles == nil {
		data.Arboles = []trees.Tree{}
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func nextID(records []trees.Tree) int64 {
	var highest int64
	for _, r := range records {
		if r.ID > highest {
			highest = r.ID
		}
	}
	return highest + 1
}

func (s *Store) List(ctx context.Context) ([]trees.Tree, error) {
	var out []trees.Tree
	err := s.withLock(ctx, func() error {
		data, err := s.load()
		if err != nil {
			return err
		}
		out = make([]trees.Tree, 0, len(data.Arboles))
		for _, r := range data.Arboles {
			out = append(out, r.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, transport("list trees", err)
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, t trees.Tree) (trees.Tree, error) {
	var created trees.Tree
	err := s.withLock(ctx, func() error {
		data, err := s.load()
		if err != nil {
			return err
		}
		created = t.Clone()
		created.PendingID = ""
		created.ID = nextID(data.Arboles)
		data.Arboles = append([]trees.Tree{created}, data.Arboles...)
		return s.save(data)
	})
	if err != nil {
		return trees.Tree{}, transport("create tree", err)
	}
	return created.Clone(), nil
}

func (s *Store) Update(ctx context.Context, id int64, t trees.Tree) (trees.Tree, error) {
	var updated trees.Tree
	found := false
	err := s.withLock(ctx, func() error {
		data, err := s.load()
		if err != nil {
			return err
		}
		for i, r := range data.Arboles {
			if r.ID != id {
				continue
			}
			found = true
			updated = t.Clone()
			updated.ID = id
			updated.PendingID = ""
			updated.Lat, updated.Lng = r.Lat, r.Lng
			if updated.Image == nil {
				updated.Image = r.Clone().Image
			}
			if updated.LegacyHealth == "" {
				updated.LegacyHealth = r.LegacyHealth
			}
			data.Arboles[i] = updated
			return s.save(data)
		}
		return nil
	})
	if err != nil {
		return trees.Tree{}, transport("update tree", err)
	}
	if !found {
		return trees.Tree{}, trees.ErrNotFound
	}
	return updated.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	found := false
	err := s.withLock(ctx, func() error {
		data, err := s.load()
		if err != nil {
			return err
		}
		for i, r := range data.Arboles {
			if r.ID == id {
				found = true
				data.Arboles = append(data.Arboles[:i], data.Arboles[i+1:]...)
				return s.save(data)
			}
		}
		return nil
	})
	if err != nil {
		return transport("delete tree", err)
	}
	if !found {
		return trees.ErrNotFound
	}
	return nil
}

// Seed replaces the file contents with records. Records without an id are
// numbered after the highest id present.
func (s *Store) Seed(ctx context.Context, records []trees.Tree) error {
	err := s.withLock(ctx, func() error {
		next := nextID(records)
		out := make([]trees.Tree, 0, len(records))
		for _, r := range records {
			r = r.Clone()
			r.PendingID = ""
			if r.ID == 0 {
				r.ID = next
				next++
			}
			out = append(out, r)
		}
		return s.save(storeData{Arboles: out})
	})
	if err != nil {
		return transport("seed trees", err)
	}
	return nil
}
