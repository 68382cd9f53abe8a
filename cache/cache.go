// Package cache holds the client-side working set of tree records.
//
// The working set is an immutable Snapshot keyed by trees.Tree.Key. Every
// transition returns a new Snapshot, so readers that hold an older one (the
// filter, the renderers, the dashboard) never observe a mutation, and
// transitions for different keys cannot corrupt each other.
package cache

import (
	"sync"

	"github.com/protoarbol/catastro/trees"
)

// Snapshot is an ordered, id-keyed view of the records.
type Snapshot struct {
	order []string
	byKey map[string]trees.Tree
}

// NewSnapshot builds a snapshot from records in order. Later duplicates of a
// key are dropped.
func NewSnapshot(records []trees.Tree) Snapshot {
	s := Snapshot{
		order: make([]string, 0, len(records)),
		byKey: make(map[string]trees.Tree, len(records)),
	}
	for _, r := range records {
		key := r.Key()
		if _, dup := s.byKey[key]; dup {
			continue
		}
		s.order = append(s.order, key)
		s.byKey[key] = r.Clone()
	}
	return s
}

// Len returns the number of records.
func (s Snapshot) Len() int {
	return len(s.order)
}

// Get returns the record stored under key.
func (s Snapshot) Get(key string) (trees.Tree, bool) {
	t, ok := s.byKey[key]
	if !ok {
		return trees.Tree{}, false
	}
	return t.Clone(), true
}

// Has reports whether key is present.
func (s Snapshot) Has(key string) bool {
	_, ok := s.byKey[key]
	return ok
}

// Records returns a copy of the records in display order.
func (s Snapshot) Records() []trees.Tree {
	out := make([]trees.Tree, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.byKey[key].Clone())
	}
	return out
}

func (s Snapshot) clone(extra int) Snapshot {
	next := Snapshot{
		order: make([]string, len(s.order), len(s.order)+extra),
		byKey: make(map[string]trees.Tree, len(s.byKey)+extra),
	}
	copy(next.order, s.order)
	for k, v := range s.byKey {
		next.byKey[k] = v
	}
	return next
}

// Prepend returns a snapshot with t at the head. An existing entry with the
// same key is replaced and moved.
func (s Snapshot) Prepend(t trees.Tree) Snapshot {
	next := s.Remove(t.Key()).clone(1)
	key := t.Key()
	next.order = append([]string{key}, next.order...)
	next.byKey[key] = t.Clone()
	return next
}

// Put returns a snapshot where t overwrites the record with the same key in
// place, or is appended when the key is new.
func (s Snapshot) Put(t trees.Tree) Snapshot {
	key := t.Key()
	next := s.clone(1)
	if _, ok := next.byKey[key]; !ok {
		next.order = append(next.order, key)
	}
	next.byKey[key] = t.Clone()
	return next
}

// Replace swaps the record stored under oldKey for t, keeping its position.
// The key may change, which is how a pending record becomes persisted. When
// oldKey is absent t is prepended.
func (s Snapshot) Replace(oldKey string, t trees.Tree) Snapshot {
	if _, ok := s.byKey[oldKey]; !ok {
		return s.Prepend(t)
	}
	newKey := t.Key()
	if newKey != oldKey {
		s = s.Remove(newKey)
	}
	next := s.clone(0)
	for i, key := range next.order {
		if key == oldKey {
			next.order[i] = newKey
			break
		}
	}
	delete(next.byKey, oldKey)
	next.byKey[newKey] = t.Clone()
	return next
}

// Remove returns a snapshot without key. The receiver is returned unchanged
// when key is absent.
func (s Snapshot) Remove(key string) Snapshot {
	if _, ok := s.byKey[key]; !ok {
		return s
	}
	next := s.clone(0)
	delete(next.byKey, key)
	for i, k := range next.order {
		if k == key {
			next.order = append(next.order[:i], next.order[i+1:]...)
			break
		}
	}
	return next
}

// Cache publishes the current Snapshot and notifies subscribers on change.
// Subscribers see every snapshot in version order and must not call Update.
type Cache struct {
	mu          sync.Mutex
	snap        Snapshot
	version     uint64
	subscribers map[int]func(Snapshot)
	nextSub     int

	notifyMu  sync.Mutex
	notified  uint64
	turnReady *sync.Cond
}

// New returns a cache seeded with records.
func New(records ...trees.Tree) *Cache {
	c := &Cache{
		snap:        NewSnapshot(records),
		subscribers: make(map[int]func(Snapshot)),
	}
	c.turnReady = sync.NewCond(&c.notifyMu)
	return c
}

// Snapshot returns the current snapshot.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Version increments on every applied transition.
func (c *Cache) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Update applies fn to the current snapshot atomically and publishes the
// result. Subscribers run after the lock is released, one version at a time.
func (c *Cache) Update(fn func(Snapshot) Snapshot) Snapshot {
	c.mu.Lock()
	next := fn(c.snap)
	c.snap = next
	c.version++
	version := c.version
	subs := make([]func(Snapshot), 0, len(c.subscribers))
	for _, sub := range c.subscribers {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	c.notifyMu.Lock()
	for c.notified != version-1 {
		c.turnReady.Wait()
	}
	for _, sub := range subs {
		sub(next)
	}
	c.notified = version
	c.turnReady.Broadcast()
	c.notifyMu.Unlock()
	return next
}

// Reset replaces the whole working set.
func (c *Cache) Reset(records []trees.Tree) Snapshot {
	snap := NewSnapshot(records)
	return c.Update(func(Snapshot) Snapshot { return snap })
}

// Subscribe registers fn to receive every published snapshot. The returned
// function unregisters it.
func (c *Cache) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}
