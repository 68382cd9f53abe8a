// Package reconcile applies create, edit and delete operations to the Client
// Cache and the Record Store so that the cache only ever reflects confirmed
// server state, plus at most one pending record per in-progress create.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/protoarbol/catastro/cache"
	"github.com/protoarbol/catastro/trees"
)

var (
	// ErrOperationFailed is the single failure signal shown to the user. The
	// store error is wrapped alongside it.
	ErrOperationFailed = errors.New("operation failed")
	// ErrInFlight is returned when the record already has an unresolved mutation.
	ErrInFlight = errors.New("operation already in progress for this record")
)

// PendingPrefix starts every client-assigned id.
const PendingPrefix = "pending-"

func newPendingID() string {
	return PendingPrefix + uuid.NewString()
}

// DefaultTimeout bounds every store call.
const DefaultTimeout = 30 * time.Second

// Controller coordinates the cache and the store.
type Controller struct {
	store           trees.RecordStore
	cache           *cache.Cache
	inflight        *inflight
	timeout         time.Duration
	rules           trees.Rules
	speciesFallback bool
	logger          *slog.Logger
	newPendingID    func() string
}

// Option configures a Controller.
type Option func(*Controller)

// WithTimeout sets the per-operation timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRules sets the validation rules applied before submission.
func WithRules(r trees.Rules) Option {
	return func(c *Controller) {
		c.rules = r
	}
}

// WithSpeciesFallback copies the common name into an empty especie on create.
func WithSpeciesFallback(on bool) Option {
	return func(c *Controller) {
		c.speciesFallback = on
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a controller over store and c.
func New(store trees.RecordStore, c *cache.Cache, opts ...Option) *Controller {
	ctl := &Controller{
		store:        store,
		cache:        c,
		timeout:      DefaultTimeout,
		logger:       slog.Default(),
		newPendingID: newPendingID,
	}
	for _, opt := range opts {
		opt(ctl)
	}
	ctl.inflight = newInflight()
	return ctl
}

// Cache returns the cache the controller writes to.
func (c *Controller) Cache() *cache.Cache {
	return c.cache
}

// InFlight reports whether key has an unresolved mutation.
func (c *Controller) InFlight(key string) bool {
	return c.inflight.held(key)
}

func failed(err error) error {
	return fmt.Errorf("%w: %w", ErrOperationFailed, err)
}

// Refresh replaces the working set with the store contents.
func (c *Controller) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	records, err := c.store.List(ctx)
	if err != nil {
		c.logger.Warn("refresh failed", "error", err)
		return failed(err)
	}
	c.cache.Reset(records)
	c.logger.Debug("working set refreshed", "count", len(records))
	return nil
}

// Create validates draft, shows it as a pending record at the head of the
// cache and submits it. On success the pending record is replaced in place by
// the stored one; on failure it is removed.
func (c *Controller) Create(ctx context.Context, draft trees.Tree) (trees.Tree, error) {
	draft = draft.Normalized(c.speciesFallback)
	draft.ID = 0
	draft.PendingID = ""
	if err := trees.Validate(draft, c.rules); err != nil {
		return trees.Tree{}, err
	}

	pending := draft.Clone()
	pending.PendingID = c.newPendingID()
	key := pending.Key()
	if !c.inflight.acquire(key) {
		return trees.Tree{}, ErrInFlight
	}
	defer c.inflight.release(key)

	c.cache.Update(func(s cache.Snapshot) cache.Snapshot { return s.Prepend(pending) })

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	saved, err := c.store.Create(ctx, draft)
	if err != nil {
		c.cache.Update(func(s cache.Snapshot) cache.Snapshot { return s.Remove(key) })
		c.logger.Warn("create failed", "pending_id", key, "error", err)
		return trees.Tree{}, failed(err)
	}
	saved.PendingID = ""

	c.cache.Update(func(s cache.Snapshot) cache.Snapshot { return s.Replace(key, saved) })
	c.logger.Info("tree created", "id", saved.ID, "pending_id", key)
	return saved.Clone(), nil
}

// Update merges edit onto the cached record and submits it. The cache entry
// changes only after the store confirms. A nil edit image keeps the stored
// image exactly.
func (c *Controller) Update(ctx context.Context, id int64, edit trees.Edit) (trees.Tree, error) {
	key := trees.KeyOf(id)
	if !c.inflight.acquire(key) {
		return trees.Tree{}, ErrInFlight
	}
	defer c.inflight.release(key)

	base, ok := c.cache.Snapshot().Get(key)
	if !ok {
		return trees.Tree{}, failed(trees.ErrNotFound)
	}

	merged := edit.Apply(base).Normalized(false)
	check := merged
	if edit.Image == nil {
		check.Image = nil
	}
	if err := trees.Validate(check, c.rules); err != nil {
		return trees.Tree{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	saved, err := c.store.Update(ctx, id, check)
	if err != nil {
		c.logger.Warn("update failed", "id", id, "error", err)
		return trees.Tree{}, failed(err)
	}
	if edit.Image == nil {
		saved.Image = base.Clone().Image
	}
	saved.ID = id
	saved.PendingID = ""

	c.cache.Update(func(s cache.Snapshot) cache.Snapshot {
		if !s.Has(key) {
			return s
		}
		return s.Put(saved)
	})
	c.logger.Info("tree updated", "id", id)
	return saved.Clone(), nil
}

// Delete removes the record from the store and, once confirmed, from the cache.
func (c *Controller) Delete(ctx context.Context, id int64) error {
	key := trees.KeyOf(id)
	if !c.inflight.acquire(key) {
		return ErrInFlight
	}
	defer c.inflight.release(key)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.store.Delete(ctx, id); err != nil {
		c.logger.Warn("delete failed", "id", id, "error", err)
		return failed(err)
	}

	c.cache.Update(func(s cache.Snapshot) cache.Snapshot { return s.Remove(key) })
	c.logger.Info("tree deleted", "id", id)
	return nil
}
