// Package httpstore is the RecordStore used by clients of the API server.
package httpstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/protoarbol/catastro/httpx"
	"github.com/protoarbol/catastro/trees"
)

// Store talks to /api/arboles.
type Store struct {
	baseURL string
	client  *http.Client
}

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) {
		if c != nil {
			s.client = c
		}
	}
}

// New returns a store for the collection at baseURL, for example
// http://localhost:8080/api/arboles.
func New(baseURL string, opts ...Option) *Store {
	s := &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) itemURL(id int64) string {
	return s.baseURL + "/" + strconv.FormatInt(id, 10)
}

// do sends the request and decodes a successful body into out.
func (s *Store) do(ctx context.Context, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, url, trees.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return trees.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr httpx.ErrorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &apiErr) != nil || apiErr.Error == "" {
			apiErr = httpx.ErrorBody{Error: strings.TrimSpace(string(raw))}
		}
		if apiErr.Field != "" {
			verr := &trees.ValidationError{Field: apiErr.Field, Message: apiErr.Error}
			return fmt.Errorf("%s %s: %w: %w", method, url, trees.ErrTransport, verr)
		}
		return fmt.Errorf("%s %s: %w: status %d: %s", method, url, trees.ErrTransport, resp.StatusCode, apiErr.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: %w: decode response: %w", method, url, trees.ErrTransport, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]trees.Tree, error) {
	out := make([]trees.Tree, 0)
	if err := s.do(ctx, http.MethodGet, s.baseURL, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, t trees.Tree) (trees.Tree, error) {
	t.PendingID = ""
	t.ID = 0
	var created trees.Tree
	if err := s.do(ctx, http.MethodPost, s.baseURL, t, &created); err != nil {
		return trees.Tree{}, err
	}
	return created, nil
}

func (s *Store) Update(ctx context.Context, id int64, t trees.Tree) (trees.Tree, error) {
	t.PendingID = ""
	var updated trees.Tree
	if err := s.do(ctx, http.MethodPut, s.itemURL(id), t, &updated); err != nil {
		return trees.Tree{}, err
	}
	return updated, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.do(ctx, http.MethodDelete, s.itemURL(id), nil, nil)
}
