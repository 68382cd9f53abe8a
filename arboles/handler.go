// Package arboles serves the tree inventory over HTTP.
package arboles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/protoarbol/catastro/filter"
	"github.com/protoarbol/catastro/httpx"
	"github.com/protoarbol/catastro/mapview"
	"github.com/protoarbol/catastro/stats"
	"github.com/protoarbol/catastro/trees"
)

type Handler struct {
	store           trees.RecordStore
	rules           trees.Rules
	settings        mapview.Settings
	speciesFallback bool
	metrics         *Metrics
	logger          *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithRules sets the validation rules applied to submissions.
func WithRules(rules trees.Rules) Option {
	return func(h *Handler) { h.rules = rules }
}

// WithMapSettings sets the layer settings used by the map endpoints.
func WithMapSettings(s mapview.Settings) Option {
	return func(h *Handler) { h.settings = s }
}

// WithSpeciesFallback fills an empty especie with nom_arbol on write.
func WithSpeciesFallback(on bool) Option {
	return func(h *Handler) { h.speciesFallback = on }
}

func WithMetrics(m *Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHandler(store trees.RecordStore, opts ...Option) *Handler {
	h := &Handler{
		store:    store,
		rules:    trees.Rules{MaxImageBytes: 2 * 1024 * 1024},
		settings: mapview.DefaultSettings(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.listArboles)
	r.Post("/", h.createArbol)
	r.Get("/stats", h.getStats)
	r.Get("/especies", h.listEspecies)
	r.Get("/map", h.getMap)
	r.Get("/map.geojson", h.getMapGeoJSON)
	r.Get("/map.svg", h.getMapImage(".svg"))
	r.Get("/map.png", h.getMapImage(".png"))
	r.Put("/{arbolID}", h.updateArbol)
	r.Delete("/{arbolID}", h.deleteArbol)
	return r
}

func (h *Handler) listArboles(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("list trees", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "failed to list trees")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, records)
}

func (h *Handler) createArbol(w http.ResponseWriter, r *http.Request) {
	var payload trees.Tree
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		h.metrics.observe("create", outcomeRejected)
		httpx.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	t := payload.Normalized(h.speciesFallback)
	t.ID = 0
	t.PendingID = ""
	if err := trees.Validate(t, h.rules); err != nil {
		h.metrics.observe("create", outcomeRejected)
		writeValidationError(w, err)
		return
	}

	done := h.metrics.time("create")
	created, err := h.store.Create(r.Context(), t)
	done()
	if err != nil {
		h.metrics.observe("create", outcomeFailed)
		h.logger.Error("create tree", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "failed to create tree")
		return
	}
	h.metrics.observe("create", outcomeOK)
	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateArbol(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "arbolID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, http.StatusBadRequest, "invalid tree id")
		return
	}

	var payload trees.Tree
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		h.metrics.observe("update", outcomeRejected)
		httpx.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	t := payload.Normalized(h.speciesFallback)
	t.ID = id
	t.PendingID = ""
	if err := trees.Validate(t, h.rules); err != nil {
		h.metrics.observe("update", outcomeRejected)
		writeValidationError(w, err)
		return
	}

	done := h.metrics.time("update")
	updated, err := h.store.Update(r.Context(), id, t)
	done()
	if err != nil {
		if errors.Is(err, trees.ErrNotFound) {
			h.metrics.observe("update", outcomeNotFound)
			httpx.Error(w, http.StatusNotFound, "tree not found")
			return
		}
		h.metrics.observe("update", outcomeFailed)
		h.logger.Error("update tree", "id", id, "err", err)
		httpx.Error(w, http.StatusInternalServerError, "failed to update tree")
		return
	}
	h.metrics.observe("update", outcomeOK)
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteArbol(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "arbolID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, http.StatusBadRequest, "invalid tree id")
		return
	}

	done := h.metrics.time("delete")
	err = h.store.Delete(r.Context(), id)
	done()
	if err != nil {
		if errors.Is(err, trees.ErrNotFound) {
			h.metrics.observe("delete", outcomeNotFound)
			httpx.Error(w, http.StatusNotFound, "tree not found")
			return
		}
		h.metrics.observe("delete", outcomeFailed)
		h.logger.Error("delete tree", "id", id, "err", err)
		httpx.Error(w, http.StatusInternalServerError, "failed to delete tree")
		return
	}
	h.metrics.observe("delete", outcomeOK)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	records, ok := h.filtered(w, r)
	if !ok {
		return
	}
	s := stats.Aggregate(records)
	httpx.WriteJSON(w, http.StatusOK, statsResponse{
		Summary: s,
		Species: s.SpeciesSeries(),
		Health:  s.HealthSeries(),
	})
}

type statsResponse struct {
	stats.Summary
	Species []stats.Bucket `json:"species_series"`
	Health  []stats.Bucket `json:"health_series"`
}

func (h *Handler) listEspecies(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("list trees", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "failed to list trees")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, filter.SpeciesOptions(records))
}

func (h *Handler) getMap(w http.ResponseWriter, r *http.Request) {
	layer, ok := h.layer(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, layer)
}

func (h *Handler) getMapGeoJSON(w http.ResponseWriter, r *http.Request) {
	layer, ok := h.layer(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if err := mapview.WriteGeoJSON(w, layer); err != nil {
		h.logger.Error("write geojson", "err", err)
	}
}

func (h *Handler) getMapImage(ext string) http.HandlerFunc {
	contentType := "image/png"
	if ext == ".svg" {
		contentType = "image/svg+xml"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		layer, ok := h.layer(w, r)
		if !ok {
			return
		}
		opts := mapview.SnapshotOptions{Title: r.URL.Query().Get("title")}
		if v := r.URL.Query().Get("width"); v != "" {
			opts.Width, _ = strconv.Atoi(v)
		}
		if v := r.URL.Query().Get("height"); v != "" {
			opts.Height, _ = strconv.Atoi(v)
		}
		if opts.Width < 0 || opts.Height < 0 || opts.Width > 4096 || opts.Height > 4096 {
			httpx.Error(w, http.StatusBadRequest, "invalid image size")
			return
		}

		w.Header().Set("Content-Type", contentType)
		var err error
		if ext == ".svg" {
			err = mapview.WriteSVG(w, layer, opts)
		} else {
			err = mapview.WritePNG(w, layer, opts)
		}
		if err != nil {
			h.logger.Error("render map", "format", strings.TrimPrefix(ext, "."), "err", err)
		}
	}
}

// filtered lists the store and applies the species and estado query filters.
func (h *Handler) filtered(w http.ResponseWriter, r *http.Request) ([]trees.Tree, bool) {
	records, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("list trees", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "failed to list trees")
		return nil, false
	}
	q := r.URL.Query()
	criteria := filter.Criteria{Species: q.Get("species"), Health: q.Get("estado")}
	return filter.Apply(records, criteria, filter.WithLegacyHealth(h.settings.LegacyHealth)), true
}

func (h *Handler) layer(w http.ResponseWriter, r *http.Request) (mapview.Layer, bool) {
	zoom := float64(mapview.DefaultMinZoom)
	if raw := r.URL.Query().Get("zoom"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid zoom")
			return mapview.Layer{}, false
		}
		zoom = parsed
	}
	records, ok := h.filtered(w, r)
	if !ok {
		return mapview.Layer{}, false
	}
	return mapview.Build(records, zoom, h.settings), true
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verr *trees.ValidationError
	if errors.As(err, &verr) {
		httpx.FieldError(w, http.StatusBadRequest, verr.Field, verr.Message)
		return
	}
	httpx.Error(w, http.StatusBadRequest, err.Error())
}
