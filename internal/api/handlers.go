package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mmrzaf/mockstream/internal/app"
	"github.com/mmrzaf/mockstream/internal/domain"
	"github.com/mmrzaf/mockstream/internal/infra/repos/runs"
	"github.com/mmrzaf/mockstream/internal/infra/repos/schemas"
	"github.com/mmrzaf/mockstream/internal/schema"
)

const (
	defaultSampleSize = 10
	maxSampleSize     = 1000
	defaultRunsLimit  = 50
	maxRunsLimit      = 500
)

type Handler struct {
	runService *app.RunService
}

func NewHandler(runService *app.RunService) *Handler {
	return &Handler{runService: runService}
}

type schemaSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type schemaDetail struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Tables   []domain.TableInfo `json:"tables"`
	Warnings []schema.Warning   `json:"warnings"`
}

type sampleResponse struct {
	Schema  string          `json:"schema"`
	Table   string          `json:"table"`
	Seed    int64           `json:"seed"`
	Records []schema.Record `json:"records"`
}

func (h *Handler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	list, err := h.runService.ListSchemas()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]schemaSummary, 0, len(list))
	for _, s := range list {
		out = append(out, schemaSummary{ID: s.ID, Name: s.Name})
	}
	writeJSON(w, out)
}

func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	src, ok := h.loadSchema(w, r)
	if !ok {
		return
	}
	tables, warnings, err := h.runService.Describe(src)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if warnings == nil {
		warnings = []schema.Warning{}
	}
	writeJSON(w, schemaDetail{ID: src.ID, Name: src.Name, Tables: tables, Warnings: warnings})
}

func (h *Handler) SampleTable(w http.ResponseWriter, r *http.Request) {
	src, ok := h.loadSchema(w, r)
	if !ok {
		return
	}

	n := defaultSampleSize
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v <= 0 || v > maxSampleSize {
			http.Error(w, "n must be an integer between 1 and 1000", http.StatusBadRequest)
			return
		}
		n = v
	}
	var seed *int64
	if q := r.URL.Query().Get("seed"); q != "" {
		v, err := strconv.ParseInt(q, 10, 64)
		if err != nil {
			http.Error(w, "seed must be an integer", http.StatusBadRequest)
			return
		}
		seed = &v
	}

	table := r.PathValue("table")
	records, used, err := h.runService.Sample(src, table, n, seed)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, app.ErrTableNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, sampleResponse{Schema: src.ID, Table: table, Seed: used, Records: records})
}

func (h *Handler) loadSchema(w http.ResponseWriter, r *http.Request) (*domain.SchemaSource, bool) {
	src, err := h.runService.LoadSchema(r.PathValue("id"), "")
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, schemas.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return nil, false
	}
	return src, true
}

// Runs

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= maxRunsLimit {
			limit = n
		}
	}
	list, err := h.runService.ListRuns(limit, r.URL.Query().Get("status"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := h.runService.GetRun(id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, runs.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, run)
}

// Routes registers every API endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/schemas", h.ListSchemas)
	mux.HandleFunc("GET /api/v1/schemas/{id}", h.GetSchema)
	mux.HandleFunc("GET /api/v1/schemas/{id}/tables/{table}/sample", h.SampleTable)
	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.GetRun)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
