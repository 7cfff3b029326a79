package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/yairfalse/nimbus/internal/auth"
	"github.com/yairfalse/nimbus/internal/compliance"
	"github.com/yairfalse/nimbus/internal/daemon"
	"github.com/yairfalse/nimbus/internal/filter"
	"github.com/yairfalse/nimbus/internal/inventory"
	"github.com/yairfalse/nimbus/internal/stats"
	"github.com/yairfalse/nimbus/internal/storage"
	"github.com/yairfalse/nimbus/internal/topology"
	"github.com/yairfalse/nimbus/pkg/resource"
)

// MsgImportFailed is the response body for an unparseable import.
const MsgImportFailed = "Failed to import data. Please check JSON format."

// maxBody caps import and advisor request bodies.
const maxBody = 32 << 20

// ResourceList is the response of the resource listing.
type ResourceList struct {
	Revision      uint64              `json:"revision"`
	LoadedAt      time.Time           `json:"loadedAt,omitzero"`
	Total         int                 `json:"total"`
	Count         int                 `json:"count"`
	ActiveFilters int                 `json:"activeFilters"`
	Resources     []resource.Resource `json:"resources"`
}

// ComplianceView is the response of the compliance endpoint.
type ComplianceView struct {
	Filter     compliance.ViolationFilter `json:"filter"`
	Summary    compliance.Summary         `json:"summary"`
	Violations []resource.Resource        `json:"violations"`
}

// SnapshotInfo describes a freshly published snapshot.
type SnapshotInfo struct {
	Revision  uint64    `json:"revision"`
	Source    string    `json:"source"`
	Account   string    `json:"account,omitempty"`
	LoadedAt  time.Time `json:"loadedAt"`
	Resources int       `json:"resources"`
}

// AdviceRequest is the advisor request body.
type AdviceRequest struct {
	Question string `json:"question"`
}

// AdviceResponse carries the advisor text.
type AdviceResponse struct {
	Answer string `json:"answer"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status    string               `json:"status"`
	Revision  uint64               `json:"revision"`
	Resources int                  `json:"resources"`
	Sync      *daemon.HealthStatus `json:"sync,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (w *WebAPI) resources() []resource.Resource {
	snap := w.deps.Inventory.Current()
	if snap == nil {
		return []resource.Resource{}
	}
	return snap.Resources
}

func (w *WebAPI) health(rw http.ResponseWriter, r *http.Request) {
	snap := w.deps.Inventory.Current()
	resp := HealthResponse{Status: "healthy"}
	if snap != nil {
		resp.Revision = snap.Revision
		resp.Resources = snap.Len()
	}
	if w.deps.Syncer != nil {
		h := w.deps.Syncer.Health()
		resp.Status = h.Status
		resp.Sync = &h
	}
	writeJSON(rw, r, http.StatusOK, resp)
}

func (w *WebAPI) me(rw http.ResponseWriter, r *http.Request) {
	u, _ := auth.FromContext(r.Context())
	writeJSON(rw, r, http.StatusOK, u)
}

func (w *WebAPI) listResources(rw http.ResponseWriter, r *http.Request) {
	q, err := filter.FromValues(r.URL.Query())
	if err != nil {
		writeError(rw, r, http.StatusBadRequest, err.Error())
		return
	}

	snap := w.deps.Inventory.Current()
	all := w.resources()
	filtered := q.Apply(all)

	resp := ResourceList{
		Total:         len(all),
		Count:         len(filtered),
		ActiveFilters: q.ActiveFilters(),
		Resources:     filtered,
	}
	if snap != nil {
		resp.Revision = snap.Revision
		resp.LoadedAt = snap.LoadedAt
	}
	writeJSON(rw, r, http.StatusOK, resp)
}

func (w *WebAPI) findResource(rw http.ResponseWriter, r *http.Request) (resource.Resource, bool) {
	id := chi.URLParam(r, "id")
	res, ok := w.deps.Inventory.Current().Find(id)
	if !ok {
		writeError(rw, r, http.StatusNotFound, fmt.Sprintf("resource %q not found", id))
	}
	return res, ok
}

func (w *WebAPI) getResource(rw http.ResponseWriter, r *http.Request) {
	if res, ok := w.findResource(rw, r); ok {
		writeJSON(rw, r, http.StatusOK, res)
	}
}

func (w *WebAPI) exportResource(rw http.ResponseWriter, r *http.Request) {
	res, ok := w.findResource(rw, r)
	if !ok {
		return
	}

	data, err := resource.Export(res)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("id", res.ID).Msg("failed to export resource")
		writeError(rw, r, http.StatusInternalServerError, "export failed")
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resource.ExportFileName(res)))
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write(data)
}

func (w *WebAPI) stats(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, r, http.StatusOK, stats.Compute(w.resources()))
}

func (w *WebAPI) compliance(rw http.ResponseWriter, r *http.Request) {
	f, ok := compliance.ParseViolationFilter(r.URL.Query().Get("filter"))
	if !ok {
		writeError(rw, r, http.StatusBadRequest, fmt.Sprintf("unknown filter %q", r.URL.Query().Get("filter")))
		return
	}

	all := w.resources()
	writeJSON(rw, r, http.StatusOK, ComplianceView{
		Filter:     f,
		Summary:    compliance.Summarize(all),
		Violations: compliance.Violations(all, f),
	})
}

func (w *WebAPI) topology(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, r, http.StatusOK, topology.Build(w.resources()))
}

func (w *WebAPI) sync(rw http.ResponseWriter, r *http.Request) {
	if w.deps.Syncer == nil {
		writeError(rw, r, http.StatusServiceUnavailable, "sync is not configured")
		return
	}

	snap, err := w.deps.Syncer.Sync(r.Context(), daemon.TriggerManual)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("manual sync failed")
		writeError(rw, r, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(rw, r, http.StatusOK, snapshotInfo(snap))
}

func (w *WebAPI) importData(rw http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(rw, r, http.StatusBadRequest, MsgImportFailed)
		return
	}

	snap, err := w.deps.Inventory.Import(r.Context(), data)
	if errors.Is(err, inventory.ErrParse) {
		writeError(rw, r, http.StatusBadRequest, MsgImportFailed)
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("import failed")
		writeError(rw, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(rw, r, http.StatusOK, snapshotInfo(snap))
}

func (w *WebAPI) advise(rw http.ResponseWriter, r *http.Request) {
	if w.deps.Advisor == nil {
		writeError(rw, r, http.StatusServiceUnavailable, "advisor is not configured")
		return
	}

	var req AdviceRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		writeError(rw, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(rw, r, http.StatusBadRequest, "question is required")
		return
	}

	answer := w.deps.Advisor.Analyze(r.Context(), w.resources(), req.Question)
	writeJSON(rw, r, http.StatusOK, AdviceResponse{Answer: answer})
}

func (w *WebAPI) history(rw http.ResponseWriter, r *http.Request) {
	if w.deps.History == nil {
		writeError(rw, r, http.StatusNotFound, "history is disabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(rw, r, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		limit = n
	}
	writeJSON(rw, r, http.StatusOK, w.deps.History.History(limit))
}

func (w *WebAPI) historyRecord(rw http.ResponseWriter, r *http.Request) {
	if w.deps.History == nil {
		writeError(rw, r, http.StatusNotFound, "history is disabled")
		return
	}

	raw := chi.URLParam(r, "seq")
	seq, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(rw, r, http.StatusBadRequest, fmt.Sprintf("invalid sequence %q", raw))
		return
	}

	rec, err := w.deps.History.Get(seq)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(rw, r, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Uint64("seq", seq).Msg("failed to read journal")
		writeError(rw, r, http.StatusInternalServerError, "failed to read history")
		return
	}
	writeJSON(rw, r, http.StatusOK, rec)
}

func snapshotInfo(snap *resource.Snapshot) SnapshotInfo {
	return SnapshotInfo{
		Revision:  snap.Revision,
		Source:    snap.Source,
		Account:   snap.Account,
		LoadedAt:  snap.LoadedAt,
		Resources: snap.Len(),
	}
}

func writeJSON(rw http.ResponseWriter, r *http.Request, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Msg("failed to encode response")
	}
}

func writeError(rw http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(rw, r, status, errorResponse{Error: msg})
}
