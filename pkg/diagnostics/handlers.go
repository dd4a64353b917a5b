// Package diagnostics exposes a read-only HTTP status surface over a
// blockmgr.Manager: liveness, a block listing, single-block status, and
// aggregate tier usage. None of these routes mutate state — Prometheus
// scraping is handled separately by pkg/metrics/prometheus, not here.
package diagnostics

import (
	"context"
	"net/http"
	"time"

	"github.com/blockmgr/blockmanager/pkg/blockid"
	"github.com/blockmgr/blockmanager/pkg/blockmgr"
	"github.com/blockmgr/blockmanager/pkg/master"
)

// manager is the subset of *blockmgr.Manager diagnostics depends on, kept
// narrow so handlers can be tested against a fake.
type manager interface {
	Self() blockid.BlockManagerId
	BlockNames() []string
	Describe(ctx context.Context, id blockid.BlockId) (master.BlockStatus, bool)
}

var _ manager = (*blockmgr.Manager)(nil)

// Handler serves the diagnostics endpoints.
type Handler struct {
	mgr manager
}

// NewHandler returns a Handler backed by mgr. mgr may be nil, in which case
// the block and stats routes report unavailable; /healthz still answers OK.
func NewHandler(mgr *blockmgr.Manager) *Handler {
	if mgr == nil {
		return &Handler{}
	}
	return &Handler{mgr: mgr}
}

// Healthz handles GET /healthz — a bare liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ok(map[string]string{"component": "blockmanager"}))
}

// blockSummary is one row of the /blocks listing.
type blockSummary struct {
	Name        string `json:"name"`
	Level       string `json:"level"`
	MemSize     int64  `json:"mem_size"`
	DiskSize    int64  `json:"disk_size"`
	Replication uint8  `json:"replication"`
}

// Blocks handles GET /blocks — a snapshot of every block this node tracks.
func (h *Handler) Blocks(w http.ResponseWriter, r *http.Request) {
	if h.mgr == nil {
		writeJSON(w, http.StatusServiceUnavailable, failed("manager not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := h.mgr.BlockNames()
	summaries := make([]blockSummary, 0, len(names))
	for _, name := range names {
		id, err := blockid.Parse(name)
		if err != nil {
			continue
		}
		status, found := h.mgr.Describe(ctx, id)
		if !found {
			continue
		}
		summaries = append(summaries, blockSummary{
			Name:        name,
			Level:       status.Level.String(),
			MemSize:     status.MemSize,
			DiskSize:    status.DiskSize,
			Replication: status.Level.Replication,
		})
	}

	writeJSON(w, http.StatusOK, ok(summaries))
}

// BlockByID handles GET /blocks/{id} — a single block's status, by name.
func (h *Handler) BlockByID(w http.ResponseWriter, r *http.Request) {
	if h.mgr == nil {
		writeJSON(w, http.StatusServiceUnavailable, failed("manager not initialized"))
		return
	}

	name := blockIDParam(r)
	id, err := blockid.Parse(name)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, failed("invalid block id: "+err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, found := h.mgr.Describe(ctx, id)
	if !found {
		writeJSON(w, http.StatusNotFound, failed("block not found"))
		return
	}

	writeJSON(w, http.StatusOK, ok(blockSummary{
		Name:        name,
		Level:       status.Level.String(),
		MemSize:     status.MemSize,
		DiskSize:    status.DiskSize,
		Replication: status.Level.Replication,
	}))
}

// statsResponse summarizes aggregate tier usage across every tracked block.
type statsResponse struct {
	Self          string `json:"self"`
	BlockCount    int    `json:"block_count"`
	TotalMemBytes int64  `json:"total_mem_bytes"`
	TotalDiskBytes int64 `json:"total_disk_bytes"`
}

// Stats handles GET /stats — aggregate tier usage for this node.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.mgr == nil {
		writeJSON(w, http.StatusServiceUnavailable, failed("manager not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := h.mgr.BlockNames()
	stats := statsResponse{Self: h.mgr.Self().String(), BlockCount: len(names)}
	for _, name := range names {
		id, err := blockid.Parse(name)
		if err != nil {
			continue
		}
		status, found := h.mgr.Describe(ctx, id)
		if !found {
			continue
		}
		stats.TotalMemBytes += status.MemSize
		stats.TotalDiskBytes += status.DiskSize
	}

	writeJSON(w, http.StatusOK, ok(stats))
}
