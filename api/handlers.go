// Package api exposes the read surface over stored listings plus a couple
// of control endpoints for the crawler.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"flatsync/models"
	"flatsync/storage"

	"github.com/go-chi/chi/v5"
)

// ListingStore is the slice of the Postgres store the handlers need.
type ListingStore interface {
	Search(ctx context.Context, f storage.SearchFilter) ([]*models.ListingDetail, int, error)
	GetByCode(ctx context.Context, code int64) (*models.ListingDetail, error)
}

// OpsReader drives the control endpoints against the ops database.
type OpsReader interface {
	EnqueueCommand(cmd models.CommandType) error
	RecentRuns(limit int) ([]models.CrawlRun, error)
	RunLogs(runID int64, limit int) ([]models.CrawlLog, error)
}

type Handler struct {
	store ListingStore
	ops   OpsReader
}

func NewHandler(store ListingStore, ops OpsReader) *Handler {
	return &Handler{store: store, ops: ops}
}

type listingsResponse struct {
	Listings []*models.ListingDetail `json:"listings"`
	Total    int                     `json:"total"`
}

func (h *Handler) listListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f storage.SearchFilter
	if v := q.Get("code"); v != "" {
		code, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid code")
			return
		}
		f.Code = &code
	}
	if v := q.Get("min_price_usd"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_price_usd")
			return
		}
		f.MinPriceUSD = &p
	}
	if v := q.Get("max_price_usd"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid max_price_usd")
			return
		}
		f.MaxPriceUSD = &p
	}
	if v := q.Get("min_rooms"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_rooms")
			return
		}
		f.MinRooms = &n
	}
	if v := q.Get("town"); v != "" {
		town := "%" + v + "%"
		f.TownName = &town
	}
	f.SortBy = q.Get("sort_by")
	f.Descending = q.Get("desc") == "true"
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	listings, total, err := h.store.Search(r.Context(), f)
	if err != nil {
		log.Printf("API: search failed: %v", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if listings == nil {
		listings = []*models.ListingDetail{}
	}

	writeJSON(w, http.StatusOK, listingsResponse{Listings: listings, Total: total})
}

func (h *Handler) getListing(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.ParseInt(chi.URLParam(r, "code"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid code")
		return
	}

	listing, err := h.store.GetByCode(r.Context(), code)
	if err != nil {
		log.Printf("API: get listing %d failed: %v", code, err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if listing == nil {
		writeError(w, http.StatusNotFound, "listing not found")
		return
	}

	writeJSON(w, http.StatusOK, listing)
}

func (h *Handler) triggerCrawl(w http.ResponseWriter, r *http.Request) {
	if err := h.ops.EnqueueCommand(models.CmdCrawlNow); err != nil {
		log.Printf("API: enqueue crawl failed: %v", err)
		writeError(w, http.StatusInternalServerError, "could not queue crawl")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.ops.RecentRuns(limit)
	if err != nil {
		log.Printf("API: list runs failed: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load runs")
		return
	}
	if runs == nil {
		runs = []models.CrawlRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) listRunLogs(w http.ResponseWriter, r *http.Request) {
	runID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.ops.RunLogs(runID, limit)
	if err != nil {
		log.Printf("API: list run logs failed: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load run logs")
		return
	}
	if logs == nil {
		logs = []models.CrawlLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
