// Package httpapi exposes a read-only JSON surface over the version log:
// listing an item's history, point-in-time lookup, decoded changesets and
// audit exports. Recording stays in-process with the host; this surface
// never writes.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/chronicle-engine/chronicle"
	"github.com/chronicle-engine/chronicle/export"
)

type Handler struct {
	tracker  *chronicle.Tracker
	store    chronicle.VersionStore
	exporter *export.Service
}

func NewHandler(tracker *chronicle.Tracker, store chronicle.VersionStore, exporter *export.Service) *Handler {
	return &Handler{tracker: tracker, store: store, exporter: exporter}
}

// Routes returns the API mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{itemType}/{itemID}/versions", h.listVersions)
	mux.HandleFunc("GET /items/{itemType}/{itemID}/versions/at", h.versionAt)
	mux.HandleFunc("GET /items/{itemType}/{itemID}/export", h.exportLog)
	mux.HandleFunc("GET /versions/{id}/changeset", h.changeset)
	return mux
}

type versionPayload struct {
	ID            int64          `json:"id"`
	Event         string         `json:"event"`
	ItemType      string         `json:"item_type"`
	ItemID        *string        `json:"item_id"`
	Whodunnit     *string        `json:"whodunnit"`
	TransactionID *string        `json:"transaction_id,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	Index         int            `json:"index"`
}

func toPayload(log *chronicle.Log, v *chronicle.Version) versionPayload {
	p := versionPayload{
		ID:        v.ID,
		Event:     string(v.Event),
		ItemType:  v.ItemType,
		ItemID:    v.ItemID,
		Whodunnit: v.Whodunnit,
		Meta:      v.Meta,
		CreatedAt: v.CreatedAt.UTC(),
		Index:     log.Index(v),
	}
	if v.TransactionID != nil {
		id := v.TransactionID.String()
		p.TransactionID = &id
	}
	return p
}

func (h *Handler) listVersions(w http.ResponseWriter, r *http.Request) {
	itemLog, err := h.tracker.Versions(r.Context(), r.PathValue("itemType"), r.PathValue("itemID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	payload := make([]versionPayload, 0, itemLog.Len())
	for i := range itemLog.Versions() {
		payload = append(payload, toPayload(itemLog, itemLog.Version(i)))
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *Handler) versionAt(w http.ResponseWriter, r *http.Request) {
	at := r.URL.Query().Get("t")
	if at == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("query parameter t is required"))
		return
	}

	itemLog, err := h.tracker.Versions(r.Context(), r.PathValue("itemType"), r.PathValue("itemID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	// This surface serves stored history only; when the timestamp lands
	// at or after the last version the current state belongs to the host.
	v, _, err := itemLog.VersionAtString(at)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if v == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("no version covers %s", at))
		return
	}
	writeJSON(w, http.StatusOK, toPayload(itemLog, v))
}

func (h *Handler) changeset(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid version id"))
		return
	}

	v, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, chronicle.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	changes, err := h.tracker.Changeset(&v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

func (h *Handler) exportLog(w http.ResponseWriter, r *http.Request) {
	itemType := r.PathValue("itemType")
	itemID := r.PathValue("itemID")

	itemLog, err := h.tracker.Versions(r.Context(), itemType, itemID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	name := fmt.Sprintf("%s-%s-history", itemType, itemID)
	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".csv"))
		if err := h.exporter.WriteCSV(w, itemLog); err != nil {
			log.Printf("[EXPORT] csv export failed: %v", err)
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".xlsx"))
		if err := h.exporter.WriteWorkbook(w, itemLog); err != nil {
			log.Printf("[EXPORT] workbook export failed: %v", err)
		}
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unsupported format %q", format))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[HTTP] failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
