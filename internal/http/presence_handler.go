package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/aggregator"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/clock"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/presence"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/repository"

	"go.uber.org/zap"
)

// PresenceHandler entry commands and entry listings.
type PresenceHandler struct {
	engine     *presence.Engine
	aggregator *aggregator.Aggregator
	directory  repository.Directory
	clock      clock.Clock
	logger     *zap.Logger
}

func NewPresenceHandler(engine *presence.Engine, agg *aggregator.Aggregator, directory repository.Directory, clk clock.Clock, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{engine: engine, aggregator: agg, directory: directory, clock: clk, logger: logger}
}

type openEntryRequest struct {
	MonitorID int64  `json:"monitor_id"`
	RoomID    int64  `json:"room_id"`
	Notes     string `json:"notes"`
}

type closeEntryRequest struct {
	MonitorID int64   `json:"monitor_id"`
	Notes     *string `json:"notes"`
}

type forceCloseRequest struct {
	ExitTime *time.Time `json:"exit_time"`
}

// OpenEntry POST /api/v1/entries/open
func (h *PresenceHandler) OpenEntry(w http.ResponseWriter, r *http.Request) {
	var req openEntryRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.RoomID <= 0 {
		writeError(w, r, h.logger, badRequestf("room_id is required"))
		return
	}
	monitorID, err := h.subject(r.Context(), r, req.MonitorID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	entry, err := h.engine.OpenEntry(r.Context(), monitorID, req.RoomID, req.Notes)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(entry))
}

// CloseEntry POST /api/v1/entries/close
func (h *PresenceHandler) CloseEntry(w http.ResponseWriter, r *http.Request) {
	var req closeEntryRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	monitorID, err := h.subject(r.Context(), r, req.MonitorID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	entry, err := h.engine.CloseEntry(r.Context(), monitorID, req.Notes)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(entry))
}

// ForceClose POST /api/v1/entries/{id}/force-close
func (h *PresenceHandler) ForceClose(w http.ResponseWriter, r *http.Request, rawID string) {
	entryID, err := parseID(rawID, "entry id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	adminID, err := requireAdmin(r.Context(), r, h.directory)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req forceCloseRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	entry, err := h.engine.ForceClose(r.Context(), entryID, adminID, req.ExitTime)
	if err != nil {
		// a bad admin-supplied instant is a caller mistake, not a clock fault
		if req.ExitTime != nil && errors.Is(err, models.ErrInvalidExit) {
			writeErrorStatus(w, r, h.logger, http.StatusBadRequest, err)
			return
		}
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(entry))
}

// ListOpen GET /api/v1/entries/open?room_id=&monitor_ids=
func (h *PresenceHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	if _, err := actorID(r); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()
	roomID, err := parseOptionalID(q.Get("room_id"), "room_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	monitorIDs, err := parseIDList(q.Get("monitor_ids"), "monitor_ids")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	entries, err := h.engine.ListOpen(r.Context(), presence.OpenFilter{MonitorIDs: monitorIDs, RoomID: roomID})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if entries == nil {
		entries = []models.RoomEntry{}
	}
	writeJSON(w, http.StatusOK, Ok(entries))
}

// ListEntries GET /api/v1/entries?from=&to=&monitor_id=&room_id=
func (h *PresenceHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	window, err := parseWindow(r, h.clock)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()
	monitorID, err := parseOptionalID(q.Get("monitor_id"), "monitor_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	roomID, err := parseOptionalID(q.Get("room_id"), "room_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	query := aggregator.Query{RoomID: roomID, IncludeOpen: true}
	if monitorID != nil {
		query.MonitorIDs = []int64{*monitorID}
	}
	query.MonitorIDs, err = scopeMonitors(r.Context(), h.directory, actor, query.MonitorIDs)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	entries, err := h.aggregator.EntriesIn(r.Context(), window, query)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if entries == nil {
		entries = []models.RoomEntry{}
	}
	writeJSON(w, http.StatusOK, Ok(entries))
}

// subject resolves whose entry a command acts on. Monitors act on themselves;
// admins may name another monitor.
func (h *PresenceHandler) subject(ctx context.Context, r *http.Request, requested int64) (int64, error) {
	actor, err := actorID(r)
	if err != nil {
		return 0, err
	}
	if requested == 0 || requested == actor {
		return actor, nil
	}
	if _, err := requireAdmin(ctx, r, h.directory); err != nil {
		return 0, err
	}
	return requested, nil
}

func requireAdmin(ctx context.Context, r *http.Request, directory repository.Directory) (int64, error) {
	actor, err := actorID(r)
	if err != nil {
		return 0, err
	}
	ok, err := directory.IsAdmin(ctx, actor)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, models.ErrNotAdmin
	}
	return actor, nil
}

// scopeMonitors limits non-admin callers to their own entries.
func scopeMonitors(ctx context.Context, directory repository.Directory, actor int64, requested []int64) ([]int64, error) {
	ok, err := directory.IsAdmin(ctx, actor)
	if err != nil {
		return nil, err
	}
	if ok {
		return requested, nil
	}
	for _, id := range requested {
		if id != actor {
			return nil, models.ErrNotAdmin
		}
	}
	return []int64{actor}, nil
}
