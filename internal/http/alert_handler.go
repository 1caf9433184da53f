package httpapi

import (
	"net/http"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/clock"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/repository"

	"go.uber.org/zap"
)

// AlertHandler the caller's alert inbox.
type AlertHandler struct {
	alerts repository.AlertStore
	clock  clock.Clock
	logger *zap.Logger
}

func NewAlertHandler(alerts repository.AlertStore, clk clock.Clock, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, clock: clk, logger: logger}
}

// List GET /api/v1/alerts?kind=&unread=&limit=&offset=
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	recipient, err := actorID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()
	kind, err := parseKind(q.Get("kind"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	alerts, err := h.alerts.ListFor(r.Context(), recipient, models.AlertFilter{
		Kind:       kind,
		UnreadOnly: parseBool(q.Get("unread")),
		Limit:      parseInt(q.Get("limit"), 0),
		Offset:     parseInt(q.Get("offset"), 0),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	writeJSON(w, http.StatusOK, Ok(alerts))
}

// MarkRead POST /api/v1/alerts/{id}/read
func (h *AlertHandler) MarkRead(w http.ResponseWriter, r *http.Request, rawID string) {
	alertID, err := parseID(rawID, "alert id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	recipient, err := actorID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.alerts.MarkRead(r.Context(), alertID, recipient, h.clock.Now()); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]int64{"id": alertID}))
}

// Summary GET /api/v1/alerts/summary?kind=&from=&to=
func (h *AlertHandler) Summary(w http.ResponseWriter, r *http.Request) {
	recipient, err := actorID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()
	kind, err := parseKind(q.Get("kind"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	filter := models.AlertSummaryFilter{RecipientID: &recipient, Kind: kind}
	if q.Get("from") != "" {
		window, err := parseWindow(r, h.clock)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		from, to := window.From, window.To
		filter.From, filter.To = &from, &to
	}

	summary, err := h.alerts.Summary(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(summary))
}

func parseKind(s string) (*models.AlertKind, error) {
	if s == "" {
		return nil, nil
	}
	kind := models.AlertKind(s)
	if !kind.Valid() {
		return nil, badRequestf("unknown alert kind %q", s)
	}
	return &kind, nil
}
