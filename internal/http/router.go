package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/clock"

	"go.uber.org/zap"
)

// Router is a plain http.ServeMux with method checks per route.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, withRequestID(w, req))
}

// RegisterHealthRoutes /healthz
func (r *Router) RegisterHealthRoutes(clk clock.Clock) {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]string{
			"status": "ok",
			"time":   clk.Now().Format(time.RFC3339),
		}))
	})
}

// RegisterPresenceRoutes /api/v1/entries
func (r *Router) RegisterPresenceRoutes(h *PresenceHandler) {
	r.Handle("/api/v1/entries", method(http.MethodGet, h.ListEntries))

	// GET lists, POST opens
	r.Handle("/api/v1/entries/open", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.ListOpen(w, req)
		case http.MethodPost:
			h.OpenEntry(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	r.Handle("/api/v1/entries/close", method(http.MethodPost, h.CloseEntry))

	// {id}/force-close
	r.Handle("/api/v1/entries/", func(w http.ResponseWriter, req *http.Request) {
		id, ok := strings.CutSuffix(strings.TrimPrefix(req.URL.Path, "/api/v1/entries/"), "/force-close")
		if !ok || id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ForceClose(w, req, id)
	})
}

// RegisterReportRoutes /api/v1/reports
func (r *Router) RegisterReportRoutes(h *ReportHandler) {
	r.Handle("/api/v1/reports/monitor-totals", method(http.MethodGet, h.MonitorTotals))
	r.Handle("/api/v1/reports/monitor-totals.xlsx", method(http.MethodGet, h.MonitorTotalsXLSX))
	r.Handle("/api/v1/reports/room-totals", method(http.MethodGet, h.RoomTotals))
	r.Handle("/api/v1/reports/daily-totals", method(http.MethodGet, h.DailyTotals))
	r.Handle("/api/v1/reports/open-snapshot", method(http.MethodGet, h.OpenSnapshot))
}

// RegisterAlertRoutes /api/v1/alerts
func (r *Router) RegisterAlertRoutes(h *AlertHandler) {
	r.Handle("/api/v1/alerts", method(http.MethodGet, h.List))
	r.Handle("/api/v1/alerts/summary", method(http.MethodGet, h.Summary))

	// {id}/read
	r.Handle("/api/v1/alerts/", func(w http.ResponseWriter, req *http.Request) {
		id, ok := strings.CutSuffix(strings.TrimPrefix(req.URL.Path, "/api/v1/alerts/"), "/read")
		if !ok || id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.MarkRead(w, req, id)
	})
}

func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != m {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}
