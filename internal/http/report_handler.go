package httpapi

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/aggregator"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/clock"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/report"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/repository"

	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler duration totals.
type ReportHandler struct {
	aggregator *aggregator.Aggregator
	directory  repository.Directory
	clock      clock.Clock
	logger     *zap.Logger
}

func NewReportHandler(agg *aggregator.Aggregator, directory repository.Directory, clk clock.Clock, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{aggregator: agg, directory: directory, clock: clk, logger: logger}
}

type totalsResponse[T any] struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Totals []T    `json:"totals"`
}

// MonitorTotals GET /api/v1/reports/monitor-totals?from=&to=&monitor_ids=&include_open=
func (h *ReportHandler) MonitorTotals(w http.ResponseWriter, r *http.Request) {
	window, query, ok := h.parse(w, r)
	if !ok {
		return
	}
	totals, err := h.aggregator.PerMonitorTotals(r.Context(), window, query)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	list := make([]models.MonitorTotal, 0, len(totals))
	for _, t := range totals {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].MonitorID < list[j].MonitorID })
	writeJSON(w, http.StatusOK, Ok(h.response(window, list)))
}

// OpenSnapshot GET /api/v1/reports/open-snapshot?room_id=
func (h *ReportHandler) OpenSnapshot(w http.ResponseWriter, r *http.Request) {
	if _, err := actorID(r); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	roomID, err := parseOptionalID(r.URL.Query().Get("room_id"), "room_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	snapshot, err := h.aggregator.OpenEntriesSnapshot(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]models.OpenEntrySnapshot, 0, len(snapshot))
	for _, s := range snapshot {
		if roomID != nil && s.Entry.RoomID != *roomID {
			continue
		}
		out = append(out, s)
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

// RoomTotals GET /api/v1/reports/room-totals
func (h *ReportHandler) RoomTotals(w http.ResponseWriter, r *http.Request) {
	window, query, ok := h.parse(w, r)
	if !ok {
		return
	}
	totals, err := h.aggregator.PerRoomTotals(r.Context(), window, query)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	list := make([]models.RoomTotal, 0, len(totals))
	for _, t := range totals {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].RoomID < list[j].RoomID })
	writeJSON(w, http.StatusOK, Ok(totalsResponse[models.RoomTotal]{
		From:   clock.CivilDate(window.From, h.clock.Location()),
		To:     lastDate(window, h.clock),
		Totals: list,
	}))
}

// DailyTotals GET /api/v1/reports/daily-totals
func (h *ReportHandler) DailyTotals(w http.ResponseWriter, r *http.Request) {
	window, query, ok := h.parse(w, r)
	if !ok {
		return
	}
	days, err := h.aggregator.PerDayTotals(r.Context(), window, query)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(totalsResponse[models.DayTotal]{
		From:   clock.CivilDate(window.From, h.clock.Location()),
		To:     lastDate(window, h.clock),
		Totals: days,
	}))
}

// MonitorTotalsXLSX GET /api/v1/reports/monitor-totals.xlsx
func (h *ReportHandler) MonitorTotalsXLSX(w http.ResponseWriter, r *http.Request) {
	window, query, ok := h.parse(w, r)
	if !ok {
		return
	}
	totals, err := h.aggregator.PerMonitorTotals(r.Context(), window, query)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	entries, err := h.aggregator.EntriesIn(r.Context(), window, query)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	ids := make([]int64, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	monitors, err := h.directory.ListMonitors(r.Context(), ids)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	data, err := report.TotalsWorkbook(report.TotalsInput{
		Window:   window,
		Location: h.clock.Location(),
		Totals:   totals,
		Monitors: monitors,
		Entries:  entries,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	filename := fmt.Sprintf("monitor-totals_%s_%s.xlsx", clock.CivilDate(window.From, h.clock.Location()), lastDate(window, h.clock))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *ReportHandler) parse(w http.ResponseWriter, r *http.Request) (clock.Window, aggregator.Query, bool) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return clock.Window{}, aggregator.Query{}, false
	}
	window, err := parseWindow(r, h.clock)
	if err != nil {
		writeError(w, r, h.logger, err)
		return clock.Window{}, aggregator.Query{}, false
	}

	q := r.URL.Query()
	monitorIDs, err := parseIDList(q.Get("monitor_ids"), "monitor_ids")
	if err != nil {
		writeError(w, r, h.logger, err)
		return clock.Window{}, aggregator.Query{}, false
	}
	roomID, err := parseOptionalID(q.Get("room_id"), "room_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return clock.Window{}, aggregator.Query{}, false
	}
	monitorIDs, err = scopeMonitors(r.Context(), h.directory, actor, monitorIDs)
	if err != nil {
		writeError(w, r, h.logger, err)
		return clock.Window{}, aggregator.Query{}, false
	}

	return window, aggregator.Query{
		MonitorIDs:  monitorIDs,
		RoomID:      roomID,
		IncludeOpen: parseBool(q.Get("include_open")),
	}, true
}

func (h *ReportHandler) response(window clock.Window, list []models.MonitorTotal) totalsResponse[models.MonitorTotal] {
	return totalsResponse[models.MonitorTotal]{
		From:   clock.CivilDate(window.From, h.clock.Location()),
		To:     lastDate(window, h.clock),
		Totals: list,
	}
}

// lastDate is the inclusive civil date ending the half-open window.
func lastDate(window clock.Window, clk clock.Clock) string {
	return clock.CivilDate(window.To.AddDate(0, 0, -1), clk.Location())
}
