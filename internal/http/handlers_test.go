package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/aggregator"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/clock"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/presence"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/repository"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/watcher"
)

const adminID = 99

type testServer struct {
	router  *Router
	clock   *clock.Fake
	watcher *watcher.Watcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	loc, err := time.LoadLocation("America/Bogota")
	require.NoError(t, err)
	logger := zap.NewNop()

	dir := repository.NewMemoryDirectory()
	dir.AddMonitor(models.Monitor{ID: 1, DisplayName: "Ana Torres", Role: models.RoleMonitor, Verified: true})
	dir.AddMonitor(models.Monitor{ID: 2, DisplayName: "Luis Gómez", Role: models.RoleMonitor, Verified: true})
	dir.AddMonitor(models.Monitor{ID: adminID, DisplayName: "Admin", Role: models.RoleAdmin, Verified: true})
	dir.AddRoom(models.Room{ID: 7, Name: "Sala 7"})
	dir.AddRoom(models.Room{ID: 9, Name: "Sala 9"})

	clk := clock.NewFake(time.Date(2025, 1, 10, 8, 0, 0, 0, loc))
	entries := repository.NewMemoryEntryStore()
	alerts := repository.NewMemoryAlertStore(entries)
	w := watcher.NewWatcher(entries, alerts, dir.AdminIDs, clk, nil, 8*time.Hour, 24*time.Hour, logger)
	engine := presence.NewEngine(entries, dir, clk, w, nil, 0, logger)
	agg := aggregator.NewAggregator(entries, clk, logger)

	router := NewRouter(logger)
	router.RegisterHealthRoutes(clk)
	router.RegisterPresenceRoutes(NewPresenceHandler(engine, agg, dir, clk, logger))
	router.RegisterReportRoutes(NewReportHandler(agg, dir, clk, logger))
	router.RegisterAlertRoutes(NewAlertHandler(alerts, clk, logger))

	return &testServer{router: router, clock: clk, watcher: w}
}

func (s *testServer) do(t *testing.T, method, path string, actor int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != 0 {
		req.Header.Set("X-User-Id", strconv.FormatInt(actor, 10))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) Result[T] {
	t.Helper()
	var out Result[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec).Result["status"])

	rec = s.do(t, http.MethodPost, "/healthz", 0, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestOpenCloseAndTotals(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/entries/open", 1, map[string]any{"room_id": 7})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	opened := decode[models.RoomEntry](t, rec)
	assert.Equal(t, ResultSuccess, opened.Code)
	assert.True(t, opened.Result.Active)

	rec = s.do(t, http.MethodPost, "/api/v1/entries/open", 1, map[string]any{"room_id": 9})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ResultError, decode[any](t, rec).Code)

	rec = s.do(t, http.MethodGet, "/api/v1/entries/open", 1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.RoomEntry](t, rec).Result, 1)

	s.clock.Advance(4*time.Hour + 30*time.Minute)
	rec = s.do(t, http.MethodPost, "/api/v1/entries/close", 1, map[string]any{"notes": "fin de turno"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	closed := decode[models.RoomEntry](t, rec)
	assert.False(t, closed.Result.Active)
	assert.Equal(t, "fin de turno", closed.Result.Notes)

	rec = s.do(t, http.MethodPost, "/api/v1/entries/close", 1, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/reports/monitor-totals?from=2025-01-10", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t,
		`{"from":"2025-01-10","to":"2025-01-10","totals":[{"monitor_id":1,"total_hours":4.5,"entry_count":1}]}`,
		string(mustResult(t, rec)))

	rec = s.do(t, http.MethodGet, "/api/v1/alerts", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.Alert](t, rec).Result)
}

func mustResult(t *testing.T, rec *httptest.ResponseRecorder) json.RawMessage {
	t.Helper()
	var env struct {
		Result json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Result
}

func TestActorRequired(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/entries/open", 0, map[string]any{"room_id": 7})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOpenEntry_Validation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/entries/open", 1, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/entries/open", 1, map[string]any{"room_id": 404})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// monitors cannot open entries for someone else
	rec = s.do(t, http.MethodPost, "/api/v1/entries/open", 1, map[string]any{"room_id": 7, "monitor_id": 2})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/entries/open", adminID, map[string]any{"room_id": 7, "monitor_id": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), decode[models.RoomEntry](t, rec).Result.MonitorID)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/entries/open", strings.NewReader("{"))
	req.Header.Set("X-User-Id", "1")
	out := httptest.NewRecorder()
	s.router.ServeHTTP(out, req)
	assert.Equal(t, http.StatusBadRequest, out.Code)
}

func TestForceClose(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/entries/open", 2, map[string]any{"room_id": 7})
	require.Equal(t, http.StatusOK, rec.Code)
	entry := decode[models.RoomEntry](t, rec).Result
	s.clock.Advance(12 * time.Hour)
	path := "/api/v1/entries/" + strconv.FormatInt(entry.ID, 10) + "/force-close"

	rec = s.do(t, http.MethodPost, path, 1, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, path, adminID, map[string]any{"exit_time": entry.EntryTime.Format(time.RFC3339)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	exit := entry.EntryTime.Add(9 * time.Hour)
	rec = s.do(t, http.MethodPost, path, adminID, map[string]any{"exit_time": exit.Format(time.RFC3339)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	closed := decode[models.RoomEntry](t, rec).Result
	require.NotNil(t, closed.ClosedBy)
	assert.Equal(t, int64(adminID), *closed.ClosedBy)

	rec = s.do(t, http.MethodPost, path, adminID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/entries/404/force-close", adminID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, path, adminID, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	// the 9h session alerted the admin
	rec = s.do(t, http.MethodGet, "/api/v1/alerts?kind=threshold_crossed", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	alerts := decode[[]models.Alert](t, rec).Result
	require.Len(t, alerts, 1)
	assert.Equal(t, 9.0, alerts[0].DurationHoursAtDetection)
}

func TestAlertsReadAndSummary(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/entries/open", 2, map[string]any{"room_id": 7})
	require.Equal(t, http.StatusOK, rec.Code)
	s.clock.Advance(9 * time.Hour)
	_, err := s.watcher.Sweep(context.Background())
	require.NoError(t, err)

	rec = s.do(t, http.MethodGet, "/api/v1/alerts?unread=true", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	alerts := decode[[]models.Alert](t, rec).Result
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertStillOpenOverThreshold, alerts[0].Kind)

	readPath := "/api/v1/alerts/" + strconv.FormatInt(alerts[0].ID, 10) + "/read"
	rec = s.do(t, http.MethodPost, readPath, 1, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "only the recipient can mark it read")

	rec = s.do(t, http.MethodPost, readPath, adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/alerts/summary", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[models.AlertSummary](t, rec).Result
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 0, summary.Unread)
	assert.Equal(t, map[int64]int{2: 1}, summary.PerMonitorCount)

	rec = s.do(t, http.MethodGet, "/api/v1/alerts?kind=bogus", adminID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReports_ScopeAndFormats(t *testing.T) {
	s := newTestServer(t)

	for _, m := range []int64{1, 2} {
		rec := s.do(t, http.MethodPost, "/api/v1/entries/open", m, map[string]any{"room_id": 7})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	s.clock.Advance(2 * time.Hour)
	for _, m := range []int64{1, 2} {
		rec := s.do(t, http.MethodPost, "/api/v1/entries/close", m, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// a monitor only sees their own totals
	rec := s.do(t, http.MethodGet, "/api/v1/reports/monitor-totals?from=2025-01-10", 1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(mustResult(t, rec)), `"monitor_id":1`)
	assert.NotContains(t, string(mustResult(t, rec)), `"monitor_id":2`)

	rec = s.do(t, http.MethodGet, "/api/v1/reports/monitor-totals?from=2025-01-10&monitor_ids=2", 1, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/reports/monitor-totals", adminID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/reports/room-totals?from=2025-01-10", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"from":"2025-01-10","to":"2025-01-10","totals":[{"room_id":7,"total_hours":4,"entry_count":2}]}`,
		string(mustResult(t, rec)))

	rec = s.do(t, http.MethodGet, "/api/v1/reports/daily-totals?from=2025-01-09&to=2025-01-10", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"from":"2025-01-09","to":"2025-01-10","totals":[{"date":"2025-01-10","total_hours":4,"entry_count":2}]}`,
		string(mustResult(t, rec)))

	rec = s.do(t, http.MethodGet, "/api/v1/entries?from=2025-01-10&room_id=7", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.RoomEntry](t, rec).Result, 2)

	rec = s.do(t, http.MethodGet, "/api/v1/reports/monitor-totals.xlsx?from=2025-01-10", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "monitor-totals_2025-01-10_2025-01-10.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Monitor Totals")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "Ana Torres", "2", "1"}, rows[1])
}

func TestOpenSnapshot(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/entries/open", 1, map[string]any{"room_id": 7})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s.clock.Advance(90 * time.Minute)
	rec = s.do(t, http.MethodPost, "/api/v1/entries/open", 2, map[string]any{"room_id": 9})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s.clock.Advance(30 * time.Minute)

	rec = s.do(t, http.MethodGet, "/api/v1/reports/open-snapshot", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/reports/open-snapshot", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var all []struct {
		MonitorID    int64   `json:"monitor_id"`
		RoomID       int64   `json:"room_id"`
		Active       bool    `json:"active"`
		ElapsedHours float64 `json:"elapsed_hours"`
	}
	require.NoError(t, json.Unmarshal(mustResult(t, rec), &all))
	require.Len(t, all, 2)
	elapsed := map[int64]float64{}
	for _, e := range all {
		assert.True(t, e.Active)
		elapsed[e.MonitorID] = e.ElapsedHours
	}
	assert.Equal(t, map[int64]float64{1: 2.0, 2: 0.5}, elapsed)

	rec = s.do(t, http.MethodGet, "/api/v1/reports/open-snapshot?room_id=9", 1, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(mustResult(t, rec), &all))
	require.Len(t, all, 1)
	assert.Equal(t, int64(2), all[0].MonitorID)

	rec = s.do(t, http.MethodPost, "/api/v1/entries/close", 2, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodGet, "/api/v1/reports/open-snapshot?room_id=9", 1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(mustResult(t, rec)))
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", 0, nil)
	generated := rec.Header().Get("X-Request-Id")
	_, err := uuid.Parse(generated)
	assert.NoError(t, err, generated)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "gateway-42")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "gateway-42", rec.Header().Get("X-Request-Id"))

	rec = s.do(t, http.MethodGet, "/api/v1/alerts", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
