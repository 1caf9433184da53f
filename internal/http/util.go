package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/clock"
)

const maxBodyBytes = 64 << 10

// badRequest marks input errors that map to 400.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

var errNoActor = errors.New("missing or invalid X-User-Id header")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return badRequestf("invalid JSON body: %v", err)
	}
	return nil
}

// actorID is the authenticated caller, set by the gateway in X-User-Id.
func actorID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get("X-User-Id")), 10, 64)
	if err != nil || id <= 0 {
		return 0, errNoActor
	}
	return id, nil
}

func parseID(s, name string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequestf("invalid %s %q", name, s)
	}
	return id, nil
}

// parseOptionalID returns nil for an empty value.
func parseOptionalID(s, name string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	id, err := parseID(s, name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// parseIDList parses "1,2,3".
func parseIDList(s, name string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := parseID(p, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseWindow reads from/to civil dates (to inclusive, defaults to from).
func parseWindow(r *http.Request, clk clock.Clock) (clock.Window, error) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" {
		return clock.Window{}, badRequestf("from is required (YYYY-MM-DD)")
	}
	if to == "" {
		to = from
	}
	w, err := clock.DateRangeWindow(from, to, clk.Location())
	if err != nil {
		return clock.Window{}, badRequestf("%v", err)
	}
	return w, nil
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
