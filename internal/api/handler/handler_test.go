package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"attendance.service/internal/api"
	"attendance.service/internal/core"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository/memory"
	"github.com/gorilla/mux"
)

type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time { return c.now }

type noopProducer struct{}

func (noopProducer) PublishClockOut(ctx context.Context, event messaging.ClockOutEvent) error {
	return nil
}

func (noopProducer) PublishCorrectionApproved(ctx context.Context, event messaging.CorrectionApprovedEvent) error {
	return nil
}

func newTestRouter(t *testing.T) (*mux.Router, *stubClock) {
	t.Helper()
	store := memory.NewStore()
	clock := &stubClock{now: time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC)}
	attendance := core.NewAttendanceService(store, noopProducer{}, clock)
	correction := core.NewCorrectionService(store, noopProducer{}, clock)
	return api.NewRouter(attendance, correction), clock
}

func doJSON(t *testing.T, router *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not a JSON object: %v\n%s", err, w.Body.String())
	}
	return out
}

func TestClockInEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/attendance/clock-in", `{"userId":"user-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["status"] != "working" {
		t.Errorf("status field = %v, want working", body["status"])
	}

	// Duplicate punch conflicts.
	w = doJSON(t, router, http.MethodPost, "/api/v1/attendance/clock-in", `{"userId":"user-1"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate clock-in status = %d, want 409", w.Code)
	}
}

func TestPunchRejectsBadRequests(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/attendance/clock-in", `{`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", w.Code)
	}
	w = doJSON(t, router, http.MethodPost, "/api/v1/attendance/clock-in", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing userId status = %d, want 400", w.Code)
	}
}

func TestTodayBeforeFirstPunch(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance/today?userId=user-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "before" {
		t.Errorf("status field = %v, want before", body["status"])
	}
}

func TestFullDayOverHTTP(t *testing.T) {
	router, clock := newTestRouter(t)

	steps := []struct {
		hour   int
		minute int
		path   string
		status string
	}{
		{9, 0, "/api/v1/attendance/clock-in", "working"},
		{12, 0, "/api/v1/attendance/break-start", "break"},
		{12, 30, "/api/v1/attendance/break-end", "working"},
		{18, 0, "/api/v1/attendance/clock-out", "after"},
	}
	for _, step := range steps {
		clock.now = time.Date(2026, time.February, 10, step.hour, step.minute, 0, 0, time.UTC)

		w := doJSON(t, router, http.MethodPost, step.path, `{"userId":"user-1"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200\n%s", step.path, w.Code, w.Body.String())
		}
		if body := decodeBody(t, w); body["status"] != step.status {
			t.Errorf("%s status field = %v, want %s", step.path, body["status"], step.status)
		}
	}
}

func TestCorrectionWorkflowOverHTTP(t *testing.T) {
	router, clock := newTestRouter(t)

	if w := doJSON(t, router, http.MethodPost, "/api/v1/attendance/clock-in", `{"userId":"user-1"}`); w.Code != http.StatusOK {
		t.Fatalf("clock-in failed: %d", w.Code)
	}
	clock.now = time.Date(2026, time.February, 10, 18, 0, 0, 0, time.UTC)
	if w := doJSON(t, router, http.MethodPost, "/api/v1/attendance/clock-out", `{"userId":"user-1"}`); w.Code != http.StatusOK {
		t.Fatalf("clock-out failed: %d", w.Code)
	}

	w := doJSON(t, router, http.MethodPost, "/api/v1/attendance/1/corrections",
		`{"userId":"user-1","clockIn":"10:00","clockOut":"17:00","breaks":[{"start":"12:00","end":"12:30"}],"reason":"forgot to punch"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, want 201\n%s", w.Code, w.Body.String())
	}
	requestID, _ := decodeBody(t, w)["id"].(string)
	if requestID == "" {
		t.Fatal("submit response has no id")
	}

	w = doJSON(t, router, http.MethodPost, "/api/v1/corrections/"+requestID+"/approve", `{"approverId":"admin-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("approve status = %d, want 200\n%s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	totals, _ := body["totals"].(map[string]any)
	if totals == nil || totals["workedMinutes"] != float64(390) {
		t.Errorf("totals = %v, want 390 worked minutes", body["totals"])
	}

	// A second approval is a conflict.
	w = doJSON(t, router, http.MethodPost, "/api/v1/corrections/"+requestID+"/approve", `{"approverId":"admin-2"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("second approve status = %d, want 409", w.Code)
	}
}

func TestCorrectionValidationStatusCodes(t *testing.T) {
	router, _ := newTestRouter(t)

	if w := doJSON(t, router, http.MethodPost, "/api/v1/attendance/clock-in", `{"userId":"user-1"}`); w.Code != http.StatusOK {
		t.Fatalf("clock-in failed: %d", w.Code)
	}

	w := doJSON(t, router, http.MethodPost, "/api/v1/attendance/1/corrections",
		`{"userId":"user-1","clockIn":"25:00","reason":"bad time"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid time status = %d, want 422", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/v1/attendance/1/corrections",
		`{"userId":"user-1","clockIn":"10:00"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing reason status = %d, want 422", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/v1/attendance/99/corrections",
		`{"userId":"user-1","clockIn":"10:00","reason":"fix"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown record status = %d, want 404", w.Code)
	}
}

func TestApproveUnknownCorrection(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/corrections/nope/approve", `{"approverId":"admin-1"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
