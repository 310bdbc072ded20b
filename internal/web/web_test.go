package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetcal/internal/config"
	"sheetcal/internal/model"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	return cfg
}

func testEvents() []model.ScheduleEvent {
	end := time.Date(2024, 12, 23, 0, 0, 0, 0, time.UTC)
	timedEnd := time.Date(2024, 12, 20, 15, 0, 0, 0, time.UTC)
	return []model.ScheduleEvent{
		{UID: "a", Summary: "Winter Break", AllDay: true, Start: time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC), End: &end},
		{UID: "b", Summary: "Recital", Start: time.Date(2024, 12, 20, 14, 0, 0, 0, time.UTC), End: &timedEnd},
	}
}

func do(t *testing.T, h http.Handler, path string, auth ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if len(auth) == 2 {
		req.SetBasicAuth(auth[0], auth[1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, NewServer(testConfig()).Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestUnpublishedCalendarIsUnavailable(t *testing.T) {
	h := NewServer(testConfig()).Handler()
	for _, path := range []string{"/calendar.ics", "/api/events", "/api/agenda"} {
		assert.Equal(t, http.StatusServiceUnavailable, do(t, h, path).Code, path)
	}
}

func TestCalendarAndEvents(t *testing.T) {
	s := NewServer(testConfig())
	generated := time.Date(2024, 12, 1, 8, 0, 0, 0, time.UTC)
	s.Publish("Registrar", testEvents(), generated)
	h := s.Handler()

	rec := do(t, h, "/calendar.ics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar"))
	assert.Contains(t, rec.Body.String(), "X-WR-CALNAME:Registrar")
	assert.Contains(t, rec.Body.String(), "SUMMARY:Recital")

	rec = do(t, h, "/api/events")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Title       string                `json:"title"`
		GeneratedAt time.Time             `json:"generated_at"`
		Events      []model.ScheduleEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Registrar", body.Title)
	assert.True(t, generated.Equal(body.GeneratedAt))
	require.Len(t, body.Events, 2)
	assert.Equal(t, "Winter Break", body.Events[0].Summary)
	assert.True(t, body.Events[0].AllDay)
}

func TestAgenda(t *testing.T) {
	s := NewServer(testConfig())
	s.Publish("Registrar", testEvents(), time.Now())
	h := s.Handler()

	rec := do(t, h, "/api/agenda?from=2024-12-21&days=7")
	require.Equal(t, http.StatusOK, rec.Code)

	var body agendaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Occurrences, 2)
	assert.Equal(t, "a/2024-12-21", body.Occurrences[0].InstanceKey)
	assert.Equal(t, "a/2024-12-22", body.Occurrences[1].InstanceKey)
	assert.Equal(t, "UTC", body.DisplayTimeZone)

	rec = do(t, h, "/api/agenda?from=2024-12-20&days=1")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Occurrences, 2)
	assert.Equal(t, "Winter Break", body.Occurrences[0].Summary)
	assert.Equal(t, "Recital", body.Occurrences[1].Summary)

	assert.Equal(t, http.StatusBadRequest, do(t, h, "/api/agenda?from=12/20").Code)
}

func TestBasicAuth(t *testing.T) {
	cfg := testConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "s3cret"}
	s := NewServer(cfg)
	s.Publish("Registrar", testEvents(), time.Now())
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, "/health").Code)

	rec := do(t, h, "/calendar.ics")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	assert.Equal(t, http.StatusUnauthorized, do(t, h, "/calendar.ics", "admin", "wrong").Code)
	assert.Equal(t, http.StatusOK, do(t, h, "/calendar.ics", "admin", "s3cret").Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := NewServer(testConfig()).Handler()
	req := httptest.NewRequest(http.MethodPost, "/api/events", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSetLocationMovesAgenda(t *testing.T) {
	s := NewServer(testConfig())
	s.Publish("Registrar", testEvents(), time.Now())
	h := s.Handler()

	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	s.SetLocation(chicago)

	rec := do(t, h, "/api/agenda?from=2024-12-20&days=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body agendaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "America/Chicago", body.DisplayTimeZone)
	assert.True(t, time.Date(2024, 12, 20, 0, 0, 0, 0, chicago).Equal(body.RangeStart))
}
