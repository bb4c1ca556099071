package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deployrota/internal/deploy"
	"deployrota/internal/remote"
	"deployrota/internal/roster"
	"deployrota/internal/schedule"
	"deployrota/internal/storage"
	logx "deployrota/pkg/logx"
)

// Thursday 2025-05-15 is the third slot after 2025-05-08.
var testNow = time.Date(2025, 5, 15, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, names ...string) (*Server, *deploy.Service) {
	t.Helper()
	st := roster.NewStore(storage.NewMemory())
	_, err := st.Save(context.Background(), names)
	require.NoError(t, err)

	table := remote.NewMemory()
	require.NoError(t, table.Upsert(context.Background(), []remote.Row{
		{DeployDate: "12/05/2025", ResponsibleName: "Bia"},
		{DeployDate: "08/05/2025", ResponsibleName: "Ana"},
	}))

	svc := deploy.New(deploy.Deps{
		Store:    st,
		Schedule: schedule.DefaultConfig(),
		Location: time.UTC,
		Clock:    schedule.FixedClock(testNow),
		Remote:   table,
	})
	return New(Config{ListCount: 3}, svc, logx.Nop()), svc
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, "Ana")
	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetSchedule(t *testing.T) {
	s, _ := newTestServer(t, "Ana", "Bia")

	rec := do(t, s, http.MethodGet, "/api/schedule", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[scheduleResponse](t, rec)
	require.Len(t, got.Entries, 3)
	assert.Equal(t, "08/05/2025", got.Entries[0].Display)
	assert.Equal(t, "Thursday", got.Entries[0].Weekday)
	assert.Equal(t, "Ana", got.Entries[0].Responsible)
	assert.Equal(t, "Bia", got.Entries[1].Responsible)

	rec = do(t, s, http.MethodGet, "/api/schedule?from=2025-05-13&count=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[scheduleResponse](t, rec)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, schedule.NewDate(2025, 5, 15), got.Entries[0].Date)
	assert.Equal(t, "Ana", got.Entries[0].Responsible)

	rec = do(t, s, http.MethodGet, "/api/schedule?from=today&count=1", "")
	got = decode[scheduleResponse](t, rec)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, "15/05/2025", got.Entries[0].Display)
}

func TestGetScheduleBadInput(t *testing.T) {
	s, _ := newTestServer(t, "Ana")
	for _, path := range []string{
		"/api/schedule?count=-1",
		"/api/schedule?count=abc",
		"/api/schedule?from=15/05/2025",
	} {
		rec := do(t, s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Contains(t, rec.Body.String(), `"error"`, path)
	}
}

func TestGetScheduleEmptyRoster(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/schedule", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/schedule?count=0", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entries":[]}`, rec.Body.String())
}

func TestGetStoredIsChronological(t *testing.T) {
	s, _ := newTestServer(t, "Ana")
	rec := do(t, s, http.MethodGet, "/api/schedule/stored", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[storedResponse](t, rec)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, "08/05/2025", got.Entries[0].DeployDate)
	assert.Equal(t, "12/05/2025", got.Entries[1].DeployDate)
}

func TestGetToday(t *testing.T) {
	s, _ := newTestServer(t, "Ana", "Bia")
	rec := do(t, s, http.MethodGet, "/api/schedule/today", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[todayResponse](t, rec)
	assert.True(t, got.IsDeployDay)
	require.NotNil(t, got.Entry)
	assert.Equal(t, "Ana", got.Entry.Responsible)
	require.NotNil(t, got.Next)
	assert.Equal(t, got.Entry.Date, got.Next.Date)
}

func TestGetICS(t *testing.T) {
	s, _ := newTestServer(t, "Ana", "Bia")
	rec := do(t, s, http.MethodGet, "/api/schedule.ics?count=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "BEGIN:VCALENDAR\r\n"))
	assert.Equal(t, 2, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "UID:deploy-20250515@deployrota\r\n")
	assert.Contains(t, body, "DTSTART;VALUE=DATE:20250519\r\nDTEND;VALUE=DATE:20250520\r\n")
	assert.Contains(t, body, "SUMMARY:Deploy: Bia\r\n")
}

func TestWriteICSFoldsAndEscapes(t *testing.T) {
	d := schedule.NewDate(2025, time.May, 8)
	name := "Endryus Henrique da Silva Nascimento Pereira, Jr"
	var buf strings.Builder
	err := writeICS(&buf, "Deploys", []schedule.Entry{{Date: d, Responsible: name}}, func(d schedule.Date) string {
		return d.Format(schedule.DisplayLayout)
	})
	require.NoError(t, err)

	body := buf.String()
	for _, line := range strings.Split(strings.TrimSuffix(body, "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), 75, "line not folded: %q", line)
	}
	unfolded := strings.ReplaceAll(body, "\r\n ", "")
	assert.Contains(t, unfolded, "UID:deploy-20250508@deployrota\r\n")
	assert.Contains(t, unfolded, "SUMMARY:Deploy: Endryus Henrique da Silva Nascimento Pereira\\, Jr\r\n")
	assert.Contains(t, unfolded, "DESCRIPTION:Endryus Henrique da Silva Nascimento Pereira\\, Jr is responsible for the deploy on 08/05/2025\r\n")
	assert.Contains(t, unfolded, "X-WR-CALNAME:Deploys\r\n")
}

func TestRosterCRUD(t *testing.T) {
	s, svc := newTestServer(t, "Ana", "Bia")
	ctx := context.Background()

	rec := do(t, s, http.MethodGet, "/api/roster", "")
	assert.JSONEq(t, `{"names":["Ana","Bia"]}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/roster/names", `{"name":"  Caio "}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"names":["Ana","Bia","Caio"]}`, rec.Body.String())

	rec = do(t, s, http.MethodPut, "/api/roster/names/1", `{"name":"Bea"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/roster/names/2/move", `{"to":0}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"names":["Caio","Ana","Bea"]}`, rec.Body.String())

	rec = do(t, s, http.MethodDelete, "/api/roster/names/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, roster.Roster{"Caio", "Bea"}, svc.Roster(ctx))

	rec = do(t, s, http.MethodPut, "/api/roster", `{"names":["Zoe"," ","Zoe","Yan"]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"names":["Zoe","Yan"]}`, rec.Body.String())
}

func TestRosterErrorStatuses(t *testing.T) {
	s, svc := newTestServer(t, "Ana", "Bia")

	cases := []struct {
		method, path, body string
		code               int
	}{
		{http.MethodPost, "/api/roster/names", `{"name":"Ana"}`, http.StatusUnprocessableEntity},
		{http.MethodPost, "/api/roster/names", `{"name":"   "}`, http.StatusUnprocessableEntity},
		{http.MethodDelete, "/api/roster/names/5", "", http.StatusNotFound},
		{http.MethodPut, "/api/roster/names/-1", `{"name":"X"}`, http.StatusNotFound},
		{http.MethodDelete, "/api/roster/names/x", "", http.StatusBadRequest},
		{http.MethodPost, "/api/roster/names/0/move", `{}`, http.StatusBadRequest},
		{http.MethodPut, "/api/roster", `{}`, http.StatusBadRequest},
		{http.MethodPost, "/api/roster/names", `{"name":`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := do(t, s, tc.method, tc.path, tc.body)
		assert.Equal(t, tc.code, rec.Code, "%s %s", tc.method, tc.path)
	}
	assert.Equal(t, roster.Roster{"Ana", "Bia"}, svc.Roster(context.Background()))
}

func TestStartStop(t *testing.T) {
	s, _ := newTestServer(t, "Ana")
	s.cfg.Addr = "127.0.0.1:0"
	require.NoError(t, s.Start(context.Background()))

	addr := s.Addr()
	require.NotEmpty(t, addr)
	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Empty(t, s.Addr())
}
