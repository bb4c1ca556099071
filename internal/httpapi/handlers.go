package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"deployrota/internal/remote"
	"deployrota/internal/roster"
	"deployrota/internal/schedule"
)

const maxCount = 1000

type entryView struct {
	Date        schedule.Date `json:"date"`
	Display     string        `json:"display"`
	Weekday     string        `json:"weekday"`
	Responsible string        `json:"responsible"`
}

type scheduleResponse struct {
	Entries []entryView `json:"entries"`
}

type storedResponse struct {
	Entries []remote.Stored `json:"entries"`
}

type todayResponse struct {
	Date        schedule.Date `json:"date"`
	IsDeployDay bool          `json:"is_deploy_day"`
	Entry       *entryView    `json:"entry,omitempty"`
	Next        *entryView    `json:"next,omitempty"`
}

type rosterResponse struct {
	Names roster.Roster `json:"names"`
}

type rosterRequest struct {
	Names []string `json:"names"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type moveRequest struct {
	To *int `json:"to"`
}

func (s *Server) view(e schedule.Entry) entryView {
	return entryView{
		Date:        e.Date,
		Display:     s.svc.FormatDate(e.Date),
		Weekday:     e.Date.Weekday().String(),
		Responsible: e.Responsible,
	}
}

func (s *Server) views(entries []schedule.Entry) []entryView {
	out := make([]entryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, s.view(e))
	}
	return out
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// getSchedule lists entries from the start date, or from ?from=YYYY-MM-DD
// ("today" is accepted) keeping the rotation anchored at the start date.
func (s *Server) getSchedule(c echo.Context) error {
	count, err := s.countParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	var entries []schedule.Entry
	switch from := strings.TrimSpace(c.QueryParam("from")); from {
	case "":
		entries, err = s.svc.Schedule(ctx, count)
	case "today":
		entries, err = s.svc.Upcoming(ctx, count)
	default:
		d, perr := schedule.ParseDate(from)
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from: expected YYYY-MM-DD")
		}
		entries, err = s.svc.ScheduleFrom(ctx, d, count)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, scheduleResponse{Entries: s.views(entries)})
}

func (s *Server) getStored(c echo.Context) error {
	return c.JSON(http.StatusOK, storedResponse{Entries: s.svc.Stored(c.Request().Context())})
}

func (s *Server) getToday(c echo.Context) error {
	ctx := c.Request().Context()
	resp := todayResponse{Date: s.svc.Today()}

	e, ok, err := s.svc.TodayEntry(ctx)
	if err != nil {
		return err
	}
	if ok {
		v := s.view(e)
		resp.IsDeployDay = true
		resp.Entry = &v
	}
	next, err := s.svc.Next(ctx)
	if err != nil {
		return err
	}
	nv := s.view(next)
	resp.Next = &nv
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) getICS(c echo.Context) error {
	count, err := s.countParam(c)
	if err != nil {
		return err
	}
	entries, err := s.svc.Upcoming(c.Request().Context(), count)
	if err != nil {
		return err
	}
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	return writeICS(w, s.cfg.CalendarName, entries, s.svc.FormatDate)
}

func (s *Server) getRoster(c echo.Context) error {
	return c.JSON(http.StatusOK, rosterResponse{Names: nonNil(s.svc.Roster(c.Request().Context()))})
}

func (s *Server) putRoster(c echo.Context) error {
	var req rosterRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Names == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "names: required")
	}
	saved, err := s.svc.SaveRoster(c.Request().Context(), req.Names)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rosterResponse{Names: nonNil(saved)})
}

func (s *Server) addName(c echo.Context) error {
	var req nameRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	saved, err := s.svc.AddName(c.Request().Context(), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rosterResponse{Names: nonNil(saved)})
}

func (s *Server) editName(c echo.Context) error {
	i, err := indexParam(c)
	if err != nil {
		return err
	}
	var req nameRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	saved, err := s.svc.EditName(c.Request().Context(), i, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rosterResponse{Names: nonNil(saved)})
}

func (s *Server) removeName(c echo.Context) error {
	i, err := indexParam(c)
	if err != nil {
		return err
	}
	saved, err := s.svc.RemoveName(c.Request().Context(), i)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rosterResponse{Names: nonNil(saved)})
}

func (s *Server) moveName(c echo.Context) error {
	i, err := indexParam(c)
	if err != nil {
		return err
	}
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.To == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "to: required")
	}
	saved, err := s.svc.MoveName(c.Request().Context(), i, *req.To)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rosterResponse{Names: nonNil(saved)})
}

func (s *Server) countParam(c echo.Context) (int, error) {
	raw := strings.TrimSpace(c.QueryParam("count"))
	if raw == "" {
		return s.cfg.ListCount, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > maxCount {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "count: expected 0.."+strconv.Itoa(maxCount))
	}
	return n, nil
}

// indexParam reads the 0-based :index path parameter.
func indexParam(c echo.Context) (int, error) {
	n, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "index: expected an integer")
	}
	return n, nil
}

func nonNil(r roster.Roster) roster.Roster {
	if r == nil {
		return roster.Roster{}
	}
	return r
}
