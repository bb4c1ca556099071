// Package httpapi serves the schedule and roster over JSON and iCalendar.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"deployrota/internal/remote"
	"deployrota/internal/roster"
	"deployrota/internal/schedule"
	logx "deployrota/pkg/logx"
)

// Service is the part of deploy.Service the API exposes.
type Service interface {
	Roster(ctx context.Context) roster.Roster
	SaveRoster(ctx context.Context, r roster.Roster) (roster.Roster, error)
	AddName(ctx context.Context, name string) (roster.Roster, error)
	RemoveName(ctx context.Context, index int) (roster.Roster, error)
	EditName(ctx context.Context, index int, name string) (roster.Roster, error)
	MoveName(ctx context.Context, from, to int) (roster.Roster, error)

	Schedule(ctx context.Context, count int) ([]schedule.Entry, error)
	ScheduleFrom(ctx context.Context, from schedule.Date, count int) ([]schedule.Entry, error)
	Upcoming(ctx context.Context, count int) ([]schedule.Entry, error)
	TodayEntry(ctx context.Context) (schedule.Entry, bool, error)
	Next(ctx context.Context) (schedule.Entry, error)
	Stored(ctx context.Context) []remote.Stored
	FormatDate(d schedule.Date) string
	Today() schedule.Date
}

// Config controls the HTTP server.
//
// There is no authentication; prefer binding to localhost.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// ListCount is the default count for schedule listings.
	ListCount int
	// CalendarName is the X-WR-CALNAME of the ICS export.
	CalendarName string
}

type Server struct {
	cfg  Config
	svc  Service
	log  logx.Logger
	echo *echo.Echo

	mu  sync.Mutex
	ln  net.Listener
	srv *http.Server
}

func New(cfg Config, svc Service, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.ListCount <= 0 {
		cfg.ListCount = 10
	}
	if cfg.CalendarName == "" {
		cfg.CalendarName = "Deploy rotation"
	}
	s := &Server{cfg: cfg, svc: svc, log: log.With(logx.String("comp", "http"))}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetOutput(io.Discard)
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(s.requestLog)
	s.echo = e
	s.routes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) routes() {
	e := s.echo
	e.GET("/healthz", s.healthz)

	api := e.Group("/api")
	api.GET("/schedule", s.getSchedule)
	api.GET("/schedule/stored", s.getStored)
	api.GET("/schedule/today", s.getToday)
	api.GET("/schedule.ics", s.getICS)

	api.GET("/roster", s.getRoster)
	api.PUT("/roster", s.putRoster)
	api.POST("/roster/names", s.addName)
	api.PUT("/roster/names/:index", s.editName)
	api.DELETE("/roster/names/:index", s.removeName)
	api.POST("/roster/names/:index/move", s.moveName)
}

// Start listens on cfg.Addr and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:      s.echo,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.ln, s.srv = ln, srv

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped with error", logx.Err(err))
		}
	}()
	s.log.Info("http started", logx.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound address, or "" when not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop shuts down gracefully, bounded by ctx and cfg.ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv, s.ln = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	err := srv.Shutdown(ctx)
	if err != nil {
		_ = srv.Close()
	}
	s.log.Info("http stopped")
	return err
}

func (s *Server) requestLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		req := c.Request()
		fields := []logx.Field{
			logx.String("method", req.Method),
			logx.String("path", req.URL.Path),
			logx.Int("status", c.Response().Status),
			logx.Duration("dur", time.Since(start)),
		}
		if c.Response().Status >= http.StatusInternalServerError {
			s.log.Warn("http request", fields...)
		} else {
			s.log.Debug("http request", fields...)
		}
		return nil
	}
}

// handleError renders every error as {"error": "..."} with a status derived
// from the domain error.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := statusFor(err)
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{"error": msg})
}

func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		if m, ok := he.Message.(string); ok {
			return he.Code, m
		}
		return he.Code, http.StatusText(he.Code)
	case errors.Is(err, roster.ErrIndexOutOfRange):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, roster.ErrBlankName), errors.Is(err, roster.ErrDuplicateName):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, schedule.ErrEmptyRoster):
		return http.StatusConflict, err.Error()
	case errors.Is(err, schedule.ErrNegativeCount):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
