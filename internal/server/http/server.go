package internalhttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/lomoval/sked/internal/app"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Server struct {
	srv  *http.Server
	app  *app.App
	addr string
}

func NewServer(config Config, app *app.App) *Server {
	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	return &Server{
		app:  app,
		addr: addr,
		srv: &http.Server{
			Addr:         addr,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		},
	}
}

// Handler registers the calendar routes on mux and wraps it with request logging.
// A nil mux is replaced with a new one.
func (s *Server) Handler(mux *runtime.ServeMux) (http.Handler, error) {
	if mux == nil {
		mux = runtime.NewServeMux()
	}
	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{http.MethodPost, "/events", s.createEvent},
		{http.MethodGet, "/events/{id}", s.getEvent},
		{http.MethodPut, "/events/{id}", s.updateEvent},
		{http.MethodDelete, "/events/{id}", s.removeEvent},
		{http.MethodGet, "/occurrences/day", s.occurrencesForDay},
		{http.MethodGet, "/occurrences/week", s.occurrencesForWeek},
		{http.MethodGet, "/occurrences/month", s.occurrencesForMonth},
		{http.MethodGet, "/occurrences/range", s.occurrencesForRange},
		{http.MethodGet, "/fields", s.fieldDefinitions},
		{http.MethodGet, "/calendar.ics", s.calendarFeed},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, r.handler); err != nil {
			return nil, fmt.Errorf("failed to register %s %s: %w", r.method, r.pattern, err)
		}
	}
	return loggingMiddleware(mux), nil
}

func (s *Server) Start(_ context.Context, mux *runtime.ServeMux) error {
	handler, err := s.Handler(mux)
	if err != nil {
		return err
	}
	s.srv.Handler = handler

	log.Printf("starting http server on %s", s.addr)
	err = s.srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func getIP(req *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return "", fmt.Errorf("userip: %q is not IP:port", req.RemoteAddr)
	}

	if parsed := net.ParseIP(ip); parsed == nil {
		return "", fmt.Errorf("userip: %q is not IP:port", req.RemoteAddr)
	}
	return ip, nil
}
