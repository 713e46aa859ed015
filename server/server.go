package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-dashboard-core/directory"
	"github.com/jrsteele09/go-dashboard-core/gate"
	"github.com/jrsteele09/go-dashboard-core/internal/config"
	"github.com/jrsteele09/go-dashboard-core/internal/metrics"
	"github.com/jrsteele09/go-dashboard-core/profiles"
	"github.com/jrsteele09/go-dashboard-core/realtime"
	"github.com/jrsteele09/go-dashboard-core/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FileSource serves stored objects back over HTTP. The in-memory object store implements it.
type FileSource interface {
	Get(path string) ([]byte, string, error)
}

// Services groups the components the HTTP surface exposes
type Services struct {
	Session       *session.Store
	Directory     *directory.Store
	Performance   *realtime.PerformanceChannel
	Notifications *realtime.NotificationChannel
	Avatars       *profiles.AvatarService
	Files         FileSource
	Metrics       *metrics.Metrics
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	services Services
	gate     gate.Routes
	logger   zerolog.Logger
}

func New(cfg config.Config, services Services) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if services.Session == nil {
		return nil, errors.New("[Server New] session store is required")
	}
	if services.Directory == nil {
		return nil, errors.New("[Server New] directory is required")
	}
	if services.Performance == nil || services.Notifications == nil {
		return nil, errors.New("[Server New] realtime channels are required")
	}

	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		services: services,
		gate:     gate.DefaultRoutes(),
		logger:   log.With().Str("component", "server").Logger(),
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes lists the registered patterns in registration order
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	s.logger.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func (s *Server) logError(method, path string, err error) {
	s.logger.Error().Msgf("[%-19s] %s %s", colourMethod(method), path, Red+err.Error()+ResetColor)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if colour, ok := methodColors[method]; ok {
		return colour + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
