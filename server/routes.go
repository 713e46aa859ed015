package server

import (
	"net/http"

	"github.com/jrsteele09/go-dashboard-core/profiles"
)

var (
	departmentEditors = []profiles.Role{profiles.RoleAdmin, profiles.RoleManager}
	performanceRaters = []profiles.Role{profiles.RoleAdmin, profiles.RoleManager, profiles.RoleTeamLead}
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, s.services.Metrics.Handler())

	// AUTH
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthSignup, ChainMiddleware(s.SignupHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))

	// DEPARTMENTS
	s.RegisterRouteHandler("GET "+RouteAPIDepartments, ChainMiddleware(s.ListDepartmentsHandler(), s.APIMiddleware(s.RequireRole())...))
	s.RegisterRouteHandler("POST "+RouteAPIDepartments, ChainMiddleware(s.AddDepartmentHandler(), s.APIMiddleware(s.RequireRole(departmentEditors...))...))
	s.RegisterRouteHandler("PUT "+RouteAPIDepartment, ChainMiddleware(s.RenameDepartmentHandler(), s.APIMiddleware(s.RequireRole(departmentEditors...))...))
	s.RegisterRouteHandler("DELETE "+RouteAPIDepartment, ChainMiddleware(s.RemoveDepartmentHandler(), s.APIMiddleware(s.RequireRole(departmentEditors...))...))

	// REALTIME
	s.RegisterRouteHandler("GET "+RouteAPIPerformance, ChainMiddleware(s.PerformanceListHandler(), s.APIMiddleware(s.RequireRole())...))
	s.RegisterRouteHandler("POST "+RouteAPIPerformance, ChainMiddleware(s.PerformanceBroadcastHandler(), s.APIMiddleware(s.RequireRole(performanceRaters...))...))
	s.RegisterRouteHandler("GET "+RouteAPINotifications, ChainMiddleware(s.NotificationsListHandler(), s.APIMiddleware(s.RequireRole())...))
	s.RegisterRouteHandler("POST "+RouteAPINotificationRead, ChainMiddleware(s.NotificationReadHandler(), s.APIMiddleware(s.RequireRole())...))
	s.RegisterRouteHandler("POST "+RouteAPINotificationsMarkAllRead, ChainMiddleware(s.NotificationsReadAllHandler(), s.APIMiddleware(s.RequireRole())...))
	s.RegisterRouteHandler("GET "+RouteWSEvents, ChainMiddleware(s.EventsSocketHandler(), s.LoggingMiddleware, s.RecoverMiddleware, s.RequireRole()))

	// PROFILE
	s.RegisterRouteHandler("POST "+RouteAPIProfileAvatar, ChainMiddleware(s.AvatarUploadHandler(), s.APIMiddleware(s.RequireRole())...))
	if s.services.Files != nil {
		s.RegisterRouteHandler("GET "+RouteFiles, ChainMiddleware(s.FileHandler(), s.LoggingMiddleware, s.RecoverMiddleware))
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
