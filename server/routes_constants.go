package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteAuthLogin  = "/auth/login"
	RouteAuthSignup = "/auth/signup"
	RouteAuthLogout = "/auth/logout"

	// Session
	RouteAPISession = "/api/session"

	// Departments
	RouteAPIDepartments = "/api/departments"
	RouteAPIDepartment  = "/api/departments/{name}"

	// Realtime
	RouteAPIPerformance              = "/api/performance"
	RouteAPINotifications            = "/api/notifications"
	RouteAPINotificationRead         = "/api/notifications/{id}/read"
	RouteAPINotificationsMarkAllRead = "/api/notifications/read-all"
	RouteWSEvents                    = "/ws/events"

	// Profile
	RouteAPIProfileAvatar = "/api/profile/avatar"

	// Stored objects (avatars) when served from the in-memory store
	RouteFiles = "/files/{path...}"

	// Operations
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"
)
