package http

import (
	"net/http"
	"time"

	"clinic-queue/internal/delivery/http/handler"
	"clinic-queue/internal/delivery/http/middleware"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Auth     *handler.AuthHandler
	User     *handler.UserHandler
	Doctor   *handler.DoctorHandler
	Ticket   *handler.TicketHandler
	Trash    *handler.TrashHandler
	Screen   *handler.ScreenHandler
	AuditLog *handler.AuditLogHandler
	Report   *handler.ReportHandler
	Health   *handler.HealthHandler

	// Realtime transports; they run outside the request timeout
	WebSocket http.Handler
	SockJS    http.Handler
}

type Router struct {
	router         *mux.Router
	handlers       Handlers
	authMiddleware *middleware.AuthMiddleware
	corsMiddleware *middleware.CORSMiddleware
	log            *logrus.Logger
	requestTimeout time.Duration
}

func NewRouter(
	handlers Handlers,
	authMiddleware *middleware.AuthMiddleware,
	corsMiddleware *middleware.CORSMiddleware,
	log *logrus.Logger,
	requestTimeout time.Duration,
) *Router {
	return &Router{
		router:         mux.NewRouter(),
		handlers:       handlers,
		authMiddleware: authMiddleware,
		corsMiddleware: corsMiddleware,
		log:            log,
		requestTimeout: requestTimeout,
	}
}

// RealtimePrefix is where the SockJS fallback is served
const RealtimePrefix = "/realtime"

func (r *Router) Setup() http.Handler {
	h := r.handlers

	// Realtime (long lived, no request timeout)
	if h.WebSocket != nil {
		r.router.Handle("/ws", h.WebSocket).Methods(http.MethodGet)
	}
	if h.SockJS != nil {
		r.router.PathPrefix(RealtimePrefix + "/").Handler(h.SockJS)
	}

	api := r.router.PathPrefix("/api").Subrouter()
	api.Use(middleware.Timeout(r.requestTimeout))

	// Health check
	api.HandleFunc("/health/live", h.Health.Live).Methods(http.MethodGet)
	api.HandleFunc("/health/ready", h.Health.Ready).Methods(http.MethodGet)

	// Auth routes (public)
	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", h.Auth.Login).Methods(http.MethodPost)
	auth.HandleFunc("/refresh-token", h.Auth.RefreshToken).Methods(http.MethodPost)
	auth.HandleFunc("/forgot-password", h.Auth.ForgotPassword).Methods(http.MethodPost)
	auth.HandleFunc("/reset-password", h.Auth.ResetPassword).Methods(http.MethodPost)

	// Auth routes (protected)
	authProtected := api.PathPrefix("/auth").Subrouter()
	authProtected.Use(r.authMiddleware.Authenticate)
	authProtected.HandleFunc("/logout", h.Auth.Logout).Methods(http.MethodPost)
	authProtected.HandleFunc("/me", h.Auth.GetCurrentUser).Methods(http.MethodGet)

	// Display devices (public, identified by fingerprint)
	screen := api.PathPrefix("/screen").Subrouter()
	screen.HandleFunc("/init", h.Screen.InitDevice).Methods(http.MethodPost)
	screen.HandleFunc("/status", h.Screen.DeviceStatus).Methods(http.MethodPost)
	screen.HandleFunc("/board", h.Screen.DeviceBoard).Methods(http.MethodPost)

	// Any staff member
	staff := api.NewRoute().Subrouter()
	staff.Use(r.authMiddleware.Authenticate)
	staff.Use(middleware.RequireStaffBoard)
	staff.HandleFunc("/medicos", h.Doctor.GetAllDoctors).Methods(http.MethodGet)
	staff.HandleFunc("/recepcion/pacientes", h.Ticket.ListActive).Methods(http.MethodGet)
	staff.HandleFunc("/recepcion/paciente/{codigo}", h.Ticket.FindByCode).Methods(http.MethodGet)
	staff.HandleFunc("/pacientes/{id}/ticket.pdf", h.Ticket.Slip).Methods(http.MethodGet)

	// Medico desk
	desk := api.PathPrefix("/medico").Subrouter()
	desk.Use(r.authMiddleware.Authenticate)
	desk.Use(middleware.RequireDoctor)
	desk.HandleFunc("/pacientes", h.Doctor.MyQueue).Methods(http.MethodGet)
	desk.HandleFunc("/status", h.Doctor.MyStatus).Methods(http.MethodGet)
	desk.HandleFunc("/status", h.Doctor.UpdateMyStatus).Methods(http.MethodPut)

	// Registration desk
	registry := api.PathPrefix("/pacientes").Subrouter()
	registry.Use(r.authMiddleware.Authenticate)
	registry.Use(middleware.RequireRegistry)
	registry.HandleFunc("/registrar", h.Ticket.RegisterTicket).Methods(http.MethodPost)

	// Reception: removal, trash and restore
	reception := api.PathPrefix("/recepcion").Subrouter()
	reception.Use(r.authMiddleware.Authenticate)
	reception.Use(middleware.RequireReception)
	reception.HandleFunc("/paciente/{id}", h.Ticket.PermanentlyDelete).Methods(http.MethodDelete)
	reception.HandleFunc("/paciente/{id}/papelera", h.Trash.MoveToTrash).Methods(http.MethodPost)
	reception.HandleFunc("/paciente/{id}/restaurar", h.Trash.Restore).Methods(http.MethodPost)
	reception.HandleFunc("/papelera", h.Trash.List).Methods(http.MethodGet)
	reception.HandleFunc("/papelera", h.Trash.PurgeAll).Methods(http.MethodDelete)
	reception.HandleFunc("/papelera/{id}", h.Trash.Purge).Methods(http.MethodDelete)

	// Screens (admin)
	screens := api.PathPrefix("/pantallas").Subrouter()
	screens.Use(r.authMiddleware.Authenticate)
	screens.Use(middleware.RequireAdmin)
	screens.HandleFunc("", h.Screen.GetAllScreens).Methods(http.MethodGet)
	screens.HandleFunc("/{id}/vincular", h.Screen.ConfirmPairing).Methods(http.MethodPost)
	screens.HandleFunc("/{id}/desvincular", h.Screen.Unpair).Methods(http.MethodPost)
	screens.HandleFunc("/{id}/asignar-recepcionista", h.Screen.AssignReceptionist).Methods(http.MethodPost)

	// User management (admin)
	users := api.PathPrefix("/users").Subrouter()
	users.Use(r.authMiddleware.Authenticate)
	users.Use(middleware.RequireAdmin)
	users.HandleFunc("", h.User.GetAllUsers).Methods(http.MethodGet)
	users.HandleFunc("", h.User.CreateUser).Methods(http.MethodPost)
	users.HandleFunc("/recepcionistas", h.User.GetReceptionists).Methods(http.MethodGet)
	users.HandleFunc("/{id}", h.User.GetUser).Methods(http.MethodGet)
	users.HandleFunc("/{id}", h.User.UpdateUser).Methods(http.MethodPut)
	users.HandleFunc("/{id}", h.User.DeleteUser).Methods(http.MethodDelete)
	users.HandleFunc("/{id}/reset-password", h.User.ResetPassword).Methods(http.MethodPost)

	// Admin routes (protected - admin only)
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(r.authMiddleware.Authenticate)
	admin.Use(middleware.RequireAdmin)

	// Doctor management (admin)
	admin.HandleFunc("/medicos", h.Doctor.CreateDoctor).Methods(http.MethodPost)
	admin.HandleFunc("/medicos/{id}", h.Doctor.GetDoctor).Methods(http.MethodGet)
	admin.HandleFunc("/medicos/{id}", h.Doctor.UpdateDoctor).Methods(http.MethodPut)
	admin.HandleFunc("/medicos/{id}", h.Doctor.DeleteDoctor).Methods(http.MethodDelete)

	// Audit and reports (admin)
	admin.HandleFunc("/audit-logs", h.AuditLog.SearchAuditLogs).Methods(http.MethodGet)
	admin.HandleFunc("/audit-logs/{id:[0-9]+}", h.AuditLog.GetAuditLog).Methods(http.MethodGet)
	admin.HandleFunc("/estadisticas", h.Report.DailyStats).Methods(http.MethodGet)
	admin.HandleFunc("/reportes/turnos.xlsx", h.Report.ExportDaily).Methods(http.MethodGet)

	// Outside the mux so preflight requests and unmatched paths are logged too
	return middleware.RequestID(middleware.Logging(r.log)(r.corsMiddleware.Handle(r.router)))
}
