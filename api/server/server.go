// Package server exposes the dispatcher over HTTP for the dock dashboard and
// truck drivers.
package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/dockyard/auth"
	"github.com/kilianp07/dockyard/core/lifecycle"
	"github.com/kilianp07/dockyard/core/model"
	"github.com/kilianp07/dockyard/core/stats"
	"github.com/kilianp07/dockyard/infra/logger"
)

// Dispatcher is the part of the scheduler the HTTP layer drives.
type Dispatcher interface {
	Book(ctx context.Context, req lifecycle.BookRequest) (model.Appointment, model.QueueEntry, error)
	Arrive(ctx context.Context, truckID, appointmentID string) (model.Appointment, error)
	Assign(ctx context.Context, truckID, dockID, appointmentID string) (model.AssignmentRecord, error)
	UpdateStatus(ctx context.Context, appointmentID string, status model.AppointmentStatus) (model.Appointment, error)
	Depart(ctx context.Context, truckID, appointmentID string) (model.Appointment, error)
	ForceComplete(ctx context.Context, appointmentID string) (model.Appointment, error)
	Docks(ctx context.Context) ([]model.Dock, error)
	TruckQueue(ctx context.Context) ([]model.QueueEntry, error)
	Appointments(ctx context.Context, truckID string) ([]model.Appointment, error)
	RecentAssignments(ctx context.Context, limit int) ([]model.AssignmentRecord, error)
	Stats(ctx context.Context) (stats.Summary, error)
}

// Server wraps the fiber application.
type Server struct {
	cfg      Config
	app      *fiber.App
	d        Dispatcher
	issuer   *auth.Issuer
	hub      *Hub
	gatherer prometheus.Gatherer
	health   func(context.Context) error
	log      logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAuth protects the dispatcher routes and enables POST /auth/token.
func WithAuth(iss *auth.Issuer) Option { return func(s *Server) { s.issuer = iss } }

// WithHub serves the live feed on /dispatcher/ws.
func WithHub(h *Hub) Option { return func(s *Server) { s.hub = h } }

// WithGatherer serves the registry on /metrics.
func WithGatherer(g prometheus.Gatherer) Option { return func(s *Server) { s.gatherer = g } }

// WithHealthCheck sets the probe behind /healthz.
func WithHealthCheck(f func(context.Context) error) Option {
	return func(s *Server) { s.health = f }
}

// New builds the server and registers every route.
func New(cfg Config, d Dispatcher, opts ...Option) *Server {
	cfg.SetDefaults()
	s := &Server{cfg: cfg, d: d, log: logger.New("api")}
	for _, o := range opts {
		o(s)
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "dockyard",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	app := s.app
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: s.cfg.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,OPTIONS",
	}))

	app.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	app.Post("/appointments/book", s.handleBook)
	app.Post("/trucks/arrive", s.handleArrive)
	app.Post("/trucks/depart", s.handleDepart)

	if s.issuer != nil {
		app.Post("/auth/token", s.handleToken)
	}
	app.Post("/appointments/update-status", s.guarded(s.handleUpdateStatus)...)
	app.Post("/dispatcher/assign", s.guarded(s.handleAssign)...)
	app.Post("/dispatcher/force-complete", s.guarded(s.handleForceComplete)...)

	app.Get("/dispatcher/dock-status", s.handleDocks)
	app.Get("/dispatcher/truck-queue", s.handleQueue)
	app.Get("/dispatcher/appointments", s.handleAppointments)
	app.Get("/dispatcher/recent-assignments", s.handleRecent)
	app.Get("/dispatcher/stats", s.handleStats)

	if s.hub != nil {
		app.Use("/dispatcher/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/dispatcher/ws", websocket.New(s.handleWS))
	}
}

// guarded prepends the token checks when authentication is enabled.
func (s *Server) guarded(h fiber.Handler) []fiber.Handler {
	if s.issuer == nil {
		return []fiber.Handler{h}
	}
	return []fiber.Handler{JWTAuth(s.issuer), RoleAuth(auth.RoleDispatcher), h}
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves until Shutdown is called.
func (s *Server) Listen() error {
	s.log.Infof("listening on %s", s.cfg.Addr)
	if err := s.app.Listen(s.cfg.Addr); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.app.ShutdownWithContext(ctx)
}
