package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"bus-tracker/algo"
	"bus-tracker/db"
	"bus-tracker/model"
	"bus-tracker/routing"
)

// Store is everything the HTTP layer reads or writes.
type Store interface {
	Ping(ctx context.Context) error
	GetBus(ctx context.Context, id uint) (*model.Bus, error)
	GetBusByDriver(ctx context.Context, userID uint) (*model.Bus, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	LiveBuses(ctx context.Context, since time.Time) ([]model.Bus, error)
	RecordPosition(ctx context.Context, busID uint, p model.Point, at time.Time) (*model.Position, error)
	ClearPositions(ctx context.Context, busID uint) (int64, error)
	SweepStale(ctx context.Context, before time.Time) (int64, error)
	GetStop(ctx context.Context, id uint) (*model.Stop, error)
	ListStops(ctx context.Context) ([]model.Stop, error)
	StopsByDirection(ctx context.Context, routeID uint, dir model.Direction) ([]model.Stop, error)
	ListRoutes(ctx context.Context) ([]model.Route, error)
	Schedules(ctx context.Context, routeID *uint) ([]model.Schedule, error)
}

// Publisher forwards accepted positions to an external bus.
type Publisher interface {
	Publish(ev model.PositionEvent) error
}

// Stream fans accepted positions out to websocket clients.
type Stream interface {
	Publish(ev model.PositionEvent)
	ServeWS(w http.ResponseWriter, r *http.Request, routeID *uint) error
}

type Metrics interface {
	PositionAccepted()
	PositionRejected(reason string)
	Swept(n int64)
	LiveBusesSet(n int)
	StatusFailed()
	ObserveHTTP(method, route string, status int, d time.Duration)
}

type Options struct {
	JWTSecret []byte
	TokenTTL  time.Duration
	// Retention is how long a fix keeps a bus on the live map.
	Retention      time.Duration
	MetricsHandler http.Handler
}

type Handler struct {
	store     Store
	engine    *algo.Engine
	paths     *routing.Builder
	publisher Publisher
	stream    Stream
	metrics   Metrics
	opts      Options
	now       func() time.Time
}

func New(store Store, engine *algo.Engine, paths *routing.Builder, opts Options) *Handler {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.Retention <= 0 {
		opts.Retention = 5 * time.Minute
	}
	return &Handler{
		store:   store,
		engine:  engine,
		paths:   paths,
		metrics: nopMetrics{},
		opts:    opts,
		now:     time.Now,
	}
}

func (h *Handler) WithPublisher(p Publisher) *Handler {
	h.publisher = p
	return h
}

func (h *Handler) WithStream(s Stream) *Handler {
	h.stream = s
	return h
}

func (h *Handler) WithMetrics(m Metrics) *Handler {
	if m != nil {
		h.metrics = m
	}
	return h
}

// SetClock replaces the time source used for ingestion and liveness.
func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.Use(RequestLogger(h.metrics), CORS())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "status": "ok"})
	})
	r.GET("/health", h.Health)
	if h.opts.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(h.opts.MetricsHandler))
	}
	r.GET("/gtfs-rt/vehicle-positions", h.VehiclePositions)

	api := r.Group("/api")
	{
		api.POST("/login", h.Login)

		api.GET("/buses/live", h.LiveBuses)
		api.GET("/buses/:id/next-stops", h.NextStops)
		api.GET("/buses/:id/eta", h.BusETA)
		api.GET("/stops", h.ListStops)
		api.GET("/stops/:id/arrival", h.StopArrival)
		api.GET("/routes", h.ListRoutes)
		api.GET("/schedules", h.ListSchedules)
		api.GET("/stream", h.Stream)

		authorized := api.Group("/")
		authorized.Use(h.AuthMiddleware())
		{
			authorized.POST("/location", h.PostLocation)
			authorized.POST("/logout", h.Logout)
		}
	}
}

// Health reports whether the store answers.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		log.WithError(err).Warn("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return 0, false
	}
	return uint(id), true
}

// optionalQueryID parses an optional positive id query parameter.
func optionalQueryID(c *gin.Context, key string) (*uint, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return nil, false
	}
	v := uint(id)
	return &v, true
}

// storeError answers 404 for missing records and 500 for everything else.
func storeError(c *gin.Context, what string, err error) {
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
		return
	}
	log.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Error("failed to load " + what)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

type nopMetrics struct{}

func (nopMetrics) PositionAccepted()                             {}
func (nopMetrics) PositionRejected(string)                       {}
func (nopMetrics) Swept(int64)                                   {}
func (nopMetrics) LiveBusesSet(int)                              {}
func (nopMetrics) StatusFailed()                                 {}
func (nopMetrics) ObserveHTTP(string, string, int, time.Duration) {}
