package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"bus-tracker/model"
)

// ListStops returns every stop ordered by route, direction and order.
func (h *Handler) ListStops(c *gin.Context) {
	stops, err := h.store.ListStops(c.Request.Context())
	if err != nil {
		storeError(c, "stops", err)
		return
	}
	if stops == nil {
		stops = []model.Stop{}
	}
	c.JSON(http.StatusOK, gin.H{"stops": stops})
}

// StopArrival reports the live bus expected next at a stop.
func (h *Handler) StopArrival(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	stop, err := h.store.GetStop(ctx, id)
	if err != nil {
		storeError(c, "stop", err)
		return
	}

	buses, err := h.store.LiveBuses(ctx, h.now().Add(-h.opts.Retention))
	if err != nil {
		storeError(c, "buses", err)
		return
	}
	arrival, err := h.engine.NextArrival(ctx, *stop, buses)
	if err != nil {
		// per-bus failures; the best remaining arrival is still valid
		log.WithError(err).WithField("stop_id", stop.ID).Warn("some buses could not be evaluated")
	}
	if arrival == nil {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"stop":    stop,
			"message": "no bus is approaching this stop",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stop": stop, "arrival": arrival})
}

type DirectionView struct {
	Stops []model.Stop  `json:"stops"`
	Path  []model.Point `json:"path"`
}

type RouteView struct {
	model.Route
	Directions map[model.Direction]DirectionView `json:"directions"`
}

// ListRoutes returns the active routes with their stops and drawn path per
// direction.
func (h *Handler) ListRoutes(c *gin.Context) {
	ctx := c.Request.Context()
	routes, err := h.store.ListRoutes(ctx)
	if err != nil {
		storeError(c, "routes", err)
		return
	}

	out := make([]RouteView, 0, len(routes))
	for _, r := range routes {
		view := RouteView{Route: r, Directions: make(map[model.Direction]DirectionView, 2)}
		for _, dir := range []model.Direction{model.DirectionOutbound, model.DirectionInbound} {
			stops, err := h.store.StopsByDirection(ctx, r.ID, dir)
			if err != nil {
				storeError(c, "stops", err)
				return
			}
			if stops == nil {
				stops = []model.Stop{}
			}
			path, err := h.paths.Path(ctx, r.ID, dir, stops)
			if err != nil {
				log.WithError(err).WithFields(log.Fields{"route_id": r.ID, "direction": dir}).Warn("failed to build route path")
			}
			if path == nil {
				path = []model.Point{}
			}
			view.Directions[dir] = DirectionView{Stops: stops, Path: path}
		}
		out = append(out, view)
	}
	c.JSON(http.StatusOK, gin.H{"routes": out})
}

// ListSchedules returns the active departures, optionally of one route.
func (h *Handler) ListSchedules(c *gin.Context) {
	routeID, ok := optionalQueryID(c, "route_id")
	if !ok {
		return
	}
	schedules, err := h.store.Schedules(c.Request.Context(), routeID)
	if err != nil {
		storeError(c, "schedules", err)
		return
	}
	if schedules == nil {
		schedules = []model.Schedule{}
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

// Stream upgrades to a websocket of live position events.
func (h *Handler) Stream(c *gin.Context) {
	if h.stream == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream disabled"})
		return
	}
	routeID, ok := optionalQueryID(c, "route_id")
	if !ok {
		return
	}
	if err := h.stream.ServeWS(c.Writer, c.Request, routeID); err != nil {
		log.WithError(err).Debug("websocket upgrade failed")
	}
}
