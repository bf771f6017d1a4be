package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"bus-tracker/algo"
	"bus-tracker/feed"
	"bus-tracker/model"
)

// LiveBuses lists every bus that reported within the retention window
// together with everything the engine derives for it.
func (h *Handler) LiveBuses(c *gin.Context) {
	statuses, err := h.liveStatuses(c.Request.Context())
	if err != nil {
		storeError(c, "buses", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"buses": statuses})
}

// VehiclePositions serves the live buses as a GTFS-realtime feed.
func (h *Handler) VehiclePositions(c *gin.Context) {
	statuses, err := h.liveStatuses(c.Request.Context())
	if err != nil {
		storeError(c, "buses", err)
		return
	}
	raw, err := feed.Encode(statuses, h.now())
	if err != nil {
		log.WithError(err).Error("failed to encode vehicle positions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Data(http.StatusOK, feed.ContentType, raw)
}

// liveStatuses ages out stale fixes, then derives the status of each live
// bus. A bus that fails to evaluate is logged and left out.
func (h *Handler) liveStatuses(ctx context.Context) ([]algo.BusStatus, error) {
	cutoff := h.now().Add(-h.opts.Retention)

	swept, err := h.store.SweepStale(ctx, cutoff)
	if err != nil {
		log.WithError(err).Warn("failed to sweep stale positions")
	} else if swept > 0 {
		h.metrics.Swept(swept)
	}

	buses, err := h.store.LiveBuses(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list live buses: %w", err)
	}

	out := make([]algo.BusStatus, 0, len(buses))
	for i := range buses {
		st, err := h.safeStatus(ctx, &buses[i])
		if err != nil {
			h.metrics.StatusFailed()
			log.WithError(err).WithField("bus_id", buses[i].ID).Error("failed to derive bus status")
			continue
		}
		if st.Position == nil {
			continue
		}
		out = append(out, *st)
	}
	h.metrics.LiveBusesSet(len(out))
	return out, nil
}

func (h *Handler) safeStatus(ctx context.Context, bus *model.Bus) (st *algo.BusStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			st, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return h.engine.Status(ctx, bus)
}

// NextStops lists the upcoming stops of one bus in travel order.
func (h *Handler) NextStops(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	count := h.engine.Tunables().UpcomingStops
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid count"})
			return
		}
		count = n
	}

	ctx := c.Request.Context()
	bus, err := h.store.GetBus(ctx, id)
	if err != nil {
		storeError(c, "bus", err)
		return
	}
	stops, err := h.engine.UpcomingStops(ctx, bus, count)
	if err != nil {
		storeError(c, "stops", err)
		return
	}
	if stops == nil {
		stops = []model.Stop{}
	}
	c.JSON(http.StatusOK, gin.H{"bus_id": bus.ID, "stops": stops})
}

// BusETA estimates the minutes one bus needs to reach one stop.
func (h *Handler) BusETA(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	stopID, ok := optionalQueryID(c, "stop_id")
	if !ok {
		return
	}
	if stopID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stop_id is required"})
		return
	}

	ctx := c.Request.Context()
	bus, err := h.store.GetBus(ctx, id)
	if err != nil {
		storeError(c, "bus", err)
		return
	}
	stop, err := h.store.GetStop(ctx, *stopID)
	if err != nil {
		storeError(c, "stop", err)
		return
	}

	resp := gin.H{"bus_id": bus.ID, "stop_id": stop.ID, "eta_minutes": nil}
	eta, ok, err := h.engine.ArrivalMinutes(ctx, bus, *stop, nil)
	if err != nil {
		storeError(c, "positions", err)
		return
	}
	if ok {
		resp["eta_minutes"] = eta
	}
	c.JSON(http.StatusOK, resp)
}
