package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"bus-tracker/db"
	"bus-tracker/model"
)

// Coordinate accepts a JSON number or a string holding one, which is how
// browsers posting form values tend to send it.
type Coordinate float64

func (c *Coordinate) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return errors.New("coordinate is null")
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("coordinate %q is not a number", s)
		}
		*c = Coordinate(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*c = Coordinate(f)
	return nil
}

type LocationRequest struct {
	Lat *Coordinate `json:"lat"`
	Lng *Coordinate `json:"lng"`
}

// PostLocation records a fix for the bus driven by the caller.
func (h *Handler) PostLocation(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.PositionRejected("malformed")
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid JSON body"})
		return
	}
	if req.Lat == nil || req.Lng == nil {
		h.metrics.PositionRejected("missing")
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "lat and lng are required"})
		return
	}
	p := model.Point{Lat: float64(*req.Lat), Lng: float64(*req.Lng)}
	if !p.Valid() {
		h.metrics.PositionRejected("out_of_range")
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "lat or lng out of range"})
		return
	}

	ctx := c.Request.Context()
	userID := c.GetUint(userIDKey)
	bus, err := h.store.GetBusByDriver(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.metrics.PositionRejected("not_provisioned")
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "user is not assigned to a bus",
				"code":    "not_provisioned",
			})
			return
		}
		storeError(c, "bus", err)
		return
	}

	pos, err := h.store.RecordPosition(ctx, bus.ID, p, h.now())
	if err != nil {
		storeError(c, "bus", err)
		return
	}
	h.metrics.PositionAccepted()

	h.broadcast(model.PositionEvent{
		BusID:      bus.ID,
		BusName:    bus.Name,
		RouteID:    bus.RouteID,
		Lat:        pos.Lat,
		Lng:        pos.Lng,
		RecordedAt: pos.RecordedAt,
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "position": pos})
}

func (h *Handler) broadcast(ev model.PositionEvent) {
	if h.stream != nil {
		h.stream.Publish(ev)
	}
	if h.publisher != nil {
		if err := h.publisher.Publish(ev); err != nil {
			log.WithError(err).WithField("bus_id", ev.BusID).Warn("failed to publish position")
		}
	}
}
