package publisher

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"bus-tracker/model"
)

// SubjectPrefix is the root of every subject this service publishes on.
const SubjectPrefix = "bus.positions"

type NATSPublisher struct {
	nc      *nats.Conn
	metrics PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url string, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("bus-tracker"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.WithError(err).Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// Subject builds bus.positions.<route>.<bus>; unassigned buses use route
// token "unassigned".
func Subject(ev model.PositionEvent) string {
	route := "unassigned"
	if ev.RouteID != nil {
		route = strconv.FormatUint(uint64(*ev.RouteID), 10)
	}
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, subjectToken(route), subjectToken(strconv.FormatUint(uint64(ev.BusID), 10)))
}

// Publish sends the event as JSON.
func (p *NATSPublisher) Publish(ev model.PositionEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	start := time.Now()
	err = p.nc.Publish(Subject(ev), b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
