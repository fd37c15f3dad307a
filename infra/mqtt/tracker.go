// Package mqtt publishes the live tracking feed to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/darkstore/core/events"
	"github.com/kilianp07/darkstore/core/logger"
	"github.com/kilianp07/darkstore/core/monitoring"
	"github.com/kilianp07/darkstore/internal/eventbus"
)

// DefaultTopicPrefix is used when Config.TopicPrefix is empty.
const DefaultTopicPrefix = "darkstore"

// TrackingPublisher forwards dispatch events as JSON messages.
type TrackingPublisher struct {
	cli        pahoClient
	prefix     string
	qos        byte
	retain     bool
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
	mon        monitoring.Monitor
}

// NewTrackingPublisher connects to the broker.
func NewTrackingPublisher(cfg Config, log logger.Logger, mon monitoring.Monitor) (*TrackingPublisher, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "darkstore-" + uuid.NewString()
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	opts.OnConnect = func(paho.Client) { log.Infof("MQTT connected to %s", cfg.Broker) }
	opts.OnConnectionLost = func(_ paho.Client, err error) { log.Errorf("connection lost: %v", err) }
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) { log.Warnf("reconnecting to MQTT broker") }

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	p := &TrackingPublisher{
		cli:        c,
		prefix:     strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:        cfg.QoS,
		retain:     cfg.Retain,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:        log,
		mon:        monitoring.OrNop(mon),
	}
	if p.prefix == "" {
		p.prefix = DefaultTopicPrefix
	}
	if p.maxRetries <= 0 {
		p.maxRetries = 3
	}
	if p.backoff <= 0 {
		p.backoff = 100 * time.Millisecond
	}
	return p, nil
}

// Start forwards bus events until ctx ends or the bus closes.
func (p *TrackingPublisher) Start(ctx context.Context, bus *eventbus.TypedBus[events.Event]) {
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := p.Handle(ev); err != nil {
					p.log.Errorf("tracking publish: %v", err)
				}
			}
		}
	}()
}

type positionMsg struct {
	MessageID string    `json:"message_id"`
	AgentID   string    `json:"agent_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Progress  float64   `json:"progress"`
	Timestamp time.Time `json:"timestamp"`
}

type deliveredMsg struct {
	MessageID string    `json:"message_id"`
	OrderID   string    `json:"order_id"`
	AgentID   string    `json:"agent_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

type routeMsg struct {
	MessageID    string       `json:"message_id"`
	AgentID      string       `json:"agent_id"`
	Points       [][2]float64 `json:"points"`
	Rerouted     bool         `json:"rerouted"`
	DelayMinutes float64      `json:"delay_minutes,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}

type assignmentMsg struct {
	MessageID string    `json:"message_id"`
	Stage     string    `json:"stage"`
	WorkerID  string    `json:"worker_id"`
	OrderIDs  []string  `json:"order_ids"`
	BatchID   string    `json:"batch_id,omitempty"`
	Chained   bool      `json:"chained"`
	Timestamp time.Time `json:"timestamp"`
}

// Handle publishes one event. Events without a tracking topic are ignored.
func (p *TrackingPublisher) Handle(ev events.Event) error {
	var topic string
	var msg any
	id := uuid.NewString()
	switch e := ev.(type) {
	case events.PositionEvent:
		topic = fmt.Sprintf("%s/agents/%s/position", p.prefix, e.AgentID)
		msg = positionMsg{id, e.AgentID, e.Position.Lat, e.Position.Lng, e.Progress, e.Time}
	case events.DeliveryEvent:
		topic = fmt.Sprintf("%s/orders/%s/delivered", p.prefix, e.OrderID)
		msg = deliveredMsg{id, e.OrderID, e.AgentID, e.At.Lat, e.At.Lng, e.Time}
	case events.RouteEvent:
		pts := make([][2]float64, len(e.Points))
		for i, pt := range e.Points {
			pts[i] = [2]float64{pt.Lat, pt.Lng}
		}
		topic = fmt.Sprintf("%s/agents/%s/route", p.prefix, e.AgentID)
		msg = routeMsg{id, e.AgentID, pts, e.Rerouted, e.DelayMinutes, e.Time}
	case events.AssignmentEvent:
		topic = p.prefix + "/assignments"
		msg = assignmentMsg{id, e.Stage, e.WorkerID, e.OrderIDs, e.BatchID, e.Chained, e.Time}
	default:
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.publish(topic, payload)
}

func (p *TrackingPublisher) publish(topic string, payload []byte) error {
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, p.qos, p.retain, payload)
		token.Wait()
		if err = token.Error(); err == nil {
			p.log.Debugf("published %s", topic)
			return nil
		}
		p.log.Warnf("publish %s attempt %d failed: %v", topic, attempt+1, err)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	p.mon.CaptureException(err, map[string]string{"module": "mqtt", "topic": topic})
	return err
}

// Close disconnects from the broker.
func (p *TrackingPublisher) Close() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
