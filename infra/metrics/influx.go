package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/darkstore/core/metrics"
	"github.com/kilianp07/darkstore/infra/logger"
)

// InfluxSink writes dispatch events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAssignment writes one assignment point.
func (s *InfluxSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	p := write.NewPointWithMeasurement("assignment").
		AddTag("stage", ev.Stage).
		AddTag("worker_id", ev.WorkerID).
		AddTag("chained", strconv.FormatBool(ev.Chained)).
		AddField("orders", ev.Orders).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordDelivery writes one delivered order.
func (s *InfluxSink) RecordDelivery(ev coremetrics.DeliveryEvent) error {
	p := write.NewPointWithMeasurement("delivery").
		AddTag("agent_id", ev.AgentID).
		AddField("order_id", ev.OrderID).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordReroute writes a reroute decision with the measured delay.
func (s *InfluxSink) RecordReroute(ev coremetrics.RerouteEvent) error {
	p := write.NewPointWithMeasurement("reroute").
		AddTag("agent_id", ev.AgentID).
		AddTag("changed", strconv.FormatBool(ev.Changed)).
		AddField("delay_minutes", round3(ev.DelayMinutes)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordTick writes the duration and failure count of a loop tick.
func (s *InfluxSink) RecordTick(ev coremetrics.TickEvent) error {
	p := write.NewPointWithMeasurement("reconcile_tick").
		AddTag("loop", ev.Loop).
		AddTag("aborted", strconv.FormatBool(ev.Aborted)).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		AddField("failures", ev.Failures).
		SetTime(ev.Time)
	return s.write(p)
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
