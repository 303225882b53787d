package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/dockyard/core/metrics"
	"github.com/kilianp07/dockyard/infra/logger"
)

// InfluxSink writes dock activity to an InfluxDB instance using the official client.
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
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
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

// Close releases the client resources.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAssignment writes a dock_assignment point.
func (s *InfluxSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	p := write.NewPointWithMeasurement("dock_assignment").
		AddTag("dock_id", ev.DockID).
		AddTag("dock_type", string(ev.DockType)).
		AddTag("path", ev.Path).
		AddField("truck_id", ev.TruckID).
		AddField("appointment_id", ev.AppointmentID).
		AddField("wait_s", round3(ev.Wait.Seconds())).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordRelease writes a dock_release point.
func (s *InfluxSink) RecordRelease(ev coremetrics.ReleaseEvent) error {
	p := write.NewPointWithMeasurement("dock_release").
		AddTag("dock_id", ev.DockID).
		AddTag("reason", ev.Reason).
		AddField("truck_id", ev.TruckID).
		AddField("appointment_id", ev.AppointmentID).
		AddField("hold_s", round3(ev.Hold.Seconds())).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordSweep writes a sweep point.
func (s *InfluxSink) RecordSweep(ev coremetrics.SweepEvent) error {
	p := write.NewPointWithMeasurement("sweep").
		AddTag("component", "dispatcher").
		AddField("queued", ev.Queued).
		AddField("available", ev.Available).
		AddField("assigned", ev.Assigned).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000))
	if ev.Err != "" {
		p = p.AddField("error", ev.Err)
	}
	return s.write(p.SetTime(ev.Time))
}

// RecordStatus writes an appointment_status point.
func (s *InfluxSink) RecordStatus(ev coremetrics.StatusEvent) error {
	p := write.NewPointWithMeasurement("appointment_status").
		AddTag("status", string(ev.Status)).
		AddTag("type", string(ev.Type)).
		AddField("appointment_id", ev.AppointmentID).
		AddField("truck_id", ev.TruckID).
		SetTime(ev.Time)
	return s.write(p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
