// Package influx mirrors measurements and decision cycles into InfluxDB for
// dashboards. The SQLite store stays authoritative.
package influx

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/lox/dripline/internal/models"
)

type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	Site   string // tag identifying the plantation
}

type Mirror struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	site     string
}

func New(cfg Config) (*Mirror, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Mirror{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		site:     cfg.Site,
	}, nil
}

func (m *Mirror) Close() {
	m.client.Close()
}

func (m *Mirror) tags() map[string]string {
	if m.site == "" {
		return map[string]string{}
	}
	return map[string]string{"site": m.site}
}

// WriteMeasurement writes one sensor reading.
func (m *Mirror) WriteMeasurement(ctx context.Context, meas models.Measurement) error {
	fields := map[string]interface{}{
		"id":            meas.ID,
		"soil_moisture": meas.SoilMoisture,
		"pressure":      meas.Pressure,
		"temperature":   meas.Temperature,
		"humidity":      meas.Humidity,
	}
	point := influxdb2.NewPoint("soil_measurement", m.tags(), fields, meas.Timestamp)
	if err := m.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("write measurement %d: %w", meas.ID, err)
	}
	return nil
}

// WriteCycle writes the outcome of one decision cycle.
func (m *Mirror) WriteCycle(ctx context.Context, r models.CycleRecord) error {
	tags := m.tags()
	fields := map[string]interface{}{
		"success": r.Success(),
	}
	if r.FailedStage.Valid {
		tags["failed_stage"] = r.FailedStage.String
	}
	if r.Reason.Valid {
		tags["reason"] = r.Reason.String
	}
	if r.Irrigate.Valid {
		fields["irrigate"] = r.Irrigate.Bool
	}
	if r.DurationSeconds.Valid {
		fields["duration_seconds"] = r.DurationSeconds.Float64
	}
	if r.Fused != nil {
		fields["fused_soil_moisture"] = r.Fused.SoilMoisture
		fields["fused_temperature"] = r.Fused.Temperature
		fields["fused_humidity"] = r.Fused.Humidity
		fields["fused_pressure"] = r.Fused.Pressure
		fields["rain_expected"] = r.Fused.RainExpected
		fields["precipitation_mm"] = r.Fused.PrecipitationMM
	}
	if r.Predicted != nil {
		fields["predicted_soil_moisture"] = r.Predicted.SoilMoisture
	}

	point := influxdb2.NewPoint("irrigation_cycle", tags, fields, r.FinishedAt)
	if err := m.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("write cycle %s: %w", r.ID, err)
	}
	return nil
}
