package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lox/dripline/internal/metrics"
	"github.com/lox/dripline/internal/models"
	"github.com/lox/dripline/internal/store"
)

// MeasurementMirror receives a copy of every stored measurement.
type MeasurementMirror interface {
	WriteMeasurement(ctx context.Context, m models.Measurement) error
}

// Importer records sensor head readings in the measurement store.
type Importer struct {
	store   *store.Store
	sensors *SensorHead
	mirror  MeasurementMirror
	now     func() time.Time
}

func NewImporter(s *store.Store, sensors *SensorHead) *Importer {
	return &Importer{
		store:   s,
		sensors: sensors,
		now:     time.Now,
	}
}

// SetMirror configures a secondary sink for imported measurements.
func (i *Importer) SetMirror(m MeasurementMirror) {
	i.mirror = m
}

// ImportOnce fetches one reading and appends it to the store.
func (i *Importer) ImportOnce(ctx context.Context) (models.Measurement, error) {
	a := startAudit(ctx, i.store, "sensorhead", "getdata", "")

	reading, result, err := i.sensors.Fetch(ctx)
	a.fetched(ctx, result)
	if err != nil {
		a.finish(ctx, 0, 0, err)
		return models.Measurement{}, err
	}

	m := reading.Measurement(i.now().UTC())
	if flags := ValidateMeasurement(m); len(flags) > 0 {
		log.Printf("importer: reading flagged %s: %+v", QualityFlagsToJSON(flags), m)
		for _, f := range flags {
			metrics.MeasurementFlags.WithLabelValues(f).Inc()
		}
	}

	id, err := i.store.Append(ctx, m)
	if err != nil {
		err = fmt.Errorf("append measurement: %w", err)
		a.finish(ctx, 1, 0, err)
		return models.Measurement{}, err
	}
	m.ID = id
	a.finish(ctx, 1, 1, nil)
	metrics.MeasurementsImported.Inc()

	if i.mirror != nil {
		if err := i.mirror.WriteMeasurement(ctx, m); err != nil {
			log.Printf("importer: mirror measurement %d: %v", id, err)
		}
	}

	log.Printf("importer: stored measurement %d: soil %.2f%%, %.2f°C, %.2f%% RH, %.2f hPa",
		id, m.SoilMoisture, m.Temperature, m.Humidity, m.Pressure)
	return m, nil
}
