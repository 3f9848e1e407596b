package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	_ "modernc.org/sqlite"

	"github.com/lox/dripline/internal/broker"
	"github.com/lox/dripline/internal/cycle"
	"github.com/lox/dripline/internal/export"
	"github.com/lox/dripline/internal/influx"
	"github.com/lox/dripline/internal/ingest"
	"github.com/lox/dripline/internal/models"
	"github.com/lox/dripline/internal/narrative"
	"github.com/lox/dripline/internal/predict"
	"github.com/lox/dripline/internal/store"
)

func (t ThresholdFlags) Config() models.ThresholdConfig {
	return models.ThresholdConfig{
		Moisture:    t.Moisture,
		Temperature: t.Temperature,
		Humidity:    t.Humidity,
		Pressure:    t.Pressure,
		Density:     t.Density,
		Area:        t.Area,
		Depth:       t.Depth,
		FlowRate:    t.FlowRate,
		Emitters:    t.Emitters,
	}
}

func (g *Globals) location() *time.Location {
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		log.Printf("Warning: could not load %s timezone, using UTC: %v", g.Timezone, err)
		return time.UTC
	}
	return loc
}

func (g *Globals) openStore() (*store.Store, func(), error) {
	if dir := filepath.Dir(g.DB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", g.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, func() { db.Close() }, nil
}

func (g *Globals) sensorHead() (*ingest.SensorHead, error) {
	if g.SensorURL == "" {
		return nil, errors.New("sensor head URL not set (--sensor-url or SENSOR_URL)")
	}
	return ingest.NewSensorHead(g.SensorURL), nil
}

func (g *Globals) influxMirror() *influx.Mirror {
	if g.Influx.URL == "" {
		return nil
	}
	m, err := influx.New(influx.Config{
		URL:    g.Influx.URL,
		Token:  g.Influx.Token,
		Org:    g.Influx.Org,
		Bucket: g.Influx.Bucket,
		Site:   g.Influx.Site,
	})
	if err != nil {
		log.Printf("InfluxDB mirror disabled: %v", err)
		return nil
	}
	return m
}

func (g *Globals) mqttClient(ctx context.Context) (mqtt.Client, error) {
	if g.MQTT.URL == "" {
		return nil, nil
	}
	return broker.Connect(ctx, broker.Config{
		URL:      g.MQTT.URL,
		Username: g.MQTT.Username,
		Password: g.MQTT.Password,
		ClientID: g.MQTT.ClientID,
	})
}

func (g *Globals) ftpUploader() export.Uploader {
	if g.FTP.Addr == "" {
		return nil
	}
	return export.NewFTPUploader(export.FTPConfig{
		Addr:     g.FTP.Addr,
		User:     g.FTP.User,
		Password: g.FTP.Password,
		Dir:      g.FTP.Dir,
	})
}

func (g *Globals) oracle() cycle.Oracle {
	if g.OracleURL == "" {
		return predict.Trend{}
	}
	return predict.NewRemote(g.OracleURL)
}

// components holds everything a decision cycle needs, plus the optional sinks
// the import job shares with it.
type components struct {
	runner  *cycle.Runner
	sensors *ingest.SensorHead
	mirror  *influx.Mirror
	close   func()
}

func (g *Globals) buildRunner(ctx context.Context, st *store.Store, loc *time.Location) (*components, error) {
	sensors, err := g.sensorHead()
	if err != nil {
		return nil, err
	}
	if g.WeatherAPIKey == "" {
		return nil, errors.New("WeatherAPI key not set (--weather-api-key or WEATHERAPI_KEY)")
	}
	weather := ingest.NewWeatherAPI(g.WeatherAPIKey, g.WeatherAPIURL, loc)
	weather.SetAudit(st)

	var closers []func()
	c := &components{sensors: sensors}
	c.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// The MQTT client disconnects itself when ctx is done.
	client, err := g.mqttClient(ctx)
	if err != nil {
		return nil, err
	}

	var valve cycle.Valve
	switch g.Valve {
	case "mqtt":
		if client == nil {
			c.close()
			return nil, errors.New("mqtt valve requires --mqtt-url")
		}
		valve = broker.NewValve(client, g.MQTT.ValveTopic)
	default:
		if g.ValveURL == "" {
			c.close()
			return nil, errors.New("valve URL not set (--valve-url or VALVE_URL)")
		}
		valve = ingest.NewValve(g.ValveURL)
	}

	runner, err := cycle.NewRunner(cycle.Config{Thresholds: g.Thresholds.Config()},
		st, sensors, weather, g.oracle(), valve)
	if err != nil {
		c.close()
		return nil, err
	}
	runner.SetRecorder(st)

	if client != nil && g.MQTT.EventsTopic != "" {
		runner.AddObserver("mqtt", broker.NewDecisionPublisher(client, g.MQTT.EventsTopic).PublishCycle)
	}
	if m := g.influxMirror(); m != nil {
		c.mirror = m
		closers = append(closers, m.Close)
		runner.AddObserver("influx", m.WriteCycle)
	}
	if g.OpenAI.APIKey != "" {
		gen, err := narrative.NewGenerator(g.OpenAI.APIKey, g.OpenAI.Model, loc)
		if err != nil {
			log.Printf("Cycle narratives disabled: %v", err)
		} else {
			runner.SetNarrator(gen)
		}
	}

	c.runner = runner
	return c, nil
}
