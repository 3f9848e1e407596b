package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lox/dripline/internal/httputil"
	"github.com/lox/dripline/internal/models"
)

// SensorHead reads the field controller's sensors over HTTP.
type SensorHead struct {
	baseURL string
	client  *http.Client
	retry   time.Duration
}

func NewSensorHead(baseURL string) *SensorHead {
	return &SensorHead{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httputil.NewClient(),
		retry:   time.Minute,
	}
}

// SensorResponse is the /getdata payload.
type SensorResponse struct {
	SoilMoisture float64 `json:"soilMoisture"`
	Pressure     float64 `json:"pressure"`
	Temperature  float64 `json:"temperature"`
	Humidity     float64 `json:"humidity"`
	Coordinates  string  `json:"coordinates"`
}

// Fetch returns the current reading. The FetchResult is returned whenever a
// response was received, even if it could not be parsed.
func (s *SensorHead) Fetch(ctx context.Context) (*SensorResponse, *FetchResult, error) {
	result, err := getWithRetry(ctx, s.client, "sensorhead", s.baseURL+"/getdata", s.retry)
	if err != nil {
		return nil, result, fmt.Errorf("fetch sensors: %w", err)
	}

	var data SensorResponse
	if err := json.Unmarshal(result.Body, &data); err != nil {
		return nil, result, fmt.Errorf("unmarshal sensors: %w", err)
	}
	return &data, result, nil
}

// Coordinates returns the sensor head's GPS position.
func (s *SensorHead) Coordinates(ctx context.Context) (models.Position, error) {
	data, _, err := s.Fetch(ctx)
	if err != nil {
		return models.Position{}, err
	}
	return ParseCoordinates(data.Coordinates)
}

// Measurement converts the reading into an unsaved measurement taken at capturedAt.
func (r *SensorResponse) Measurement(capturedAt time.Time) models.Measurement {
	return models.Measurement{
		Timestamp:    capturedAt,
		SoilMoisture: r.SoilMoisture,
		Pressure:     r.Pressure,
		Temperature:  r.Temperature,
		Humidity:     r.Humidity,
	}
}

// ParseCoordinates parses "lat, lon".
func ParseCoordinates(s string) (models.Position, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return models.Position{}, fmt.Errorf("parse coordinates %q: missing comma", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return models.Position{}, fmt.Errorf("parse latitude %q: %w", latStr, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return models.Position{}, fmt.Errorf("parse longitude %q: %w", lonStr, err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return models.Position{}, fmt.Errorf("coordinates out of range: %v, %v", lat, lon)
	}
	return models.Position{Lat: lat, Lon: lon}, nil
}
