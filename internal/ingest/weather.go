package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lox/dripline/internal/httputil"
	"github.com/lox/dripline/internal/models"
	"github.com/lox/dripline/internal/store"
)

const DefaultWeatherAPIURL = "https://api.weatherapi.com/v1"

// WeatherAPI fetches hourly forecasts from weatherapi.com.
type WeatherAPI struct {
	apiKey  string
	baseURL string
	client  *http.Client
	loc     *time.Location
	audit   *store.Store
	retry   time.Duration
}

// NewWeatherAPI creates a client. loc is used when the response carries no
// usable tz_id.
func NewWeatherAPI(apiKey, baseURL string, loc *time.Location) *WeatherAPI {
	if baseURL == "" {
		baseURL = DefaultWeatherAPIURL
	}
	return &WeatherAPI{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httputil.NewClient(),
		loc:     loc,
		retry:   time.Minute,
	}
}

// SetAudit records every forecast fetch in the ingest audit tables.
func (w *WeatherAPI) SetAudit(s *store.Store) {
	w.audit = s
}

type WeatherAPIResponse struct {
	Location struct {
		Name string  `json:"name"`
		TzID string  `json:"tz_id"`
		Lat  float64 `json:"lat"`
		Lon  float64 `json:"lon"`
	} `json:"location"`
	Forecast struct {
		ForecastDay []struct {
			Date string        `json:"date"`
			Hour []WeatherHour `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

type WeatherHour struct {
	Time         string  `json:"time"`
	TempC        float64 `json:"temp_c"`
	Humidity     float64 `json:"humidity"`
	PressureMB   float64 `json:"pressure_mb"`
	WillItRain   int     `json:"will_it_rain"`
	ChanceOfRain int     `json:"chance_of_rain"`
	PrecipMM     float64 `json:"precip_mm"`
}

// Forecast returns the hourly forecast for the next two days at pos.
func (w *WeatherAPI) Forecast(ctx context.Context, pos models.Position) ([]models.ForecastSample, error) {
	q := url.Values{}
	q.Set("key", w.apiKey)
	location := fmt.Sprintf("%.4f,%.4f", pos.Lat, pos.Lon)
	q.Set("q", location)
	q.Set("days", "2")
	q.Set("aqi", "yes")

	a := startAudit(ctx, w.audit, "weatherapi", "forecast.json", location)

	result, err := getWithRetry(ctx, w.client, "weatherapi", w.baseURL+"/forecast.json?"+q.Encode(), w.retry)
	a.fetched(ctx, result)
	var samples []models.ForecastSample
	if err == nil {
		samples, err = w.parse(result.Body)
	}
	a.finish(ctx, len(samples), 0, err)
	if err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}
	return samples, nil
}

func (w *WeatherAPI) parse(body []byte) ([]models.ForecastSample, error) {
	var data WeatherAPIResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal forecast: %w", err)
	}

	loc := w.loc
	if data.Location.TzID != "" {
		if l, err := time.LoadLocation(data.Location.TzID); err == nil {
			loc = l
		}
	}
	if loc == nil {
		loc = time.UTC
	}

	var samples []models.ForecastSample
	for _, day := range data.Forecast.ForecastDay {
		for _, h := range day.Hour {
			t, err := time.ParseInLocation("2006-01-02 15:04", h.Time, loc)
			if err != nil {
				return nil, fmt.Errorf("parse forecast hour %q: %w", h.Time, err)
			}
			samples = append(samples, models.ForecastSample{
				Time:            t,
				Temperature:     h.TempC,
				Humidity:        h.Humidity,
				Pressure:        h.PressureMB,
				WillRain:        h.WillItRain == 1,
				RainChance:      h.ChanceOfRain,
				PrecipitationMM: h.PrecipMM,
			})
		}
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("forecast has no hourly samples")
	}
	return samples, nil
}
