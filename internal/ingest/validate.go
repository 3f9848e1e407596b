package ingest

import (
	"encoding/json"

	"github.com/lox/dripline/internal/models"
)

const (
	FlagSoilMoistureInvalid = "soil_moisture_invalid"
	FlagTempOutOfRange      = "temp_out_of_range"
	FlagHumidityInvalid     = "humidity_invalid"
	FlagPressureOutOfRange  = "pressure_out_of_range"
)

// ValidateMeasurement range-checks a reading. Flagged readings are still
// stored; the flags only annotate them.
func ValidateMeasurement(m models.Measurement) []string {
	var flags []string

	if m.SoilMoisture < 0 || m.SoilMoisture > 100 {
		flags = append(flags, FlagSoilMoistureInvalid)
	}
	if m.Temperature < -10 || m.Temperature > 60 {
		flags = append(flags, FlagTempOutOfRange)
	}
	if m.Humidity < 0 || m.Humidity > 100 {
		flags = append(flags, FlagHumidityInvalid)
	}
	// Barometric sensors on the head report 300-1100 hPa.
	if m.Pressure < 300 || m.Pressure > 1100 {
		flags = append(flags, FlagPressureOutOfRange)
	}

	return flags
}

func QualityFlagsToJSON(flags []string) string {
	if len(flags) == 0 {
		return ""
	}
	b, _ := json.Marshal(flags)
	return string(b)
}
