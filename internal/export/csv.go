// Package export writes measurement intervals as CSV and ships them to a
// remote FTP drop.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/lox/dripline/internal/models"
)

var header = []string{"SoilMoisture", "Pressure", "Temperature", "Humidity"}

// WriteCSV writes one row per measurement in the order given.
func WriteCSV(w io.Writer, measurements []models.Measurement) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, m := range measurements {
		row := []string{
			formatValue(m.SoilMoisture),
			formatValue(m.Pressure),
			formatValue(m.Temperature),
			formatValue(m.Humidity),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write measurement %d: %w", m.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// FileName names the export for an interval, using the calendar dates of
// start and end in their own locations.
func FileName(start, end time.Time) string {
	return fmt.Sprintf("measurements-%s-%s.csv", start.Format("20060102"), end.Format("20060102"))
}
