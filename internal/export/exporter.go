package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/lox/dripline/internal/models"
	"github.com/lox/dripline/internal/window"
)

// Source is the measurement store as seen by the exporter.
type Source interface {
	ScanAll(ctx context.Context) ([]models.Measurement, error)
}

type Uploader interface {
	Upload(ctx context.Context, name string, r io.Reader) error
}

// Exporter renders an interval of measurements as CSV.
type Exporter struct {
	source   Source
	uploader Uploader
}

func NewExporter(source Source, uploader Uploader) *Exporter {
	return &Exporter{source: source, uploader: uploader}
}

// Result describes one export.
type Result struct {
	Name     string
	Rows     int
	Data     []byte
	Uploaded bool
}

// Export selects the measurements strictly between start and end, renders
// them and uploads the file when an uploader is configured.
func (e *Exporter) Export(ctx context.Context, start, end time.Time) (*Result, error) {
	all, err := e.source.ScanAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan measurements: %w", err)
	}
	selected := window.Select(all, start, end)

	var buf bytes.Buffer
	if err := WriteCSV(&buf, selected); err != nil {
		return nil, fmt.Errorf("render csv: %w", err)
	}

	res := &Result{
		Name: FileName(start, end),
		Rows: len(selected),
		Data: buf.Bytes(),
	}
	if e.uploader != nil {
		if err := e.uploader.Upload(ctx, res.Name, bytes.NewReader(res.Data)); err != nil {
			return res, err
		}
		res.Uploaded = true
	}
	return res, nil
}
