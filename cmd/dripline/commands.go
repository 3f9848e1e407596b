package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lox/dripline/internal/api"
	"github.com/lox/dripline/internal/export"
	"github.com/lox/dripline/internal/ingest"
	"github.com/lox/dripline/internal/window"
)

type ServeCmd struct {
	Port           string        `help:"HTTP server port." default:"8080" env:"PORT"`
	NoPoll         bool          `help:"Disable sensor import and scheduled cycles (server only)."`
	ImportInterval time.Duration `help:"Sensor import interval." default:"10m" env:"IMPORT_INTERVAL"`
	CycleSchedule  string        `help:"Cron schedule for decision cycles." default:"@hourly" env:"CYCLE_SCHEDULE"`
}

func (c *ServeCmd) Run(g *Globals) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loc := g.location()
	st, closeDB, err := g.openStore()
	if err != nil {
		return err
	}
	defer closeDB()
	log.Println("database migrated")

	server := api.NewServer(st, c.Port, loc)

	if c.NoPoll {
		log.Println("polling disabled (--no-poll)")
	} else {
		comps, err := g.buildRunner(ctx, st, loc)
		if err != nil {
			return err
		}
		defer comps.close()
		server.SetCycleRunner(comps.runner)

		importer := ingest.NewImporter(st, comps.sensors)
		if comps.mirror != nil {
			importer.SetMirror(comps.mirror)
		}
		scheduler := ingest.NewScheduler(st, importer, loc)
		scheduler.SetImportInterval(c.ImportInterval)
		if err := scheduler.SetDecisionCycle(c.CycleSchedule, func(ctx context.Context) error {
			_, err := comps.runner.Run(ctx)
			return err
		}); err != nil {
			return err
		}
		go scheduler.Run(ctx)
	}

	log.Printf("starting server on :%s", c.Port)
	return server.Run(ctx)
}

type CycleCmd struct{}

func (c *CycleCmd) Run(g *Globals) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loc := g.location()
	st, closeDB, err := g.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	comps, err := g.buildRunner(ctx, st, loc)
	if err != nil {
		return err
	}
	defer comps.close()

	out, err := comps.runner.Run(ctx)
	if err != nil {
		return err
	}
	return printJSON(out)
}

type ImportCmd struct{}

func (c *ImportCmd) Run(g *Globals) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, closeDB, err := g.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	sensors, err := g.sensorHead()
	if err != nil {
		return err
	}
	importer := ingest.NewImporter(st, sensors)
	if m := g.influxMirror(); m != nil {
		defer m.Close()
		importer.SetMirror(m)
	}

	m, err := importer.ImportOnce(ctx)
	if err != nil {
		return err
	}
	return printJSON(m)
}

// Interval is the start/end pair shared by export and window.
type Interval struct {
	Start string `arg:"" help:"Interval start, RFC 3339 or YYYY-MM-DD (exclusive)."`
	End   string `arg:"" optional:"" help:"Interval end, RFC 3339 or YYYY-MM-DD (exclusive). Open-ended when omitted."`
}

func parseTime(v string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339 or YYYY-MM-DD", v)
	}
	return t, nil
}

type ExportCmd struct {
	Interval
	Out    string `short:"o" help:"Output file. Defaults to measurements-<start>-<end>.csv."`
	Upload bool   `help:"Upload the file to the configured FTP server instead of writing it locally."`
}

func (c *ExportCmd) Run(g *Globals) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if c.End == "" {
		return errors.New("export needs both start and end")
	}
	loc := g.location()
	start, err := parseTime(c.Start, loc)
	if err != nil {
		return err
	}
	end, err := parseTime(c.End, loc)
	if err != nil {
		return err
	}

	st, closeDB, err := g.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	var uploader export.Uploader
	if c.Upload {
		if uploader = g.ftpUploader(); uploader == nil {
			return errors.New("--upload requires --ftp-addr")
		}
	}

	res, err := export.NewExporter(st, uploader).Export(ctx, start, end)
	if err != nil {
		return err
	}
	if res.Uploaded {
		log.Printf("export: uploaded %s (%d rows)", res.Name, res.Rows)
		return nil
	}

	path := c.Out
	if path == "" {
		path = res.Name
	}
	if err := os.WriteFile(path, res.Data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	log.Printf("export: wrote %s (%d rows)", path, res.Rows)
	return nil
}

type WindowCmd struct {
	Interval
}

func (c *WindowCmd) Run(g *Globals) error {
	loc := g.location()
	start, err := parseTime(c.Start, loc)
	if err != nil {
		return err
	}

	st, closeDB, err := g.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	all, err := st.ScanAll(context.Background())
	if err != nil {
		return err
	}
	idx := window.NewIndex(all)

	if c.End == "" {
		return printJSON(idx.Since(start))
	}
	end, err := parseTime(c.End, loc)
	if err != nil {
		return err
	}
	return printJSON(idx.Select(start, end))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
