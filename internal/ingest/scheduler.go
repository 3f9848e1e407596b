package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lox/dripline/internal/store"
)

const (
	DefaultImportInterval = 10 * time.Minute
	DefaultCycleSchedule  = "@hourly"
	rawPayloadRetention   = 30 // days
)

// Scheduler imports sensor readings on a fixed interval and runs decision
// cycles on a cron schedule.
type Scheduler struct {
	store          *store.Store
	importer       *Importer
	importInterval time.Duration
	cron           *cron.Cron
	cycle          func(context.Context) error
	ctx            context.Context
}

func NewScheduler(s *store.Store, importer *Importer, loc *time.Location) *Scheduler {
	return &Scheduler{
		store:          s,
		importer:       importer,
		importInterval: DefaultImportInterval,
		cron:           cron.New(cron.WithLocation(loc)),
		ctx:            context.Background(),
	}
}

// SetImportInterval overrides the sensor polling interval.
func (s *Scheduler) SetImportInterval(d time.Duration) {
	if d > 0 {
		s.importInterval = d
	}
}

// SetDecisionCycle schedules fn with a cron spec such as "@hourly" or "0 6,18 * * *".
func (s *Scheduler) SetDecisionCycle(spec string, fn func(context.Context) error) error {
	if spec == "" {
		spec = DefaultCycleSchedule
	}
	s.cycle = fn
	if _, err := s.cron.AddFunc(spec, s.runCycle); err != nil {
		return fmt.Errorf("schedule decision cycle %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) Run(ctx context.Context) {
	s.ctx = ctx
	if _, err := s.cron.AddFunc("@daily", s.cleanup); err != nil {
		log.Printf("scheduler: schedule cleanup: %v", err)
	}

	s.importMeasurement()

	s.cron.Start()
	importTicker := time.NewTicker(s.importInterval)
	defer importTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			<-s.cron.Stop().Done()
			return
		case <-importTicker.C:
			s.importMeasurement()
		}
	}
}

func (s *Scheduler) importMeasurement() {
	if s.importer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Minute)
	defer cancel()

	if _, err := s.importer.ImportOnce(ctx); err != nil {
		log.Printf("scheduler: import measurement: %v", err)
	}
}

func (s *Scheduler) runCycle() {
	if s.cycle == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	log.Println("scheduler: running decision cycle")
	if err := s.cycle(ctx); err != nil {
		log.Printf("scheduler: decision cycle: %v", err)
	}
}

func (s *Scheduler) cleanup() {
	n, err := s.store.CleanupOldRawPayloads(s.ctx, rawPayloadRetention)
	if err != nil {
		log.Printf("scheduler: cleanup raw payloads: %v", err)
		return
	}
	if n > 0 {
		log.Printf("scheduler: removed %d raw payloads older than %d days", n, rawPayloadRetention)
	}
}

// ImportOnce runs a single import outside the schedule.
func (s *Scheduler) ImportOnce(ctx context.Context) error {
	if s.importer == nil {
		return fmt.Errorf("no sensor head configured")
	}
	_, err := s.importer.ImportOnce(ctx)
	return err
}
