package ingest

import (
	"context"
	"log"

	"github.com/lox/dripline/internal/store"
)

// audit tracks one upstream call in the ingest_runs table and archives its
// payload. A nil *audit, or one without a store, does nothing.
type audit struct {
	store    *store.Store
	source   string
	endpoint string
	location string
	run      *store.IngestRun
}

func startAudit(ctx context.Context, s *store.Store, source, endpoint, location string) *audit {
	if s == nil {
		return nil
	}
	a := &audit{store: s, source: source, endpoint: endpoint, location: location}
	run, err := s.StartIngestRun(ctx, source, endpoint, location)
	if err != nil {
		log.Printf("%s: start ingest run: %v", source, err)
		return a
	}
	a.run = run
	return a
}

// fetched records the HTTP outcome and archives the body.
func (a *audit) fetched(ctx context.Context, result *FetchResult) {
	if a == nil || result == nil {
		return
	}
	var runID int64
	if a.run != nil {
		a.run.Observe(result.HTTPStatus, result.ResponseSize)
		runID = a.run.ID
	}
	if len(result.Body) == 0 {
		return
	}
	if _, err := a.store.StoreRawPayload(ctx, runID, a.source, a.endpoint, a.location, result.Body); err != nil {
		log.Printf("%s: store raw payload: %v", a.source, err)
	}
}

func (a *audit) finish(ctx context.Context, parsed, stored int, err error) {
	if a == nil || a.run == nil {
		return
	}
	a.run.Finish(parsed, stored, err)
	if cerr := a.store.CompleteIngestRun(context.WithoutCancel(ctx), a.run); cerr != nil {
		log.Printf("%s: complete ingest run: %v", a.source, cerr)
	}
}
