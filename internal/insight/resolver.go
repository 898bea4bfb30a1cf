package insight

import (
	"context"
	"log"
	"time"

	"github.com/mohammad-safakhou/aide/internal/store"
	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Resolver executes the consequences of the extractor's contradiction
// verdicts against the store. It never re-decides an action; the extractor
// is the sole source of recommendations.
type Resolver struct {
	store    store.DocStore
	logger   *log.Logger
	resolved otelmetric.Int64Counter
	queued   otelmetric.Int64Counter
}

// NewResolver constructs a Resolver.
func NewResolver(st store.DocStore, logger *log.Logger) *Resolver {
	r := &Resolver{store: st, logger: logger}
	meter := otel.Meter("aide/insight")
	var err error
	if r.resolved, err = meter.Int64Counter("insight_contradictions_resolved_total"); err != nil {
		logger.Printf("warn: create resolved counter failed: %v", err)
	}
	if r.queued, err = meter.Int64Counter("insight_contradictions_queued_total"); err != nil {
		logger.Printf("warn: create queued counter failed: %v", err)
	}
	return r
}

// Resolve applies the turn's contradictions to one entry record, in order,
// and reports whether the entry may be persisted. Every contradiction is
// first recorded for audit — even ones whose effects never run — then the
// action-specific effects are applied in order. The first terminal-negative
// outcome (needs_clarification or keep_existing) ends processing and
// returns false. Store failures are logged; the remaining work continues.
func (r *Resolver) Resolve(ctx context.Context, uid string, contradictions []Contradiction, record EntryRecord) bool {
	for _, c := range contradictions {
		auditPath := "contradictions." + c.Category + "." + c.Subcategory
		if err := r.store.Push(ctx, uid, auditPath, c); err != nil {
			r.logger.Printf("record contradiction for %s: %v", uid, err)
		}
	}

	for _, c := range contradictions {
		switch c.RecommendedAction {
		case ActionNeedsClarification:
			review := ReviewEntry{Contradiction: c, EntryData: record, Status: ReviewStatusPending}
			if err := r.store.Push(ctx, uid, "contradiction_review_queue", review); err != nil {
				r.logger.Printf("queue contradiction for %s: %v", uid, err)
			}
			if r.queued != nil {
				r.queued.Add(ctx, 1)
			}
			return false

		case ActionKeepExisting:
			r.recordResolution(ctx, uid, c.EntryID, ResolutionKeptExisting)
			return false

		case ActionKeepNew:
			r.removeExisting(ctx, uid, c)
			r.recordResolution(ctx, uid, c.EntryID, ResolutionUsedNew)

		case ActionMerge:
			r.removeExisting(ctx, uid, c)
			r.recordResolution(ctx, uid, c.EntryID, ResolutionMerged)

		default:
			// Unknown verdicts are routed to a human rather than guessed at.
			r.logger.Printf("unknown recommended action %q for %s; queueing for review", c.RecommendedAction, uid)
			review := ReviewEntry{Contradiction: c, EntryData: record, Status: ReviewStatusPending}
			if err := r.store.Push(ctx, uid, "contradiction_review_queue", review); err != nil {
				r.logger.Printf("queue contradiction for %s: %v", uid, err)
			}
			if r.queued != nil {
				r.queued.Add(ctx, 1)
			}
			return false
		}
	}
	return true
}

// removeExisting deletes the entry record named by the contradiction from
// the question log. The entry id encodes its own location, so no profile
// lookup is needed; a missing target makes the pull a no-op.
func (r *Resolver) removeExisting(ctx context.Context, uid string, c Contradiction) {
	category, subcategory := ParseEntryID(c.EntryID)
	if category == "" || subcategory == "" {
		r.logger.Printf("contradiction for %s has unparseable entry_id %q; skipping removal", uid, c.EntryID)
		return
	}
	path := "questions_data." + category + "." + subcategory
	if err := r.store.Pull(ctx, uid, path, map[string]interface{}{"entry_id": c.EntryID}); err != nil {
		r.logger.Printf("remove superseded entry %s for %s: %v", c.EntryID, uid, err)
	}
}

func (r *Resolver) recordResolution(ctx context.Context, uid, entryID string, resolution Resolution) {
	rec := ResolutionRecord{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		EntryID:    entryID,
		Resolution: resolution,
	}
	if err := r.store.Push(ctx, uid, "resolved_contradictions", rec); err != nil {
		r.logger.Printf("record resolution for %s: %v", uid, err)
	}
	if r.resolved != nil {
		r.resolved.Add(ctx, 1)
	}
}
