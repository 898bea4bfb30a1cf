package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/aide/internal/store"
	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Processor drives one turn: for each extracted entry it consults the
// resolver and, when allowed, versions the existing datum, appends to the
// question log and updates the current value. Every store mutation commits
// on its own; a failed one is logged and the turn carries on, because the
// next turn re-reads whatever state actually stuck.
type Processor struct {
	store     store.DocStore
	resolver  *Resolver
	logger    *log.Logger
	persisted otelmetric.Int64Counter
	turns     otelmetric.Int64Counter
	latency   otelmetric.Float64Histogram
}

// NewProcessor constructs a Processor.
func NewProcessor(st store.DocStore, resolver *Resolver, logger *log.Logger) *Processor {
	p := &Processor{store: st, resolver: resolver, logger: logger}
	meter := otel.Meter("aide/insight")
	var err error
	if p.persisted, err = meter.Int64Counter("insight_entries_persisted_total"); err != nil {
		logger.Printf("warn: create persisted counter failed: %v", err)
	}
	if p.turns, err = meter.Int64Counter("insight_turns_total"); err != nil {
		logger.Printf("warn: create turns counter failed: %v", err)
	}
	if p.latency, err = meter.Float64Histogram("insight_turn_seconds"); err != nil {
		logger.Printf("warn: create latency histogram failed: %v", err)
	}
	return p
}

// ProcessTurn applies one extraction result for uid and returns the
// post-turn projection.
func (p *Processor) ProcessTurn(ctx context.Context, uid string, result ExtractionResult) (Projection, error) {
	started := time.Now()
	if p.turns != nil {
		p.turns.Add(ctx, 1)
	}

	now := time.Now().UTC().Format(time.RFC3339)

	doc, err := p.store.Find(ctx, uid, []string{"profile_data"})
	if err != nil {
		return Projection{}, fmt.Errorf("read profile for %s: %w", uid, err)
	}
	profileData := orEmptyMap(asMap(doc["profile_data"]))

	for _, entry := range result.Entries {
		record := EntryRecord{
			Question:  entry.Question,
			Answer:    entry.Answer,
			Timestamp: now,
			EntryID:   BuildEntryID(entry.Category, entry.Subcategory),
		}

		if !p.resolver.Resolve(ctx, uid, result.Contradictions, record) {
			continue
		}

		slot := entry.Category + "." + entry.Subcategory
		existing := asMap(valueAt(profileData, entry.Category, entry.Subcategory))

		if existing != nil {
			triggeredBy := entry.Question
			if triggeredBy == "" {
				triggeredBy = "conversation"
			}
			version := VersionRecord{
				Value:       existing,
				Timestamp:   now,
				ChangeType:  "update",
				TriggeredBy: triggeredBy,
			}
			if err := p.store.Push(ctx, uid, "profile_history."+slot, version); err != nil {
				p.logger.Printf("archive version for %s.%s: %v", uid, slot, err)
			}
		}

		if err := p.store.Push(ctx, uid, "questions_data."+slot, record); err != nil {
			p.logger.Printf("append question log for %s.%s: %v", uid, slot, err)
		}

		datum := p.newDatum(entry, record, existing, now)
		if err := p.store.Set(ctx, uid, "profile_data."+slot, datum); err != nil {
			p.logger.Printf("write datum for %s.%s: %v", uid, slot, err)
		}
		setValueAt(profileData, entry.Category, entry.Subcategory, toGeneric(datum))
		if p.persisted != nil {
			p.persisted.Add(ctx, 1)
		}
	}

	proj, err := p.projection(ctx, uid)
	if p.latency != nil {
		p.latency.Record(ctx, time.Since(started).Seconds())
	}
	return proj, err
}

// newDatum computes the replacement profile datum for a persisted entry.
func (p *Processor) newDatum(entry UserEntry, record EntryRecord, existing map[string]interface{}, now string) interface{} {
	createdAt := now
	if existing != nil {
		if s, ok := existing["created_at"].(string); ok && s != "" {
			createdAt = s
		}
	}

	if entry.DataType == DataTypeCollection {
		items := entryItems(entry)
		var existingItems []string
		if existing != nil {
			if raw, ok := existing["items"].([]interface{}); ok {
				for _, it := range raw {
					if s, ok := it.(string); ok {
						existingItems = append(existingItems, s)
					}
				}
			}
		}
		return CollectionDatum{
			Items:     unionFold(existingItems, items),
			CreatedAt: createdAt,
			UpdatedAt: now,
		}
	}

	return SingleValueDatum{
		Value:     entry.Answer,
		EntryID:   record.EntryID,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
}

// projection re-reads the post-turn state for the notifier.
func (p *Processor) projection(ctx context.Context, uid string) (Projection, error) {
	doc, err := p.store.Find(ctx, uid, []string{
		"profile_data", "questions_data", "contradictions", "contradiction_review_queue",
	})
	if err != nil {
		return Projection{}, fmt.Errorf("read projection for %s: %w", uid, err)
	}
	queue := asSlice(doc["contradiction_review_queue"])
	return Projection{
		ProfileData:              orEmptyMap(asMap(doc["profile_data"])),
		QuestionsData:            orEmptyMap(asMap(doc["questions_data"])),
		ReviewQueue:              queue,
		Contradictions:           orEmptyMap(asMap(doc["contradictions"])),
		ContradictionReviewQueue: queue,
	}, nil
}

// entryItems prefers the extractor's pre-split list when it returned one,
// falling back to parsing the raw answer.
func entryItems(entry UserEntry) []string {
	if raw, ok := entry.ParsedValue.([]interface{}); ok && len(raw) > 0 {
		var items []string
		for _, it := range raw {
			if s, ok := it.(string); ok && strings.TrimSpace(s) != "" {
				items = append(items, strings.TrimSpace(s))
			}
		}
		if len(items) > 0 {
			return items
		}
	}
	if items, ok := entry.ParsedValue.([]string); ok && len(items) > 0 {
		return items
	}
	return ParseCollectionItems(entry.Answer)
}

// unionFold merges new items into existing ones under case-insensitive
// equality, preserving existing order and appending genuinely new items.
func unionFold(existing, incoming []string) []string {
	out := make([]string, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, item := range existing {
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	for _, item := range incoming {
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func valueAt(m map[string]interface{}, category, subcategory string) interface{} {
	v, _ := DigMap(m, category, subcategory)
	return v
}

func setValueAt(m map[string]interface{}, category, subcategory string, v interface{}) {
	sub, ok := m[category].(map[string]interface{})
	if !ok {
		sub = make(map[string]interface{})
		m[category] = sub
	}
	sub[subcategory] = v
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

func asSlice(v interface{}) []interface{} {
	s, _ := v.([]interface{})
	if s == nil {
		return []interface{}{}
	}
	return s
}

func orEmptyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

// toGeneric round-trips a typed datum into the generic map shape reads
// produce, keeping the in-turn snapshot comparable with stored state.
func toGeneric(v interface{}) interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
