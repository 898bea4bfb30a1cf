package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/aide/provider"
	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Extractor turns a conversation plus the current profile into structured
// user entries and contradictions via one LLM call. It is the sole source of
// action recommendations; nothing downstream second-guesses them.
type Extractor struct {
	provider provider.Provider
	logger   *log.Logger
	calls    otelmetric.Int64Counter
	failures otelmetric.Int64Counter
	skipped  otelmetric.Int64Counter
}

// NewExtractor constructs an Extractor.
func NewExtractor(p provider.Provider, logger *log.Logger) *Extractor {
	e := &Extractor{provider: p, logger: logger}
	meter := otel.Meter("aide/insight")
	var err error
	if e.calls, err = meter.Int64Counter("insight_extractions_total"); err != nil {
		logger.Printf("warn: create extraction counter failed: %v", err)
	}
	if e.failures, err = meter.Int64Counter("insight_extraction_failures_total"); err != nil {
		logger.Printf("warn: create failure counter failed: %v", err)
	}
	if e.skipped, err = meter.Int64Counter("insight_entries_skipped_total"); err != nil {
		logger.Printf("warn: create skipped counter failed: %v", err)
	}
	return e
}

// Extract runs the extraction call and returns sanitized entries and
// contradictions. Any provider or decode error fails the whole turn.
func (e *Extractor) Extract(ctx context.Context, conv Conversation, profile map[string]interface{}) (ExtractionResult, error) {
	if e.calls != nil {
		e.calls.Add(ctx, 1)
	}
	raw, err := e.provider.Complete(ctx, extractionSystemPrompt(), extractionUserPrompt(conv, profile))
	if err != nil {
		if e.failures != nil {
			e.failures.Add(ctx, 1)
		}
		return ExtractionResult{}, fmt.Errorf("extraction completion: %w", err)
	}

	var result ExtractionResult
	if err := json.Unmarshal([]byte(stripFences(raw)), &result); err != nil {
		if e.failures != nil {
			e.failures.Add(ctx, 1)
		}
		return ExtractionResult{}, fmt.Errorf("parse extraction response: %w", err)
	}
	return e.sanitize(ctx, result), nil
}

// sanitize normalizes names, clamps confidences and drops malformed entries
// (missing category, subcategory or data type) so one bad entry never sinks
// the turn.
func (e *Extractor) sanitize(ctx context.Context, in ExtractionResult) ExtractionResult {
	out := ExtractionResult{}
	for _, entry := range in.Entries {
		entry.Category = Normalize(entry.Category)
		entry.Subcategory = Normalize(entry.Subcategory)
		if entry.Category == "" || entry.Subcategory == "" || !ValidDataType(entry.DataType) {
			e.logger.Printf("skipping malformed entry %q (category=%q subcategory=%q data_type=%q)",
				entry.Question, entry.Category, entry.Subcategory, entry.DataType)
			if e.skipped != nil {
				e.skipped.Add(ctx, 1)
			}
			continue
		}
		if entry.Confidence < 0 {
			entry.Confidence = 0
		}
		if entry.Confidence > 1 {
			entry.Confidence = 1
		}
		out.Entries = append(out.Entries, entry)
	}
	for _, c := range in.Contradictions {
		c.Category = Normalize(c.Category)
		c.Subcategory = Normalize(c.Subcategory)
		out.Contradictions = append(out.Contradictions, c)
	}
	return out
}

func extractionSystemPrompt() string {
	var taxonomy strings.Builder
	for _, c := range Categories {
		fmt.Fprintf(&taxonomy, "- %s.%s (%s)\n", c.Name, c.Subcategory, c.DataType)
	}
	return fmt.Sprintf(`You are an insight extraction assistant. You read a conversation between a user and an assistant together with the user's current profile, and extract structured facts about the user.

TAXONOMY (category.subcategory (data_type)):
%s
RULES:
1. Ignore any information that is already present in the profile.
2. Tag every extracted answer with a category, subcategory and data_type (single_value or collection). Prefer taxonomy slots; invent a sensible slot only when nothing fits.
3. Attach a confidence between 0 and 1 to every entry.
4. For collection answers you may include "parsed_value" as a list of items.
5. If a new value conflicts with the existing value for the same category and subcategory, emit a contradiction with a recommended_action (keep_new, keep_existing, merge, needs_clarification) and a short natural-language reasoning. Set the contradiction's entry_id to the entry_id of the existing conflicting record from the profile.
6. Only extract facts about the user, never about other people or the assistant.

RESPONSE FORMAT:
Respond ONLY with valid JSON in the following format:
{
  "entries": [
    {"question": "...", "answer": "...", "category": "...", "subcategory": "...", "data_type": "single_value", "parsed_value": ["optional", "items"], "confidence": 0.9}
  ],
  "contradictions": [
    {"category": "...", "subcategory": "...", "data_type": "single_value", "existing_value": "...", "new_value": "...", "entry_id": "...", "recommended_action": "keep_existing", "reasoning": "..."}
  ]
}
Do not include any other text or explanation.`, taxonomy.String())
}

func extractionUserPrompt(conv Conversation, profile map[string]interface{}) string {
	var transcript strings.Builder
	for _, m := range conv {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil || profile == nil {
		profileJSON = []byte("{}")
	}
	return fmt.Sprintf(`CURRENT PROFILE:
%s

CONVERSATION:
%s`, profileJSON, transcript.String())
}

// stripFences removes a surrounding markdown code fence, which some models
// add despite the JSON-only instruction.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
