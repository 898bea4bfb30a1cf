package insight

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// stubProvider returns a canned completion and records the prompts.
type stubProvider struct {
	response string
	err      error
	system   string
	user     string
}

func (s *stubProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.system = systemPrompt
	s.user = userPrompt
	return s.response, s.err
}

func TestExtractParsesFencedResponse(t *testing.T) {
	p := &stubProvider{response: "```json\n" + `{
  "entries": [
    {"question": "Where do you live?", "answer": "Berlin", "category": "Location", "subcategory": "City", "data_type": "single_value", "confidence": 1.4}
  ],
  "contradictions": []
}` + "\n```"}
	e := NewExtractor(p, testLogger())

	conv := Conversation{{Role: "user", Content: "I live in Berlin"}}
	result, err := e.Extract(context.Background(), conv, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("expected one entry, got %v", result.Entries)
	}
	entry := result.Entries[0]
	if entry.Category != "location" || entry.Subcategory != "city" {
		t.Fatalf("expected normalized names, got %s.%s", entry.Category, entry.Subcategory)
	}
	if entry.Confidence != 1 {
		t.Fatalf("expected confidence clamped to 1, got %v", entry.Confidence)
	}
	if !strings.Contains(p.user, "user: I live in Berlin") {
		t.Fatalf("conversation missing from prompt: %q", p.user)
	}
	if !strings.Contains(p.system, "location.city (single_value)") {
		t.Fatalf("taxonomy missing from system prompt")
	}
}

func TestExtractDropsMalformedEntries(t *testing.T) {
	p := &stubProvider{response: `{
  "entries": [
    {"answer": "Berlin", "category": "", "subcategory": "city", "data_type": "single_value"},
    {"answer": "chess", "category": "hobbies", "subcategory": "sports", "data_type": "scalar"},
    {"answer": "Munich", "category": "location", "subcategory": "city", "data_type": "single_value", "confidence": -0.2}
  ],
  "contradictions": [
    {"category": "Location", "subcategory": "City", "recommended_action": "keep_new"}
  ]
}`}
	e := NewExtractor(p, testLogger())

	result, err := e.Extract(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("expected malformed entries dropped, got %v", result.Entries)
	}
	if result.Entries[0].Confidence != 0 {
		t.Fatalf("expected confidence clamped to 0, got %v", result.Entries[0].Confidence)
	}
	if len(result.Contradictions) != 1 || result.Contradictions[0].Category != "location" {
		t.Fatalf("expected normalized contradiction, got %v", result.Contradictions)
	}
}

func TestExtractFailsOnProviderError(t *testing.T) {
	e := NewExtractor(&stubProvider{err: fmt.Errorf("rate limited")}, testLogger())
	if _, err := e.Extract(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected provider error to surface")
	}
}

func TestExtractFailsOnBadJSON(t *testing.T) {
	e := NewExtractor(&stubProvider{response: "sorry, I cannot help with that"}, testLogger())
	if _, err := e.Extract(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected decode error to surface")
	}
}

func TestExtractIncludesProfileInPrompt(t *testing.T) {
	p := &stubProvider{response: `{"entries": [], "contradictions": []}`}
	e := NewExtractor(p, testLogger())

	profile := map[string]interface{}{"location": map[string]interface{}{"city": map[string]interface{}{"value": "Berlin"}}}
	if _, err := e.Extract(context.Background(), nil, profile); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(p.user, `"value":"Berlin"`) {
		t.Fatalf("profile missing from prompt: %q", p.user)
	}
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":                      `{"a":1}`,
		"```json\n{\"a\":1}\n```":        `{"a":1}`,
		"```\n{\"a\":1}\n```":            `{"a":1}`,
		"  ```json\n{\"a\":1}\n```\n  ": `{"a":1}`,
	}
	for in, want := range cases {
		if got := stripFences(in); got != want {
			t.Fatalf("stripFences(%q) = %q, want %q", in, got, want)
		}
	}
}
