package insight

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseCollectionItems(t *testing.T) {
	got := ParseCollectionItems("reading, hiking and chess")
	want := []string{"reading", "hiking", "chess"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	got = ParseCollectionItems("1. swimming\n2) running\n- cycling\n* rowing\n• climbing")
	want = []string{"swimming", "running", "cycling", "rowing", "climbing"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseCollectionItemsDropsNoise(t *testing.T) {
	got := ParseCollectionItems("a, go, , x;  piano ")
	want := []string{"go", "piano"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if items := ParseCollectionItems(""); len(items) != 0 {
		t.Fatalf("expected no items, got %v", items)
	}
}

func TestParseCollectionItemsStableOnOwnOutput(t *testing.T) {
	first := ParseCollectionItems("1. swimming\n2. trail running, chess and piano")
	second := ParseCollectionItems(strings.Join(first, ", "))
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-parsing own output changed items: %v vs %v", first, second)
	}
}

func TestParseCollectionItemsKeepsOrder(t *testing.T) {
	got := ParseCollectionItems("zebra; apple; mango")
	want := []string{"zebra", "apple", "mango"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected answer order preserved, got %v", got)
	}
}

func TestBuildEntryIDRoundTrip(t *testing.T) {
	id := BuildEntryID("Location", "City")
	if !strings.HasPrefix(id, "location.city.") {
		t.Fatalf("expected normalized prefix, got %q", id)
	}
	suffix := strings.TrimPrefix(id, "location.city.")
	if len(suffix) != 32 || strings.Contains(suffix, "-") {
		t.Fatalf("expected 32 hex chars, got %q", suffix)
	}

	category, subcategory := ParseEntryID(id)
	if category != "location" || subcategory != "city" {
		t.Fatalf("round trip gave (%q, %q)", category, subcategory)
	}
}

func TestBuildEntryIDUnique(t *testing.T) {
	if BuildEntryID("work", "company") == BuildEntryID("work", "company") {
		t.Fatalf("expected unique ids per call")
	}
}

func TestParseEntryIDMalformed(t *testing.T) {
	for _, id := range []string{"", "city", "location.city"} {
		if c, s := ParseEntryID(id); c != "" || s != "" {
			t.Fatalf("expected empty parts for %q, got (%q, %q)", id, c, s)
		}
	}
}

func TestDigMap(t *testing.T) {
	m := map[string]interface{}{
		"location": map[string]interface{}{"city": map[string]interface{}{"value": "berlin"}},
	}
	v, ok := DigMap(m, "location", "city")
	if !ok {
		t.Fatalf("expected hit")
	}
	if v.(map[string]interface{})["value"] != "berlin" {
		t.Fatalf("unexpected value %v", v)
	}
	if _, ok := DigMap(m, "location", "country"); ok {
		t.Fatalf("expected miss on absent key")
	}
	if _, ok := DigMap(m, "location", "city", "value", "deeper"); ok {
		t.Fatalf("expected miss through non-map")
	}
}
