package insight

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	numberedPrefix = regexp.MustCompile(`^\s*\d+[.)]\s*`)
	itemDelimiter  = regexp.MustCompile(`(?i)\s*(?:,|;|\band\b)\s*`)
)

// ParseCollectionItems splits a free-text answer into collection items.
// Numbered-list prefixes, bullet markers and leading dashes are stripped,
// the rest is split on commas, semicolons or the word "and". Empty and
// single-character pieces are dropped; order within the answer is preserved.
func ParseCollectionItems(answer string) []string {
	var items []string
	for _, line := range strings.Split(answer, "\n") {
		line = numberedPrefix.ReplaceAllString(line, "")
		line = strings.TrimLeft(line, "-*• \t")
		for _, piece := range itemDelimiter.Split(line, -1) {
			piece = strings.TrimSpace(piece)
			if len(piece) <= 1 {
				continue
			}
			items = append(items, piece)
		}
	}
	return items
}

// BuildEntryID encodes a record's location as
// "<category>.<subcategory>.<uuid>" with both names normalized and the uuid
// serialized as a bare hex string.
func BuildEntryID(category, subcategory string) string {
	u := strings.ReplaceAll(uuid.NewString(), "-", "")
	return Normalize(category) + "." + Normalize(subcategory) + "." + u
}

// ParseEntryID decodes an entry id back into (category, subcategory).
// Anything with fewer than three dot-separated parts yields empty strings.
func ParseEntryID(entryID string) (string, string) {
	parts := strings.SplitN(entryID, ".", 3)
	if len(parts) < 3 {
		return "", ""
	}
	return parts[0], parts[1]
}

// DigMap walks nested string-keyed maps and returns the value at the given
// key path, or false when any hop is missing or not a map.
func DigMap(m map[string]interface{}, keys ...string) (interface{}, bool) {
	var cur interface{} = m
	for _, k := range keys {
		node, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = node[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
