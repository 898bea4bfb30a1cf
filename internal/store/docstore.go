package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Mutation ops accepted by UpdateMany.
const (
	OpSet  = "set"
	OpPush = "push"
	OpPull = "pull"
)

// Mutation is a single path-level change to a user document.
type Mutation struct {
	Op    string
	Path  string
	Value interface{}
	Match map[string]interface{}
}

// DocStore is the per-user document storage contract the insight core runs
// against. Paths are dotted ("profile_data.location.city"). Every mutation
// is individually atomic; there is no whole-turn transaction.
type DocStore interface {
	// Find returns the requested top-level fields of the user document, or
	// nil when no document exists. An empty projection returns everything.
	Find(ctx context.Context, uid string, projection []string) (map[string]interface{}, error)
	// Set writes the value at path, creating the document and any missing
	// parents.
	Set(ctx context.Context, uid, path string, value interface{}) error
	// Push appends the value to the array at path, creating it if absent.
	Push(ctx context.Context, uid, path string, value interface{}) error
	// Pull removes array elements at path that contain the match object.
	// A missing path is a no-op.
	Pull(ctx context.Context, uid, path string, match map[string]interface{}) error
	// UpdateMany applies the mutations in order, each one atomically.
	// Failures are collected; later mutations still run.
	UpdateMany(ctx context.Context, uid string, muts []Mutation) error
}

var pathSegment = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// splitPath validates a dotted path and returns its segments. Segments are
// restricted to the charset produced by name normalization plus hex uuids,
// which keeps them safe to inline into generated SQL.
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	segs := strings.Split(path, ".")
	for _, s := range segs {
		if !pathSegment.MatchString(s) {
			return nil, fmt.Errorf("invalid path segment %q in %q", s, path)
		}
	}
	return segs, nil
}
