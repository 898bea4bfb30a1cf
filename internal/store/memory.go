package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// MemStore is an in-memory DocStore with the same semantics as the Postgres
// implementation. It backs tests and local development without a database.
type MemStore struct {
	mu      sync.Mutex
	docs    map[string]map[string]interface{}
	updated map[string]time.Time
	now     func() time.Time
}

// NewMemStore creates an empty in-memory document store.
func NewMemStore() *MemStore {
	return &MemStore{
		docs:    make(map[string]map[string]interface{}),
		updated: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *MemStore) Find(ctx context.Context, uid string, projection []string) (map[string]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[uid]
	if !ok {
		return nil, nil
	}
	copied := roundTrip(doc).(map[string]interface{})
	copied["updated_at"] = m.updated[uid].UTC().Format(time.RFC3339)
	return project(copied, projection), nil
}

func (m *MemStore) Set(ctx context.Context, uid, path string, value interface{}) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	node, err := m.navigate(uid, segs[:len(segs)-1])
	if err != nil {
		return err
	}
	node[segs[len(segs)-1]] = roundTrip(value)
	m.updated[uid] = m.now()
	return nil
}

func (m *MemStore) Push(ctx context.Context, uid, path string, value interface{}) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	node, err := m.navigate(uid, segs[:len(segs)-1])
	if err != nil {
		return err
	}
	leaf := segs[len(segs)-1]
	arr, ok := node[leaf].([]interface{})
	if node[leaf] != nil && !ok {
		return fmt.Errorf("push %s: not an array", path)
	}
	node[leaf] = append(arr, roundTrip(value))
	m.updated[uid] = m.now()
	return nil
}

func (m *MemStore) Pull(ctx context.Context, uid, path string, match map[string]interface{}) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[uid]
	if !ok {
		return nil
	}
	var node map[string]interface{} = doc
	for _, s := range segs[:len(segs)-1] {
		next, ok := node[s].(map[string]interface{})
		if !ok {
			return nil
		}
		node = next
	}
	arr, ok := node[segs[len(segs)-1]].([]interface{})
	if !ok {
		return nil
	}
	want := roundTrip(match).(map[string]interface{})
	kept := make([]interface{}, 0, len(arr))
	for _, e := range arr {
		if !contains(e, want) {
			kept = append(kept, e)
		}
	}
	node[segs[len(segs)-1]] = kept
	m.updated[uid] = m.now()
	return nil
}

func (m *MemStore) UpdateMany(ctx context.Context, uid string, muts []Mutation) error {
	var errs []error
	for _, mut := range muts {
		var err error
		switch mut.Op {
		case OpSet:
			err = m.Set(ctx, uid, mut.Path, mut.Value)
		case OpPush:
			err = m.Push(ctx, uid, mut.Path, mut.Value)
		case OpPull:
			err = m.Pull(ctx, uid, mut.Path, mut.Match)
		default:
			err = fmt.Errorf("unknown mutation op %q", mut.Op)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ DocStore = (*MemStore)(nil)

// navigate walks (and lazily creates) parent objects, mirroring the parent
// creation of the Postgres jsonb_set chain. Callers hold the lock.
func (m *MemStore) navigate(uid string, segs []string) (map[string]interface{}, error) {
	doc, ok := m.docs[uid]
	if !ok {
		doc = make(map[string]interface{})
		m.docs[uid] = doc
	}
	node := doc
	for _, s := range segs {
		next, ok := node[s].(map[string]interface{})
		if !ok {
			if node[s] != nil {
				return nil, fmt.Errorf("path segment %q is not an object", s)
			}
			next = make(map[string]interface{})
			node[s] = next
		}
		node = next
	}
	return node, nil
}

// contains reports whether elem carries every key/value pair of want,
// matching the jsonb @> containment used by the Postgres Pull.
func contains(elem interface{}, want map[string]interface{}) bool {
	obj, ok := elem.(map[string]interface{})
	if !ok {
		return false
	}
	for k, v := range want {
		if !reflect.DeepEqual(obj[k], v) {
			return false
		}
	}
	return true
}

// roundTrip forces values through JSON so stored shapes match what the
// Postgres implementation hands back.
func roundTrip(v interface{}) interface{} {
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
