package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Store is the Postgres-backed document store. Each user document lives in
// one JSONB column keyed by uid; every mutation compiles to a single SQL
// statement so it is atomic on its own.
type Store struct {
	DB *sql.DB
}

// NewWithDSN opens a Postgres connection and verifies it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

// Find returns the requested top-level fields of the uid's document, or nil
// when the document does not exist.
func (s *Store) Find(ctx context.Context, uid string, projection []string) (map[string]interface{}, error) {
	var raw []byte
	var updatedAt time.Time
	err := s.DB.QueryRowContext(ctx, `SELECT doc, updated_at FROM profiles WHERE uid = $1`, uid).Scan(&raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", uid, err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode doc %s: %w", uid, err)
	}
	doc["updated_at"] = updatedAt.UTC().Format(time.RFC3339)
	return project(doc, projection), nil
}

// Set writes value at path, creating the document and any missing parent
// objects.
func (s *Store) Set(ctx context.Context, uid, path string, value interface{}) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value for %s: %w", path, err)
	}
	insertExpr := setExpr(`'{}'::jsonb`, segs, `$2::jsonb`)
	updateExpr := setExpr(`profiles.doc`, segs, `$2::jsonb`)
	q := fmt.Sprintf(`INSERT INTO profiles (uid, doc, updated_at) VALUES ($1, %s, NOW())
ON CONFLICT (uid) DO UPDATE SET doc = %s, updated_at = NOW()`, insertExpr, updateExpr)
	if _, err := s.DB.ExecContext(ctx, q, uid, raw); err != nil {
		return fmt.Errorf("set %s.%s: %w", uid, path, err)
	}
	return nil
}

// Push appends value to the array at path, creating the array (and any
// missing parents) if absent.
func (s *Store) Push(ctx context.Context, uid, path string, value interface{}) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value for %s: %w", path, err)
	}
	appendTo := func(base string) string {
		return fmt.Sprintf(`COALESCE((%s #> '%s'), '[]'::jsonb) || $2::jsonb`, base, pgPath(segs))
	}
	insertExpr := setExpr(`'{}'::jsonb`, segs, appendTo(`'{}'::jsonb`))
	updateExpr := setExpr(`profiles.doc`, segs, appendTo(`profiles.doc`))
	q := fmt.Sprintf(`INSERT INTO profiles (uid, doc, updated_at) VALUES ($1, %s, NOW())
ON CONFLICT (uid) DO UPDATE SET doc = %s, updated_at = NOW()`, insertExpr, updateExpr)
	if _, err := s.DB.ExecContext(ctx, q, uid, raw); err != nil {
		return fmt.Errorf("push %s.%s: %w", uid, path, err)
	}
	return nil
}

// Pull removes elements of the array at path that contain the match object.
// Missing documents or paths are a no-op.
func (s *Store) Pull(ctx context.Context, uid, path string, match map[string]interface{}) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(match)
	if err != nil {
		return fmt.Errorf("encode match for %s: %w", path, err)
	}
	p := pgPath(segs)
	q := fmt.Sprintf(`UPDATE profiles
SET doc = jsonb_set(doc, '%s',
        COALESCE((SELECT jsonb_agg(e) FROM jsonb_array_elements(doc #> '%s') AS e WHERE NOT e @> $2::jsonb), '[]'::jsonb),
        false),
    updated_at = NOW()
WHERE uid = $1 AND (doc #> '%s') IS NOT NULL`, p, p, p)
	if _, err := s.DB.ExecContext(ctx, q, uid, raw); err != nil {
		return fmt.Errorf("pull %s.%s: %w", uid, path, err)
	}
	return nil
}

// UpdateMany applies the mutations in order. Each mutation is its own
// statement; a failed one is recorded and the rest still run.
func (s *Store) UpdateMany(ctx context.Context, uid string, muts []Mutation) error {
	var errs []error
	for _, m := range muts {
		var err error
		switch m.Op {
		case OpSet:
			err = s.Set(ctx, uid, m.Path, m.Value)
		case OpPush:
			err = s.Push(ctx, uid, m.Path, m.Value)
		case OpPull:
			err = s.Pull(ctx, uid, m.Path, m.Match)
		default:
			err = fmt.Errorf("unknown mutation op %q", m.Op)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ DocStore = (*Store)(nil)

// pgPath renders segments as a Postgres text-array path literal. Segments
// are validated by splitPath, so inlining them is safe.
func pgPath(segs []string) string {
	return "{" + strings.Join(segs, ",") + "}"
}

// setExpr builds a jsonb_set chain over base that creates every missing
// parent object before writing leafExpr at the full path.
func setExpr(base string, segs []string, leafExpr string) string {
	expr := base
	for i := 1; i < len(segs); i++ {
		prefix := pgPath(segs[:i])
		expr = fmt.Sprintf(`jsonb_set(%s, '%s', COALESCE((%s #> '%s'), '{}'::jsonb), true)`, expr, prefix, base, prefix)
	}
	return fmt.Sprintf(`jsonb_set(%s, '%s', %s, true)`, expr, pgPath(segs), leafExpr)
}

// project returns only the requested top-level fields; an empty projection
// returns the document as-is.
func project(doc map[string]interface{}, projection []string) map[string]interface{} {
	if len(projection) == 0 {
		return doc
	}
	out := make(map[string]interface{}, len(projection))
	for _, field := range projection {
		if v, ok := doc[field]; ok {
			out[field] = v
		}
	}
	return out
}
