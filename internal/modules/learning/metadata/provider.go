// Package metadata exposes read-only learning-object metadata (study time and
// direct prerequisites) to the path optimizer, backed by files, SQL, Neo4j or
// a Redis read-through cache.
package metadata

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/yungbote/neurobridge-pathopt/internal/pkg/errors"
)

// Record is the optimizer's view of one learning object.
type Record struct {
	ID            string   `json:"id" yaml:"id"`
	EstimatedTime int      `json:"estimated_time" yaml:"estimated_time"`
	Prerequisites []string `json:"prerequisites" yaml:"prerequisites"`
	// Module is informational; the optimizer ignores it.
	Module string `json:"module,omitempty" yaml:"module,omitempty"`
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("learning object: missing id: %w", pkgerrors.ErrInvalidArgument)
	}
	if r.EstimatedTime <= 0 {
		return fmt.Errorf("learning object %q: estimated_time must be positive, got %d: %w", r.ID, r.EstimatedTime, pkgerrors.ErrInvalidArgument)
	}
	return nil
}

// Provider looks up learning-object metadata. Get returns an error wrapping
// errors.ErrNotFound when no record exists. List visits every record and
// stops at the first error returned by fn.
type Provider interface {
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, fn func(Record) error) error
}

// Snapshotter is implemented by providers that can hand out a frozen view so
// that all lookups within one optimization call agree.
type Snapshotter interface {
	Snapshot(ctx context.Context) (Provider, error)
}

func notFound(id string) error {
	return fmt.Errorf("learning object %q: %w", id, pkgerrors.ErrNotFound)
}

// normalizeRecord trims ids and collapses duplicate prerequisites, keeping the
// first occurrence.
func normalizeRecord(r Record) Record {
	r.ID = strings.TrimSpace(r.ID)
	r.Module = strings.TrimSpace(r.Module)
	if len(r.Prerequisites) == 0 {
		r.Prerequisites = nil
		return r
	}
	seen := make(map[string]bool, len(r.Prerequisites))
	out := make([]string, 0, len(r.Prerequisites))
	for _, p := range r.Prerequisites {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	r.Prerequisites = out
	return r
}
