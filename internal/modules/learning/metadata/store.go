package metadata

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/yungbote/neurobridge-pathopt/internal/observability"
	"github.com/yungbote/neurobridge-pathopt/internal/platform/logger"
)

// Loader produces the full corpus for a Store refresh.
type Loader func(ctx context.Context) ([]Record, error)

// Store is an in-memory provider. It is constructed once, read concurrently,
// and only changes through an explicit Refresh or Replace, which swap in a
// new immutable snapshot.
type Store struct {
	load Loader
	log  *logger.Logger
	cur  atomic.Pointer[snapshot]
}

type snapshot struct {
	byID  map[string]Record
	order []string
}

func NewStore(load Loader, log *logger.Logger) *Store {
	s := &Store{load: load, log: logger.OrNop(log).With("service", "MetadataStore")}
	s.cur.Store(&snapshot{byID: map[string]Record{}})
	return s
}

// NewStoreFromRecords builds a Store with no loader; Refresh is a no-op.
func NewStoreFromRecords(records []Record, log *logger.Logger) (*Store, error) {
	s := NewStore(nil, log)
	if err := s.Replace(records); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh reloads the corpus from the loader. On failure the previous
// snapshot stays in place.
func (s *Store) Refresh(ctx context.Context) error {
	if s.load == nil {
		return nil
	}
	records, err := s.load(ctx)
	if err != nil {
		return fmt.Errorf("metadata store refresh: %w", err)
	}
	if err := s.Replace(records); err != nil {
		return err
	}
	observability.Current().ObserveStoreRefresh(s.Len(), time.Now())
	s.log.Info("metadata store refreshed", "records", s.Len())
	return nil
}

func (s *Store) Replace(records []Record) error {
	snap, err := newSnapshot(records)
	if err != nil {
		return err
	}
	s.cur.Store(snap)
	return nil
}

func (s *Store) Len() int { return len(s.cur.Load().order) }

func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	return s.cur.Load().Get(ctx, id)
}

func (s *Store) List(ctx context.Context, fn func(Record) error) error {
	return s.cur.Load().List(ctx, fn)
}

func (s *Store) Snapshot(_ context.Context) (Provider, error) {
	return s.cur.Load(), nil
}

func newSnapshot(records []Record) (*snapshot, error) {
	snap := &snapshot{
		byID:  make(map[string]Record, len(records)),
		order: make([]string, 0, len(records)),
	}
	for _, r := range records {
		r = normalizeRecord(r)
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := snap.byID[r.ID]; dup {
			return nil, fmt.Errorf("learning object %q: duplicate id", r.ID)
		}
		snap.byID[r.ID] = r
		snap.order = append(snap.order, r.ID)
	}
	return snap, nil
}

func (s *snapshot) Get(_ context.Context, id string) (Record, error) {
	r, ok := s.byID[id]
	if !ok {
		return Record{}, notFound(id)
	}
	return r, nil
}

func (s *snapshot) List(ctx context.Context, fn func(Record) error) error {
	for _, id := range s.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(s.byID[id]); err != nil {
			return err
		}
	}
	return nil
}
