package metadata

import (
	"context"
	"errors"
	"testing"

	pkgerrors "github.com/yungbote/neurobridge-pathopt/internal/pkg/errors"
)

func TestStoreGetAndList(t *testing.T) {
	s, err := NewStoreFromRecords([]Record{
		{ID: " root ", EstimatedTime: 10, Prerequisites: []string{"leaf", "leaf", " "}},
		{ID: "leaf", EstimatedTime: 5},
	}, nil)
	if err != nil {
		t.Fatalf("NewStoreFromRecords: %v", err)
	}
	ctx := context.Background()

	got, err := s.Get(ctx, "root")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Prerequisites) != 1 || got.Prerequisites[0] != "leaf" {
		t.Fatalf("expected normalized prerequisites, got %v", got.Prerequisites)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var ids []string
	if err := s.List(ctx, func(r Record) error {
		ids = append(ids, r.ID)
		return nil
	}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 2 || ids[0] != "root" || ids[1] != "leaf" {
		t.Fatalf("expected insertion order, got %v", ids)
	}

	stop := errors.New("stop")
	calls := 0
	if err := s.List(ctx, func(Record) error { calls++; return stop }); !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("expected List to stop at first error: err=%v calls=%d", err, calls)
	}
}

func TestStoreRejectsBadRecords(t *testing.T) {
	cases := map[string][]Record{
		"missing id":    {{ID: "", EstimatedTime: 1}},
		"zero time":     {{ID: "a", EstimatedTime: 0}},
		"negative time": {{ID: "a", EstimatedTime: -4}},
		"duplicate id":  {{ID: "a", EstimatedTime: 1}, {ID: "a", EstimatedTime: 2}},
	}
	for name, records := range cases {
		if _, err := NewStoreFromRecords(records, nil); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestStoreRefreshKeepsSnapshotOnFailure(t *testing.T) {
	ctx := context.Background()
	calls := 0
	s := NewStore(func(context.Context) ([]Record, error) {
		calls++
		switch calls {
		case 1:
			return []Record{{ID: "a", EstimatedTime: 1}}, nil
		case 2:
			return nil, errors.New("source unavailable")
		default:
			return []Record{{ID: "a", EstimatedTime: 1}, {ID: "a", EstimatedTime: 1}}, nil
		}
	}, nil)

	if s.Len() != 0 {
		t.Fatalf("expected empty store before refresh")
	}
	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", s.Len())
	}
	if err := s.Refresh(ctx); err == nil {
		t.Fatalf("expected loader error")
	}
	if err := s.Refresh(ctx); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if _, err := s.Get(ctx, "a"); err != nil {
		t.Fatalf("previous snapshot should survive failed refreshes: %v", err)
	}
}

func TestStoreSnapshotIsFrozen(t *testing.T) {
	ctx := context.Background()
	s, err := NewStoreFromRecords([]Record{{ID: "a", EstimatedTime: 1}}, nil)
	if err != nil {
		t.Fatalf("NewStoreFromRecords: %v", err)
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if err := s.Replace([]Record{{ID: "b", EstimatedTime: 2}}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if _, err := snap.Get(ctx, "a"); err != nil {
		t.Fatalf("snapshot should still see a: %v", err)
	}
	if _, err := snap.Get(ctx, "b"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("snapshot should not see b, got %v", err)
	}
	if _, err := s.Get(ctx, "b"); err != nil {
		t.Fatalf("store should see b: %v", err)
	}
}

func TestStoreListHonoursCancellation(t *testing.T) {
	s, err := NewStoreFromRecords([]Record{{ID: "a", EstimatedTime: 1}}, nil)
	if err != nil {
		t.Fatalf("NewStoreFromRecords: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.List(ctx, func(Record) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
