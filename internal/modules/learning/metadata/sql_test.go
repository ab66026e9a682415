package metadata

import (
	"context"
	"errors"
	"testing"

	repolearning "github.com/yungbote/neurobridge-pathopt/internal/data/repos/learning"
	"github.com/yungbote/neurobridge-pathopt/internal/data/repos/testutil"
	pkgerrors "github.com/yungbote/neurobridge-pathopt/internal/pkg/errors"
)

func TestSQLProvider(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	testutil.SeedLearningObject(t, ctx, tx, "sql-root", 10, "sql-leaf", "sql-leaf", "sql-ghost")
	testutil.SeedLearningObject(t, ctx, tx, "sql-leaf", 5)

	p := NewSQLProvider(tx, repolearning.NewLearningObjectRepo(tx, testutil.Logger(t)), testutil.Logger(t))

	rec, err := p.Get(ctx, "sql-root")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.EstimatedTime != 10 || rec.Module != "fixtures" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(rec.Prerequisites) != 2 || rec.Prerequisites[0] != "sql-leaf" || rec.Prerequisites[1] != "sql-ghost" {
		t.Fatalf("expected deduplicated prerequisites, got %v", rec.Prerequisites)
	}

	for _, id := range []string{"sql-missing", ""} {
		if _, err := p.Get(ctx, id); !errors.Is(err, pkgerrors.ErrNotFound) {
			t.Fatalf("Get(%q): expected ErrNotFound, got %v", id, err)
		}
	}

	seen := map[string]bool{}
	if err := p.List(ctx, func(r Record) error {
		seen[r.ID] = true
		return nil
	}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if !seen["sql-root"] || !seen["sql-leaf"] {
		t.Fatalf("List missed rows: %v", seen)
	}
}

func TestRowsFromRecords(t *testing.T) {
	rows, err := RowsFromRecords([]Record{{ID: "a", EstimatedTime: 3, Prerequisites: []string{"b"}, Module: "m"}})
	if err != nil {
		t.Fatalf("RowsFromRecords: %v", err)
	}
	ids, err := rows[0].PrerequisiteIDs()
	if err != nil || len(ids) != 1 || ids[0] != "b" || rows[0].ModuleTitle != "m" {
		t.Fatalf("unexpected row %+v (ids=%v err=%v)", rows[0], ids, err)
	}
	if _, err := RowsFromRecords([]Record{{ID: "a"}}); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestSQLProviderBuildsRepoWhenNil(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	testutil.SeedLearningObject(t, ctx, tx, "sql-solo", 7)

	rec, err := NewSQLProvider(tx, nil, nil).Get(ctx, "sql-solo")
	if err != nil || rec.EstimatedTime != 7 || len(rec.Prerequisites) != 0 {
		t.Fatalf("Get: rec=%+v err=%v", rec, err)
	}
}
