package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/yungbote/neurobridge-pathopt/internal/domain/learning"
	"github.com/yungbote/neurobridge-pathopt/internal/platform/logger"
	"github.com/yungbote/neurobridge-pathopt/internal/platform/neo4jdb"
)

// UpsertLearningObjectGraph writes rows as (:LearningObject) nodes with
// (:LearningObject)-[:REQUIRES]->(:LearningObject) edges. The full
// prerequisite list is also kept on the node as prerequisite_ids, so
// references to objects that are not (yet) in the graph survive a sync.
func UpsertLearningObjectGraph(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, rows []*types.LearningObject) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	nodes := make([]map[string]any, 0, len(rows))
	rels := make([]map[string]any, 0, len(rows))
	for _, lo := range rows {
		if lo == nil || lo.ID == "" {
			continue
		}
		prereqs, err := lo.PrerequisiteIDs()
		if err != nil {
			return fmt.Errorf("neo4j learning object sync: %s: %w", lo.ID, err)
		}
		if prereqs == nil {
			prereqs = []string{}
		}
		nodes = append(nodes, map[string]any{
			"id":               lo.ID,
			"module":           lo.ModuleTitle,
			"estimated_time":   int64(lo.EstimatedTime),
			"prerequisite_ids": prereqs,
			"synced_at":        now,
		})
		for _, pre := range prereqs {
			rels = append(rels, map[string]any{"from_id": lo.ID, "to_id": pre})
		}
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	// Best-effort; may fail for restricted users.
	if res, err := session.Run(ctx, `CREATE CONSTRAINT learning_object_id_unique IF NOT EXISTS FOR (lo:LearningObject) REQUIRE lo.id IS UNIQUE`, nil); err != nil {
		if log != nil {
			log.Warn("neo4j schema init failed (continuing)", "error", err)
		}
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(nodes) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $nodes AS n
MERGE (lo:LearningObject {id: n.id})
SET lo += n
WITH lo
OPTIONAL MATCH (lo)-[old:REQUIRES]->()
DELETE old
`, map[string]any{"nodes": nodes})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		if len(rels) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $rels AS r
MATCH (a:LearningObject {id: r.from_id})
MATCH (b:LearningObject {id: r.to_id})
MERGE (a)-[:REQUIRES]->(b)
`, map[string]any{"rels": rels})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j learning object sync: %w", err)
	}
	if log != nil {
		log.Debug("neo4j learning objects synced", "nodes", len(nodes), "edges", len(rels))
	}
	return nil
}
