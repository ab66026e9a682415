package metadata

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/neurobridge-pathopt/internal/platform/logger"
	"github.com/yungbote/neurobridge-pathopt/internal/platform/neo4jdb"
)

// Prerequisites come from prerequisite_ids on the node, which keeps import
// order and includes references whose target node was never written. Nodes
// written without that property fall back to their REQUIRES edges.
const (
	neo4jGetCypher = `
MATCH (lo:LearningObject {id: $id})
OPTIONAL MATCH (lo)-[:REQUIRES]->(p:LearningObject)
WITH lo, p ORDER BY p.id
WITH lo, collect(p.id) AS edges
RETURN lo.id AS id, lo.estimated_time AS estimated_time, lo.module AS module,
       coalesce(lo.prerequisite_ids, edges) AS prerequisites
`
	neo4jListCypher = `
MATCH (lo:LearningObject)
OPTIONAL MATCH (lo)-[:REQUIRES]->(p:LearningObject)
WITH lo, p ORDER BY lo.id, p.id
WITH lo, collect(p.id) AS edges
RETURN lo.id AS id, lo.estimated_time AS estimated_time, lo.module AS module,
       coalesce(lo.prerequisite_ids, edges) AS prerequisites
ORDER BY id
`
)

type Neo4jProvider struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewNeo4jProvider(client *neo4jdb.Client, log *logger.Logger) *Neo4jProvider {
	return &Neo4jProvider{client: client, log: logger.OrNop(log).With("service", "Neo4jMetadataProvider")}
}

func (p *Neo4jProvider) session(ctx context.Context) neo4j.SessionWithContext {
	return p.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: p.client.Database,
	})
}

func (p *Neo4jProvider) Get(ctx context.Context, id string) (Record, error) {
	if p.client == nil || p.client.Driver == nil {
		return Record{}, fmt.Errorf("neo4j metadata provider: client not configured")
	}
	session := p.session(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, neo4jGetCypher, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			if err := res.Err(); err != nil {
				return nil, err
			}
			return nil, nil
		}
		rec, err := recordFromNeo4j(res.Record())
		if err != nil {
			return nil, err
		}
		return &rec, nil
	})
	if err != nil {
		return Record{}, fmt.Errorf("get learning object %q: %w", id, err)
	}
	rec, _ := out.(*Record)
	if rec == nil {
		return Record{}, notFound(id)
	}
	return *rec, nil
}

func (p *Neo4jProvider) List(ctx context.Context, fn func(Record) error) error {
	if p.client == nil || p.client.Driver == nil {
		return fmt.Errorf("neo4j metadata provider: client not configured")
	}
	session := p.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, neo4jListCypher, nil)
		if err != nil {
			return nil, err
		}
		for res.Next(ctx) {
			rec, err := recordFromNeo4j(res.Record())
			if err != nil {
				return nil, err
			}
			if err := fn(rec); err != nil {
				return nil, err
			}
		}
		return nil, res.Err()
	})
	if err != nil {
		return fmt.Errorf("list learning objects: %w", err)
	}
	return nil
}

func recordFromNeo4j(r *neo4j.Record) (Record, error) {
	if r == nil {
		return Record{}, fmt.Errorf("empty neo4j record")
	}
	var rec Record
	if v, ok := r.Get("id"); ok {
		rec.ID, _ = v.(string)
	}
	if v, ok := r.Get("estimated_time"); ok {
		switch t := v.(type) {
		case int64:
			rec.EstimatedTime = int(t)
		case float64:
			rec.EstimatedTime = int(t)
		}
	}
	if v, ok := r.Get("module"); ok {
		rec.Module, _ = v.(string)
	}
	if v, ok := r.Get("prerequisites"); ok {
		if list, ok := v.([]any); ok {
			for _, item := range list {
				if s, ok := item.(string); ok {
					rec.Prerequisites = append(rec.Prerequisites, s)
				}
			}
		}
	}
	return normalizeRecord(rec), nil
}
