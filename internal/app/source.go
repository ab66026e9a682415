package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/neurobridge-pathopt/internal/data/db"
)

// SourceKind names where learning-object metadata is read from.
type SourceKind string

const (
	SourceFile     SourceKind = "file"
	SourcePostgres SourceKind = "postgres"
	SourceSQLite   SourceKind = "sqlite"
	SourceNeo4j    SourceKind = "neo4j"
)

type SourceConfigErrorCode string

const (
	SourceConfigErrorInvalidKind  SourceConfigErrorCode = "invalid_source_kind"
	SourceConfigErrorMissingPath  SourceConfigErrorCode = "missing_source_path"
	SourceConfigErrorMissingNeo4j SourceConfigErrorCode = "missing_neo4j_uri"
)

type SourceConfigError struct {
	Code  SourceConfigErrorCode
	Kind  SourceKind
	Cause error
}

func (e *SourceConfigError) Error() string {
	if e == nil {
		return "invalid metadata source config"
	}
	return fmt.Sprintf("invalid metadata source config (code=%s kind=%q): %v", e.Code, e.Kind, e.Cause)
}

func (e *SourceConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ResolvedSource is a validated source selection.
type ResolvedSource struct {
	Kind SourceKind
	// FilePath is set for SourceFile.
	FilePath string
	// Database is set for SourcePostgres and SourceSQLite.
	Database db.Config
}

func resolveSource(cfg Config) (ResolvedSource, error) {
	kind := SourceKind(strings.ToLower(strings.TrimSpace(string(cfg.Source.Kind))))
	path := strings.TrimSpace(cfg.Source.Path)
	switch kind {
	case SourceFile, "":
		if path == "" {
			return ResolvedSource{}, &SourceConfigError{
				Code:  SourceConfigErrorMissingPath,
				Kind:  SourceFile,
				Cause: errors.New("file source requires a corpus path"),
			}
		}
		return ResolvedSource{Kind: SourceFile, FilePath: path}, nil
	case SourcePostgres:
		dbc := cfg.Database
		dbc.Driver = db.DriverPostgres
		return ResolvedSource{Kind: SourcePostgres, Database: dbc}, nil
	case SourceSQLite:
		dbc := cfg.Database
		dbc.Driver = db.DriverSQLite
		if path != "" {
			dbc.DSN = path
		}
		if strings.TrimSpace(dbc.DSN) == "" {
			return ResolvedSource{}, &SourceConfigError{
				Code:  SourceConfigErrorMissingPath,
				Kind:  SourceSQLite,
				Cause: errors.New("sqlite source requires a database path"),
			}
		}
		return ResolvedSource{Kind: SourceSQLite, Database: dbc}, nil
	case SourceNeo4j:
		if strings.TrimSpace(cfg.Neo4j.URI) == "" {
			return ResolvedSource{}, &SourceConfigError{
				Code:  SourceConfigErrorMissingNeo4j,
				Kind:  SourceNeo4j,
				Cause: errors.New("set NEO4J_URI or neo4j.uri"),
			}
		}
		return ResolvedSource{Kind: SourceNeo4j}, nil
	default:
		return ResolvedSource{}, &SourceConfigError{
			Code:  SourceConfigErrorInvalidKind,
			Kind:  kind,
			Cause: fmt.Errorf("want one of %s, %s, %s, %s", SourceFile, SourcePostgres, SourceSQLite, SourceNeo4j),
		}
	}
}
