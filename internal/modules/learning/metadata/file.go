package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileLoader returns a Loader that re-reads path on every refresh.
func FileLoader(path string) Loader {
	return func(_ context.Context) ([]Record, error) {
		return LoadFile(path)
	}
}

// LoadFile reads a corpus file. Supported layouts:
//   - .json: notebook cell export {module: [{metadata: {cell_details: {...}}}]}
//     or a flat array of records
//   - .yaml/.yml: {learning_objects: [{id, estimated_time, prerequisites}]}
func LoadFile(path string) ([]Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(raw)
	case ".json":
		return ParseJSON(raw)
	default:
		return nil, fmt.Errorf("read corpus %s: unsupported extension", path)
	}
}

type yamlCorpus struct {
	LearningObjects []Record `yaml:"learning_objects"`
}

func ParseYAML(raw []byte) ([]Record, error) {
	var c yamlCorpus
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse yaml corpus: %w", err)
	}
	return c.LearningObjects, nil
}

type cellExport map[string][]struct {
	Metadata struct {
		CellDetails cellDetails `json:"cell_details"`
	} `json:"metadata"`
}

type cellDetails struct {
	CellID        string   `json:"cell_ID"`
	EstimatedTime flexInt  `json:"cell_estimated_time"`
	Prereqs       []string `json:"cell_prereqs"`
}

// flexInt accepts both 12 and "12"; notebook exports are inconsistent.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("estimated time %q: %w", s, err)
		}
		*f = flexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

func ParseJSON(raw []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var out []Record
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("parse json corpus: %w", err)
		}
		return out, nil
	}

	var export cellExport
	if err := json.Unmarshal(trimmed, &export); err != nil {
		return nil, fmt.Errorf("parse cell export: %w", err)
	}
	modules := make([]string, 0, len(export))
	for m := range export {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	var out []Record
	for _, m := range modules {
		for _, cell := range export[m] {
			d := cell.Metadata.CellDetails
			if strings.TrimSpace(d.CellID) == "" {
				continue
			}
			out = append(out, Record{
				ID:            d.CellID,
				EstimatedTime: int(d.EstimatedTime),
				Prerequisites: d.Prereqs,
				Module:        m,
			})
		}
	}
	return out, nil
}
