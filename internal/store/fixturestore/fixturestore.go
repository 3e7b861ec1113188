// Package fixturestore is an in-memory store.Store backed by a YAML
// fixture file, used by tests and the demo CLI in place of a real
// indexer-backed store.
package fixturestore

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"slicecore/internal/model"
)

// Fixture is the YAML shape loaded from disk: one version per repo,
// plus the full symbol/edge/file/metrics universe.
type Fixture struct {
	Versions map[string]string         `yaml:"versions"`
	Symbols  []fixtureSymbol           `yaml:"symbols"`
	Edges    []fixtureEdge             `yaml:"edges"`
	Files    []model.File              `yaml:"files"`
	Metrics  map[string]model.Metrics  `yaml:"metrics"`
}

type fixtureSymbol struct {
	SymbolID       string            `yaml:"symbolId"`
	FileID         string            `yaml:"fileId"`
	RepoID         string            `yaml:"repoId"`
	Kind           string            `yaml:"kind"`
	Name           string            `yaml:"name"`
	Exported       bool              `yaml:"exported"`
	Visibility     string            `yaml:"visibility"`
	Range          model.Range       `yaml:"range"`
	ASTFingerprint string            `yaml:"astFingerprint"`
	Signature      *model.Signature  `yaml:"signature"`
	Summary        string            `yaml:"summary"`
	Invariants     []string          `yaml:"invariants"`
	SideEffects    []string          `yaml:"sideEffects"`
}

type fixtureEdge struct {
	From       string  `yaml:"from"`
	To         string  `yaml:"to"`
	Type       string  `yaml:"type"`
	Weight     float64 `yaml:"weight"`
	Confidence float64 `yaml:"confidence"`
}

// Store is an in-memory, read-only store.Store loaded from a Fixture.
type Store struct {
	versions map[string]string
	symbols  map[string]model.Symbol
	byRepo   map[string][]string
	edges    []model.Edge
	files    map[string]model.File
	metrics  map[string]model.Metrics
}

// Load reads a YAML fixture file from path and builds a Store.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixturestore: read %s: %w", path, err)
	}
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("fixturestore: parse %s: %w", path, err)
	}
	return FromFixture(&fx), nil
}

// FromFixture builds a Store directly from an in-memory Fixture,
// useful for constructing small graphs inline in tests.
func FromFixture(fx *Fixture) *Store {
	s := &Store{
		versions: map[string]string{},
		symbols:  map[string]model.Symbol{},
		byRepo:   map[string][]string{},
		files:    map[string]model.File{},
		metrics:  map[string]model.Metrics{},
	}
	for k, v := range fx.Versions {
		s.versions[k] = v
	}
	for _, fs := range fx.Symbols {
		sym := model.Symbol{
			SymbolID:       fs.SymbolID,
			FileID:         fs.FileID,
			RepoID:         fs.RepoID,
			Kind:           model.SymbolKind(fs.Kind),
			Name:           fs.Name,
			Exported:       fs.Exported,
			Visibility:     model.Visibility(fs.Visibility),
			Range:          fs.Range,
			ASTFingerprint: fs.ASTFingerprint,
			Signature:      fs.Signature,
			Summary:        fs.Summary,
			Invariants:     fs.Invariants,
			SideEffects:    fs.SideEffects,
		}
		s.symbols[sym.SymbolID] = sym
		s.byRepo[sym.RepoID] = append(s.byRepo[sym.RepoID], sym.SymbolID)
	}
	for _, fe := range fx.Edges {
		s.edges = append(s.edges, model.Edge{
			FromSymbolID: fe.From,
			ToSymbolID:   fe.To,
			Type:         model.EdgeType(fe.Type),
			Weight:       fe.Weight,
			Confidence:   fe.Confidence,
		})
	}
	for _, f := range fx.Files {
		s.files[f.FileID] = f
	}
	for k, v := range fx.Metrics {
		s.metrics[k] = v
	}
	return s
}

func (s *Store) GetSymbolsByRepo(_ context.Context, repoID string) ([]model.Symbol, error) {
	ids := s.byRepo[repoID]
	out := make([]model.Symbol, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.symbols[id])
	}
	return out, nil
}

func (s *Store) GetEdgesByRepo(_ context.Context, repoID string) ([]model.Edge, error) {
	var out []model.Edge
	for _, e := range s.edges {
		from, ok := s.symbols[e.FromSymbolID]
		if ok && from.RepoID == repoID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) GetSymbolsByIDs(_ context.Context, ids []string) ([]model.Symbol, error) {
	out := make([]model.Symbol, 0, len(ids))
	for _, id := range ids {
		if sym, ok := s.symbols[id]; ok {
			out = append(out, sym)
		}
	}
	return out, nil
}

func (s *Store) GetFilesByIDs(_ context.Context, ids []string) ([]model.File, error) {
	out := make([]model.File, 0, len(ids))
	for _, id := range ids {
		if f, ok := s.files[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) GetMetricsBySymbolIDs(_ context.Context, ids []string) (map[string]model.Metrics, error) {
	out := make(map[string]model.Metrics, len(ids))
	for _, id := range ids {
		if m, ok := s.metrics[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (s *Store) GetEdgesFromSymbols(_ context.Context, ids []string) ([]model.Edge, error) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	var out []model.Edge
	for _, e := range s.edges {
		if _, ok := set[e.FromSymbolID]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) GetFilesByRepoLite(_ context.Context, repoID string) ([]model.File, error) {
	seen := map[string]struct{}{}
	var out []model.File
	for _, id := range s.byRepo[repoID] {
		fileID := s.symbols[id].FileID
		if _, ok := seen[fileID]; ok {
			continue
		}
		seen[fileID] = struct{}{}
		if f, ok := s.files[fileID]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) GetSymbolIDsByFile(_ context.Context, fileID string) ([]string, error) {
	var out []string
	for id, sym := range s.symbols {
		if sym.FileID == fileID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) SearchSymbolsLite(_ context.Context, repoID, token string, limit int) ([]model.Symbol, error) {
	token = strings.ToLower(token)
	var out []model.Symbol
	for _, id := range s.byRepo[repoID] {
		sym := s.symbols[id]
		if strings.Contains(strings.ToLower(sym.Name), token) {
			out = append(out, sym)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) GetLatestVersion(_ context.Context, repoID string) (string, error) {
	return s.versions[repoID], nil
}
