package beam

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slicecore/internal/graph"
	"slicecore/internal/model"
	"slicecore/internal/scorer"
	"slicecore/internal/seeds"
	"slicecore/internal/store/fixturestore"
)

func loadChainFixture(t *testing.T) *graph.Graph {
	t.Helper()
	yaml := `
versions:
  repo1: v1
symbols:
  - {symbolId: A, fileId: f1, repoId: repo1, kind: function, name: A, exported: true}
  - {symbolId: B, fileId: f1, repoId: repo1, kind: function, name: B, exported: true}
  - {symbolId: C, fileId: f1, repoId: repo1, kind: function, name: C, exported: true}
  - {symbolId: D, fileId: f1, repoId: repo1, kind: function, name: D, exported: true}
  - {symbolId: E, fileId: f1, repoId: repo1, kind: function, name: E, exported: true}
edges:
  - {from: A, to: B, type: call, weight: 1.0, confidence: 1.0}
  - {from: B, to: C, type: call, weight: 1.0, confidence: 1.0}
  - {from: C, to: D, type: call, weight: 1.0, confidence: 1.0}
  - {from: D, to: E, type: call, weight: 1.0, confidence: 1.0}
files:
  - {fileId: f1, relPath: pkg/chain.go, language: go}
`
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	s, err := fixturestore.Load(path)
	require.NoError(t, err)
	g, err := graph.Load(context.Background(), s, "repo1")
	require.NoError(t, err)
	return g
}

func TestBudgetTruncationStopsAtCardCap(t *testing.T) {
	g := loadChainFixture(t)
	req := model.SliceRequest{
		RepoID:       "repo1",
		EntrySymbols: []string{"A"},
		Budget:       model.Budget{MaxCards: 2, MaxEstimatedTokens: 10000},
		MinConfidence: 0.5,
	}
	start := []model.ResolvedStartNode{{SymbolID: "A", Source: model.SourceEntrySymbol}}

	result := Run(g, start, req, DefaultConfig(), scorer.Context{}, nil, nil)

	assert.Equal(t, []string{"A", "B"}, result.AdmittedOrder)
	assert.True(t, result.Truncated)
	assert.NotEmpty(t, result.FrontierTop)
}

func TestLowConfidenceEdgeDropped(t *testing.T) {
	yaml := `
versions:
  repo1: v1
symbols:
  - {symbolId: A, fileId: f1, repoId: repo1, kind: function, name: A, exported: true}
  - {symbolId: B, fileId: f1, repoId: repo1, kind: function, name: B, exported: true}
edges:
  - {from: A, to: B, type: call, weight: 1.0, confidence: 0.4}
files:
  - {fileId: f1, relPath: pkg/chain.go, language: go}
`
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	s, err := fixturestore.Load(path)
	require.NoError(t, err)
	g, err := graph.Load(context.Background(), s, "repo1")
	require.NoError(t, err)

	req := model.SliceRequest{
		RepoID:        "repo1",
		EntrySymbols:  []string{"A"},
		Budget:        model.Budget{MaxCards: 10, MaxEstimatedTokens: 10000},
		MinConfidence: 0.5,
	}
	start := []model.ResolvedStartNode{{SymbolID: "A", Source: model.SourceEntrySymbol}}

	result := Run(g, start, req, DefaultConfig(), scorer.Context{}, nil, nil)

	assert.Equal(t, []string{"A"}, result.AdmittedOrder)
	assert.GreaterOrEqual(t, result.DroppedEdges, 1)
}

func TestDeterminismAcrossIndependentRuns(t *testing.T) {
	g := loadChainFixture(t)
	req := model.SliceRequest{
		RepoID:        "repo1",
		EntrySymbols:  []string{"A"},
		Budget:        model.Budget{MaxCards: 3, MaxEstimatedTokens: 10000},
		MinConfidence: 0.5,
	}
	start := []model.ResolvedStartNode{{SymbolID: "A", Source: model.SourceEntrySymbol}}

	r1 := Run(g, start, req, DefaultConfig(), scorer.Context{}, nil, nil)
	r2 := Run(g, start, req, DefaultConfig(), scorer.Context{}, nil, nil)

	assert.Equal(t, r1.AdmittedOrder, r2.AdmittedOrder)
	assert.Equal(t, r1.TotalTokens, r2.TotalTokens)
	assert.Equal(t, r1.Truncated, r2.Truncated)
}

func TestClampConfidenceTreatsNegativeAndNaNAsOne(t *testing.T) {
	assert.Equal(t, 1.0, clampConfidence(-0.3))
	assert.Equal(t, 1.0, clampConfidence(1.4))
	nan := func() float64 { x := 0.0; return x / x }()
	assert.Equal(t, 1.0, clampConfidence(nan))
}

func TestEstimateTokensClampsToMax(t *testing.T) {
	huge := make([]model.Param, 200)
	for i := range huge {
		huge[i] = model.Param{Name: "averylongparametername", Type: "averylongtypename"}
	}
	sym := model.Symbol{
		Name:      "X",
		Signature: &model.Signature{Params: huge},
		Summary:   string(make([]byte, 5000)),
	}
	assert.Equal(t, SymbolTokenMax, estimateTokens(sym, 1000))
}

func TestNeighborScoringUsesMaterializedFileAndMetrics(t *testing.T) {
	yaml := `
versions:
  repo1: v1
symbols:
  - {symbolId: A, fileId: f1, repoId: repo1, kind: function, name: A, exported: true}
  - {symbolId: B, fileId: f1, repoId: repo1, kind: function, name: B, exported: true}
edges:
  - {from: A, to: B, type: call, weight: 1.0, confidence: 1.0}
files:
  - {fileId: f1, relPath: pkg/chain.go, language: go}
`
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	s, err := fixturestore.Load(path)
	require.NoError(t, err)
	g, err := graph.Load(context.Background(), s, "repo1")
	require.NoError(t, err)

	req := model.SliceRequest{
		RepoID:        "repo1",
		EntrySymbols:  []string{"A"},
		Budget:        model.Budget{MaxCards: 10, MaxEstimatedTokens: 10000},
		MinConfidence: 0.1,
	}
	start := []model.ResolvedStartNode{{SymbolID: "A", Source: model.SourceEntrySymbol}}
	cfg := Config{EdgeWeights: DefaultEdgeWeights(), ScoreThreshold: 0.3, MaxFrontier: MaxFrontier}

	withoutMetrics := Run(g, start, req, cfg, scorer.Context{}, nil, nil)
	assert.Equal(t, []string{"A"}, withoutMetrics.AdmittedOrder, "B's score without hotness should fall below the threshold")

	hotMetrics := map[string]model.Metrics{"B": {FanIn: 100, FanOut: 50, Churn30d: 20}}
	filePathByID := map[string]string{"f1": "pkg/chain.go"}
	withMetrics := Run(g, start, req, cfg, scorer.Context{}, filePathByID, hotMetrics)
	assert.Equal(t, []string{"A", "B"}, withMetrics.AdmittedOrder, "materialized hotness metrics should admit B once they push it over the threshold")
}

func TestPriorityOfAndInitialScoreExistForAllSeedSources(t *testing.T) {
	for _, src := range []model.StartNodeSource{
		model.SourceEntrySymbol, model.SourceEntrySibling, model.SourceEntryFirstHop,
		model.SourceStackTrace, model.SourceFailingTestPath, model.SourceEditedFile, model.SourceTaskText,
	} {
		_, okP := seeds.PriorityOf[src]
		_, okS := seeds.InitialScore[src]
		assert.True(t, okP)
		assert.True(t, okS)
	}
}
