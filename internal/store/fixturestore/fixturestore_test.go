package fixturestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slicecore/internal/model"
)

func smallFixture() *Fixture {
	return &Fixture{
		Versions: map[string]string{"repo1": "v1"},
		Symbols: []fixtureSymbol{
			{SymbolID: "A", FileID: "f1", RepoID: "repo1", Kind: "function", Name: "DoThing", Exported: true},
			{SymbolID: "B", FileID: "f1", RepoID: "repo1", Kind: "function", Name: "helper"},
		},
		Edges: []fixtureEdge{
			{From: "A", To: "B", Type: "call", Weight: 1.0, Confidence: 1.0},
		},
		Files: []model.File{{FileID: "f1", RelPath: "pkg/thing.go", Language: "go"}},
		Metrics: map[string]model.Metrics{
			"A": {FanIn: 2, FanOut: 1},
		},
	}
}

func TestGetSymbolsByRepo(t *testing.T) {
	s := FromFixture(smallFixture())
	syms, err := s.GetSymbolsByRepo(context.Background(), "repo1")
	require.NoError(t, err)
	assert.Len(t, syms, 2)
}

func TestGetEdgesByRepoSkipsOtherRepos(t *testing.T) {
	s := FromFixture(smallFixture())
	edges, err := s.GetEdgesByRepo(context.Background(), "repo1")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "A", edges[0].FromSymbolID)

	edges, err = s.GetEdgesByRepo(context.Background(), "unknown-repo")
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestGetLatestVersionUnknownRepo(t *testing.T) {
	s := FromFixture(smallFixture())
	v, err := s.GetLatestVersion(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestSearchSymbolsLiteCaseInsensitive(t *testing.T) {
	s := FromFixture(smallFixture())
	out, err := s.SearchSymbolsLite(context.Background(), "repo1", "thing", 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "A", out[0].SymbolID)
}
