package orchestrator

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slicecore/internal/config"
	"slicecore/internal/logging"
	"slicecore/internal/model"
	"slicecore/internal/slicecache"
	"slicecore/internal/store/fixturestore"
)

const sampleYAML = `
versions:
  repo1: v1
symbols:
  - {symbolId: A, fileId: f1, repoId: repo1, kind: function, name: HandleRequest, exported: true}
  - {symbolId: B, fileId: f1, repoId: repo1, kind: function, name: ValidateInput, exported: true}
  - {symbolId: C, fileId: f2, repoId: repo1, kind: function, name: WriteResponse, exported: true}
edges:
  - {from: A, to: B, type: call, weight: 1.0, confidence: 1.0}
  - {from: B, to: C, type: call, weight: 1.0, confidence: 1.0}
files:
  - {fileId: f1, relPath: pkg/handler.go, language: go}
  - {fileId: f2, relPath: pkg/response.go, language: go}
`

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))
	st, err := fixturestore.Load(path)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	logger := logging.NewLogger(logging.Config{Format: logging.JSONFormat, Level: logging.ErrorLevel, Output: io.Discard})
	cache := slicecache.New(32, time.Minute, false)
	return New(st, cfg, cache, logger)
}

func TestBuildSliceReturnsEntrySliceWithCards(t *testing.T) {
	o := newTestOrchestrator(t)
	req := model.SliceRequest{
		RepoID:       "repo1",
		EntrySymbols: []string{"A"},
		Budget:       model.Budget{MaxCards: 10, MaxEstimatedTokens: 5000},
		CardDetail:   model.DetailDeps,
	}

	slice, sliceErr := o.BuildSlice(context.Background(), req)
	require.Nil(t, sliceErr)
	require.NotNil(t, slice)
	assert.Equal(t, "repo1", slice.RepoID)
	assert.Equal(t, "v1", slice.VersionID)
	assert.NotEmpty(t, slice.Cards)
	assert.Contains(t, slice.SymbolIndex, "A")
}

func TestBuildSliceDefaultsToCompactDetailWhenUnset(t *testing.T) {
	o := newTestOrchestrator(t)
	req := model.SliceRequest{
		RepoID:       "repo1",
		EntrySymbols: []string{"A"},
		Budget:       model.Budget{MaxCards: 10, MaxEstimatedTokens: 5000},
	}

	slice, sliceErr := o.BuildSlice(context.Background(), req)
	require.Nil(t, sliceErr)
	require.NotNil(t, slice)
	require.NotEmpty(t, slice.Cards)
	for _, c := range slice.Cards {
		assert.Equal(t, model.DetailCompact, c.DetailLevel)
	}
}

func TestBuildSliceUnknownRepoIsNoVersion(t *testing.T) {
	o := newTestOrchestrator(t)
	req := model.SliceRequest{RepoID: "unknownrepo", EntrySymbols: []string{"A"}}

	slice, sliceErr := o.BuildSlice(context.Background(), req)
	require.Nil(t, slice)
	require.NotNil(t, sliceErr)
	assert.Equal(t, "NO_VERSION", string(sliceErr.Code))
}

func TestBuildSliceEmptyRepoIDIsInvalidRepo(t *testing.T) {
	o := newTestOrchestrator(t)
	req := model.SliceRequest{EntrySymbols: []string{"A"}}

	slice, sliceErr := o.BuildSlice(context.Background(), req)
	require.Nil(t, slice)
	require.NotNil(t, sliceErr)
	assert.Equal(t, "INVALID_REPO", string(sliceErr.Code))
}

func TestBuildSliceNoResolvableStartNodesIsNoSymbols(t *testing.T) {
	o := newTestOrchestrator(t)
	req := model.SliceRequest{RepoID: "repo1"}

	slice, sliceErr := o.BuildSlice(context.Background(), req)
	require.Nil(t, slice)
	require.NotNil(t, sliceErr)
	assert.Equal(t, "NO_SYMBOLS", string(sliceErr.Code))
}

func TestBuildSliceMaxCardsOneTruncates(t *testing.T) {
	o := newTestOrchestrator(t)
	req := model.SliceRequest{
		RepoID:       "repo1",
		EntrySymbols: []string{"A"},
		Budget:       model.Budget{MaxCards: 1, MaxEstimatedTokens: 5000},
	}

	slice, sliceErr := o.BuildSlice(context.Background(), req)
	require.Nil(t, sliceErr)
	require.NotNil(t, slice)
	assert.Len(t, slice.Cards, 1)
	require.NotNil(t, slice.Truncation)
	assert.True(t, slice.Truncation.Truncated)
	assert.Equal(t, "token", slice.Truncation.HowToResume.Type)
}

func TestBuildSlicePolicyClampsOversizedBudget(t *testing.T) {
	o := newTestOrchestrator(t)
	o.cfg.Policy.MaxCards = 2

	req := model.SliceRequest{
		RepoID:       "repo1",
		EntrySymbols: []string{"A"},
		Budget:       model.Budget{MaxCards: 1000, MaxEstimatedTokens: 5000},
	}

	slice, sliceErr := o.BuildSlice(context.Background(), req)
	require.Nil(t, sliceErr)
	require.NotNil(t, slice)
	assert.Equal(t, 2, slice.Budget.MaxCards)
}

func TestBuildSliceCachesSecondCallAsHit(t *testing.T) {
	o := newTestOrchestrator(t)
	req := model.SliceRequest{
		RepoID:       "repo1",
		EntrySymbols: []string{"A"},
		Budget:       model.Budget{MaxCards: 10, MaxEstimatedTokens: 5000},
	}

	_, err1 := o.BuildSlice(context.Background(), req)
	require.Nil(t, err1)
	statsBefore := o.cache.Stats()

	_, err2 := o.BuildSlice(context.Background(), req)
	require.Nil(t, err2)
	statsAfter := o.cache.Stats()

	assert.Greater(t, statsAfter.Hits, statsBefore.Hits)
}

func TestBuildSliceDeterministicAcrossCalls(t *testing.T) {
	o := newTestOrchestrator(t)
	req := model.SliceRequest{
		RepoID:       "repo1",
		EntrySymbols: []string{"A"},
		Budget:       model.Budget{MaxCards: 10, MaxEstimatedTokens: 5000},
	}

	s1, err1 := o.BuildSlice(context.Background(), req)
	require.Nil(t, err1)
	o.cache = slicecache.New(32, time.Minute, false) // force a fresh, uncached rebuild
	s2, err2 := o.BuildSlice(context.Background(), req)
	require.Nil(t, err2)

	assert.Equal(t, s1.SymbolIndex, s2.SymbolIndex)
	assert.Equal(t, len(s1.Cards), len(s2.Cards))
}
