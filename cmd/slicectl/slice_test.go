package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sliceTestYAML = `
versions:
  repo1: v1
symbols:
  - {symbolId: A, fileId: f1, repoId: repo1, kind: function, name: A, exported: true}
  - {symbolId: B, fileId: f1, repoId: repo1, kind: function, name: B, exported: true}
edges:
  - {from: A, to: B, type: call, weight: 1.0, confidence: 1.0}
files:
  - {fileId: f1, relPath: pkg/a.go, language: go}
`

func TestRunSliceBuildsAndPrintsSlice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sliceTestYAML), 0o644))

	sliceFixturePath = path
	sliceRepoID = "repo1"
	sliceEntrySymbols = []string{"A"}
	sliceTaskText = ""
	sliceStackTrace = nil
	sliceFailingTest = ""
	sliceEditedFiles = nil
	sliceMaxCards = 10
	sliceMaxTokens = 2000
	sliceCardDetail = "deps"
	sliceMinConfidence = 0

	require.NoError(t, runSlice(sliceCmd, nil))
}

func TestRunSliceFailsOnUnknownRepo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sliceTestYAML), 0o644))

	sliceFixturePath = path
	sliceRepoID = "doesnotexist"
	sliceEntrySymbols = []string{"A"}
	sliceMaxCards = 10
	sliceMaxTokens = 2000
	sliceCardDetail = "deps"

	require.Error(t, runSlice(sliceCmd, nil))
}
