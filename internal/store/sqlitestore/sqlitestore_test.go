package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	_, err := s.conn.ExecContext(ctx, `INSERT INTO versions(repo_id, version_id) VALUES ('repo1','v1')`)
	require.NoError(t, err)
	_, err = s.conn.ExecContext(ctx, `INSERT INTO symbols(symbol_id, file_id, repo_id, kind, name, exported, start_line, start_col, end_line, end_col)
		VALUES ('A','f1','repo1','function','DoThing',1,1,1,10,1), ('B','f1','repo1','function','helper',0,11,1,20,1)`)
	require.NoError(t, err)
	_, err = s.conn.ExecContext(ctx, `INSERT INTO edges(from_symbol_id, to_symbol_id, type, weight, confidence) VALUES ('A','B','call',1.0,1.0)`)
	require.NoError(t, err)
	_, err = s.conn.ExecContext(ctx, `INSERT INTO files(file_id, rel_path, language) VALUES ('f1','pkg/thing.go','go')`)
	require.NoError(t, err)
}

func TestOpenCreatesEmptySchema(t *testing.T) {
	s := openTestStore(t)
	syms, err := s.GetSymbolsByRepo(context.Background(), "repo1")
	require.NoError(t, err)
	assert.Empty(t, syms)
}

func TestGetSymbolsByRepoAndEdges(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)

	syms, err := s.GetSymbolsByRepo(context.Background(), "repo1")
	require.NoError(t, err)
	assert.Len(t, syms, 2)

	edges, err := s.GetEdgesByRepo(context.Background(), "repo1")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "A", edges[0].FromSymbolID)
	assert.Equal(t, "B", edges[0].ToSymbolID)
}

func TestGetLatestVersionUnknownRepoIsEmpty(t *testing.T) {
	s := openTestStore(t)
	v, err := s.GetLatestVersion(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestSearchSymbolsLite(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)
	out, err := s.SearchSymbolsLite(context.Background(), "repo1", "dothing", 5)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "A", out[0].SymbolID)
}

func TestGetSymbolsByIDsEmptyInput(t *testing.T) {
	s := openTestStore(t)
	out, err := s.GetSymbolsByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
