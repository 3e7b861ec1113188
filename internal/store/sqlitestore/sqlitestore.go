// Package sqlitestore is a store.Store backed by a pure-Go SQLite
// database (modernc.org/sqlite, no cgo required), following the
// teacher's jobs.Store pragma and schema-bootstrap idiom.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"slicecore/internal/model"
)

// Store is a read-only view over a SQLite database holding the symbol
// graph: symbols, edges, files, and metrics tables.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates, with an empty schema) the database at path.
func Open(path string) (*Store, error) {
	dbExists := fileExists(path)

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("sqlitestore: pragma %q: %w", p, err)
		}
	}

	s := &Store{conn: conn}
	if !dbExists {
		if err := s.initializeSchema(); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("sqlitestore: init schema: %w", err)
		}
	}
	return s, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS versions (
			repo_id TEXT PRIMARY KEY,
			version_id TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS symbols (
			symbol_id TEXT PRIMARY KEY,
			file_id TEXT NOT NULL,
			repo_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			exported INTEGER NOT NULL DEFAULT 0,
			visibility TEXT,
			start_line INTEGER, start_col INTEGER, end_line INTEGER, end_col INTEGER,
			ast_fingerprint TEXT,
			summary TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_symbols_repo ON symbols(repo_id);
		CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_id);
		CREATE TABLE IF NOT EXISTS edges (
			from_symbol_id TEXT NOT NULL,
			to_symbol_id TEXT NOT NULL,
			type TEXT NOT NULL,
			weight REAL NOT NULL DEFAULT 1.0,
			confidence REAL NOT NULL DEFAULT 1.0
		);
		CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_symbol_id);
		CREATE TABLE IF NOT EXISTS files (
			file_id TEXT PRIMARY KEY,
			rel_path TEXT NOT NULL,
			language TEXT
		);
		CREATE TABLE IF NOT EXISTS metrics (
			symbol_id TEXT PRIMARY KEY,
			fan_in INTEGER NOT NULL DEFAULT 0,
			fan_out INTEGER NOT NULL DEFAULT 0,
			churn_30d INTEGER NOT NULL DEFAULT 0
		);
	`
	_, err := s.conn.Exec(schema)
	return err
}

func (s *Store) GetSymbolsByRepo(ctx context.Context, repoID string) ([]model.Symbol, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT symbol_id, file_id, repo_id, kind, name, exported, visibility,
		       start_line, start_col, end_line, end_col, ast_fingerprint, summary
		FROM symbols WHERE repo_id = ?`, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSymbols(rows)
}

func (s *Store) GetEdgesByRepo(ctx context.Context, repoID string) ([]model.Edge, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT e.from_symbol_id, e.to_symbol_id, e.type, e.weight, e.confidence
		FROM edges e JOIN symbols sy ON sy.symbol_id = e.from_symbol_id
		WHERE sy.repo_id = ?`, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEdges(rows)
}

func (s *Store) GetSymbolsByIDs(ctx context.Context, ids []string) ([]model.Symbol, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args := inClause(`
		SELECT symbol_id, file_id, repo_id, kind, name, exported, visibility,
		       start_line, start_col, end_line, end_col, ast_fingerprint, summary
		FROM symbols WHERE symbol_id IN (%s)`, ids)
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSymbols(rows)
}

func (s *Store) GetFilesByIDs(ctx context.Context, ids []string) ([]model.File, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args := inClause(`SELECT file_id, rel_path, language FROM files WHERE file_id IN (%s)`, ids)
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.File
	for rows.Next() {
		var f model.File
		if err := rows.Scan(&f.FileID, &f.RelPath, &f.Language); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) GetMetricsBySymbolIDs(ctx context.Context, ids []string) (map[string]model.Metrics, error) {
	if len(ids) == 0 {
		return map[string]model.Metrics{}, nil
	}
	query, args := inClause(`SELECT symbol_id, fan_in, fan_out, churn_30d FROM metrics WHERE symbol_id IN (%s)`, ids)
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]model.Metrics{}
	for rows.Next() {
		var id string
		var m model.Metrics
		if err := rows.Scan(&id, &m.FanIn, &m.FanOut, &m.Churn30d); err != nil {
			return nil, err
		}
		out[id] = m
	}
	return out, rows.Err()
}

func (s *Store) GetEdgesFromSymbols(ctx context.Context, ids []string) ([]model.Edge, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args := inClause(`SELECT from_symbol_id, to_symbol_id, type, weight, confidence FROM edges WHERE from_symbol_id IN (%s)`, ids)
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEdges(rows)
}

func (s *Store) GetFilesByRepoLite(ctx context.Context, repoID string) ([]model.File, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT DISTINCT f.file_id, f.rel_path, f.language
		FROM files f JOIN symbols sy ON sy.file_id = f.file_id
		WHERE sy.repo_id = ?`, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.File
	for rows.Next() {
		var f model.File
		if err := rows.Scan(&f.FileID, &f.RelPath, &f.Language); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) GetSymbolIDsByFile(ctx context.Context, fileID string) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT symbol_id FROM symbols WHERE file_id = ? ORDER BY symbol_id`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) SearchSymbolsLite(ctx context.Context, repoID, token string, limit int) ([]model.Symbol, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT symbol_id, file_id, repo_id, kind, name, exported, visibility,
		       start_line, start_col, end_line, end_col, ast_fingerprint, summary
		FROM symbols WHERE repo_id = ? AND LOWER(name) LIKE ? LIMIT ?`,
		repoID, "%"+strings.ToLower(token)+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSymbols(rows)
}

func (s *Store) GetLatestVersion(ctx context.Context, repoID string) (string, error) {
	var versionID string
	err := s.conn.QueryRowContext(ctx, `SELECT version_id FROM versions WHERE repo_id = ?`, repoID).Scan(&versionID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return versionID, err
}

func scanSymbols(rows *sql.Rows) ([]model.Symbol, error) {
	var out []model.Symbol
	for rows.Next() {
		var sym model.Symbol
		var visibility, fingerprint, summary sql.NullString
		if err := rows.Scan(
			&sym.SymbolID, &sym.FileID, &sym.RepoID, &sym.Kind, &sym.Name, &sym.Exported,
			&visibility, &sym.Range.StartLine, &sym.Range.StartCol, &sym.Range.EndLine, &sym.Range.EndCol,
			&fingerprint, &summary,
		); err != nil {
			return nil, err
		}
		sym.Visibility = model.Visibility(visibility.String)
		sym.ASTFingerprint = fingerprint.String
		sym.Summary = summary.String
		out = append(out, sym)
	}
	return out, rows.Err()
}

func scanEdges(rows *sql.Rows) ([]model.Edge, error) {
	var out []model.Edge
	for rows.Next() {
		var e model.Edge
		if err := rows.Scan(&e.FromSymbolID, &e.ToSymbolID, &e.Type, &e.Weight, &e.Confidence); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func inClause(query string, ids []string) (string, []interface{}) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return fmt.Sprintf(query, placeholders), args
}
