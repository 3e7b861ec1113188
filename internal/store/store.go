// Package store defines the read-only query surface the slice
// construction pipeline borrows from. The store itself — indexing,
// persistence, transport — is an external collaborator; this package
// only states the interface and offers two reference implementations
// (fixturestore, sqlitestore) used by tests and the demo CLI.
package store

import (
	"context"

	"slicecore/internal/model"
)

// Store is the read-only interface the graph loader and start-node
// resolver consume. Batch methods exist so the orchestrator can
// amortize round-trips outside the beam search's hot loop.
type Store interface {
	GetSymbolsByRepo(ctx context.Context, repoID string) ([]model.Symbol, error)
	GetEdgesByRepo(ctx context.Context, repoID string) ([]model.Edge, error)
	GetSymbolsByIDs(ctx context.Context, ids []string) ([]model.Symbol, error)
	GetFilesByIDs(ctx context.Context, ids []string) ([]model.File, error)
	GetMetricsBySymbolIDs(ctx context.Context, ids []string) (map[string]model.Metrics, error)
	GetEdgesFromSymbols(ctx context.Context, ids []string) ([]model.Edge, error)
	GetFilesByRepoLite(ctx context.Context, repoID string) ([]model.File, error)
	GetSymbolIDsByFile(ctx context.Context, fileID string) ([]string, error)
	SearchSymbolsLite(ctx context.Context, repoID, token string, limit int) ([]model.Symbol, error)
	GetLatestVersion(ctx context.Context, repoID string) (string, error)
}
