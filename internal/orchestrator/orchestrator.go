// Package orchestrator is the slice orchestrator: it validates a
// request, clamps its budget to policy, checks the result cache, and
// otherwise composes the graph loader, start-node resolver, beam
// search, and card serializer into one GraphSlice. Composition follows
// the teacher's Engine pattern (internal/query.Engine) — one struct
// wiring every collaborator, a single wrapError-style translation into
// the tagged error taxonomy.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"slicecore/internal/beam"
	"slicecore/internal/card"
	"slicecore/internal/config"
	"slicecore/internal/errors"
	"slicecore/internal/graph"
	"slicecore/internal/logging"
	"slicecore/internal/model"
	"slicecore/internal/scorer"
	"slicecore/internal/seeds"
	"slicecore/internal/slicecache"
	"slicecore/internal/store"
)

// defaultBuildTimeout bounds wall-clock time for a build whose context
// carries no deadline. The deadline is checked before graph load, after
// seed resolution and after the beam search: an expired deadline at the
// earlier checks returns a cancelled error, and after the beam search
// it does so only when no symbol was admitted. The beam search itself
// does not observe the deadline, and a slice finished past it is not
// marked truncated.
const defaultBuildTimeout = 400 * time.Millisecond

// Orchestrator composes the slice construction pipeline's components
// against one store and one configuration.
type Orchestrator struct {
	store  store.Store
	cfg    *config.Config
	cache  *slicecache.Cache
	logger *logging.Logger
}

// New builds an Orchestrator. cache may be nil to disable result caching.
func New(st store.Store, cfg *config.Config, cache *slicecache.Cache, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{store: st, cfg: cfg, cache: cache, logger: logger}
}

// BuildSlice runs the full request → GraphSlice pipeline, returning a
// tagged *errors.SliceError on every failure path instead of a bare error.
func (o *Orchestrator) BuildSlice(ctx context.Context, req model.SliceRequest) (*model.GraphSlice, *errors.SliceError) {
	requestID := uuid.NewString()
	log := o.logFields(requestID, req)

	if req.RepoID == "" {
		return nil, errors.NewInvalidRepo(req.RepoID)
	}

	versionID, err := o.store.GetLatestVersion(ctx, req.RepoID)
	if err != nil {
		o.logger.Error("failed to resolve latest version", mergeFields(log, map[string]interface{}{"error": err.Error()}))
		return nil, errors.NewInternal(err)
	}
	if versionID == "" {
		return nil, errors.NewNoVersion(req.RepoID)
	}
	if req.VersionID == "" {
		req.VersionID = versionID
	}

	req.Budget = o.clampBudget(req.Budget, requestID)
	if req.CardDetail == "" {
		req.CardDetail = model.DetailCompact
	}

	buildCtx, cancel := o.withBuildTimeout(ctx)
	defer cancel()

	cacheKey := o.cacheKey(req)
	if o.cache != nil {
		if cached, hit := o.cache.Get(cacheKey); hit {
			o.logger.Debug("slice cache hit", mergeFields(log, map[string]interface{}{"cacheKey": cacheKey}))
			return cached, nil
		}
	}

	if err := buildCtx.Err(); err != nil {
		return nil, errors.NewCancelled()
	}

	g, loadErr := graph.Load(buildCtx, o.store, req.RepoID)
	if loadErr != nil {
		if buildCtx.Err() != nil {
			return nil, errors.NewCancelled()
		}
		return nil, errors.NewInternal(loadErr)
	}
	if g.Empty() {
		return nil, errors.NewNoSymbols("repo has no indexed symbols")
	}

	files, filesErr := o.store.GetFilesByRepoLite(buildCtx, req.RepoID)
	if filesErr != nil {
		return nil, errors.NewInternal(filesErr)
	}

	if err := buildCtx.Err(); err != nil {
		return nil, errors.NewCancelled()
	}

	startNodes, seedErr := seeds.Resolve(buildCtx, o.store, g, files, req)
	if seedErr != nil {
		if buildCtx.Err() != nil {
			return nil, errors.NewCancelled()
		}
		return nil, errors.NewInternal(seedErr)
	}
	if len(startNodes) == 0 {
		return nil, errors.NewNoSymbols("no start nodes resolved from entrySymbols, stackTrace, failingTestPath, editedFiles, or taskText")
	}

	if err := buildCtx.Err(); err != nil {
		return nil, errors.NewCancelled()
	}

	filePathByID := make(map[string]string, len(files))
	for _, f := range files {
		filePathByID[f.FileID] = f.RelPath
	}

	allSymbolIDs := make([]string, 0, len(g.Symbols))
	for id := range g.Symbols {
		allSymbolIDs = append(allSymbolIDs, id)
	}
	metrics, metricsErr := o.store.GetMetricsBySymbolIDs(buildCtx, allSymbolIDs)
	if metricsErr != nil {
		metrics = nil
	}

	sctx := o.scoringContext(req)
	beamCfg := beam.Config{
		EdgeWeights:    toEdgeWeights(o.cfg.Slice.EdgeWeights),
		ScoreThreshold: o.cfg.Slice.ScoreThreshold,
		MaxFrontier:    o.cfg.Slice.MaxFrontier,
	}
	result := beam.Run(g, startNodes, req, beamCfg, sctx, filePathByID, metrics)

	if err := buildCtx.Err(); err != nil && len(result.AdmittedOrder) == 0 {
		return nil, errors.NewCancelled()
	}

	wireCards := o.buildWireCards(g, result.AdmittedOrder, filePathByID, metrics, req)
	payloadCards, cardRefs := card.BuildPayloadCardsAndRefs(wireCards, req.KnownCardEtags)

	edgesByFrom := make(map[string][]model.Edge, len(result.AdmittedOrder))
	for _, id := range result.AdmittedOrder {
		edgesByFrom[id] = g.TraversableOutEdges(id)
	}
	symbolIndex, wireEdges := card.EncodeEdgesWithSymbolIndex(result.AdmittedOrder, edgesByFrom)

	slice := &model.GraphSlice{
		RepoID:       req.RepoID,
		VersionID:    req.VersionID,
		Budget:       req.Budget,
		StartSymbols: model.SortedUniqueStrings(req.EntrySymbols),
		SymbolIndex:  symbolIndex,
		Cards:        payloadCards,
		CardRefs:     cardRefs,
		Edges:        wireEdges,
	}

	if result.Truncated {
		slice.Frontier = result.FrontierTop
		slice.Truncation = &model.Truncation{
			Truncated:    true,
			DroppedCards: result.DroppedCards,
			DroppedEdges: result.DroppedEdges,
			HowToResume:  model.HowToResume{Type: "token", Value: req.Budget.MaxEstimatedTokens + o.cfg.Slice.DefaultMaxTokens},
		}
	}

	if o.cache != nil {
		if err := o.cache.Set(cacheKey, slice); err != nil {
			o.logger.Warn("failed to populate slice cache", mergeFields(log, map[string]interface{}{"error": err.Error()}))
		}
	}

	o.logger.Info("slice built", mergeFields(log, map[string]interface{}{
		"cardCount":   len(payloadCards),
		"edgeCount":   len(wireEdges),
		"truncated":   result.Truncated,
		"totalTokens": result.TotalTokens,
	}))

	return slice, nil
}

// clampBudget applies the policy-clamping protocol (§6): caller
// budgets are clamped to [1, policyCap], defaulting unset fields from
// the slice config first. Clamping is logged, never silently dropped.
func (o *Orchestrator) clampBudget(b model.Budget, requestID string) model.Budget {
	if b.MaxCards <= 0 {
		b.MaxCards = o.cfg.Slice.DefaultMaxCards
	}
	if b.MaxEstimatedTokens <= 0 {
		b.MaxEstimatedTokens = o.cfg.Slice.DefaultMaxTokens
	}

	clampedCards := clampInt(b.MaxCards, 1, o.cfg.Policy.MaxCards)
	clampedTokens := clampInt(b.MaxEstimatedTokens, 1, o.cfg.Policy.MaxEstimatedTokens)

	if clampedCards != b.MaxCards || clampedTokens != b.MaxEstimatedTokens {
		o.logger.Warn("request budget clamped to policy cap", map[string]interface{}{
			"requestId":        requestID,
			"requestedCards":   b.MaxCards,
			"clampedCards":     clampedCards,
			"requestedTokens":  b.MaxEstimatedTokens,
			"clampedTokens":    clampedTokens,
		})
	}

	b.MaxCards = clampedCards
	b.MaxEstimatedTokens = clampedTokens
	return b
}

func (o *Orchestrator) withBuildTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, defaultBuildTimeout)
}

func (o *Orchestrator) cacheKey(req model.SliceRequest) string {
	return slicecache.Key(slicecache.FingerprintInput{
		RepoID:          req.RepoID,
		VersionID:       req.VersionID,
		EntrySymbols:    req.EntrySymbols,
		TaskText:        req.TaskText,
		StackTrace:      req.StackTrace,
		FailingTestPath: req.FailingTestPath,
		EditedFiles:     req.EditedFiles,
		Budget:          req.Budget,
		CardDetail:      req.CardDetail,
		MinConfidence:   req.MinConfidence,
		KnownCardEtags:  req.KnownCardEtags,
	})
}

func (o *Orchestrator) scoringContext(req model.SliceRequest) scorer.Context {
	return scorer.Context{
		QueryTokens: queryTokens(req.TaskText),
		StackFrames: parseStackFrames(req.StackTrace),
	}
}

// buildWireCards projects every admitted symbol into its wire card:
// full detail (clamped to the request's CardDetail) for explicit
// entrySymbols, adaptively downgraded detail for everything else.
func (o *Orchestrator) buildWireCards(g *graph.Graph, admitted []string, filePathByID map[string]string, metrics map[string]model.Metrics, req model.SliceRequest) []model.SliceSymbolCard {
	entrySet := make(map[string]struct{}, len(req.EntrySymbols))
	for _, id := range req.EntrySymbols {
		entrySet[id] = struct{}{}
	}

	perCardShare := 0.0
	if len(admitted) > 0 {
		perCardShare = float64(req.Budget.MaxEstimatedTokens) / float64(len(admitted))
	}

	out := make([]model.SliceSymbolCard, 0, len(admitted))
	for _, id := range admitted {
		sym, ok := g.Symbols[id]
		if !ok {
			continue
		}

		level := req.CardDetail
		if _, isEntry := entrySet[id]; !isEntry {
			level = card.AdaptiveLevel(perCardShare, req.CardDetail)
		}

		internal := model.SymbolCard{
			SymbolID:    sym.SymbolID,
			RepoID:      sym.RepoID,
			FilePath:    filePathByID[sym.FileID],
			Range:       sym.Range,
			Kind:        sym.Kind,
			Name:        sym.Name,
			Exported:    sym.Exported,
			Visibility:  sym.Visibility,
			Signature:   sym.Signature,
			Summary:     sym.Summary,
			Invariants:  sym.Invariants,
			SideEffects: sym.SideEffects,
			Deps:        buildDeps(g, id),
			DetailLevel: level,
			Version:     model.Version{LedgerVersion: req.VersionID, ASTFingerprint: sym.ASTFingerprint},
		}
		if m, ok := metrics[id]; ok {
			internal.Metrics = &m
		}

		out = append(out, card.ToCardAtDetailLevel(internal, level))
	}
	return out
}

func buildDeps(g *graph.Graph, symbolID string) model.Deps {
	var deps model.Deps
	for _, e := range g.TraversableOutEdges(symbolID) {
		ref := model.DepRef{SymbolID: e.ToSymbolID, Confidence: e.Confidence}
		switch e.Type {
		case model.EdgeImport:
			deps.Imports = append(deps.Imports, ref)
		default:
			deps.Calls = append(deps.Calls, ref)
		}
	}
	return deps
}

func (o *Orchestrator) logFields(requestID string, req model.SliceRequest) map[string]interface{} {
	return map[string]interface{}{
		"requestId": requestID,
		"repoId":    req.RepoID,
	}
}

func mergeFields(base map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func toEdgeWeights(cfgWeights map[string]float64) beam.EdgeWeights {
	w := beam.DefaultEdgeWeights()
	for k, v := range cfgWeights {
		switch model.EdgeType(k) {
		case model.EdgeCall, model.EdgeImport, model.EdgeConfig:
			w[model.EdgeType(k)] = v
		}
	}
	return w
}

func queryTokens(taskText string) []string {
	if taskText == "" {
		return nil
	}
	fields := strings.Fields(strings.ToLower(taskText))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

// parseStackFrames parses "path/to/file.go:line" frames into
// StackFrame values; unparsable entries are skipped.
func parseStackFrames(frames []string) []scorer.StackFrame {
	out := make([]scorer.StackFrame, 0, len(frames))
	for _, f := range frames {
		idx := strings.LastIndex(f, ":")
		if idx < 0 {
			out = append(out, scorer.StackFrame{FilePath: f})
			continue
		}
		path := f[:idx]
		line := parseIntOrZero(f[idx+1:])
		out = append(out, scorer.StackFrame{FilePath: path, StartLine: line, EndLine: line})
	}
	return out
}

func parseIntOrZero(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
