// Package beam implements the beam search engine: traversal from
// resolved start nodes, scored neighbor admission under an adaptive
// confidence floor, and budget-driven truncation with dynamic
// card-cap tightening. This is the hard core the rest of the pipeline
// exists to feed and serialize.
package beam

import (
	"sort"

	"slicecore/internal/frontier"
	"slicecore/internal/graph"
	"slicecore/internal/model"
	"slicecore/internal/scorer"
	"slicecore/internal/seeds"
)

// Named constants per the canonicalized open-question decisions: fixed
// values, never literals sprinkled through the admission loop.
const (
	// SliceScoreThreshold is the fixed real-score floor below which a
	// candidate counts toward the consecutive-below-threshold stop.
	SliceScoreThreshold = 0.05
	// MaxFrontier bounds the frontier heap; overflow triggers the
	// worst-item replacement rule.
	MaxFrontier = 256
	// ConsecutiveBelowLimit stops the search after this many
	// back-to-back sub-threshold pops.
	ConsecutiveBelowLimit = 5
	// RecentScoresWindow bounds the FIFO of recently accepted scores
	// used by the dynamic cap check.
	RecentScoresWindow = 20
	// HighConfidenceMargin added to the threshold defines "high confidence".
	HighConfidenceMargin = 0.10

	// SymbolTokenBase is the fixed per-card token floor.
	SymbolTokenBase = 20
	// SymbolTokenMax caps a single card's estimated token cost.
	SymbolTokenMax = 400

	// Dynamic card-cap tightening thresholds (§4.E step 8).
	dynamicCapMinCards        = 6
	dynamicCapMargin          = 0.05
	dynamicCapDropFactor      = 0.5
	dynamicCapHighConfRatio   = 0.6
	dynamicCapEntryCoverage   = 0.9

	// neighborEnqueuePriority is the fixed frontier priority assigned
	// to every neighbor discovered during expansion (seeds carry their
	// own source priority; neighbors are all equal afterward).
	neighborEnqueuePriority = 10
)

// EdgeWeights maps an edge type to its configured weight.
type EdgeWeights map[model.EdgeType]float64

// DefaultEdgeWeights mirrors the configuration defaults (spec §6).
func DefaultEdgeWeights() EdgeWeights {
	return EdgeWeights{
		model.EdgeCall:   1.0,
		model.EdgeImport: 0.6,
		model.EdgeConfig: 0.8,
	}
}

// Config bundles the tunables the beam search consumes; these mirror
// the EdgeWeights, ScoreThreshold and MaxFrontier fields of
// internal/config's SliceConfig.
type Config struct {
	EdgeWeights    EdgeWeights
	ScoreThreshold float64
	MaxFrontier    int
}

// DefaultConfig returns the canonical constants as a Config value.
func DefaultConfig() Config {
	return Config{
		EdgeWeights:    DefaultEdgeWeights(),
		ScoreThreshold: SliceScoreThreshold,
		MaxFrontier:    MaxFrontier,
	}
}

// Result is the beam search's output: the admitted set in admission
// order, running tallies, and (if the search stopped early) a
// frontier snapshot for the caller's "resume" hint.
type Result struct {
	AdmittedOrder    []string
	TotalTokens      int
	DroppedCards     int
	DroppedEdges     int
	Truncated        bool
	FrontierTop      []model.FrontierSuggestion
}

// state is per-build and never shared, per §5's concurrency contract.
type state struct {
	cfg          Config
	g            *graph.Graph
	sctx         scorer.Context
	req          model.SliceRequest
	filePathByID map[string]string
	metrics      map[string]model.Metrics

	front    *frontier.Frontier
	visited  map[string]struct{}
	admitted map[string]struct{}
	order    []string

	totalTokens        int
	droppedCards       int
	droppedEdges       int
	recentScores       []float64
	highConfidenceCards int
	entrySet            map[string]struct{}
	coveredEntries      map[string]struct{}

	effectiveCardCap       int
	effectiveMinConfidence float64
	sequence               int
	consecutiveBelow       int
}

// Run executes the beam search from the resolved seeds. filePathByID
// and metrics must be materialized by the caller before this call —
// per §9, the scorer never performs its own store lookups, so the
// file/metrics batches that feed structure/stacktrace/hotness scoring
// have to exist up front, not just for the admitted set.
func Run(g *graph.Graph, startNodes []model.ResolvedStartNode, req model.SliceRequest, cfg Config, sctx scorer.Context, filePathByID map[string]string, metrics map[string]model.Metrics) *Result {
	s := &state{
		cfg:            cfg,
		g:              g,
		sctx:           sctx,
		req:            req,
		filePathByID:   filePathByID,
		metrics:        metrics,
		front:          frontier.New(cfg.MaxFrontier),
		visited:        make(map[string]struct{}),
		admitted:       make(map[string]struct{}),
		entrySet:       toSet(req.EntrySymbols),
		coveredEntries: make(map[string]struct{}),
	}
	s.effectiveCardCap = req.Budget.MaxCards
	if s.effectiveCardCap <= 0 {
		s.effectiveCardCap = 1
	}

	for _, sn := range startNodes {
		if _, ok := g.Symbols[sn.SymbolID]; !ok {
			continue
		}
		if _, already := s.visited[sn.SymbolID]; already {
			continue
		}
		s.visited[sn.SymbolID] = struct{}{}
		s.front.Insert(model.FrontierItem{
			SymbolID: sn.SymbolID,
			Score:    seeds.InitialScore[sn.Source],
			Why:      string(sn.Source),
			Priority: seeds.PriorityOf[sn.Source],
			Sequence: s.nextSequence(),
		})
	}

	s.loop()

	return s.result()
}

func (s *state) nextSequence() int {
	s.sequence++
	return s.sequence
}

func (s *state) loop() {
	for s.front.Size() > 0 && len(s.order) < s.effectiveCardCap {
		s.effectiveMinConfidence = s.adaptiveMinConfidence()

		item, ok := s.front.ExtractMin()
		if !ok {
			break
		}
		realScore := -item.Score

		if realScore < s.cfg.ScoreThreshold {
			s.consecutiveBelow++
			s.droppedCards++
			if s.consecutiveBelow >= ConsecutiveBelowLimit {
				break
			}
			continue
		}
		s.consecutiveBelow = 0

		sym, ok := s.g.Symbols[item.SymbolID]
		if !ok {
			continue
		}
		cardTokens := estimateTokens(sym, len(s.g.TraversableOutEdges(item.SymbolID)))

		if s.req.Budget.MaxEstimatedTokens > 0 && s.totalTokens+cardTokens > s.req.Budget.MaxEstimatedTokens {
			s.droppedCards++
			// Put the candidate back so the result reports the stop as
			// truncated and lists it in the frontier snapshot.
			s.front.Insert(item)
			break
		}

		s.admit(item.SymbolID, realScore, cardTokens)
		s.expandNeighbors(item.SymbolID, sym)

		if s.shouldTightenCap() {
			s.effectiveCardCap = len(s.order)
		}
	}
}

func (s *state) adaptiveMinConfidence() float64 {
	base := s.req.MinConfidence
	if base <= 0 {
		base = 0.5
	}
	if s.req.Budget.MaxEstimatedTokens <= 0 {
		return base
	}
	ratio := float64(s.totalTokens) / float64(s.req.Budget.MaxEstimatedTokens)
	switch {
	case ratio > 0.9:
		return 0.95
	case ratio > 0.7:
		return 0.8
	default:
		return base
	}
}

func (s *state) admit(symbolID string, realScore float64, cardTokens int) {
	s.admitted[symbolID] = struct{}{}
	s.order = append(s.order, symbolID)
	s.totalTokens += cardTokens

	if _, isEntry := s.entrySet[symbolID]; isEntry {
		s.coveredEntries[symbolID] = struct{}{}
	}
	if realScore >= s.cfg.ScoreThreshold+HighConfidenceMargin {
		s.highConfidenceCards++
	}
	s.recentScores = append(s.recentScores, realScore)
	if len(s.recentScores) > RecentScoresWindow {
		s.recentScores = s.recentScores[len(s.recentScores)-RecentScoresWindow:]
	}
}

func (s *state) expandNeighbors(symbolID string, sym model.Symbol) {
	for _, e := range s.g.TraversableOutEdges(symbolID) {
		if _, seen := s.visited[e.ToSymbolID]; seen {
			continue
		}
		if _, already := s.admitted[e.ToSymbolID]; already {
			continue
		}
		s.visited[e.ToSymbolID] = struct{}{}

		edgeConfidence := clampConfidence(e.Confidence)
		if edgeConfidence < s.effectiveMinConfidence {
			s.droppedEdges++
			continue
		}

		target := s.g.Symbols[e.ToSymbolID]
		edgeWeight := s.cfg.EdgeWeights[e.Type] * edgeConfidence
		targetFilePath := s.filePathByID[target.FileID]
		var targetMetrics *model.Metrics
		if m, ok := s.metrics[target.SymbolID]; ok {
			targetMetrics = &m
		}
		neighborScore := scorer.Score(target, targetFilePath, targetMetrics, s.sctx) * edgeWeight

		if neighborScore < s.cfg.ScoreThreshold {
			s.droppedEdges++
			continue
		}

		item := model.FrontierItem{
			SymbolID: e.ToSymbolID,
			Score:    -neighborScore,
			Why:      "neighborOf:" + symbolID,
			Priority: neighborEnqueuePriority,
			Sequence: s.nextSequence(),
		}

		if s.front.Full() {
			worst, idx, ok := s.front.Worst()
			if ok && itemLess(item, worst) {
				s.front.ReplaceAt(idx, item)
			} else {
				s.droppedEdges++
			}
			continue
		}
		s.front.Insert(item)
	}
}

// shouldTightenCap implements §4.E step 8: after an admission, if
// quality has dropped and coverage requirements are already met,
// clamp the effective cap to the current size instead of admitting
// further low-value cards even though budget allows it.
func (s *state) shouldTightenCap() bool {
	size := len(s.order)
	if size < dynamicCapMinCards {
		return false
	}
	if len(s.recentScores) == 0 {
		return false
	}
	peek, ok := s.front.Peek()
	if !ok {
		return false
	}
	nextScore := -peek.Score

	if float64(s.highConfidenceCards)/float64(size) < dynamicCapHighConfRatio {
		return false
	}
	if !s.entryCoverageSatisfied() {
		return false
	}

	avg := average(s.recentScores)
	limit := s.cfg.ScoreThreshold + dynamicCapMargin
	if avg*dynamicCapDropFactor > limit {
		limit = avg * dynamicCapDropFactor
	}
	return nextScore < limit
}

func (s *state) entryCoverageSatisfied() bool {
	if len(s.entrySet) == 0 {
		return true
	}
	return float64(len(s.coveredEntries))/float64(len(s.entrySet)) >= dynamicCapEntryCoverage
}

func (s *state) result() *Result {
	truncated := s.front.Size() > 0

	var top []model.FrontierSuggestion
	if truncated {
		snapshot := s.front.ToArray()
		sort.Slice(snapshot, func(i, j int) bool { return itemLess(snapshot[i], snapshot[j]) })
		if len(snapshot) > 10 {
			snapshot = snapshot[:10]
		}
		for _, it := range snapshot {
			top = append(top, model.FrontierSuggestion{SymbolID: it.SymbolID, Score: -it.Score, Why: it.Why})
		}
	}

	return &Result{
		AdmittedOrder: s.order,
		TotalTokens:   s.totalTokens,
		DroppedCards:  s.droppedCards,
		DroppedEdges:  s.droppedEdges,
		Truncated:     truncated,
		FrontierTop:   top,
	}
}

func itemLess(a, b model.FrontierItem) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Sequence < b.Sequence
}

// clampConfidence treats absent, negative, or NaN confidence as 1 and
// clamps any value above 1 down to 1.
func clampConfidence(c float64) float64 {
	if c != c || c < 0 { // c != c is the NaN test
		return 1
	}
	if c == 0 {
		return 1
	}
	if c > 1 {
		return 1
	}
	return c
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func toSet(ss []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		out[s] = struct{}{}
	}
	return out
}

// estimateTokens computes a candidate's projected card token cost:
// a fixed base plus length-based contributions from name, signature,
// and summary (capped), plus a per-out-edge fan-out charge.
func estimateTokens(sym model.Symbol, outDegree int) int {
	tokens := SymbolTokenBase
	tokens += len(sym.Name) / 4

	if sym.Signature != nil {
		sigLen := len(sym.Signature.ReturnType)
		for _, p := range sym.Signature.Params {
			sigLen += len(p.Name) + len(p.Type)
		}
		if sigLen > 240 {
			sigLen = 240
		}
		tokens += sigLen / 4
	}

	summaryLen := len(sym.Summary)
	if summaryLen > 200 {
		summaryLen = 200
	}
	tokens += summaryLen / 4

	tokens += 5 * outDegree

	if tokens > SymbolTokenMax {
		tokens = SymbolTokenMax
	}
	return tokens
}
