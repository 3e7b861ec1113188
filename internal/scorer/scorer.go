// Package scorer computes a pure, weighted relevance score for a
// symbol against a request's task context — the fusion-weighting idiom
// the teacher uses for search ranking, retargeted to single-symbol
// scoring in the beam search's hot loop.
package scorer

import (
	"math"
	"strings"

	"slicecore/internal/model"
)

// Weights controls the five-factor fusion; fixed per implementation
// but exposed for tests and tuning experiments.
type Weights struct {
	Query      float64
	Stacktrace float64
	Structure  float64
	Kind       float64
	Hotness    float64
}

// DefaultWeights are the weights named in the scoring table.
func DefaultWeights() Weights {
	return Weights{
		Query:      0.40,
		Stacktrace: 0.20,
		Structure:  0.15,
		Kind:       0.10,
		Hotness:    0.15,
	}
}

// Context is the already-resolved task context the scorer reads; no
// store lookups happen inside Score, so batch fetches must happen
// before the beam search's inner loop.
type Context struct {
	QueryTokens []string
	StackFrames []StackFrame
}

// StackFrame is one resolved frame of a stack trace.
type StackFrame struct {
	FilePath  string
	StartLine int
	EndLine   int
}

var kindScores = map[model.SymbolKind]float64{
	model.KindClass:       1.0,
	model.KindFunction:    0.98,
	model.KindMethod:      0.95,
	model.KindInterface:   0.9,
	model.KindType:        0.88,
	model.KindConstructor: 0.8,
	model.KindModule:      0.7,
	model.KindVariable:    0.55,
}

var structurePenaltyPrefixes = map[string]float64{
	"test":    0.55,
	"tests":   0.55,
	"dist":    0.6,
	"generated": 0.6,
	"scripts": 0.75,
	"index":   0.72,
	"tools":   0.72,
	"util":    0.72,
	"utils":   0.72,
	"main":    0.72,
	"mod":     0.72,
	"types":   0.72,
}

// Score computes a symbol's relevance in [0,1] given its file and
// metrics (both optional) and the request context.
func Score(sym model.Symbol, filePath string, metrics *model.Metrics, ctx Context) float64 {
	w := DefaultWeights()
	query := queryScore(sym, filePath, ctx.QueryTokens)
	stack := stackTraceScore(sym, filePath, ctx.StackFrames)
	structure := structureScore(filePath)
	kind := kindScores[sym.Kind]
	hotness := hotnessScore(metrics)

	return math.Min(1, w.Query*query+w.Stacktrace*stack+w.Structure*structure+w.Kind*kind+w.Hotness*hotness)
}

// queryScore lowercases the caller's already-split query tokens and
// accumulates per-token match strength against the symbol's name and
// file path.
func queryScore(sym model.Symbol, filePath string, tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	name := strings.ToLower(sym.Name)
	path := strings.ToLower(filePath)

	var total float64
	for _, tok := range tokens {
		tok = strings.ToLower(tok)
		if tok == "" {
			continue
		}
		switch {
		case name == tok:
			total += 1.25
		case strings.HasPrefix(name, tok):
			total += 1.0
		case strings.Contains(name, tok):
			total += 0.75
		case strings.Contains(path, tok):
			total += 0.4
		}
	}
	score := total / float64(len(tokens))
	if score > 1 {
		score = 1
	}
	return score
}

func stackTraceScore(sym model.Symbol, filePath string, frames []StackFrame) float64 {
	best := 0.0
	for _, f := range frames {
		if f.FilePath != filePath {
			continue
		}
		if f.StartLine <= sym.Range.StartLine && sym.Range.EndLine <= f.EndLine ||
			(sym.Range.StartLine <= f.StartLine && f.StartLine <= sym.Range.EndLine) {
			return 1.0
		}
		best = 0.5
	}
	return best
}

// structureScore scales a base of 1.0 by the strongest (smallest)
// penalty factor among the path segments that match a known pattern;
// factors from several matching segments do not compound. The result
// is clamped to [0.15, 1.0].
func structureScore(filePath string) float64 {
	lower := strings.ToLower(filePath)
	segments := strings.Split(lower, "/")

	penalty := 1.0
	for _, seg := range segments {
		base := strings.TrimSuffix(strings.TrimSuffix(seg, "_test.go"), ".go")
		if strings.Contains(seg, "_test.") || strings.HasSuffix(base, "test") || base == "test" || base == "tests" {
			penalty = math.Min(penalty, structurePenaltyPrefixes["test"])
			continue
		}
		if p, ok := structurePenaltyPrefixes[base]; ok {
			penalty = math.Min(penalty, p)
		}
	}
	if penalty < 0.15 {
		penalty = 0.15
	}
	if penalty > 1.0 {
		penalty = 1.0
	}
	return penalty
}

func hotnessScore(m *model.Metrics) float64 {
	if m == nil {
		return 0
	}
	fanIn := 0.5 * logBase(101, float64(m.FanIn+1))
	fanOut := 0.3 * logBase(51, float64(m.FanOut+1))
	churn := float64(m.Churn30d) / 20
	if churn > 1 {
		churn = 1
	}
	return fanIn + fanOut + 0.2*churn
}

// logBase computes log_base(x), matching the "log₁₀₁" / "log₅₁" style
// decay used by the hotness factor: log(x)/log(base).
func logBase(base, x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Log(x) / math.Log(base)
}
