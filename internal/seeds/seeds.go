// Package seeds resolves a request's start nodes: a prioritized,
// deduplicated set of symbols drawn from up to seven signal sources
// (explicit entries, their siblings and first-hop neighbors, stack
// traces, failing tests, edited files, and task-text search). Each
// signal is a small pure function combined by Resolve, in the spirit
// of the teacher's per-signal seed-expansion helpers
// (expandSeedsWithMethods, extractStructPrefix) generalized from a
// single struct-prefix heuristic into a full priority-class resolver.
package seeds

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"slicecore/internal/graph"
	"slicecore/internal/model"
	"slicecore/internal/store"
)

// PriorityOf ranks each source class; lower is stronger, used both for
// dedup (keep the lowest-numbered source) and initial frontier priority.
var PriorityOf = map[model.StartNodeSource]int{
	model.SourceEntrySymbol:     0,
	model.SourceEntrySibling:    1,
	model.SourceEntryFirstHop:   2,
	model.SourceStackTrace:      3,
	model.SourceFailingTestPath: 4,
	model.SourceEditedFile:      5,
	model.SourceTaskText:        6,
}

// InitialScore is the negated starting score assigned to a seed by its source.
var InitialScore = map[model.StartNodeSource]float64{
	model.SourceEntrySymbol:     -1.40,
	model.SourceEntrySibling:    -1.22,
	model.SourceEntryFirstHop:   -1.18,
	model.SourceStackTrace:      -1.20,
	model.SourceFailingTestPath: -1.10,
	model.SourceEditedFile:      -1.00,
	model.SourceTaskText:        -0.60,
}

const (
	siblingPrefixThreshold = 4

	firstHopPerEntryLoose = 8
	firstHopPerEntryTight = 4
	siblingPerEntryLoose  = 6
	siblingPerEntryTight  = 3

	taskTextMinTokenLen  = 3
	taskTextTopTokens    = 5
	taskTextPerTokenHits = 10
)

var taskTextStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "this": {}, "that": {},
	"from": {}, "into": {}, "are": {}, "was": {}, "were": {}, "has": {},
	"have": {}, "had": {}, "not": {}, "you": {}, "your": {}, "but": {},
	"all": {}, "can": {}, "will": {}, "when": {}, "what": {}, "which": {},
}

// Resolve builds the prioritized, deduplicated seed set for req.
func Resolve(ctx context.Context, st store.Store, g *graph.Graph, files []model.File, req model.SliceRequest) ([]model.ResolvedStartNode, error) {
	maxCards := req.Budget.MaxCards
	if maxCards <= 0 {
		maxCards = 1
	}
	totalCap := clampInt(2*maxCards, 12, 96)

	strongSignal := len(req.StackTrace) > 0 || req.FailingTestPath != "" || len(req.EditedFiles) > 0

	firstHopPerEntry := firstHopPerEntryLoose
	siblingPerEntry := siblingPerEntryLoose
	if strongSignal {
		firstHopPerEntry = firstHopPerEntryTight
		siblingPerEntry = siblingPerEntryTight
	}

	taskTextCap := clampInt(maxCards/5, 2, maxCards)
	if strongSignal {
		taskTextCap = clampInt(taskTextCap/2, 1, taskTextCap)
	}

	pathToFileID := make(map[string]string, len(files))
	for _, f := range files {
		pathToFileID[f.RelPath] = f.FileID
	}
	symbolsByFile := make(map[string][]string)
	for id, sym := range g.Symbols {
		symbolsByFile[sym.FileID] = append(symbolsByFile[sym.FileID], id)
	}

	buckets := make(map[int][]model.ResolvedStartNode)

	entrySet := make(map[string]struct{}, len(req.EntrySymbols))
	for _, id := range req.EntrySymbols {
		if _, ok := g.Symbols[id]; !ok {
			continue
		}
		entrySet[id] = struct{}{}
	}
	for _, id := range sortedKeys(entrySet) {
		buckets[PriorityOf[model.SourceEntrySymbol]] = append(
			buckets[PriorityOf[model.SourceEntrySymbol]],
			model.ResolvedStartNode{SymbolID: id, Source: model.SourceEntrySymbol})
	}

	for _, entryID := range sortedKeys(entrySet) {
		siblings := resolveSiblings(g, symbolsByFile, entryID, siblingPerEntry)
		buckets[PriorityOf[model.SourceEntrySibling]] = append(buckets[PriorityOf[model.SourceEntrySibling]], siblings...)

		firstHops := resolveFirstHop(g, entryID, firstHopPerEntry)
		buckets[PriorityOf[model.SourceEntryFirstHop]] = append(buckets[PriorityOf[model.SourceEntryFirstHop]], firstHops...)
	}

	if len(req.StackTrace) > 0 {
		framePaths := make([]string, 0, len(req.StackTrace))
		for _, frame := range req.StackTrace {
			if idx := strings.LastIndex(frame, ":"); idx >= 0 && isAllDigits(frame[idx+1:]) {
				frame = frame[:idx]
			}
			framePaths = append(framePaths, frame)
		}
		buckets[PriorityOf[model.SourceStackTrace]] = append(
			buckets[PriorityOf[model.SourceStackTrace]],
			resolveByFilePaths(framePaths, pathToFileID, symbolsByFile, model.SourceStackTrace)...)
	}

	if req.FailingTestPath != "" {
		buckets[PriorityOf[model.SourceFailingTestPath]] = append(
			buckets[PriorityOf[model.SourceFailingTestPath]],
			resolveByFilePaths([]string{req.FailingTestPath}, pathToFileID, symbolsByFile, model.SourceFailingTestPath)...)
	}

	if len(req.EditedFiles) > 0 {
		buckets[PriorityOf[model.SourceEditedFile]] = append(
			buckets[PriorityOf[model.SourceEditedFile]],
			resolveByFilePaths(req.EditedFiles, pathToFileID, symbolsByFile, model.SourceEditedFile)...)
	}

	if req.TaskText != "" {
		taskSeeds, err := resolveTaskText(ctx, st, req.RepoID, req.TaskText, taskTextCap)
		if err != nil {
			return nil, err
		}
		buckets[PriorityOf[model.SourceTaskText]] = taskSeeds
	}

	return mergeBuckets(buckets, totalCap), nil
}

func mergeBuckets(buckets map[int][]model.ResolvedStartNode, totalCap int) []model.ResolvedStartNode {
	priorities := make([]int, 0, len(buckets))
	for p := range buckets {
		priorities = append(priorities, p)
	}
	sort.Ints(priorities)

	seen := make(map[string]struct{})
	var out []model.ResolvedStartNode
	for _, p := range priorities {
		for _, cand := range buckets[p] {
			if _, dup := seen[cand.SymbolID]; dup {
				continue
			}
			if len(out) >= totalCap {
				return out
			}
			seen[cand.SymbolID] = struct{}{}
			out = append(out, cand)
		}
	}
	return out
}

func resolveSiblings(g *graph.Graph, symbolsByFile map[string][]string, entryID string, limit int) []model.ResolvedStartNode {
	entry, ok := g.Symbols[entryID]
	if !ok {
		return nil
	}
	entryPrefixLower := strings.ToLower(entry.Name)

	type candidate struct {
		id         string
		prefixLen  int
		exported   bool
		name       string
	}
	var cands []candidate
	for _, id := range symbolsByFile[entry.FileID] {
		if id == entryID {
			continue
		}
		sym := g.Symbols[id]
		if sym.Kind != entry.Kind {
			continue
		}
		prefixLen := commonPrefixLen(entryPrefixLower, strings.ToLower(sym.Name))
		if prefixLen < siblingPrefixThreshold {
			continue
		}
		cands = append(cands, candidate{id: id, prefixLen: prefixLen, exported: sym.Exported, name: sym.Name})
	}

	sort.Slice(cands, func(i, j int) bool {
		ri := cands[i].prefixLen + boolBonus(cands[i].exported, 2)
		rj := cands[j].prefixLen + boolBonus(cands[j].exported, 2)
		if ri != rj {
			return ri > rj
		}
		return cands[i].name < cands[j].name
	})

	if len(cands) > limit {
		cands = cands[:limit]
	}
	out := make([]model.ResolvedStartNode, 0, len(cands))
	for _, c := range cands {
		out = append(out, model.ResolvedStartNode{SymbolID: c.id, Source: model.SourceEntrySibling})
	}
	return out
}

func resolveFirstHop(g *graph.Graph, entryID string, limit int) []model.ResolvedStartNode {
	type candidate struct {
		id   string
		rank int
		name string
	}
	var cands []candidate
	seen := map[string]struct{}{}
	for _, e := range g.TraversableOutEdges(entryID) {
		if e.Type != model.EdgeCall && e.Type != model.EdgeImport {
			continue
		}
		if _, dup := seen[e.ToSymbolID]; dup {
			continue
		}
		target, ok := g.Symbols[e.ToSymbolID]
		if !ok {
			continue
		}
		seen[e.ToSymbolID] = struct{}{}

		rank := 2
		if e.Type == model.EdgeCall {
			rank = 4
		}
		rank += boolBonus(target.Exported, 1)
		rank += boolBonus(target.Kind == model.KindFunction || target.Kind == model.KindMethod, 1)

		cands = append(cands, candidate{id: e.ToSymbolID, rank: rank, name: target.Name})
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].rank != cands[j].rank {
			return cands[i].rank > cands[j].rank
		}
		return cands[i].name < cands[j].name
	})

	if len(cands) > limit {
		cands = cands[:limit]
	}
	out := make([]model.ResolvedStartNode, 0, len(cands))
	for _, c := range cands {
		out = append(out, model.ResolvedStartNode{SymbolID: c.id, Source: model.SourceEntryFirstHop})
	}
	return out
}

func resolveByFilePaths(paths []string, pathToFileID map[string]string, symbolsByFile map[string][]string, source model.StartNodeSource) []model.ResolvedStartNode {
	seen := map[string]struct{}{}
	var out []model.ResolvedStartNode
	for _, p := range paths {
		fileID, ok := pathToFileID[p]
		if !ok {
			continue
		}
		ids := append([]string(nil), symbolsByFile[fileID]...)
		sort.Strings(ids)
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, model.ResolvedStartNode{SymbolID: id, Source: source})
		}
	}
	return out
}

func resolveTaskText(ctx context.Context, st store.Store, repoID, taskText string, cap int) ([]model.ResolvedStartNode, error) {
	tokens := tokenizeTaskText(taskText)
	if len(tokens) > taskTextTopTokens {
		tokens = tokens[:taskTextTopTokens]
	}

	seen := map[string]struct{}{}
	var out []model.ResolvedStartNode
	for _, tok := range tokens {
		matches, err := st.SearchSymbolsLite(ctx, repoID, tok, taskTextPerTokenHits)
		if err != nil {
			return nil, err
		}
		for _, sym := range matches {
			if _, dup := seen[sym.SymbolID]; dup {
				continue
			}
			seen[sym.SymbolID] = struct{}{}
			out = append(out, model.ResolvedStartNode{SymbolID: sym.SymbolID, Source: model.SourceTaskText})
			if len(out) >= cap {
				return out, nil
			}
		}
	}
	return out, nil
}

// tokenizeTaskText lowercases, splits on characters other than letters,
// digits and "/._-" (which stay inside tokens), drops short
// / stopword / purely-digit tokens, dedupes, then ranks by
// rank = 4*containsSlash + 3*contains[._-] + 2*containsDigit + 1*(len>=8).
func tokenizeTaskText(text string) []string {
	lower := strings.ToLower(text)
	raw := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '/' && r != '.' && r != '_' && r != '-'
	})

	seen := map[string]struct{}{}
	type scored struct {
		tok  string
		rank int
	}
	var cands []scored
	for _, tok := range raw {
		if len(tok) < taskTextMinTokenLen {
			continue
		}
		if _, stop := taskTextStopwords[tok]; stop {
			continue
		}
		if isAllDigits(tok) {
			continue
		}
		if !containsAlpha(tok) {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}

		rank := 0
		if strings.Contains(tok, "/") {
			rank += 4
		}
		if strings.ContainsAny(tok, "._-") {
			rank += 3
		}
		if strings.ContainsAny(tok, "0123456789") {
			rank += 2
		}
		if len(tok) >= 8 {
			rank += 1
		}
		cands = append(cands, scored{tok: tok, rank: rank})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].rank != cands[j].rank {
			return cands[i].rank > cands[j].rank
		}
		return len(cands[i].tok) > len(cands[j].tok)
	})

	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.tok)
	}
	return out
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func boolBonus(cond bool, bonus int) int {
	if cond {
		return bonus
	}
	return 0
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

func containsAlpha(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
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

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
