// Package card projects internal symbol cards into wire cards at a
// chosen detail level, computes their ETags, and encodes the admitted
// set's edges against a sorted symbol index. ETag hashing reuses the
// teacher's golang.org/x/crypto dependency, retargeted from bcrypt
// token hashing to blake2b content hashing.
package card

import (
	"encoding/hex"
	"encoding/json"
	"sort"

	"golang.org/x/crypto/blake2b"

	"slicecore/internal/model"
)

const (
	// ASTFingerprintWireLength truncates a full-card astFingerprint.
	ASTFingerprintWireLength = 16

	// DepsCapDefault bounds deps/calls per kind at deps/compact detail.
	DepsCapDefault = 6
	// DepsCapFull bounds deps/calls per kind at full detail.
	DepsCapFull = 24

	// SummaryCapShort bounds the truncated summary at signature detail.
	SummaryCapShort = 160
)

// depsCapByLevel: the per-kind deps cap for each level that keeps deps.
// Compact is a pure wire-compat alias of deps — same payload, different
// label.
var depsCapByLevel = map[model.DetailLevel]int{
	model.DetailDeps:    DepsCapDefault,
	model.DetailCompact: DepsCapDefault,
	model.DetailFull:    DepsCapFull,
}

// ToCardAtDetailLevel is the single total projection function: it
// narrows an internal SymbolCard down to the wire form at level,
// applying the level's field-keep and dep-cap rules.
func ToCardAtDetailLevel(c model.SymbolCard, level model.DetailLevel) model.SliceSymbolCard {
	wire := model.SliceSymbolCard{
		SymbolID:       c.SymbolID,
		FilePath:       c.FilePath,
		Range:          c.Range,
		Kind:           c.Kind,
		Name:           c.Name,
		Exported:       c.Exported,
		DetailLevel:    level,
		ASTFingerprint: truncateFingerprint(c.Version.ASTFingerprint, ASTFingerprintWireLength),
	}

	if level.Rank() >= model.DetailSignature.Rank() {
		wire.Visibility = c.Visibility
		wire.Signature = c.Signature
		wire.Summary = truncateSummary(c.Summary, SummaryCapShort)
	}

	if level.Rank() >= model.DetailDeps.Rank() {
		depsLimit := depsCapByLevel[level]
		wire.Deps = capDeps(c.Deps, depsLimit)
	}

	if level == model.DetailFull {
		wire.Summary = c.Summary
		wire.Invariants = c.Invariants
		wire.SideEffects = c.SideEffects
		wire.Metrics = c.Metrics
	}

	return wire
}

// AdaptiveLevel picks the strongest detail level at or below
// requested whose per-card token share fits the projected budget.
func AdaptiveLevel(perCardTokenShare float64, requested model.DetailLevel) model.DetailLevel {
	var level model.DetailLevel
	switch {
	case perCardTokenShare < 30:
		level = model.DetailMinimal
	case perCardTokenShare < 50:
		level = model.DetailSignature
	case perCardTokenShare < 80:
		level = model.DetailDeps
	case perCardTokenShare < 120:
		level = model.DetailCompact
	default:
		level = model.DetailFull
	}
	if level.Rank() > requested.Rank() {
		return requested
	}
	return level
}

func truncateSummary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func truncateFingerprint(fp string, length int) string {
	if len(fp) <= length {
		return fp
	}
	return fp[:length]
}

// capDeps deduplicates imports/calls by symbolId (keeping the max
// confidence) and length-caps each kind's array.
func capDeps(d model.Deps, limit int) model.Deps {
	return model.Deps{
		Imports: dedupAndCap(d.Imports, limit),
		Calls:   dedupAndCap(d.Calls, limit),
	}
}

func dedupAndCap(refs []model.DepRef, limit int) []model.DepRef {
	if len(refs) == 0 {
		return nil
	}
	best := make(map[string]float64, len(refs))
	order := make([]string, 0, len(refs))
	for _, r := range refs {
		conf := normalizeConfidence(r.Confidence)
		if existing, ok := best[r.SymbolID]; !ok {
			best[r.SymbolID] = conf
			order = append(order, r.SymbolID)
		} else if conf > existing {
			best[r.SymbolID] = conf
		}
	}
	sort.Strings(order)

	out := make([]model.DepRef, 0, len(order))
	for _, id := range order {
		out = append(out, model.DepRef{SymbolID: id, Confidence: best[id]})
		if len(out) >= limit {
			break
		}
	}
	return out
}

func normalizeConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// normalizedForHash strips the etag field and re-marshals a card
// canonically — the input to ETag.
type normalizedForHash struct {
	SymbolID       string            `json:"symbolId"`
	FilePath       string            `json:"filePath"`
	Range          model.Range       `json:"range"`
	Kind           model.SymbolKind  `json:"kind"`
	Name           string            `json:"name"`
	Exported       bool              `json:"exported"`
	Visibility     model.Visibility  `json:"visibility,omitempty"`
	Signature      *model.Signature  `json:"signature,omitempty"`
	Summary        string            `json:"summary,omitempty"`
	Invariants     []string          `json:"invariants,omitempty"`
	SideEffects    []string          `json:"sideEffects,omitempty"`
	Deps           model.Deps        `json:"deps"`
	Metrics        *model.Metrics    `json:"metrics,omitempty"`
	DetailLevel    model.DetailLevel `json:"detailLevel"`
	ASTFingerprint string            `json:"astFingerprint"`
}

// ETag computes a stable hash of a card's normalized form (its etag
// field stripped before hashing).
func ETag(c model.SliceSymbolCard) string {
	n := normalizedForHash{
		SymbolID: c.SymbolID, FilePath: c.FilePath, Range: c.Range, Kind: c.Kind,
		Name: c.Name, Exported: c.Exported, Visibility: c.Visibility, Signature: c.Signature,
		Summary: c.Summary, Invariants: c.Invariants, SideEffects: c.SideEffects,
		Deps: c.Deps, Metrics: c.Metrics, DetailLevel: c.DetailLevel, ASTFingerprint: c.ASTFingerprint,
	}
	data, _ := json.Marshal(n)
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// BuildPayloadCardsAndRefs applies the known-card-etag skip rule
// (§4.F): cards whose current etag matches knownCardEtags are emitted
// as neither a card nor a ref; when knownCardEtags is non-empty,
// every other emitted card also gets a ref; when knownCardEtags is
// empty, only cards are emitted.
func BuildPayloadCardsAndRefs(cards []model.SliceSymbolCard, knownCardEtags map[string]string) ([]model.SliceSymbolCard, []model.CardRef) {
	var outCards []model.SliceSymbolCard
	var outRefs []model.CardRef

	for i := range cards {
		c := cards[i]
		etag := ETag(c)
		c.ETag = etag

		if known, ok := knownCardEtags[c.SymbolID]; ok && known == etag {
			continue
		}

		outCards = append(outCards, c)
		if len(knownCardEtags) > 0 {
			outRefs = append(outRefs, model.CardRef{SymbolID: c.SymbolID, ETag: etag, DetailLevel: c.DetailLevel})
		}
	}
	return outCards, outRefs
}

// EncodeEdgesWithSymbolIndex builds the sorted, deduplicated
// symbolIndex and the wire edge tuples referencing it. Edges whose
// endpoints aren't both in the admitted set are skipped.
func EncodeEdgesWithSymbolIndex(admittedIDs []string, edgesByFrom map[string][]model.Edge) ([]string, []model.WireEdge) {
	symbolIndex := model.SortedUniqueStrings(admittedIDs)

	pos := make(map[string]int, len(symbolIndex))
	for i, id := range symbolIndex {
		pos[id] = i
	}

	type edgeKey struct {
		from, to string
		typ      model.EdgeType
	}
	seen := make(map[edgeKey]struct{})

	var wireEdges []model.WireEdge
	for _, from := range symbolIndex {
		for _, e := range edgesByFrom[from] {
			toIdx, ok := pos[e.ToSymbolID]
			if !ok {
				continue
			}
			key := edgeKey{from: e.FromSymbolID, to: e.ToSymbolID, typ: e.Type}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			wireEdges = append(wireEdges, model.WireEdge{
				FromIndex: pos[from],
				ToIndex:   toIdx,
				Type:      e.Type,
				Weight:    e.Weight,
			})
		}
	}

	sort.Slice(wireEdges, func(i, j int) bool {
		if wireEdges[i].FromIndex != wireEdges[j].FromIndex {
			return wireEdges[i].FromIndex < wireEdges[j].FromIndex
		}
		if wireEdges[i].ToIndex != wireEdges[j].ToIndex {
			return wireEdges[i].ToIndex < wireEdges[j].ToIndex
		}
		return wireEdges[i].Type < wireEdges[j].Type
	})

	return symbolIndex, wireEdges
}
