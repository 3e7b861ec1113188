package frontier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slicecore/internal/model"
)

func TestExtractMinOrdersByScoreThenPriorityThenSequence(t *testing.T) {
	f := New(10)
	f.Insert(model.FrontierItem{SymbolID: "worse", Score: -0.2, Priority: 0, Sequence: 1})
	f.Insert(model.FrontierItem{SymbolID: "best", Score: -0.9, Priority: 0, Sequence: 2})
	f.Insert(model.FrontierItem{SymbolID: "tie-later", Score: -0.9, Priority: 0, Sequence: 3})

	first, ok := f.ExtractMin()
	require.True(t, ok)
	assert.Equal(t, "best", first.SymbolID)

	second, ok := f.ExtractMin()
	require.True(t, ok)
	assert.Equal(t, "tie-later", second.SymbolID)

	third, ok := f.ExtractMin()
	require.True(t, ok)
	assert.Equal(t, "worse", third.SymbolID)
}

func TestPeekDoesNotRemove(t *testing.T) {
	f := New(10)
	f.Insert(model.FrontierItem{SymbolID: "a", Score: -0.5})
	_, ok := f.Peek()
	require.True(t, ok)
	assert.Equal(t, 1, f.Size())
}

func TestFullRespectsMaxSize(t *testing.T) {
	f := New(2)
	assert.False(t, f.Full())
	f.Insert(model.FrontierItem{SymbolID: "a", Score: -0.1})
	f.Insert(model.FrontierItem{SymbolID: "b", Score: -0.2})
	assert.True(t, f.Full())
}

func TestWorstFindsMaxTuple(t *testing.T) {
	f := New(10)
	f.Insert(model.FrontierItem{SymbolID: "good", Score: -0.9})
	f.Insert(model.FrontierItem{SymbolID: "bad", Score: -0.1})

	worst, idx, ok := f.Worst()
	require.True(t, ok)
	assert.Equal(t, "bad", worst.SymbolID)
	assert.GreaterOrEqual(t, idx, 0)
}

func TestReplaceAtRestoresHeapInvariant(t *testing.T) {
	f := New(10)
	f.Insert(model.FrontierItem{SymbolID: "good", Score: -0.9})
	f.Insert(model.FrontierItem{SymbolID: "bad", Score: -0.1})

	_, idx, _ := f.Worst()
	f.ReplaceAt(idx, model.FrontierItem{SymbolID: "better", Score: -0.95})

	best, ok := f.ExtractMin()
	require.True(t, ok)
	assert.Equal(t, "better", best.SymbolID)
}

func TestToArrayIsNonDestructive(t *testing.T) {
	f := New(10)
	f.Insert(model.FrontierItem{SymbolID: "a", Score: -0.5})
	arr := f.ToArray()
	assert.Len(t, arr, 1)
	assert.Equal(t, 1, f.Size())
}
