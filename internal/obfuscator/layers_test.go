package obfuscator

import (
	"context"
	"math/rand"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/pymixer/internal/transformer"
)

func TestPlanOrdering(t *testing.T) {
	for recursion := 1; recursion <= 6; recursion++ {
		for seed := int64(0); seed < 200; seed++ {
			kinds := Plan(rand.New(rand.NewSource(seed)), recursion)

			require.Len(t, kinds, 3*recursion)
			assert.Equal(t, LayerFinalize, kinds[len(kinds)-1], "recursion %d seed %d: %v", recursion, seed, kinds)
			counts := lo.CountValues(kinds)
			assert.Equal(t, recursion, counts[LayerRename])
			assert.Equal(t, recursion, counts[LayerNoise])
			assert.Equal(t, recursion, counts[LayerFinalize])
		}
	}
}

func TestPlanShuffles(t *testing.T) {
	seen := make(map[string]bool)
	for seed := int64(0); seed < 100; seed++ {
		kinds := Plan(rand.New(rand.NewSource(seed)), 2)
		seen[lo.Reduce(kinds, func(acc string, k LayerKind, _ int) string { return acc + string(k)[:1] }, "")] = true
	}
	assert.Greater(t, len(seen), 5, "plans should vary with the seed")
}

func TestLayersReplaceCode(t *testing.T) {
	st := &State{Code: transformer.Watermark + "\nx = 1   \n\n\ny = 2\n"}
	fin := &finalizeLayer{finalizer: transformer.NewFinalizer()}
	require.NoError(t, fin.Apply(context.Background(), st))
	assert.Equal(t, transformer.Watermark+"\nx = 1\ny = 2\n", st.Code)
	assert.Equal(t, LayerFinalize, fin.Kind())

	before := st.Code
	bad := &State{Code: "def (:\n"}
	assert.Error(t, fin.Apply(context.Background(), bad))
	assert.Equal(t, "def (:\n", bad.Code, "a failed layer leaves the state alone")
	assert.Equal(t, before, st.Code)
}
