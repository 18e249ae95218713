package obfuscator

import (
	"context"
	"math/rand"

	"github.com/samber/lo"

	"github.com/whit3rabbit/pymixer/internal/scrambler"
	"github.com/whit3rabbit/pymixer/internal/transformer"
)

// LayerKind names one of the three pass kinds the pipeline is built from.
type LayerKind string

const (
	LayerRename   LayerKind = "rename"
	LayerNoise    LayerKind = "noise"
	LayerFinalize LayerKind = "finalize"
)

// layerCycle is the unit repeated once per recursion level.
var layerCycle = []LayerKind{LayerRename, LayerNoise, LayerFinalize}

// State is the working data every layer reads and replaces.
type State struct {
	Code     string
	Imports  []transformer.ImportRecord
	Registry *scrambler.Scrambler
}

// Layer is one pass over the working text. Apply either replaces st.Code
// with text that parses, or returns an error and leaves st.Code alone.
type Layer interface {
	Kind() LayerKind
	Apply(ctx context.Context, st *State) error
}

// Plan returns the shuffled layer order for recursion levels. The result
// holds recursion instances of each kind and always ends with a finalize.
func Plan(rng *rand.Rand, recursion int) []LayerKind {
	kinds := make([]LayerKind, 0, len(layerCycle)*recursion)
	for i := 0; i < recursion; i++ {
		kinds = append(kinds, layerCycle...)
	}
	rng.Shuffle(len(kinds), func(i, j int) { kinds[i], kinds[j] = kinds[j], kinds[i] })

	last := len(kinds) - 1
	if last >= 0 && kinds[last] != LayerFinalize {
		_, idx, _ := lo.FindLastIndexOf(kinds, func(k LayerKind) bool { return k == LayerFinalize })
		kinds[last], kinds[idx] = kinds[idx], kinds[last]
	}
	return kinds
}

type renameLayer struct {
	renamer *transformer.Renamer
}

func (l *renameLayer) Kind() LayerKind { return LayerRename }

func (l *renameLayer) Apply(ctx context.Context, st *State) error {
	out, err := l.renamer.Rename(ctx, st.Code)
	if err != nil {
		return err
	}
	st.Code = out
	return nil
}

type noiseLayer struct {
	injector *transformer.NoiseInjector
}

func (l *noiseLayer) Kind() LayerKind { return LayerNoise }

func (l *noiseLayer) Apply(ctx context.Context, st *State) error {
	out, err := l.injector.Inject(ctx, st.Code)
	if err != nil {
		return err
	}
	st.Code = out
	return nil
}

type finalizeLayer struct {
	finalizer *transformer.Finalizer
}

func (l *finalizeLayer) Kind() LayerKind { return LayerFinalize }

func (l *finalizeLayer) Apply(ctx context.Context, st *State) error {
	out, err := l.finalizer.Finalize(ctx, st.Code)
	if err != nil {
		return err
	}
	st.Code = out
	return nil
}
