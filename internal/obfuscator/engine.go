// Package obfuscator runs the layered obfuscation pipeline over Python
// source and provides the file and directory drivers built on it.
package obfuscator

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/samber/lo"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/whit3rabbit/pymixer/internal/scrambler"
	"github.com/whit3rabbit/pymixer/internal/transformer"
)

// Options tune one engine run. The zero value is usable: a fresh random
// seed, the default built-ins, the unicode charset and unbounded integers.
type Options struct {
	// Seed fixes the random source. Zero draws one from crypto/rand.
	Seed int64
	// Builtins replaces the default protected built-in set when non-empty.
	Builtins []string
	// ExtraProtected names are protected on top of the built-ins.
	ExtraProtected []string
	Charset        scrambler.Charset
	// MaxIntBits bounds integer literals the encoder emits, 0 means no bound.
	MaxIntBits  int
	KeepMembers bool
	// NoiseProbability overrides the per-line noise chance when positive.
	NoiseProbability float64
}

// Option adjusts Options.
type Option func(*Options)

func WithSeed(seed int64) Option { return func(o *Options) { o.Seed = seed } }

func WithBuiltins(names []string) Option { return func(o *Options) { o.Builtins = names } }

func WithExtraProtected(names ...string) Option {
	return func(o *Options) { o.ExtraProtected = append(o.ExtraProtected, names...) }
}

func WithCharset(cs scrambler.Charset) Option { return func(o *Options) { o.Charset = cs } }

func WithMaxIntBits(bits int) Option { return func(o *Options) { o.MaxIntBits = bits } }

func WithKeepMembers(keep bool) Option { return func(o *Options) { o.KeepMembers = keep } }

func WithNoiseProbability(p float64) Option { return func(o *Options) { o.NoiseProbability = p } }

// WithOptions replaces every setting at once.
func WithOptions(opts Options) Option { return func(o *Options) { *o = opts } }

// Report summarizes what one Obfuscate call did.
type Report struct {
	Seed            int64
	Layers          []LayerKind
	Imports         int
	CommentsRemoved int
	DocsReplaced    int
	Rename          transformer.RenameStats
	NoiseLines      int
	// Aliases counts registry entries, intermediate aliases from later
	// rename layers included.
	Aliases int
}

// Engine obfuscates one source text. It runs once; build a new engine for
// every input.
type Engine struct {
	source         string
	includeImports bool
	recursion      int
	opts           Options

	used     bool
	registry *scrambler.Scrambler
	report   Report
}

// New validates the arguments and returns an engine ready to run.
func New(source string, includeImports bool, recursion int, opts ...Option) (*Engine, error) {
	if recursion < 1 {
		return nil, fmt.Errorf("%w: recursion must be at least 1, got %d", ErrInvalidArgument, recursion)
	}
	e := &Engine{source: source, includeImports: includeImports, recursion: recursion}
	for _, opt := range opts {
		opt(&e.opts)
	}
	if _, err := scrambler.ParseCharset(string(e.opts.Charset)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if e.opts.MaxIntBits < 0 {
		return nil, fmt.Errorf("%w: max int bits must not be negative", ErrInvalidArgument)
	}
	return e, nil
}

// Obfuscate runs the pipeline and returns the obfuscated program. It never
// returns partial output: on error the string is empty.
func (e *Engine) Obfuscate(ctx context.Context) (string, error) {
	if e.used {
		return "", ErrEngineUsed
	}
	e.used = true
	if err := ctx.Err(); err != nil {
		return "", err
	}

	seed := e.opts.Seed
	if seed == 0 {
		seed = cryptoSeed()
	}
	rng := rand.New(rand.NewSource(seed))
	e.report = Report{Seed: seed}
	logx.Debugf("engine: seed %d, recursion %d, include imports %t", seed, e.recursion, e.includeImports)

	sanitizer := transformer.NewSanitizer()
	code, err := sanitizer.Sanitize(ctx, e.source)
	if err != nil {
		return "", fmt.Errorf("sanitizing source: %w", err)
	}
	e.report.CommentsRemoved = sanitizer.CommentsRemoved()
	e.report.DocsReplaced = sanitizer.DocsReplaced()

	records, err := transformer.HarvestImports(ctx, code)
	if err != nil {
		return "", fmt.Errorf("harvesting imports: %w", err)
	}
	e.report.Imports = len(records)

	protected := e.protectedNames(records)
	registry, err := scrambler.NewScrambler(rng, scrambler.Settings{
		Charset:  e.opts.Charset,
		Reserved: lo.Keys(protected),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	// The generated lookups call these even when a custom built-in set
	// leaves them unprotected.
	registry.Reserve(scrambler.IndirectionNames()...)
	e.registry = registry

	st := &State{Code: code, Imports: records, Registry: registry}
	layers := e.buildLayers(rng, protected)
	for i, layer := range layers {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := layer.Apply(ctx, st); err != nil {
			return "", fmt.Errorf("layer %d (%s): %w", i+1, layer.Kind(), err)
		}
		e.collect(layer)
		logx.Debugf("engine: layer %d/%d %s done, %d bytes", i+1, len(layers), layer.Kind(), len(st.Code))
	}

	if e.includeImports {
		st.Code, err = transformer.ReinjectImports(ctx, st.Code, st.Imports)
		if err != nil {
			return "", fmt.Errorf("re-injecting imports: %w", err)
		}
	}
	e.report.Aliases = registry.Len()
	return st.Code, nil
}

// Aliases maps every original identifier of the input to the name it
// carries in the output. Aliases of aliases from later rename layers are
// followed to the end. It returns nil before Obfuscate ran.
func (e *Engine) Aliases() map[string]string {
	if e.registry == nil {
		return nil
	}
	out := make(map[string]string)
	for _, original := range e.registry.Originals() {
		if _, isAlias := e.registry.Unscramble(original); isAlias {
			continue
		}
		alias, _ := e.registry.LookupObfuscated(original)
		for hops := 0; hops < e.registry.Len(); hops++ {
			next, ok := e.registry.LookupObfuscated(alias)
			if !ok {
				break
			}
			alias = next
		}
		out[original] = alias
	}
	return out
}

// Report returns the summary of the last run.
func (e *Engine) Report() Report { return e.report }

func (e *Engine) protectedNames(records []transformer.ImportRecord) map[string]bool {
	builtins := e.opts.Builtins
	if len(builtins) == 0 {
		builtins = scrambler.DefaultBuiltins()
	}
	protected := transformer.ProtectedImportNames(records)
	for _, name := range builtins {
		protected[name] = true
	}
	for _, name := range e.opts.ExtraProtected {
		protected[name] = true
	}
	return protected
}

func (e *Engine) buildLayers(rng *rand.Rand, protected map[string]bool) []Layer {
	encoder := transformer.NewLiteralEncoder(rng)
	encoder.MaxIntBits = e.opts.MaxIntBits

	renamer := transformer.NewRenamer(e.registry, encoder, protected)
	renamer.KeepMembers = e.opts.KeepMembers

	cs, _ := scrambler.ParseCharset(string(e.opts.Charset))
	noise := transformer.NewNoiseInjector(rng, scrambler.Runes(cs))
	if e.opts.NoiseProbability > 0 {
		noise.Probability = e.opts.NoiseProbability
	}
	finalizer := transformer.NewFinalizer()

	kinds := Plan(rng, e.recursion)
	e.report.Layers = kinds
	return lo.Map(kinds, func(k LayerKind, _ int) Layer {
		switch k {
		case LayerRename:
			return &renameLayer{renamer: renamer}
		case LayerNoise:
			return &noiseLayer{injector: noise}
		default:
			return &finalizeLayer{finalizer: finalizer}
		}
	})
}

func (e *Engine) collect(layer Layer) {
	switch l := layer.(type) {
	case *renameLayer:
		s := l.renamer.Stats()
		e.report.Rename.Renamed += s.Renamed
		e.report.Rename.Indirected += s.Indirected
		e.report.Rename.Strings += s.Strings
		e.report.Rename.Integers += s.Integers
		e.report.Rename.Skipped += s.Skipped
	case *noiseLayer:
		e.report.NoiseLines += l.injector.Injected()
	}
}

func cryptoSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return rand.Int63()
	}
	return int64(binary.LittleEndian.Uint64(b[:]) >> 1)
}
