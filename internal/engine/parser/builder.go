package parser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"rangefinder/internal/core/errors"
	"rangefinder/internal/engine/registry"
	"rangefinder/internal/engine/syntax"
	"rangefinder/internal/shared/observability"
	"rangefinder/internal/shared/util"
)

const defaultIdleParsers = 4

type Option func(*Builder)

func WithLimits(limits Limits) Option {
	return func(b *Builder) {
		b.limits = limits
	}
}

// WithIdleParsers caps how many idle parsers are kept per language.
func WithIdleParsers(n int) Option {
	return func(b *Builder) {
		b.idleParsers = n
	}
}

type grammarEntry struct {
	grammar syntax.Grammar
	pool    *ParserPool
}

// Builder is the bounded parse guard. It owns the per-process grammar cache:
// each language's grammar is loaded at most once on success, and concurrent
// first loads for a language share a single engine call.
type Builder struct {
	registry    *registry.Registry
	engine      syntax.Engine
	limits      Limits
	idleParsers int

	loads    singleflight.Group
	mu       sync.RWMutex
	grammars map[string]*grammarEntry
}

func NewBuilder(reg *registry.Registry, engine syntax.Engine, opts ...Option) *Builder {
	b := &Builder{
		registry:    reg,
		engine:      engine,
		limits:      DefaultLimits(),
		idleParsers: defaultIdleParsers,
		grammars:    make(map[string]*grammarEntry),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) Limits() Limits {
	return b.limits
}

func (b *Builder) Registry() *registry.Registry {
	return b.registry
}

// Build parses source as languageID. Failures are DomainErrors coded
// FILE_TOO_LARGE, UNSUPPORTED_LANGUAGE, LANGUAGE_MISMATCH or PARSE_TIMEOUT.
func (b *Builder) Build(ctx context.Context, source []byte, languageID string) (*File, error) {
	ctx, span := observability.Tracer.Start(ctx, "parser.Build", trace.WithAttributes(
		attribute.String("language", languageID),
		attribute.Int("source.bytes", len(source)),
	))
	defer span.End()

	file, err := b.build(ctx, source, languageID)
	if err != nil {
		code := errors.CodeOf(err)
		observability.BuildFailuresTotal.WithLabelValues(b.languageLabel(languageID), string(code)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(code))
		return nil, err
	}
	return file, nil
}

func (b *Builder) build(ctx context.Context, source []byte, languageID string) (*File, error) {
	// A rune is at least one byte, so counting is only needed past the limit.
	if len(source) > b.limits.MaxSourceChars {
		if n := utf8.RuneCount(source); n > b.limits.MaxSourceChars {
			return nil, errors.New(errors.CodeFileTooLarge, fmt.Sprintf("source is %d characters, limit is %d", n, b.limits.MaxSourceChars))
		}
	}

	bundle, err := b.registry.Resolve(languageID)
	if err != nil {
		return nil, err
	}

	entry, err := b.acquire(ctx, bundle)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.AddContext(errors.Wrap(ctxErr, errors.CodeParseTimeout, "context done while acquiring grammar"), errors.CtxLanguage, languageID)
		}
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeLanguageMismatch, "grammar acquisition failed"), errors.CtxLanguage, languageID)
	}

	parser, err := entry.pool.Get()
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeLanguageMismatch, "binding grammar to parser failed"), errors.CtxLanguage, languageID)
	}

	if err := ctx.Err(); err != nil {
		entry.pool.Put(parser)
		return nil, errors.Wrap(err, errors.CodeParseTimeout, "context done before parse")
	}

	src := make([]byte, len(source))
	copy(src, source)

	parser.SetTimeout(b.limits.ParseTimeout)
	start := time.Now()
	tree := parser.Parse(src)
	observability.ParsingDuration.WithLabelValues(languageID).Observe(time.Since(start).Seconds())
	if tree == nil {
		entry.pool.Put(parser)
		return nil, errors.AddContext(
			errors.New(errors.CodeParseTimeout, fmt.Sprintf("no tree within %s", b.limits.ParseTimeout)),
			errors.CtxLanguage, languageID,
		)
	}

	return &File{
		language: languageID,
		source:   src,
		tree:     tree,
		parser:   parser,
		grammar:  entry.grammar,
		bundle:   bundle,
		engine:   b.engine,
		pool:     entry.pool,
	}, nil
}

// acquire returns the cached grammar entry for bundle, loading it on first
// use. The shared load is detached from any one caller's cancellation; each
// caller stops waiting when its own ctx is done.
func (b *Builder) acquire(ctx context.Context, bundle *registry.Bundle) (*grammarEntry, error) {
	if entry := b.cached(bundle.ID); entry != nil {
		return entry, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := b.loads.DoChan(bundle.ID, func() (any, error) {
		if entry := b.cached(bundle.ID); entry != nil {
			return entry, nil
		}

		g, err := safeLoad(loadCtx, b.engine, bundle.Grammar)
		if err != nil {
			observability.GrammarLoadsTotal.WithLabelValues(bundle.ID, "failed").Inc()
			slog.Debug("grammar load failed", "language", bundle.ID, "error", err)
			return nil, err
		}
		observability.GrammarLoadsTotal.WithLabelValues(bundle.ID, "loaded").Inc()
		slog.Debug("grammar loaded", "language", bundle.ID, "dynamic", bundle.Grammar.Dynamic())

		entry := &grammarEntry{
			grammar: g,
			pool: NewParserPool(func() (syntax.Parser, error) {
				return b.engine.NewParser(g)
			}, b.idleParsers),
		}
		b.mu.Lock()
		b.grammars[bundle.ID] = entry
		b.mu.Unlock()
		return entry, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*grammarEntry), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Builder) cached(languageID string) *grammarEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.grammars[languageID]
}

func safeLoad(ctx context.Context, engine syntax.Engine, source syntax.GrammarSource) (g syntax.Grammar, err error) {
	defer func() {
		if r := recover(); r != nil {
			g = nil
			err = fmt.Errorf("grammar load panicked: %v", r)
		}
	}()
	g, err = engine.LoadGrammar(ctx, source)
	if err == nil && g == nil {
		err = fmt.Errorf("engine returned no grammar for %q", source.Name)
	}
	return g, err
}

func (b *Builder) languageLabel(languageID string) string {
	if _, err := b.registry.Resolve(languageID); err != nil {
		return "unknown"
	}
	return languageID
}

// LoadedLanguages reports, sorted, which languages have a cached grammar.
func (b *Builder) LoadedLanguages() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return util.SortedStringKeys(b.grammars)
}

// Close releases idle parsers. Files built earlier stay usable until closed.
func (b *Builder) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, entry := range b.grammars {
		entry.pool.Close()
	}
}
