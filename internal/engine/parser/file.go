package parser

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rangefinder/internal/core/errors"
	"rangefinder/internal/engine/registry"
	"rangefinder/internal/engine/syntax"
	"rangefinder/internal/shared/observability"
)

// File is one parsed source buffer and its tree. It is immutable once built;
// extraction calls never modify it and are deterministic. A File is not meant
// to be shared between goroutines.
type File struct {
	language string
	source   []byte
	tree     syntax.Tree
	parser   syntax.Parser
	grammar  syntax.Grammar
	bundle   *registry.Bundle
	engine   syntax.Engine
	pool     *ParserPool

	closeOnce sync.Once
	closed    bool
}

func (f *File) Language() string {
	return f.language
}

// Source returns a copy of the parsed source.
func (f *File) Source() []byte {
	out := make([]byte, len(f.source))
	copy(out, f.source)
	return out
}

// Text returns the source covered by r.
func (f *File) Text(r syntax.TextRange) string {
	return r.Text(f.source)
}

func (f *File) Bundle() *registry.Bundle {
	return f.bundle
}

// Close releases the tree and hands the parser back to its pool.
func (f *File) Close() {
	f.closeOnce.Do(func() {
		f.closed = true
		if f.tree != nil {
			f.tree.Close()
		}
		if f.pool != nil {
			f.pool.Put(f.parser)
		} else if f.parser != nil {
			f.parser.Close()
		}
	})
}

func (f *File) MethodRanges() ([]syntax.IdentifierBlockRange, error) {
	return f.Extract(registry.CapabilityMethod)
}

func (f *File) ClassRanges() ([]syntax.IdentifierBlockRange, error) {
	return f.Extract(registry.CapabilityClass)
}

// Extract runs capability's query and projects every match into an
// IdentifierBlockRange, in engine match order.
func (f *File) Extract(capability registry.Capability) ([]syntax.IdentifierBlockRange, error) {
	return f.ExtractContext(context.Background(), capability)
}

func (f *File) ExtractContext(ctx context.Context, capability registry.Capability) ([]syntax.IdentifierBlockRange, error) {
	matches, err := f.run(ctx, capability)
	if err != nil {
		return nil, err
	}

	out := make([]syntax.IdentifierBlockRange, 0, len(matches))
	for i, m := range matches {
		ident, block, err := projectCaptures(m)
		if err != nil {
			return nil, f.queryError(capability, fmt.Errorf("match %d: %w", i, err))
		}
		out = append(out, syntax.IdentifierBlockRange{Identifier: ident.Range, Block: block.Range})
	}
	return out, nil
}

// HoverableRanges returns every capture of the hoverable query.
func (f *File) HoverableRanges() ([]syntax.TextRange, error) {
	matches, err := f.run(context.Background(), registry.CapabilityHoverable)
	if err != nil {
		return nil, err
	}
	out := make([]syntax.TextRange, 0, len(matches))
	for _, m := range matches {
		for _, c := range m.Captures {
			out = append(out, c.Range)
		}
	}
	return out, nil
}

// Structure returns the outline captures, one Match per query match.
func (f *File) Structure() ([]syntax.Match, error) {
	return f.run(context.Background(), registry.CapabilityStructure)
}

// MethodSignatures returns the method input/output captures.
func (f *File) MethodSignatures() ([]syntax.Match, error) {
	return f.run(context.Background(), registry.CapabilityMethodIO)
}

// Symbols returns method and class definitions labeled by the taxonomy.
func (f *File) Symbols() ([]Symbol, error) {
	var out []Symbol
	for _, capability := range []registry.Capability{registry.CapabilityClass, registry.CapabilityMethod} {
		matches, err := f.run(context.Background(), capability)
		if err != nil {
			return nil, err
		}
		for i, m := range matches {
			ident, block, err := projectCaptures(m)
			if err != nil {
				return nil, f.queryError(capability, fmt.Errorf("match %d: %w", i, err))
			}
			kind, ok := f.bundle.Namespaces.Classify(ident.Name)
			if !ok {
				kind, _ = f.bundle.Namespaces.Classify(block.Name)
			}
			out = append(out, Symbol{
				Name:       ident.Range.Text(f.source),
				Kind:       kind,
				Capability: capability,
				Range:      syntax.IdentifierBlockRange{Identifier: ident.Range, Block: block.Range},
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Range.Block.StartByte < out[j].Range.Block.StartByte
	})
	return out, nil
}

func (f *File) run(ctx context.Context, capability registry.Capability) (matches []syntax.Match, err error) {
	_, span := observability.Tracer.Start(ctx, "parser.Extract", trace.WithAttributes(
		attribute.String("language", f.language),
		attribute.String("capability", string(capability)),
	))
	defer func() {
		if err != nil {
			observability.QueryErrorsTotal.WithLabelValues(f.language, string(capability)).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, string(errors.CodeQueryError))
		}
		span.End()
	}()

	if f.closed {
		return nil, f.queryError(capability, fmt.Errorf("file is closed"))
	}

	mq := f.bundle.Query(capability)
	if mq.Empty() {
		return []syntax.Match{}, nil
	}

	q, err := mq.Get(func(text string) (syntax.Query, error) {
		q, err := f.engine.CompileQuery(f.grammar, text)
		outcome := "compiled"
		if err != nil {
			outcome = "failed"
		}
		observability.QueryCompilesTotal.WithLabelValues(f.language, string(capability), outcome).Inc()
		slog.Debug("query compiled", "language", f.language, "capability", capability, "outcome", outcome)
		return q, err
	})
	if err != nil {
		return nil, f.queryError(capability, err)
	}

	start := time.Now()
	matches, err = safeMatches(q, f.tree, f.source)
	observability.QueryDuration.WithLabelValues(f.language, string(capability)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, f.queryError(capability, err)
	}
	return matches, nil
}

func safeMatches(q syntax.Query, tree syntax.Tree, source []byte) (matches []syntax.Match, err error) {
	defer func() {
		if r := recover(); r != nil {
			matches = nil
			err = fmt.Errorf("query execution panicked: %v", r)
		}
	}()
	matches, err = q.Matches(tree, source)
	if err == nil && matches == nil {
		matches = []syntax.Match{}
	}
	return matches, err
}

func (f *File) queryError(capability registry.Capability, err error) error {
	wrapped := errors.Wrap(err, errors.CodeQueryError, "query failed")
	wrapped = errors.AddContext(wrapped, errors.CtxLanguage, f.language)
	return errors.AddContext(wrapped, errors.CtxCapability, string(capability))
}

// projectCaptures orders a match's captures by capture index and returns the
// first two distinct captures as identifier and block.
func projectCaptures(m syntax.Match) (syntax.Capture, syntax.Capture, error) {
	caps := make([]syntax.Capture, len(m.Captures))
	copy(caps, m.Captures)
	sort.SliceStable(caps, func(i, j int) bool {
		return caps[i].Index < caps[j].Index
	})

	if len(caps) == 0 {
		return syntax.Capture{}, syntax.Capture{}, fmt.Errorf("pattern %d produced no captures", m.Pattern)
	}
	ident := caps[0]
	for _, c := range caps[1:] {
		if c.Index == ident.Index {
			continue
		}
		if !c.Range.Contains(ident.Range) {
			return syntax.Capture{}, syntax.Capture{}, fmt.Errorf("block capture %q [%d,%d) does not contain identifier capture %q [%d,%d)",
				c.Name, c.Range.StartByte, c.Range.EndByte, ident.Name, ident.Range.StartByte, ident.Range.EndByte)
		}
		return ident, c, nil
	}
	return syntax.Capture{}, syntax.Capture{}, fmt.Errorf("pattern %d produced fewer than two distinct captures", m.Pattern)
}
