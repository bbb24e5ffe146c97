package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"rangefinder/internal/data/rangestore"
	"rangefinder/internal/engine/parser"
	"rangefinder/internal/engine/registry"
	"rangefinder/internal/engine/syntax"
)

// ParseCapabilities resolves capability names. An empty list yields the
// configured scan capabilities.
func (a *App) ParseCapabilities(names []string) ([]registry.Capability, error) {
	if len(names) == 0 {
		return a.Config.ScanCapabilities(), nil
	}
	out := make([]registry.Capability, 0, len(names))
	seen := make(map[registry.Capability]bool, len(names))
	for _, name := range names {
		c, ok := registry.ParseCapability(name)
		if !ok {
			return nil, fmt.Errorf("unknown capability %q", name)
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

// ExtractSource parses source as languageID and runs each capability. The
// first failure aborts the file; no partial records are returned.
func (a *App) ExtractSource(ctx context.Context, source []byte, languageID string, capabilities []registry.Capability) ([]rangestore.RangeRecord, error) {
	f, err := a.Builder.Build(ctx, source, languageID)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return extractRecords(ctx, f, capabilities)
}

func extractRecords(ctx context.Context, f *parser.File, capabilities []registry.Capability) ([]rangestore.RangeRecord, error) {
	var (
		symbols    []parser.Symbol
		haveSymbol bool
		out        []rangestore.RangeRecord
	)
	for _, c := range capabilities {
		switch c {
		case registry.CapabilityMethod, registry.CapabilityClass:
			if !haveSymbol {
				var err error
				if symbols, err = f.Symbols(); err != nil {
					return nil, err
				}
				haveSymbol = true
			}
			ordinal := 0
			for _, s := range symbols {
				if s.Capability != c {
					continue
				}
				out = append(out, rangestore.RangeRecord{
					Capability: string(c),
					Ordinal:    ordinal,
					Kind:       string(s.Kind),
					Name:       s.Name,
					Identifier: s.Range.Identifier,
					Block:      s.Range.Block,
				})
				ordinal++
			}
		case registry.CapabilityHoverable:
			ranges, err := f.HoverableRanges()
			if err != nil {
				return nil, err
			}
			for i, r := range ranges {
				out = append(out, rangestore.RangeRecord{
					Capability: string(c),
					Ordinal:    i,
					Name:       f.Text(r),
					Identifier: r,
					Block:      r,
				})
			}
		case registry.CapabilityStructure, registry.CapabilityMethodIO:
			var (
				matches []syntax.Match
				err     error
			)
			if c == registry.CapabilityStructure {
				matches, err = f.Structure()
			} else {
				matches, err = f.MethodSignatures()
			}
			if err != nil {
				return nil, err
			}
			ordinal := 0
			for _, m := range matches {
				rec, ok := matchRecord(f, c, m)
				if !ok {
					continue
				}
				rec.Ordinal = ordinal
				out = append(out, rec)
				ordinal++
			}
		default:
			ranges, err := f.ExtractContext(ctx, c)
			if err != nil {
				return nil, err
			}
			for i, r := range ranges {
				out = append(out, rangestore.RangeRecord{
					Capability: string(c),
					Ordinal:    i,
					Name:       f.Text(r.Identifier),
					Identifier: r.Identifier,
					Block:      r.Block,
				})
			}
		}
	}
	return out, nil
}

// matchRecord flattens a multi-capture match. The identifier is the first
// capture named "id" or "<kind>-name", else the lowest-index capture; the
// block spans every capture.
func matchRecord(f *parser.File, c registry.Capability, m syntax.Match) (rangestore.RangeRecord, bool) {
	if len(m.Captures) == 0 {
		return rangestore.RangeRecord{}, false
	}
	caps := append([]syntax.Capture(nil), m.Captures...)
	sort.SliceStable(caps, func(i, j int) bool { return caps[i].Index < caps[j].Index })

	ident := caps[0]
	for _, cp := range caps {
		if isNameCapture(cp.Name) {
			ident = cp
			break
		}
	}

	block := caps[0].Range
	for _, cp := range caps[1:] {
		if cp.Range.StartByte < block.StartByte {
			block.StartByte = cp.Range.StartByte
			block.Start = cp.Range.Start
		}
		if cp.Range.EndByte > block.EndByte {
			block.EndByte = cp.Range.EndByte
			block.End = cp.Range.End
		}
	}
	return rangestore.RangeRecord{
		Capability: string(c),
		Kind:       ident.Name,
		Name:       f.Text(ident.Range),
		Identifier: ident.Range,
		Block:      block,
	}, true
}

func isNameCapture(name string) bool {
	return name == "id" || strings.HasSuffix(name, "-name")
}
