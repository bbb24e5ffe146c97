// Package syntax holds the range model produced by extraction and the engine
// capability interfaces the parse guard and query execution are written against.
package syntax

// Position is a zero-based line/column pair as reported by the parsing engine.
// Column counts bytes from the start of the line.
type Position struct {
	Line   int
	Column int
}

// TextRange is a half-open [StartByte, EndByte) span of the source, with the
// matching start and end positions. It is a value type: equality is structural.
type TextRange struct {
	StartByte int
	EndByte   int
	Start     Position
	End       Position
}

// Len returns the span length in bytes.
func (r TextRange) Len() int {
	return r.EndByte - r.StartByte
}

// Contains reports whether other lies entirely inside r.
func (r TextRange) Contains(other TextRange) bool {
	return r.StartByte <= other.StartByte && other.EndByte <= r.EndByte
}

// Text returns the slice of source covered by r, or "" if r falls outside source.
func (r TextRange) Text(source []byte) string {
	if r.StartByte < 0 || r.EndByte > len(source) || r.StartByte > r.EndByte {
		return ""
	}
	return string(source[r.StartByte:r.EndByte])
}

// IdentifierBlockRange pairs the name token of a definition with the full
// definition span. Block always contains Identifier.
type IdentifierBlockRange struct {
	Identifier TextRange
	Block      TextRange
}

// Capture is one named node bound by a query match.
type Capture struct {
	// Index is the capture's position in the query's capture-name table,
	// which follows the order capture names first appear in the query text.
	Index int
	Name  string
	Range TextRange
}

// Match is one pattern match with its captures in engine order.
type Match struct {
	Pattern  int
	Captures []Capture
}

// Named returns the captures in m whose name equals name.
func (m Match) Named(name string) []Capture {
	var out []Capture
	for _, c := range m.Captures {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}
