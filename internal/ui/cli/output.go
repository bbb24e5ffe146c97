package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"rangefinder/internal/core/errors"
	"rangefinder/internal/core/ports"
	"rangefinder/internal/data/rangestore"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatTSV  = "tsv"
)

type rangeView struct {
	Capability string   `json:"capability" yaml:"capability"`
	Kind       string   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Name       string   `json:"name" yaml:"name"`
	Identifier spanView `json:"identifier" yaml:"identifier"`
	Block      spanView `json:"block" yaml:"block"`
}

type spanView struct {
	StartByte int `json:"start_byte" yaml:"start_byte"`
	EndByte   int `json:"end_byte" yaml:"end_byte"`
	StartLine int `json:"start_line" yaml:"start_line"`
	StartCol  int `json:"start_col" yaml:"start_col"`
	EndLine   int `json:"end_line" yaml:"end_line"`
	EndCol    int `json:"end_col" yaml:"end_col"`
}

type fileView struct {
	Path      string      `json:"path" yaml:"path"`
	Language  string      `json:"language,omitempty" yaml:"language,omitempty"`
	ErrorCode string      `json:"error_code,omitempty" yaml:"error_code,omitempty"`
	Error     string      `json:"error,omitempty" yaml:"error,omitempty"`
	Ranges    []rangeView `json:"ranges" yaml:"ranges"`
}

func toRangeViews(records []rangestore.RangeRecord) []rangeView {
	out := make([]rangeView, 0, len(records))
	for _, r := range records {
		out = append(out, rangeView{
			Capability: r.Capability,
			Kind:       r.Kind,
			Name:       r.Name,
			Identifier: spanView{
				StartByte: r.Identifier.StartByte, EndByte: r.Identifier.EndByte,
				StartLine: r.Identifier.Start.Line, StartCol: r.Identifier.Start.Column,
				EndLine: r.Identifier.End.Line, EndCol: r.Identifier.End.Column,
			},
			Block: spanView{
				StartByte: r.Block.StartByte, EndByte: r.Block.EndByte,
				StartLine: r.Block.Start.Line, StartCol: r.Block.Start.Column,
				EndLine: r.Block.End.Line, EndCol: r.Block.End.Column,
			},
		})
	}
	return out
}

func toFileViews(files []ports.FileResult) []fileView {
	out := make([]fileView, 0, len(files))
	for _, f := range files {
		v := fileView{Path: f.Path, Language: f.Language, Ranges: toRangeViews(f.Ranges)}
		if f.Err != nil {
			v.ErrorCode = string(errors.CodeOf(f.Err))
			v.Error = f.Err.Error()
		}
		out = append(out, v)
	}
	return out
}

func validateFormat(format string) error {
	switch format {
	case formatJSON, formatYAML, formatTSV:
		return nil
	default:
		return fmt.Errorf("unsupported format %q (want json, yaml or tsv)", format)
	}
}

// writeFiles encodes files to w. TSV emits one row per range and one row per
// failed file.
func writeFiles(w io.Writer, format string, files []ports.FileResult) error {
	views := toFileViews(files)
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	case formatTSV:
		var b strings.Builder
		b.WriteString("path\tlanguage\tcapability\tkind\tname\tstart_line\tstart_col\tend_line\tend_col\tstart_byte\tend_byte\terror\n")
		for _, f := range views {
			if f.ErrorCode != "" {
				fmt.Fprintf(&b, "%s\t%s\t\t\t\t\t\t\t\t\t\t%s\n", f.Path, f.Language, f.ErrorCode)
				continue
			}
			for _, r := range f.Ranges {
				fmt.Fprintf(&b, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t\n",
					f.Path, f.Language, r.Capability, r.Kind, tsvEscape(r.Name),
					r.Block.StartLine, r.Block.StartCol, r.Block.EndLine, r.Block.EndCol,
					r.Block.StartByte, r.Block.EndByte)
			}
		}
		_, err := io.WriteString(w, b.String())
		return err
	default:
		return validateFormat(format)
	}
}

func tsvEscape(s string) string {
	return strings.NewReplacer("\t", "\\t", "\n", "\\n", "\r", "\\r").Replace(s)
}
