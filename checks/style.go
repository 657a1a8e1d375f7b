// ABOUTME: code_style: line-level formatting warnings for changed text files.
package checks

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/2389-research/ratchet/gitops"
)

// DefaultMaxLineLength is the column limit code_style enforces.
const DefaultMaxLineLength = 120

// StyleChecker flags trailing whitespace, overlong lines, and mixed indentation.
type StyleChecker struct {
	MaxLineLength int
}

// Name returns the checker id.
func (StyleChecker) Name() string { return "code_style" }

// Analyze inspects every non-deleted text file line by line.
func (c StyleChecker) Analyze(ctx context.Context, files []SourceFile) ([]Finding, error) {
	limit := c.MaxLineLength
	if limit <= 0 {
		limit = DefaultMaxLineLength
	}

	var out []Finding
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.Status == gitops.ChangeDeleted || len(f.Content) == 0 || isBinary(f.Content) {
			continue
		}
		for n, l := range lines(f.Content) {
			lineNo := n + 1
			if strings.TrimRight(l, " \t") != l {
				out = append(out, Finding{File: f.Path, Line: lineNo, Rule: "trailing-whitespace", Severity: SeverityWarning,
					Message: "line has trailing whitespace"})
			}
			if w := utf8.RuneCountInString(l); w > limit {
				out = append(out, Finding{File: f.Path, Line: lineNo, Rule: "line-length", Severity: SeverityWarning,
					Message: fmt.Sprintf("line is %d columns (limit %d)", w, limit)})
			}
			indent := l[:len(l)-len(strings.TrimLeft(l, " \t"))]
			if strings.ContainsRune(indent, ' ') && strings.ContainsRune(indent, '\t') {
				out = append(out, Finding{File: f.Path, Line: lineNo, Rule: "mixed-indentation", Severity: SeverityWarning,
					Message: "indentation mixes tabs and spaces"})
			}
		}
		if f.Content[len(f.Content)-1] != '\n' {
			out = append(out, Finding{File: f.Path, Rule: "final-newline", Severity: SeverityInfo,
				Message: "file does not end with a newline"})
		}
	}
	return out, nil
}
