// ABOUTME: syntax_check: lexical balance of brackets, string literals, and block comments per source file.
// ABOUTME: Language rules are picked by file extension; unknown extensions are only checked for emptiness.
package checks

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/2389-research/ratchet/gitops"
)

// lexRules describe how a language spells comments and strings.
type lexRules struct {
	lineComments []string
	blockComment bool
	singleQuote  bool // ' delimits a string or rune literal
	backtick     bool // ` delimits a literal that may span lines
	tripleQuote  bool // """ and ''' delimit literals that may span lines
}

var (
	cLike   = lexRules{lineComments: []string{"//"}, blockComment: true, singleQuote: true, backtick: true}
	rustly  = lexRules{lineComments: []string{"//"}, blockComment: true}
	python  = lexRules{lineComments: []string{"#"}, singleQuote: true, tripleQuote: true}
	ruby    = lexRules{lineComments: []string{"#"}, singleQuote: true}
	jsonLex = lexRules{}
)

var lexRulesByExt = map[string]lexRules{
	".go":    cLike,
	".js":    cLike,
	".mjs":   cLike,
	".jsx":   cLike,
	".ts":    cLike,
	".tsx":   cLike,
	".java":  cLike,
	".kt":    cLike,
	".c":     cLike,
	".h":     cLike,
	".cc":    cLike,
	".cpp":   cLike,
	".hpp":   cLike,
	".cs":    cLike,
	".swift": cLike,
	".rs":    rustly,
	".py":    python,
	".rb":    ruby,
	".json":  jsonLex,
}

// maxSyntaxFindingsPerFile stops a single broken file from flooding the report.
const maxSyntaxFindingsPerFile = 10

// SyntaxChecker reports unbalanced delimiters and empty files.
type SyntaxChecker struct{}

// Name returns the checker id.
func (SyntaxChecker) Name() string { return "syntax_check" }

// Analyze scans every non-deleted file.
func (SyntaxChecker) Analyze(ctx context.Context, files []SourceFile) ([]Finding, error) {
	var out []Finding
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.Status == gitops.ChangeDeleted {
			continue
		}
		if len(bytes.TrimSpace(f.Content)) == 0 {
			out = append(out, Finding{File: f.Path, Rule: "empty-file", Severity: SeverityWarning, Message: "file is empty"})
			continue
		}
		rules, ok := lexRulesByExt[strings.ToLower(filepath.Ext(f.Path))]
		if !ok || isBinary(f.Content) {
			continue
		}
		out = append(out, scanDelimiters(f.Path, f.Content, rules)...)
	}
	return out, nil
}

type openDelim struct {
	ch   byte
	line int
}

var closerFor = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// scanDelimiters walks src once, skipping comments and literals, and reports
// unterminated literals and unbalanced brackets.
func scanDelimiters(path string, src []byte, rules lexRules) []Finding {
	var (
		out   []Finding
		stack []openDelim
		line  = 1
	)
	report := func(l int, rule, format string, args ...any) {
		if len(out) < maxSyntaxFindingsPerFile {
			out = append(out, Finding{File: path, Line: l, Rule: rule, Severity: SeverityError, Message: fmt.Sprintf(format, args...)})
		}
	}
	// skipTo advances past the next occurrence of end, counting newlines.
	// It returns false when end never appears.
	skipTo := func(i int, end string) (int, bool) {
		idx := bytes.Index(src[i:], []byte(end))
		if idx < 0 {
			line += bytes.Count(src[i:], []byte("\n"))
			return len(src), false
		}
		line += bytes.Count(src[i:i+idx], []byte("\n"))
		return i + idx + len(end), true
	}

	for i := 0; i < len(src); {
		ch := src[i]
		rest := src[i:]

		if ch == '\n' {
			line++
			i++
			continue
		}
		if hasAnyPrefix(rest, rules.lineComments) {
			if nl := bytes.IndexByte(rest, '\n'); nl >= 0 {
				i += nl
			} else {
				i = len(src)
			}
			continue
		}
		if rules.blockComment && bytes.HasPrefix(rest, []byte("/*")) {
			start := line
			var ok bool
			if i, ok = skipTo(i+2, "*/"); !ok {
				report(start, "unterminated-comment", "block comment is never closed")
			}
			continue
		}
		if rules.tripleQuote && (bytes.HasPrefix(rest, []byte(`"""`)) || bytes.HasPrefix(rest, []byte(`'''`))) {
			start := line
			var ok bool
			if i, ok = skipTo(i+3, string(rest[:3])); !ok {
				report(start, "unterminated-string", "triple-quoted string is never closed")
			}
			continue
		}
		if rules.backtick && ch == '`' {
			start := line
			var ok bool
			if i, ok = skipTo(i+1, "`"); !ok {
				report(start, "unterminated-string", "raw string is never closed")
			}
			continue
		}
		if ch == '"' || (ch == '\'' && rules.singleQuote) {
			end, closed := scanQuoted(src, i)
			if !closed {
				report(line, "unterminated-string", "string literal starting with %c is not closed on its line", ch)
			}
			i = end
			continue
		}

		switch ch {
		case '(', '[', '{':
			stack = append(stack, openDelim{ch: ch, line: line})
		case ')', ']', '}':
			if len(stack) == 0 {
				report(line, "unbalanced-bracket", "unexpected %c", ch)
				break
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if closerFor[top.ch] != ch {
				report(line, "unbalanced-bracket", "found %c but %c opened on line %d expects %c", ch, top.ch, top.line, closerFor[top.ch])
			}
		}
		i++
	}

	for _, o := range stack {
		report(o.line, "unbalanced-bracket", "%c is never closed", o.ch)
	}
	return out
}

// scanQuoted returns the index just past the literal opened at src[start],
// honoring backslash escapes. A newline or EOF before the closing quote
// leaves the literal unclosed and returns the index of the newline.
func scanQuoted(src []byte, start int) (int, bool) {
	quote := src[start]
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '\n':
			return i, false
		case quote:
			return i + 1, true
		}
	}
	return len(src), false
}

func hasAnyPrefix(b []byte, prefixes []string) bool {
	for _, p := range prefixes {
		if bytes.HasPrefix(b, []byte(p)) {
			return true
		}
	}
	return false
}
