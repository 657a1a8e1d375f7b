// ABOUTME: breaking_changes: deleted files and exported Go identifiers that disappear relative to the baseline.
package checks

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/2389-research/ratchet/gitops"
)

var (
	funcDeclRe    = regexp.MustCompile(`^func\s+([A-Z]\w*)`)
	methodDeclRe  = regexp.MustCompile(`^func\s+\(\s*\w*\s*\*?\s*([A-Za-z_]\w*)(?:\[[^\]]*\])?\s*\)\s*([A-Z]\w*)`)
	singleDeclRe  = regexp.MustCompile(`^(?:type|var|const)\s+([A-Z]\w*)`)
	groupStartRe  = regexp.MustCompile(`^(?:type|var|const)\s*\($`)
	groupMemberRe = regexp.MustCompile(`^\t([A-Z]\w*)`)
)

// BreakingChecker reports changes that can break downstream callers.
type BreakingChecker struct{}

// Name returns the checker id.
func (BreakingChecker) Name() string { return "breaking_changes" }

// Analyze compares each changed file with its baseline copy.
func (BreakingChecker) Analyze(ctx context.Context, files []SourceFile) ([]Finding, error) {
	var out []Finding
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.Status == gitops.ChangeDeleted {
			out = append(out, Finding{File: f.Path, Rule: "file-deleted", Severity: SeverityError,
				Message: "file was deleted"})
			continue
		}
		if !isGoAPIFile(f.Path) || f.Baseline == nil {
			continue
		}
		now := exportedIdentifiers(f.Content)
		for _, name := range sortedKeys(exportedIdentifiers(f.Baseline)) {
			if !now[name] {
				out = append(out, Finding{File: f.Path, Rule: "exported-removed", Severity: SeverityError,
					Message: fmt.Sprintf("exported identifier %s was removed", name)})
			}
		}
	}
	return out, nil
}

func isGoAPIFile(path string) bool {
	return filepath.Ext(path) == ".go" && !strings.HasSuffix(path, "_test.go")
}

// exportedIdentifiers collects top-level exported names from Go source.
// Methods are keyed as Receiver.Method.
func exportedIdentifiers(src []byte) map[string]bool {
	names := make(map[string]bool)
	inGroup := false
	for _, l := range lines(src) {
		if inGroup {
			if strings.HasPrefix(l, ")") {
				inGroup = false
			} else if m := groupMemberRe.FindStringSubmatch(l); m != nil {
				names[m[1]] = true
			}
			continue
		}
		switch {
		case groupStartRe.MatchString(l):
			inGroup = true
		case methodDeclRe.MatchString(l):
			m := methodDeclRe.FindStringSubmatch(l)
			names[m[1]+"."+m[2]] = true
		case funcDeclRe.MatchString(l):
			names[funcDeclRe.FindStringSubmatch(l)[1]] = true
		case singleDeclRe.MatchString(l):
			names[singleDeclRe.FindStringSubmatch(l)[1]] = true
		}
	}
	return names
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
