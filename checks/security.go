// ABOUTME: security_scan: pattern rules for hard-coded credentials and dynamic code execution.
package checks

import (
	"context"
	"regexp"

	"github.com/2389-research/ratchet/gitops"
)

type securityRule struct {
	id       string
	severity Severity
	pattern  *regexp.Regexp
	message  string
}

var securityRules = []securityRule{
	{
		id:       "hardcoded-secret",
		severity: SeverityCritical,
		pattern:  regexp.MustCompile(`(?i)\b\w*(?:api[_-]?key|secret|passw(?:or)?d|token)\w*["']?\s*[:=]+\s*["'][^"'\s]{8,}["']`),
		message:  "possible hard-coded credential",
	},
	{
		id:       "aws-access-key",
		severity: SeverityCritical,
		pattern:  regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
		message:  "AWS access key id",
	},
	{
		id:       "private-key",
		severity: SeverityCritical,
		pattern:  regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`),
		message:  "embedded private key",
	},
	{
		id:       "dynamic-exec",
		severity: SeverityWarning,
		pattern:  regexp.MustCompile(`(?:^|[^\w.])(?:eval|exec)\s*\(`),
		message:  "dynamic code execution",
	},
	{
		id:       "shell-exec",
		severity: SeverityWarning,
		pattern:  regexp.MustCompile(`\bos\.system\s*\(|shell\s*=\s*True`),
		message:  "command executed through a shell",
	},
}

// SecurityChecker scans changed lines for risky patterns.
type SecurityChecker struct{}

// Name returns the checker id.
func (SecurityChecker) Name() string { return "security_scan" }

// Analyze applies every rule to every line of every non-deleted text file.
func (SecurityChecker) Analyze(ctx context.Context, files []SourceFile) ([]Finding, error) {
	var out []Finding
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.Status == gitops.ChangeDeleted || isBinary(f.Content) {
			continue
		}
		for n, l := range lines(f.Content) {
			for _, r := range securityRules {
				if r.pattern.MatchString(l) {
					out = append(out, Finding{File: f.Path, Line: n + 1, Rule: r.id, Severity: r.severity, Message: r.message})
				}
			}
		}
	}
	return out, nil
}
