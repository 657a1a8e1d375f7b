// ABOUTME: Registration of the built-in steps into a pipeline registry.
package checks

import (
	"github.com/2389-research/ratchet/pipeline"
)

// Deps are the collaborators built-in steps share.
type Deps struct {
	Source      ChangeSource
	Interviewer pipeline.Interviewer
}

// Builtins returns every built-in step wired to deps.
func Builtins(deps Deps) []pipeline.Step {
	check := func(c Checker) pipeline.Step {
		return &CheckStep{StepID: c.Name(), Checker: c, Source: deps.Source}
	}
	return []pipeline.Step{
		ContextStep{},
		check(SyntaxChecker{}),
		check(StyleChecker{}),
		check(BreakingChecker{}),
		check(SecurityChecker{}),
		ReviewStep{Interviewer: deps.Interviewer, Source: deps.Source},
	}
}

// DefaultRegistry creates a registry with all built-in steps registered.
func DefaultRegistry(deps Deps) *pipeline.Registry {
	reg := pipeline.NewRegistry()
	RegisterBuiltins(reg, deps)
	return reg
}

// RegisterBuiltins adds every built-in step to reg.
func RegisterBuiltins(reg *pipeline.Registry, deps Deps) {
	for _, s := range Builtins(deps) {
		reg.Register(s)
	}
}
