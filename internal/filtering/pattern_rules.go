package filtering

import (
	"fmt"

	"github.com/gobwas/glob"
)

// compiledPattern pairs a glob with its source text for reason messages
type compiledPattern struct {
	source string
	match  glob.Glob
}

// PatternRules holds compiled glob include/exclude rules for identifier
// matching.
type PatternRules struct {
	include []compiledPattern
	exclude []compiledPattern
}

// CompilePatternRules compiles include and exclude patterns. gobwas/glob
// is used so '*' matches across identifier segment separators, unlike
// filepath.Match.
func CompilePatternRules(include, exclude []string) (*PatternRules, error) {
	compile := func(patterns []string, kind string) ([]compiledPattern, error) {
		compiled := make([]compiledPattern, 0, len(patterns))
		for _, p := range patterns {
			g, err := glob.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("invalid %s pattern '%s': %w", kind, p, err)
			}
			compiled = append(compiled, compiledPattern{source: p, match: g})
		}
		return compiled, nil
	}

	include2, err := compile(include, "include")
	if err != nil {
		return nil, err
	}
	exclude2, err := compile(exclude, "exclude")
	if err != nil {
		return nil, err
	}

	return &PatternRules{include: include2, exclude: exclude2}, nil
}

// hasRules reports whether any include or exclude patterns are configured
func (r *PatternRules) hasRules() bool {
	return r != nil && (len(r.include) > 0 || len(r.exclude) > 0)
}

// ShouldInclude determines if a name should be included based on the
// compiled include/exclude patterns
//
// Logic:
// 1. If exclude patterns are specified and name matches any exclude pattern -> exclude (exclude takes precedence)
// 2. If include patterns are specified and name matches any include pattern -> include
// 3. If include patterns are specified and name doesn't match any -> exclude
// 4. If only exclude patterns are specified (no include) and name doesn't match exclude -> include
// 5. If no patterns are specified -> include (default behavior)
func (r *PatternRules) ShouldInclude(name string) (bool, string) {
	if r == nil {
		return true, "no patterns specified"
	}

	// Check exclude patterns first (exclude takes precedence)
	for _, p := range r.exclude {
		if p.match.Match(name) {
			return false, fmt.Sprintf("excluded by pattern '%s'", p.source)
		}
	}

	// If include patterns are specified, name must match at least one
	if len(r.include) > 0 {
		for _, p := range r.include {
			if p.match.Match(name) {
				return true, fmt.Sprintf("included by pattern '%s'", p.source)
			}
		}
		// Include patterns specified but no match found
		return false, "no match found in include patterns"
	}

	// No include patterns specified (or empty), and didn't match exclude patterns
	if len(r.exclude) > 0 {
		return true, "no match in exclude patterns"
	}
	return true, "no patterns specified"
}
