package filtering

import "fmt"

// TagRules holds exact-match include/exclude rules over component tags.
type TagRules struct {
	include []string
	exclude []string
}

// NewTagRules creates tag rules from include and exclude tag lists.
func NewTagRules(include, exclude []string) *TagRules {
	return &TagRules{include: include, exclude: exclude}
}

// hasRules reports whether any include or exclude tags are configured
func (r *TagRules) hasRules() bool {
	return r != nil && (len(r.include) > 0 || len(r.exclude) > 0)
}

// ShouldInclude determines if a component with the given tags should be
// included based on the include/exclude tag lists
//
// Logic:
// 1. If exclude tags are specified and any component tag matches any exclude tag -> exclude (exclude takes precedence)
// 2. If include tags are specified and any component tag matches any include tag -> include
// 3. If include tags are specified and no component tags match any include tag -> exclude
// 4. If only exclude tags are specified (no include) and no component tags match exclude -> include
// 5. If no tag rules are specified -> include (default behavior)
func (r *TagRules) ShouldInclude(tags []string) (bool, string) {
	if r == nil {
		return true, "no tag rules specified"
	}

	// Check exclude tags first (exclude takes precedence)
	for _, tag := range tags {
		for _, excludeTag := range r.exclude {
			if tag == excludeTag {
				return false, fmt.Sprintf("excluded by tag '%s'", excludeTag)
			}
		}
	}

	// If include tags are specified, at least one component tag must match
	if len(r.include) > 0 {
		for _, tag := range tags {
			for _, includeTag := range r.include {
				if tag == includeTag {
					return true, fmt.Sprintf("included by tag '%s'", includeTag)
				}
			}
		}
		// Include tags specified but no match found
		return false, fmt.Sprintf("no matching tags found in include list %v (component tags: %v)", r.include, tags)
	}

	// No include tags specified (or empty), and didn't match exclude tags
	if len(r.exclude) > 0 {
		return true, fmt.Sprintf("no matching tags in exclude list %v (component tags: %v)", r.exclude, tags)
	}
	return true, "no tag rules specified"
}
