package filtering

import (
	"fmt"
	"strings"

	"github.com/stelliform/plughost/internal/config"
)

// Admission decides which contributed components enter the extension
// registry. Rules come from the admission section of the configuration
// and are compiled once at construction.
type Admission struct {
	components *PatternRules
	points     *PatternRules
	tags       *TagRules
}

// NewAdmission compiles admission rules from configuration. A nil
// configuration admits every component.
func NewAdmission(cfg *config.AdmissionConfig) (*Admission, error) {
	if cfg == nil {
		return &Admission{}, nil
	}

	adm := &Admission{}

	if cfg.Components != nil {
		rules, err := CompilePatternRules(cfg.Components.Include, cfg.Components.Exclude)
		if err != nil {
			return nil, fmt.Errorf("admission.components: %w", err)
		}
		adm.components = rules
	}
	if cfg.Points != nil {
		rules, err := CompilePatternRules(cfg.Points.Include, cfg.Points.Exclude)
		if err != nil {
			return nil, fmt.Errorf("admission.points: %w", err)
		}
		adm.points = rules
	}
	if cfg.Tags != nil {
		adm.tags = NewTagRules(cfg.Tags.Include, cfg.Tags.Exclude)
	}

	return adm, nil
}

// Admit determines whether a component may enter the registry and provides
// detailed reasoning. All three rule sets must pass for a component to be
// admitted.
func (a *Admission) Admit(componentID, point string, tags []string) (bool, string) {
	if a == nil {
		return true, "no admission rules specified"
	}

	// Apply component identifier filtering first
	componentOK, componentReason := a.components.ShouldInclude(componentID)
	if !componentOK {
		return false, fmt.Sprintf("component filter: %s", componentReason)
	}

	// Apply extension point filtering
	pointOK, pointReason := a.points.ShouldInclude(point)
	if !pointOK {
		return false, fmt.Sprintf("point filter: %s", pointReason)
	}

	// Apply tag filtering
	tagOK, tagReason := a.tags.ShouldInclude(tags)
	if !tagOK {
		return false, fmt.Sprintf("tag filter: %s", tagReason)
	}

	// All rule sets passed - determine the admission reason
	reasons := []string{}
	if a.components.hasRules() {
		reasons = append(reasons, fmt.Sprintf("component filter: %s", componentReason))
	}
	if a.points.hasRules() {
		reasons = append(reasons, fmt.Sprintf("point filter: %s", pointReason))
	}
	if a.tags.hasRules() {
		reasons = append(reasons, fmt.Sprintf("tag filter: %s", tagReason))
	}

	if len(reasons) == 0 {
		return true, "no admission rules specified, default include"
	}

	return true, "passed all filters: " + strings.Join(reasons, " AND ")
}
