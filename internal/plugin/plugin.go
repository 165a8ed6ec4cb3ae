// Package plugin implements the ranked notification pipeline: a registry
// of dynamically arriving and departing notification plugins ordered by
// ranking, and a dispatcher that feeds configuration changes through that
// ordered set.
package plugin

import (
	"context"
	"math"
	"sort"

	"github.com/stelliform/plughost/internal/host"
)

// Capability is the service capability under which notification plugins
// register with the host runtime.
const Capability = "plughost.plugin.notification"

// Plugin is the modification hook implemented by notification plugins.
// Modify may mutate props in place; mutations made by a plugin are visible
// to plugins invoked after it in the same dispatch.
type Plugin interface {
	Modify(ctx context.Context, subjectID string, props map[string]any) error
}

// Participant is one registered plugin together with its dispatch metadata,
// read from the service properties at registration time.
type Participant struct {
	// Ref is the service reference backing this participant. The instance
	// is resolved through it at dispatch time, not held here.
	Ref host.ServiceRef

	// Ranking orders dispatch; higher rankings are invoked first.
	Ranking int

	targets map[string]struct{}
}

// Accepts reports whether the participant wants events for subjectID.
// A participant without a target filter accepts every subject.
func (p Participant) Accepts(subjectID string) bool {
	if len(p.targets) == 0 {
		return true
	}
	_, ok := p.targets[subjectID]
	return ok
}

// Targets returns the participant's target filter in sorted order, or nil
// when the participant is unrestricted.
func (p Participant) Targets() []string {
	if len(p.targets) == 0 {
		return nil
	}
	out := make([]string, 0, len(p.targets))
	for t := range p.targets {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func newParticipant(ref host.ServiceRef) Participant {
	return Participant{
		Ref:     ref,
		Ranking: rankingOf(ref),
		targets: targetsOf(ref),
	}
}

// rankingOf reads the ranking property. A missing or non-integer value
// counts as ranking 0.
func rankingOf(ref host.ServiceRef) int {
	switch v := ref.Property(host.PropRanking).(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		// JSON round-trips numbers as float64
		if v == math.Trunc(v) {
			return int(v)
		}
	}
	return 0
}

// targetsOf reads the target filter property. A single string, a string
// slice, and a decoded-JSON []any are all accepted; an empty or absent
// filter yields nil, meaning the participant accepts every subject.
func targetsOf(ref host.ServiceRef) map[string]struct{} {
	var names []string
	switch v := ref.Property(host.PropTargets).(type) {
	case string:
		names = []string{v}
	case []string:
		names = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
	}

	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n != "" {
			set[n] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}
