// Package trigger implements matching of repository events against trigger rules.
package trigger

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/zerr"
)

// Matches reports whether an event initiates a pipeline run under the rule.
//
// The event matches when its type is listed, its branch matches one of the
// branch globs, and at least one changed path is not covered by a
// path-exclude glob. Exclude-only changes suppress the trigger; an empty
// changed-path list cannot be fully excluded and therefore triggers.
// Matches has no side effects.
func Matches(event domain.Event, rule domain.TriggerRule) (bool, error) {
	if !eventTypeListed(rule.Events, event.Type) {
		return false, nil
	}

	branchOK, err := branchMatches(rule.Branches, event.Branch)
	if err != nil {
		return false, err
	}
	if !branchOK {
		return false, nil
	}

	if len(event.ChangedPaths) == 0 {
		return true, nil
	}

	for _, path := range event.ChangedPaths {
		excluded, err := pathExcluded(rule.PathsIgnore, path)
		if err != nil {
			return false, err
		}
		if !excluded {
			return true, nil
		}
	}

	return false, nil
}

// ValidateRule checks every glob in the rule so malformed patterns surface at
// expansion time rather than on the first event.
func ValidateRule(rule domain.TriggerRule) error {
	if len(rule.Events) == 0 {
		// A rule with no events can never match and the pipeline would
		// silently never run.
		return zerr.With(domain.ErrUnknownEventType, "reason", "trigger lists no events")
	}
	for _, e := range rule.Events {
		if !domain.KnownEventType(e) {
			return zerr.With(domain.ErrUnknownEventType, "event", string(e))
		}
	}
	for _, p := range rule.Branches {
		if !doublestar.ValidatePattern(p) {
			return zerr.With(domain.ErrInvalidPattern, "pattern", p)
		}
	}
	for _, p := range rule.PathsIgnore {
		if !doublestar.ValidatePattern(normalizePattern(p)) {
			return zerr.With(domain.ErrInvalidPattern, "pattern", p)
		}
	}
	return nil
}

func eventTypeListed(listed []domain.EventType, t domain.EventType) bool {
	for _, e := range listed {
		if e == t {
			return true
		}
	}
	return false
}

// branchMatches applies the branch allow-list. An empty list allows every
// branch, matching hosted-runner behavior when no branch filter is declared.
func branchMatches(patterns []string, branch string) (bool, error) {
	if len(patterns) == 0 {
		return true, nil
	}
	for _, p := range patterns {
		ok, err := doublestar.Match(p, branch)
		if err != nil {
			return false, zerr.With(zerr.Wrap(err, domain.ErrInvalidPattern.Error()), "pattern", p)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func pathExcluded(patterns []string, path string) (bool, error) {
	for _, p := range patterns {
		ok, err := doublestar.Match(normalizePattern(p), path)
		if err != nil {
			return false, zerr.With(zerr.Wrap(err, domain.ErrInvalidPattern.Error()), "pattern", p)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// normalizePattern rewrites hosted-CI filter shorthand into doublestar form.
// A leading "**" fused to a suffix, e.g. "**.md", means "this suffix at any
// depth"; doublestar only gives "**" its recursive meaning as a full path
// component, so the shorthand becomes "**/*.md".
func normalizePattern(p string) string {
	if strings.HasPrefix(p, "**") && !strings.HasPrefix(p, "**/") && len(p) > 2 {
		return "**/*" + p[2:]
	}
	return p
}
