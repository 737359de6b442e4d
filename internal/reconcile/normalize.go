package reconcile

import (
	"sort"
	"strings"

	"hostdrift/internal/domain"
)

// Normalize canonicalizes a hostname for matching.
// short keeps the label before the first dot; fqdn and lowercase keep the
// whole name. All modes lowercase and trim. Normalize is idempotent.
func Normalize(name string, mode domain.MatchMode) string {
	n := strings.ToLower(strings.TrimSpace(name))
	switch mode {
	case domain.MatchModeFQDN, domain.MatchModeLowercase:
		return n
	default:
		if idx := strings.Index(n, "."); idx >= 0 {
			n = strings.TrimSpace(n[:idx])
		}
		return n
	}
}

// ValidateAliases rejects alias tables where two live names map to the same
// CMDB device, or where a target is empty
func ValidateAliases(aliases domain.AliasTable) error {
	byTarget := make(map[string][]string)
	for live, target := range aliases {
		if strings.TrimSpace(target) == "" {
			return domain.NewConfigurationError(domain.ErrInvalidSetting, live, []string{live},
				"alias for %q has an empty target", live)
		}
		byTarget[target] = append(byTarget[target], live)
	}

	targets := make([]string, 0, len(byTarget))
	for target := range byTarget {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	for _, target := range targets {
		lives := byTarget[target]
		if len(lives) > 1 {
			sort.Strings(lives)
			return domain.NewConfigurationError(domain.ErrDuplicateAliasTarget, target, lives,
				"%d live hostnames are aliased to CMDB device '%s'", len(lives), target)
		}
	}
	return nil
}
