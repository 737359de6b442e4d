package reconcile

import (
	"hostdrift/internal/domain"
)

// MarkUnfetched rewrites results whose counterpart was dropped by a partial
// fetch. A live host with no device is Unfetched when a failed device would
// have matched it, and likewise for devices and failed hosts. Failed names
// that match nothing present are appended as bare Unfetched results so the
// report still lists them.
func MarkUnfetched(results []domain.MatchResult, failed domain.FetchFailures, aliases domain.AliasTable, mode domain.MatchMode) []domain.MatchResult {
	if failed.Empty() {
		return results
	}

	// failed devices by raw name (alias targets) and normalized key
	devByName := make(map[string]bool, len(failed.Devices))
	devByKey := make(map[string][]string, len(failed.Devices))
	for _, name := range failed.Devices {
		devByName[name] = true
		if key := Normalize(name, mode); key != "" {
			devByKey[key] = append(devByKey[key], name)
		}
	}

	// failed hosts by the device name or key they would resolve to
	hostByTarget := make(map[string]string, len(failed.Hosts))
	hostByKey := make(map[string]string, len(failed.Hosts))
	for _, name := range failed.Hosts {
		if target, ok := aliases[name]; ok {
			hostByTarget[target] = name
		} else if key := Normalize(name, mode); key != "" {
			hostByKey[key] = name
		}
	}

	usedDev := make(map[string]bool)
	usedHost := make(map[string]bool)

	out := make([]domain.MatchResult, 0, len(results)+len(failed.Hosts)+len(failed.Devices))
	for _, r := range results {
		switch r.Kind {
		case domain.MatchKindMissingInCMDB:
			if target, ok := aliases[r.Host.Hostname]; ok {
				if devByName[target] {
					usedDev[target] = true
					r = domain.Unfetched(r.Key, r.Host, nil)
				}
			} else if names, ok := devByKey[r.Key]; ok {
				for _, name := range names {
					usedDev[name] = true
				}
				r = domain.Unfetched(r.Key, r.Host, nil)
			}
		case domain.MatchKindMissingInLive:
			if name, ok := hostByTarget[r.Device.Name]; ok {
				usedHost[name] = true
				r = domain.Unfetched(r.Key, nil, r.Device)
			} else if name, ok := hostByKey[Normalize(r.Device.Name, mode)]; ok {
				usedHost[name] = true
				r = domain.Unfetched(r.Key, nil, r.Device)
			}
		}
		out = append(out, r)
	}

	for _, name := range failed.Hosts {
		if !usedHost[name] {
			out = append(out, domain.Unfetched(name, nil, nil))
		}
	}
	for _, name := range failed.Devices {
		if !usedDev[name] {
			out = append(out, domain.Unfetched(name, nil, nil))
		}
	}
	return out
}
