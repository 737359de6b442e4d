package reconcile

import (
	"strconv"

	"hostdrift/internal/domain"
)

// deviceIndex looks devices up by raw name (alias targets) and normalized key
type deviceIndex struct {
	byName map[string]int
	byKey  map[string]int
}

func buildDeviceIndex(devices []domain.DeviceRecord, mode domain.MatchMode) (*deviceIndex, error) {
	idx := &deviceIndex{
		byName: make(map[string]int, len(devices)),
		byKey:  make(map[string]int, len(devices)),
	}

	for i := range devices {
		name := devices[i].Name
		if name == "" {
			continue
		}
		if prev, ok := idx.byName[name]; ok {
			return nil, domain.NewConfigurationError(domain.ErrDuplicateNormalizedName, name,
				[]string{describeDevice(devices[prev]), describeDevice(devices[i])},
				"two devices are named '%s'", name)
		}
		idx.byName[name] = i

		key := Normalize(name, mode)
		if key == "" {
			continue
		}
		if prev, ok := idx.byKey[key]; ok {
			return nil, domain.NewConfigurationError(domain.ErrDuplicateNormalizedName, key,
				[]string{describeDevice(devices[prev]), describeDevice(devices[i])},
				"two devices normalize to '%s'", key)
		}
		idx.byKey[key] = i
	}

	return idx, nil
}

// Resolve builds the bidirectional match between live hosts and CMDB devices.
//
// Every host and every device appears in exactly one result: hosts first in
// input order (Matched or MissingInCMDB), then unclaimed devices in input
// order (MissingInLive). An alias entry for the raw hostname wins over
// mode-based normalization and is compared verbatim against device names.
func Resolve(hosts []domain.HostFact, devices []domain.DeviceRecord, aliases domain.AliasTable, mode domain.MatchMode) ([]domain.MatchResult, error) {
	if err := ValidateAliases(aliases); err != nil {
		return nil, err
	}

	idx, err := buildDeviceIndex(devices, mode)
	if err != nil {
		return nil, err
	}

	results := make([]domain.MatchResult, 0, len(hosts)+len(devices))
	claimedBy := make(map[int]string)
	seenHosts := make(map[string]string)

	for i := range hosts {
		host := &hosts[i]

		var (
			key      string
			lookupID string
			devIdx   int
			found    bool
		)
		if target, ok := aliases[host.Hostname]; ok {
			key = target
			lookupID = "alias:" + target
			devIdx, found = idx.byName[target]
		} else {
			key = Normalize(host.Hostname, mode)
			lookupID = "name:" + key
			if key != "" {
				devIdx, found = idx.byKey[key]
			}
		}

		if key != "" {
			if prev, ok := seenHosts[lookupID]; ok {
				return nil, domain.NewConfigurationError(domain.ErrDuplicateHost, key,
					[]string{prev, host.Hostname},
					"two live hosts resolve to '%s'", key)
			}
			seenHosts[lookupID] = host.Hostname
		} else {
			key = host.Hostname
		}

		if !found {
			results = append(results, domain.MissingInCMDB(key, host))
			continue
		}

		if prev, ok := claimedBy[devIdx]; ok {
			return nil, domain.NewConfigurationError(domain.ErrDeviceClaimedTwice, devices[devIdx].Name,
				[]string{prev, host.Hostname},
				"CMDB device '%s' matches more than one live host", devices[devIdx].Name)
		}
		claimedBy[devIdx] = host.Hostname
		results = append(results, domain.Matched(key, host, &devices[devIdx]))
	}

	for i := range devices {
		if _, ok := claimedBy[i]; ok {
			continue
		}
		key := Normalize(devices[i].Name, mode)
		if key == "" {
			key = devices[i].Name
		}
		results = append(results, domain.MissingInLive(key, &devices[i]))
	}

	return results, nil
}

func describeDevice(d domain.DeviceRecord) string {
	if d.ID != 0 {
		return d.Name + "#" + strconv.Itoa(d.ID)
	}
	return d.Name
}
