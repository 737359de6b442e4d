package reconcile

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"

	"hostdrift/internal/domain"
)

// Diff compares one matched pair and returns one verdict per tracked
// attribute, in domain.TrackedAttributes order.
func Diff(host domain.HostFact, device domain.DeviceRecord) []domain.AttributeVerdict {
	return []domain.AttributeVerdict{
		evaluate(domain.AttrManagementIP, func() domain.AttributeVerdict {
			return compareIP(domain.AttrManagementIP, host.ManagementIP, device.PrimaryIP)
		}),
		evaluate(domain.AttrCPUCores, func() domain.AttributeVerdict {
			return compareInt(domain.AttrCPUCores, host.CPUCores, device.CPUCores)
		}),
		evaluate(domain.AttrRAMGB, func() domain.AttributeVerdict {
			return compareInt(domain.AttrRAMGB, host.RAMGB, device.RAMGB)
		}),
		evaluate(domain.AttrDatastores, func() domain.AttributeVerdict {
			return compareSet(domain.AttrDatastores, host.Datastores, device.Datastores)
		}),
		evaluate(domain.AttrPhysicalNICs, func() domain.AttributeVerdict {
			return compareSet(domain.AttrPhysicalNICs, host.PhysicalNICs, device.InterfaceNames(domain.PhysicalNICPrefix))
		}),
		evaluate(domain.AttrVMKernelNames, func() domain.AttributeVerdict {
			return compareSet(domain.AttrVMKernelNames, host.VMKernelNames(), device.InterfaceNames(domain.VMKernelPrefix))
		}),
		evaluate(domain.AttrVMKernelVLANs, func() domain.AttributeVerdict {
			return compareVLANs(host.VMKernels, device.InterfacesWithPrefix(domain.VMKernelPrefix))
		}),
	}
}

// evaluate runs one comparison; a panic becomes an Incomparable verdict so the
// remaining attributes are still evaluated
func evaluate(attr string, fn func() domain.AttributeVerdict) (v domain.AttributeVerdict) {
	defer func() {
		if r := recover(); r != nil {
			v = domain.AttributeVerdict{
				Attribute: attr,
				Status:    domain.VerdictIncomparable,
				Detail:    fmt.Sprintf("comparison failed: %v", r),
			}
		}
	}()
	return fn()
}

func compareInt(attr string, live, cmdb *int) domain.AttributeVerdict {
	v := domain.AttributeVerdict{
		Attribute: attr,
		LiveValue: intValue(live),
		CMDBValue: intValue(cmdb),
	}
	switch {
	case live == nil && cmdb == nil:
		v.Status = domain.VerdictIncomparable
		v.Detail = "not reported by either side"
	case live == nil:
		v.Status = domain.VerdictIncomparable
		v.Detail = "not reported by live inventory"
	case cmdb == nil:
		v.Status = domain.VerdictIncomparable
		v.Detail = "not set in CMDB"
	case *live == *cmdb:
		v.Status = domain.VerdictMatch
	default:
		v.Status = domain.VerdictMismatch
		v.Detail = fmt.Sprintf("live %d, cmdb %d", *live, *cmdb)
	}
	return v
}

func intValue(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

// normalizeSet trims, drops empties and dedupes case-insensitively.
// It returns the display values in sorted order keyed by their folded form.
func normalizeSet(values []string) (map[string]string, []string) {
	byKey := make(map[string]string, len(values))
	for _, raw := range values {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := byKey[key]; !ok {
			byKey[key] = s
		}
	}
	display := make([]string, 0, len(byKey))
	for _, s := range byKey {
		display = append(display, s)
	}
	sort.Slice(display, func(i, j int) bool {
		return strings.ToLower(display[i]) < strings.ToLower(display[j])
	})
	return byKey, display
}

func compareSet(attr string, live, cmdb []string) domain.AttributeVerdict {
	liveSet, liveDisplay := normalizeSet(live)
	cmdbSet, cmdbDisplay := normalizeSet(cmdb)

	v := domain.AttributeVerdict{
		Attribute: attr,
		LiveValue: liveDisplay,
		CMDBValue: cmdbDisplay,
	}

	if len(liveSet) == 0 && len(cmdbSet) == 0 {
		v.Status = domain.VerdictMatch
		return v
	}

	for _, s := range liveDisplay {
		if _, ok := cmdbSet[strings.ToLower(s)]; !ok {
			v.OnlyInLive = append(v.OnlyInLive, s)
		}
	}
	for _, s := range cmdbDisplay {
		if _, ok := liveSet[strings.ToLower(s)]; !ok {
			v.OnlyInCMDB = append(v.OnlyInCMDB, s)
		}
	}

	if len(v.OnlyInLive) == 0 && len(v.OnlyInCMDB) == 0 {
		v.Status = domain.VerdictMatch
		return v
	}

	v.Status = domain.VerdictMismatch
	var parts []string
	if len(v.OnlyInLive) > 0 {
		parts = append(parts, "only in live: "+strings.Join(v.OnlyInLive, ", "))
	}
	if len(v.OnlyInCMDB) > 0 {
		parts = append(parts, "only in cmdb: "+strings.Join(v.OnlyInCMDB, ", "))
	}
	v.Detail = strings.Join(parts, "; ")
	return v
}

// normalizeIP strips a CIDR suffix and canonicalizes the address.
// Unparseable input is returned trimmed and lowercased.
func normalizeIP(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '/'); idx >= 0 {
		s = s[:idx]
	}
	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.Unmap().String()
	}
	return strings.ToLower(s)
}

func compareIP(attr, live, cmdb string) domain.AttributeVerdict {
	l, c := normalizeIP(live), normalizeIP(cmdb)
	v := domain.AttributeVerdict{
		Attribute: attr,
		LiveValue: nilIfEmpty(l),
		CMDBValue: nilIfEmpty(c),
	}
	switch {
	case l == "" && c == "":
		v.Status = domain.VerdictIncomparable
		v.Detail = "not reported by either side"
	case l == "":
		v.Status = domain.VerdictIncomparable
		v.Detail = "no management address in live inventory"
	case c == "":
		v.Status = domain.VerdictIncomparable
		v.Detail = "no primary IP in CMDB"
	case l == c:
		v.Status = domain.VerdictMatch
	default:
		v.Status = domain.VerdictMismatch
		v.Detail = fmt.Sprintf("live %s, cmdb %s", l, c)
	}
	return v
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// compareVLANs compares the VLAN of every VMkernel interface present on both
// sides. Interfaces present on one side only are covered by vmkernel_names.
func compareVLANs(vmks []domain.VMKernel, ifaces []domain.Interface) domain.AttributeVerdict {
	cmdbByName := make(map[string]domain.Interface, len(ifaces))
	for _, iface := range ifaces {
		cmdbByName[strings.ToLower(strings.TrimSpace(iface.Name))] = iface
	}

	sorted := make([]domain.VMKernel, len(vmks))
	copy(sorted, vmks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	liveValues := make(map[string]any)
	cmdbValues := make(map[string]any)
	var matched, mismatched, skipped []string

	for _, vmk := range sorted {
		name := strings.TrimSpace(vmk.Name)
		iface, ok := cmdbByName[strings.ToLower(name)]
		if name == "" || !ok {
			continue
		}

		if vmk.VLAN.State == domain.VLANAbsent {
			liveValues[name] = nil
		} else {
			liveValues[name] = vmk.VLAN.String()
		}
		cmdbValues[name] = intValue(iface.UntaggedVLAN)

		switch {
		case vmk.VLAN.IsUnknown():
			skipped = append(skipped, name+" (unknown, not compared)")
		case !vmk.VLAN.IsKnown():
			skipped = append(skipped, name+" (not reported by live inventory)")
		case iface.UntaggedVLAN == nil:
			skipped = append(skipped, name+" (no untagged VLAN in CMDB)")
		case vmk.VLAN.ID != *iface.UntaggedVLAN:
			mismatched = append(mismatched, fmt.Sprintf("%s: live %d, cmdb %d", name, vmk.VLAN.ID, *iface.UntaggedVLAN))
		default:
			matched = append(matched, name)
		}
	}

	v := domain.AttributeVerdict{
		Attribute: domain.AttrVMKernelVLANs,
		LiveValue: liveValues,
		CMDBValue: cmdbValues,
	}

	switch {
	case len(mismatched) > 0:
		v.Status = domain.VerdictMismatch
		v.Detail = strings.Join(mismatched, "; ")
	case len(matched) > 0:
		v.Status = domain.VerdictMatch
		if len(skipped) > 0 {
			v.Detail = "skipped " + strings.Join(skipped, ", ")
		}
	case len(skipped) > 0:
		v.Status = domain.VerdictIncomparable
		v.Detail = strings.Join(skipped, ", ")
	default:
		v.Status = domain.VerdictIncomparable
		v.Detail = "no VMkernel interface present on both sides"
	}
	return v
}
