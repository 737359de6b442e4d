package reconcile

import (
	"strings"
	"testing"

	"hostdrift/internal/domain"
)

func verdictFor(t *testing.T, verdicts []domain.AttributeVerdict, attr string) domain.AttributeVerdict {
	t.Helper()
	for _, v := range verdicts {
		if v.Attribute == attr {
			return v
		}
	}
	t.Fatalf("no verdict for %s", attr)
	return domain.AttributeVerdict{}
}

func vlanPtr(v int) *int { return &v }

func TestDiffAttributeOrder(t *testing.T) {
	verdicts := Diff(domain.HostFact{}, domain.DeviceRecord{})
	if len(verdicts) != len(domain.TrackedAttributes) {
		t.Fatalf("len(verdicts) = %d, want %d", len(verdicts), len(domain.TrackedAttributes))
	}
	for i, attr := range domain.TrackedAttributes {
		if verdicts[i].Attribute != attr {
			t.Errorf("verdicts[%d] = %s, want %s", i, verdicts[i].Attribute, attr)
		}
		want := domain.VerdictIncomparable
		switch attr {
		case domain.AttrDatastores, domain.AttrPhysicalNICs, domain.AttrVMKernelNames:
			want = domain.VerdictMatch
		}
		if verdicts[i].Status != want {
			t.Errorf("%s on empty records = %s, want %s", attr, verdicts[i].Status, want)
		}
	}
}

func TestCompareInt(t *testing.T) {
	tests := []struct {
		name string
		live *int
		cmdb *int
		want domain.VerdictStatus
	}{
		{"equal", domain.IntPtr(32), domain.IntPtr(32), domain.VerdictMatch},
		{"different", domain.IntPtr(32), domain.IntPtr(24), domain.VerdictMismatch},
		{"live missing", nil, domain.IntPtr(24), domain.VerdictIncomparable},
		{"cmdb missing", domain.IntPtr(24), nil, domain.VerdictIncomparable},
		{"zero is a value", domain.IntPtr(0), domain.IntPtr(0), domain.VerdictMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := compareInt(domain.AttrCPUCores, tt.live, tt.cmdb)
			if v.Status != tt.want {
				t.Errorf("compareInt() = %s, want %s (%s)", v.Status, tt.want, v.Detail)
			}
		})
	}
}

func TestCompareSet(t *testing.T) {
	tests := []struct {
		name     string
		live     []string
		cmdb     []string
		want     domain.VerdictStatus
		onlyLive string
		onlyCMDB string
	}{
		{"same order", []string{"ds1", "ds2"}, []string{"ds1", "ds2"}, domain.VerdictMatch, "", ""},
		{"order insensitive", []string{"ds2", "ds1"}, []string{"ds1", "ds2"}, domain.VerdictMatch, "", ""},
		{"case insensitive", []string{"DS1"}, []string{"ds1"}, domain.VerdictMatch, "", ""},
		{"whitespace", []string{" ds1 "}, []string{"ds1", ""}, domain.VerdictMatch, "", ""},
		{"duplicates collapse", []string{"ds1", "ds1"}, []string{"ds1"}, domain.VerdictMatch, "", ""},
		{"missing in cmdb", []string{"ds1", "ds2", "ds3"}, []string{"ds1", "ds2"}, domain.VerdictMismatch, "ds3", ""},
		{"both sides differ", []string{"ds1", "ds4"}, []string{"ds1", "ds5"}, domain.VerdictMismatch, "ds4", "ds5"},
		{"cmdb empty", []string{"ds1"}, nil, domain.VerdictMismatch, "ds1", ""},
		{"both empty", nil, nil, domain.VerdictMatch, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := compareSet(domain.AttrDatastores, tt.live, tt.cmdb)
			if v.Status != tt.want {
				t.Fatalf("compareSet() = %s, want %s", v.Status, tt.want)
			}
			if got := strings.Join(v.OnlyInLive, ","); got != tt.onlyLive {
				t.Errorf("OnlyInLive = %q, want %q", got, tt.onlyLive)
			}
			if got := strings.Join(v.OnlyInCMDB, ","); got != tt.onlyCMDB {
				t.Errorf("OnlyInCMDB = %q, want %q", got, tt.onlyCMDB)
			}
		})
	}
}

func TestCompareSetDetailNamesMissingItems(t *testing.T) {
	v := compareSet(domain.AttrDatastores, []string{"ds1", "ds2", "ds3"}, []string{"ds1", "ds2"})
	if !strings.Contains(v.Detail, "ds3") {
		t.Errorf("Detail = %q, want it to name ds3", v.Detail)
	}
}

func TestCompareIP(t *testing.T) {
	tests := []struct {
		name string
		live string
		cmdb string
		want domain.VerdictStatus
	}{
		{"equal", "10.0.0.5", "10.0.0.5", domain.VerdictMatch},
		{"cmdb with prefix", "10.0.0.5", "10.0.0.5/24", domain.VerdictMatch},
		{"mapped ipv4", "::ffff:10.0.0.5", "10.0.0.5/24", domain.VerdictMatch},
		{"ipv6 forms", "2001:db8::1", "2001:DB8:0:0::1/64", domain.VerdictMatch},
		{"different", "10.0.0.5", "10.0.0.6/24", domain.VerdictMismatch},
		{"live missing", "", "10.0.0.6/24", domain.VerdictIncomparable},
		{"cmdb missing", "10.0.0.5", "", domain.VerdictIncomparable},
		{"unparseable compares as text", "esx01-mgmt", "ESX01-MGMT", domain.VerdictMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := compareIP(domain.AttrManagementIP, tt.live, tt.cmdb)
			if v.Status != tt.want {
				t.Errorf("compareIP(%q, %q) = %s, want %s", tt.live, tt.cmdb, v.Status, tt.want)
			}
		})
	}
}

func TestCompareVLANs(t *testing.T) {
	tests := []struct {
		name   string
		vmks   []domain.VMKernel
		ifaces []domain.Interface
		want   domain.VerdictStatus
	}{
		{
			name:   "match",
			vmks:   []domain.VMKernel{{Name: "vmk0", VLAN: domain.TaggedVLAN(20)}},
			ifaces: []domain.Interface{{Name: "vmk0", UntaggedVLAN: vlanPtr(20)}},
			want:   domain.VerdictMatch,
		},
		{
			name:   "mismatch",
			vmks:   []domain.VMKernel{{Name: "vmk0", VLAN: domain.TaggedVLAN(10)}},
			ifaces: []domain.Interface{{Name: "vmk0", UntaggedVLAN: vlanPtr(20)}},
			want:   domain.VerdictMismatch,
		},
		{
			name:   "live unknown is never a mismatch",
			vmks:   []domain.VMKernel{{Name: "vmk0", VLAN: domain.UnknownVLAN()}},
			ifaces: []domain.Interface{{Name: "vmk0", UntaggedVLAN: vlanPtr(20)}},
			want:   domain.VerdictIncomparable,
		},
		{
			name:   "cmdb has no vlan",
			vmks:   []domain.VMKernel{{Name: "vmk0", VLAN: domain.TaggedVLAN(20)}},
			ifaces: []domain.Interface{{Name: "vmk0"}},
			want:   domain.VerdictIncomparable,
		},
		{
			name:   "live absent",
			vmks:   []domain.VMKernel{{Name: "vmk0"}},
			ifaces: []domain.Interface{{Name: "vmk0", UntaggedVLAN: vlanPtr(20)}},
			want:   domain.VerdictIncomparable,
		},
		{
			name:   "no shared names",
			vmks:   []domain.VMKernel{{Name: "vmk0", VLAN: domain.TaggedVLAN(20)}},
			ifaces: []domain.Interface{{Name: "vmk1", UntaggedVLAN: vlanPtr(20)}},
			want:   domain.VerdictIncomparable,
		},
		{
			name: "match with skipped interface",
			vmks: []domain.VMKernel{
				{Name: "vmk0", VLAN: domain.TaggedVLAN(20)},
				{Name: "vmk1", VLAN: domain.UnknownVLAN()},
			},
			ifaces: []domain.Interface{
				{Name: "vmk0", UntaggedVLAN: vlanPtr(20)},
				{Name: "vmk1", UntaggedVLAN: vlanPtr(30)},
			},
			want: domain.VerdictMatch,
		},
		{
			name:   "name case differs",
			vmks:   []domain.VMKernel{{Name: "VMK0", VLAN: domain.TaggedVLAN(20)}},
			ifaces: []domain.Interface{{Name: "vmk0 ", UntaggedVLAN: vlanPtr(20)}},
			want:   domain.VerdictMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := compareVLANs(tt.vmks, tt.ifaces)
			if v.Status != tt.want {
				t.Errorf("compareVLANs() = %s, want %s (%s)", v.Status, tt.want, v.Detail)
			}
		})
	}
}

func TestCompareVLANsSkippedDetail(t *testing.T) {
	v := compareVLANs(
		[]domain.VMKernel{
			{Name: "vmk0", VLAN: domain.TaggedVLAN(20)},
			{Name: "vmk1", VLAN: domain.UnknownVLAN()},
		},
		[]domain.Interface{
			{Name: "vmk0", UntaggedVLAN: vlanPtr(20)},
			{Name: "vmk1", UntaggedVLAN: vlanPtr(30)},
		})
	if !strings.Contains(v.Detail, "vmk1") {
		t.Errorf("Detail = %q, want it to name the skipped vmk1", v.Detail)
	}
}

func TestDiffFullHost(t *testing.T) {
	host := domain.HostFact{
		Hostname:     "esx01.corp.tld",
		CPUCores:     domain.IntPtr(32),
		RAMGB:        domain.IntPtr(512),
		Datastores:   []string{"ds1", "ds2", "ds3"},
		PhysicalNICs: []string{"vmnic0", "vmnic1"},
		VMKernels: []domain.VMKernel{
			{Name: "vmk0", IP: "10.0.0.5", VLAN: domain.TaggedVLAN(20)},
			{Name: "vmk1", VLAN: domain.UnknownVLAN()},
		},
		ManagementIP: "10.0.0.5",
	}
	device := domain.DeviceRecord{
		Name:       "esx01",
		CPUCores:   domain.IntPtr(24),
		RAMGB:      domain.IntPtr(512),
		Datastores: []string{"ds1", "ds2"},
		Interfaces: []domain.Interface{
			{Name: "vmnic0"},
			{Name: "vmnic1"},
			{Name: "vmk0", UntaggedVLAN: vlanPtr(20)},
			{Name: "vmk1", UntaggedVLAN: vlanPtr(40)},
			{Name: "mgmt0"},
		},
		PrimaryIP: "10.0.0.5/24",
	}

	verdicts := Diff(host, device)

	want := map[string]domain.VerdictStatus{
		domain.AttrManagementIP:  domain.VerdictMatch,
		domain.AttrCPUCores:      domain.VerdictMismatch,
		domain.AttrRAMGB:         domain.VerdictMatch,
		domain.AttrDatastores:    domain.VerdictMismatch,
		domain.AttrPhysicalNICs:  domain.VerdictMatch,
		domain.AttrVMKernelNames: domain.VerdictMatch,
		domain.AttrVMKernelVLANs: domain.VerdictMatch,
	}
	for attr, status := range want {
		if got := verdictFor(t, verdicts, attr).Status; got != status {
			t.Errorf("%s = %s, want %s", attr, got, status)
		}
	}

	ds := verdictFor(t, verdicts, domain.AttrDatastores)
	if strings.Join(ds.OnlyInLive, ",") != "ds3" {
		t.Errorf("datastores OnlyInLive = %v, want [ds3]", ds.OnlyInLive)
	}
}
