package codec

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"hostdrift/internal/domain"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []string
	}{
		{"nil", nil, nil},
		{"empty string", "  ", nil},
		{"csv", "ds1, ds2", []string{"ds1", "ds2"}},
		{"csv drops empties", "ds1,, ds2,", []string{"ds1", "ds2"}},
		{"json string", `["ds1", "ds2"]`, []string{"ds1", "ds2"}},
		{"json string trims", `[" ds1 ", ""]`, []string{"ds1"}},
		{"broken json falls back to csv", `[ds1, ds2`, []string{"[ds1", "ds2"}},
		{"native list", []any{"ds1", 2, nil}, []string{"ds1", "2"}},
		{"string slice", []string{"ds1", " "}, []string{"ds1"}},
		{"scalar", 42, []string{"42"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseList(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseList(%#v) = %#v, want %#v", tt.input, got, tt.want)
			}
		})
	}
}

func sampleSnapshot() *Snapshot {
	vlan := 20
	return &Snapshot{
		Hosts: []domain.HostFact{{
			Hostname:     "esx01.corp.tld",
			CPUCores:     domain.IntPtr(32),
			RAMGB:        domain.IntPtr(512),
			Datastores:   []string{"ds1", "ds2"},
			PhysicalNICs: []string{"vmnic0"},
			VMKernels: []domain.VMKernel{
				{Name: "vmk0", IP: "10.0.0.5", VLAN: domain.TaggedVLAN(20)},
				{Name: "vmk1", VLAN: domain.UnknownVLAN()},
			},
			ManagementIP: "10.0.0.5",
		}},
		Devices: []domain.DeviceRecord{{
			ID:         7,
			Name:       "esx01",
			CPUCores:   domain.IntPtr(32),
			Datastores: []string{"ds1"},
			Interfaces: []domain.Interface{{Name: "vmk0", UntaggedVLAN: &vlan}},
			PrimaryIP:  "10.0.0.5/24",
		}},
	}
}

func TestSnapshotFiles(t *testing.T) {
	for _, ext := range []string{".yaml", ".json"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "snapshot"+ext)
			want := sampleSnapshot()

			if err := SaveSnapshot(path, want); err != nil {
				t.Fatalf("SaveSnapshot() error = %v", err)
			}
			got, err := LoadSnapshot(path)
			if err != nil {
				t.Fatalf("LoadSnapshot() error = %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("snapshot changed on disk:\n got %+v\nwant %+v", got, want)
			}
		})
	}
}

func TestYAMLDecodeHandwritten(t *testing.T) {
	doc := `
hosts:
  - hostname: esx02.lab
    cpu_cores: 16
    vmkernels:
      - name: vmk0
        vlan: 30
      - name: vmk1
        vlan: unknown
devices:
  - name: esx02
    interfaces:
      - name: vmk0
        untagged_vlan: 30
`
	snap, err := NewYAMLCodec().Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(snap.Hosts) != 1 || len(snap.Devices) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	vmks := snap.Hosts[0].VMKernels
	if vmks[0].VLAN != domain.TaggedVLAN(30) || !vmks[1].VLAN.IsUnknown() {
		t.Errorf("vlans = %+v", vmks)
	}
	if *snap.Hosts[0].CPUCores != 16 {
		t.Errorf("cpu_cores = %d", *snap.Hosts[0].CPUCores)
	}
}

func TestYAMLDecodeRejectsUnknownFields(t *testing.T) {
	_, err := NewYAMLCodec().Decode(strings.NewReader("hosts:\n  - hostnme: typo\n"))
	if err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestYAMLDecodeEmpty(t *testing.T) {
	snap, err := NewYAMLCodec().Decode(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(snap.Hosts) != 0 || len(snap.Devices) != 0 {
		t.Errorf("snapshot = %+v, want empty", snap)
	}
}

func TestForPath(t *testing.T) {
	tests := map[string]string{
		"hosts.json": "json",
		"hosts.JSON": "json",
		"hosts.yaml": "yaml",
		"hosts.yml":  "yaml",
		"hosts":      "yaml",
	}
	for path, want := range tests {
		if got := ForPath(path).Format(); got != want {
			t.Errorf("ForPath(%q) = %s, want %s", path, got, want)
		}
	}
}
