package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestVLANJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  VLAN
		out   string
	}{
		{"tagged", `20`, TaggedVLAN(20), `20`},
		{"unknown", `"unknown"`, UnknownVLAN(), `"unknown"`},
		{"trunk alias", `"trunk"`, UnknownVLAN(), `"unknown"`},
		{"numeric string", `"30"`, TaggedVLAN(30), `30`},
		{"null", `null`, VLAN{}, `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got VLAN
			if err := json.Unmarshal([]byte(tt.input), &got); err != nil {
				t.Fatalf("Unmarshal(%s) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Unmarshal(%s) = %+v, want %+v", tt.input, got, tt.want)
			}
			data, err := json.Marshal(got)
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}
			if string(data) != tt.out {
				t.Errorf("Marshal = %s, want %s", data, tt.out)
			}
		})
	}

	t.Run("rejects garbage", func(t *testing.T) {
		var v VLAN
		if err := json.Unmarshal([]byte(`"vlan-twenty"`), &v); err == nil {
			t.Error("expected error for non-numeric vlan")
		}
	})
}

func TestVLANInsideVMKernel(t *testing.T) {
	var vmk VMKernel
	if err := json.Unmarshal([]byte(`{"name":"vmk0","ip":"10.0.0.5"}`), &vmk); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if vmk.VLAN.IsKnown() || vmk.VLAN.IsUnknown() {
		t.Errorf("missing vlan should be absent, got %+v", vmk.VLAN)
	}
}

func TestHostFactVMKernelNames(t *testing.T) {
	host := HostFact{
		VMKernels: []VMKernel{{Name: "vmk0"}, {Name: ""}, {Name: "vmk1"}},
	}
	got := host.VMKernelNames()
	if strings.Join(got, ",") != "vmk0,vmk1" {
		t.Errorf("VMKernelNames() = %v, want [vmk0 vmk1]", got)
	}
}

func TestDeviceInterfacesWithPrefix(t *testing.T) {
	device := DeviceRecord{
		Interfaces: []Interface{
			{Name: "vmnic0"},
			{Name: " VMNIC1 "},
			{Name: "vmk0"},
			{Name: "eth0"},
		},
	}

	if got := device.InterfaceNames(PhysicalNICPrefix); strings.Join(got, ",") != "vmnic0,VMNIC1" {
		t.Errorf("InterfaceNames(vmnic) = %v", got)
	}
	if got := device.InterfaceNames(VMKernelPrefix); strings.Join(got, ",") != "vmk0" {
		t.Errorf("InterfaceNames(vmk) = %v", got)
	}
}

func TestParseMatchMode(t *testing.T) {
	tests := []struct {
		input   string
		want    MatchMode
		wantErr bool
	}{
		{"short", MatchModeShort, false},
		{"FQDN", MatchModeFQDN, false},
		{" lowercase ", MatchModeLowercase, false},
		{"fuzzy", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMatchMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMatchMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMatchMode(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestRunStatusExitCode(t *testing.T) {
	tests := []struct {
		status RunStatus
		code   int
	}{
		{StatusClean, 0},
		{StatusFailed, 1},
		{StatusDrift, 2},
	}
	for _, tt := range tests {
		if got := tt.status.ExitCode(); got != tt.code {
			t.Errorf("RunStatus(%s).ExitCode() = %d, want %d", tt.status, got, tt.code)
		}
	}
}

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError(ErrDuplicateNormalizedName, "esx01",
		[]string{"esx01.a.tld", "ESX01"}, "two devices normalize to '%s'", "esx01")

	if !errors.Is(err, ErrDuplicateNormalizedName) {
		t.Error("expected errors.Is to match the violated rule")
	}
	if !IsConfigurationError(err) {
		t.Error("expected IsConfigurationError to be true")
	}
	msg := err.Error()
	for _, want := range []string{"two devices normalize to 'esx01'", "esx01.a.tld", "ESX01"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestFetchErrorUnwrap(t *testing.T) {
	base := errors.New("connection refused")
	err := &FetchError{Source: "netbox", Object: "device esx01", Err: base}
	if !errors.Is(err, base) {
		t.Error("expected FetchError to unwrap")
	}
	if IsConfigurationError(err) {
		t.Error("FetchError must not be a ConfigurationError")
	}
}

func TestSeverityRank(t *testing.T) {
	order := []Severity{SeverityMissing, SeverityWarning, SeveritySkipped, SeverityOK}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("%s should rank before %s", order[i-1], order[i])
		}
	}
}

func TestFetchFailuresEmpty(t *testing.T) {
	tests := []struct {
		f    FetchFailures
		want bool
	}{
		{FetchFailures{}, true},
		{FetchFailures{Hosts: []string{"esx01"}}, false},
		{FetchFailures{Devices: []string{"#4"}}, false},
	}
	for _, tt := range tests {
		if got := tt.f.Empty(); got != tt.want {
			t.Errorf("%+v.Empty() = %v, want %v", tt.f, got, tt.want)
		}
	}
}
