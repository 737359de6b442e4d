package adapter

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"hostdrift/internal/codec"
	"hostdrift/internal/domain"
)

type stubLive struct {
	hosts []domain.HostFact
	err   error
}

func (s *stubLive) Name() string { return "stub-live" }

func (s *stubLive) FetchHosts(ctx context.Context) ([]domain.HostFact, error) {
	return s.hosts, s.err
}

type stubCMDB struct {
	devices []domain.DeviceRecord
	err     error
}

func (s *stubCMDB) Name() string { return "stub-cmdb" }

func (s *stubCMDB) FetchDevices(ctx context.Context) ([]domain.DeviceRecord, error) {
	return s.devices, s.err
}

func partialErr() error {
	return &PartialError{Source: "stub-cmdb", Failures: []*domain.FetchError{
		{Source: "stub-cmdb", Object: "device esx02", Err: errors.New("timeout")},
	}, Names: []string{"esx02"}}
}

func TestFetch(t *testing.T) {
	live := &stubLive{hosts: []domain.HostFact{{Hostname: "esx01"}}}
	cmdb := &stubCMDB{devices: []domain.DeviceRecord{{Name: "esx01"}}}

	snaps, err := Fetch(context.Background(), live, cmdb, false)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(snaps.Hosts) != 1 || len(snaps.Devices) != 1 || snaps.Partial {
		t.Errorf("snapshots = %+v", snaps)
	}
}

func TestFetchPartial(t *testing.T) {
	live := &stubLive{hosts: []domain.HostFact{{Hostname: "esx01"}}}
	cmdb := &stubCMDB{devices: []domain.DeviceRecord{{Name: "esx01"}}, err: partialErr()}

	t.Run("rejected by default", func(t *testing.T) {
		_, err := Fetch(context.Background(), live, cmdb, false)
		var fetchErr *domain.FetchError
		if !errors.As(err, &fetchErr) {
			t.Errorf("Fetch() error = %v, want FetchError", err)
		}
	})

	t.Run("allowed", func(t *testing.T) {
		snaps, err := Fetch(context.Background(), live, cmdb, true)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if !snaps.Partial || len(snaps.Warnings) != 1 {
			t.Errorf("snapshots = %+v, want partial with one warning", snaps)
		}
		if len(snaps.Devices) != 1 {
			t.Errorf("fetched devices should be kept: %+v", snaps.Devices)
		}
		failed := snaps.Failures()
		if len(failed.Hosts) != 0 || !reflect.DeepEqual(failed.Devices, []string{"esx02"}) {
			t.Errorf("Failures() = %+v, want device esx02", failed)
		}
	})
}

func TestFetchSourceFailureIsFatal(t *testing.T) {
	live := &stubLive{err: &domain.FetchError{Source: "vsphere", Err: errors.New("login failed")}}
	cmdb := &stubCMDB{}

	_, err := Fetch(context.Background(), live, cmdb, true)
	if err == nil {
		t.Fatal("Fetch() should fail when a whole source fails")
	}
}

func TestFileSources(t *testing.T) {
	dir := t.TempDir()
	hostsPath := filepath.Join(dir, "hosts.yaml")
	devicesPath := filepath.Join(dir, "devices.json")

	if err := codec.SaveSnapshot(hostsPath, &codec.Snapshot{Hosts: []domain.HostFact{{Hostname: "esx01.lab"}}}); err != nil {
		t.Fatal(err)
	}
	if err := codec.SaveSnapshot(devicesPath, &codec.Snapshot{Devices: []domain.DeviceRecord{{Name: "esx01"}}}); err != nil {
		t.Fatal(err)
	}

	snaps, err := Fetch(context.Background(),
		&FileLiveSource{Path: hostsPath},
		&FileCMDBSource{Path: devicesPath}, false)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if snaps.Hosts[0].Hostname != "esx01.lab" || snaps.Devices[0].Name != "esx01" {
		t.Errorf("snapshots = %+v", snaps)
	}

	// A device snapshot is not a host snapshot
	if _, err := (&FileLiveSource{Path: devicesPath}).FetchHosts(context.Background()); err == nil {
		t.Error("expected error reading hosts from a device-only snapshot")
	}
	if _, err := (&FileCMDBSource{Path: filepath.Join(dir, "missing.yaml")}).FetchDevices(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPartialErrorUnwrap(t *testing.T) {
	err := partialErr()
	var fetchErr *domain.FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Object != "device esx02" {
		t.Errorf("PartialError should unwrap to its failures: %v", err)
	}
}
