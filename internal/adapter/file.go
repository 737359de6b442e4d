package adapter

import (
	"context"
	"fmt"
	"log"

	"hostdrift/internal/codec"
	"hostdrift/internal/domain"
)

// FileLiveSource reads hosts from a YAML or JSON snapshot
type FileLiveSource struct {
	Path string
}

// Name returns the source identifier
func (f *FileLiveSource) Name() string {
	return "file:" + f.Path
}

// FetchHosts loads the snapshot's hosts
func (f *FileLiveSource) FetchHosts(ctx context.Context) ([]domain.HostFact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := codec.LoadSnapshot(f.Path)
	if err != nil {
		return nil, &domain.FetchError{Source: "file", Object: f.Path, Err: err}
	}
	if len(snap.Hosts) == 0 && len(snap.Devices) > 0 {
		return nil, &domain.FetchError{Source: "file", Object: f.Path, Err: fmt.Errorf("snapshot has devices but no hosts")}
	}
	log.Printf("file: %d hosts from %s", len(snap.Hosts), f.Path)
	return snap.Hosts, nil
}

// FileCMDBSource reads devices from a YAML or JSON snapshot
type FileCMDBSource struct {
	Path string
}

// Name returns the source identifier
func (f *FileCMDBSource) Name() string {
	return "file:" + f.Path
}

// FetchDevices loads the snapshot's devices
func (f *FileCMDBSource) FetchDevices(ctx context.Context) ([]domain.DeviceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := codec.LoadSnapshot(f.Path)
	if err != nil {
		return nil, &domain.FetchError{Source: "file", Object: f.Path, Err: err}
	}
	if len(snap.Devices) == 0 && len(snap.Hosts) > 0 {
		return nil, &domain.FetchError{Source: "file", Object: f.Path, Err: fmt.Errorf("snapshot has hosts but no devices")}
	}
	log.Printf("file: %d devices from %s", len(snap.Devices), f.Path)
	return snap.Devices, nil
}
