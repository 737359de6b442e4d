package adapter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"hostdrift/internal/domain"
)

// LiveSource yields HostFacts from the live inventory
type LiveSource interface {
	Name() string
	FetchHosts(ctx context.Context) ([]domain.HostFact, error)
}

// CMDBSource yields DeviceRecords from the CMDB
type CMDBSource interface {
	Name() string
	FetchDevices(ctx context.Context) ([]domain.DeviceRecord, error)
}

// PartialError reports objects that could not be fetched while the rest of
// the source succeeded
type PartialError struct {
	Source   string
	Failures []*domain.FetchError
	// Names of the dropped objects as the source knows them
	Names []string
}

func (e *PartialError) Error() string {
	if len(e.Failures) == 1 {
		return e.Failures[0].Error()
	}
	return fmt.Sprintf("%s: %d objects failed, first: %v", e.Source, len(e.Failures), e.Failures[0])
}

// Unwrap returns the individual failures
func (e *PartialError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Snapshots holds both fetched inventories
type Snapshots struct {
	Hosts    []domain.HostFact
	Devices  []domain.DeviceRecord
	Partial  bool
	Warnings []string

	// Objects dropped by a partial fetch, per side
	FailedHosts   []string
	FailedDevices []string
}

// Failures returns the dropped object names for the engine
func (s *Snapshots) Failures() domain.FetchFailures {
	return domain.FetchFailures{Hosts: s.FailedHosts, Devices: s.FailedDevices}
}

// Fetch runs both sources concurrently.
// With allowPartial, per-object failures are logged and the result is marked
// partial; otherwise any failure aborts.
func Fetch(ctx context.Context, live LiveSource, cmdb CMDBSource, allowPartial bool) (*Snapshots, error) {
	var (
		hosts           []domain.HostFact
		devices         []domain.DeviceRecord
		hostErr, devErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hosts, hostErr = live.FetchHosts(gctx)
		return fatal(hostErr, allowPartial)
	})
	g.Go(func() error {
		devices, devErr = cmdb.FetchDevices(gctx)
		return fatal(devErr, allowPartial)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snaps := &Snapshots{Hosts: hosts, Devices: devices}
	for i, err := range []error{hostErr, devErr} {
		var partial *PartialError
		if !errors.As(err, &partial) {
			continue
		}
		snaps.Partial = true
		for _, f := range partial.Failures {
			log.Printf("Warning: %v (dropped)", f)
			snaps.Warnings = append(snaps.Warnings, f.Error())
		}
		if i == 0 {
			snaps.FailedHosts = append(snaps.FailedHosts, partial.Names...)
		} else {
			snaps.FailedDevices = append(snaps.FailedDevices, partial.Names...)
		}
	}

	log.Printf("Fetched %d hosts from %s and %d devices from %s",
		len(hosts), live.Name(), len(devices), cmdb.Name())
	return snaps, nil
}

// fatal decides whether a source error stops the run
func fatal(err error, allowPartial bool) error {
	if err == nil {
		return nil
	}
	var partial *PartialError
	if allowPartial && errors.As(err, &partial) {
		return nil
	}
	return err
}

// joinNames is a short list for log lines
func joinNames(names []string, max int) string {
	if len(names) <= max {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:max], ", "), len(names)-max)
}
