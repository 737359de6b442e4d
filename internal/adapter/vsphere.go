package adapter

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sort"
	"time"

	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/view"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"

	"hostdrift/internal/domain"
)

// Host properties read from vCenter
var hostProperties = []string{"name", "summary.hardware", "config.network", "datastore"}

const bytesPerGB = 1024 * 1024 * 1024

// VSphereSource reads ESXi host facts from vCenter through a container view.
// It only reads properties; it never invokes methods that change state.
type VSphereSource struct {
	host      string
	user      string
	password  string
	verifySSL bool
	timeout   time.Duration
}

// VSphereOption is a functional option for configuring VSphereSource
type VSphereOption func(*VSphereSource)

// WithVerifySSL toggles TLS certificate verification
func WithVerifySSL(verify bool) VSphereOption {
	return func(v *VSphereSource) {
		v.verifySSL = verify
	}
}

// WithVSphereTimeout bounds the whole retrieval
func WithVSphereTimeout(d time.Duration) VSphereOption {
	return func(v *VSphereSource) {
		v.timeout = d
	}
}

// NewVSphereSource creates a vCenter source
func NewVSphereSource(host, user, password string, opts ...VSphereOption) *VSphereSource {
	v := &VSphereSource{
		host:     host,
		user:     user,
		password: password,
		timeout:  60 * time.Second,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Name returns the source identifier
func (v *VSphereSource) Name() string {
	return "vsphere"
}

// FetchHosts logs in, reads every HostSystem and logs out
func (v *VSphereSource) FetchHosts(ctx context.Context) ([]domain.HostFact, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	u, err := soap.ParseURL(v.host)
	if err != nil {
		return nil, &domain.FetchError{Source: v.Name(), Err: fmt.Errorf("parse vcenter url: %w", err)}
	}
	u.User = url.UserPassword(v.user, v.password)

	log.Printf("vsphere: connecting to %s as %s", u.Host, v.user)
	client, err := govmomi.NewClient(ctx, u, !v.verifySSL)
	if err != nil {
		return nil, &domain.FetchError{Source: v.Name(), Err: fmt.Errorf("connect to %s: %w", u.Host, err)}
	}
	defer func() {
		// Logout uses a fresh context so it still runs after a timeout
		logoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Logout(logoutCtx); err != nil {
			log.Printf("vsphere: logout failed: %v", err)
		}
	}()

	hosts, err := FetchHostsFromClient(ctx, client.Client)
	if err != nil {
		return nil, &domain.FetchError{Source: v.Name(), Err: err}
	}
	log.Printf("vsphere: retrieved %d hosts", len(hosts))
	return hosts, nil
}

// FetchHostsFromClient reads all HostSystems through an authenticated client
func FetchHostsFromClient(ctx context.Context, c *vim25.Client) ([]domain.HostFact, error) {
	m := view.NewManager(c)
	cv, err := m.CreateContainerView(ctx, c.ServiceContent.RootFolder, []string{"HostSystem"}, true)
	if err != nil {
		return nil, fmt.Errorf("create host view: %w", err)
	}
	defer cv.Destroy(ctx)

	var systems []mo.HostSystem
	if err := cv.Retrieve(ctx, []string{"HostSystem"}, hostProperties, &systems); err != nil {
		return nil, fmt.Errorf("retrieve hosts: %w", err)
	}

	dsNames, err := datastoreNames(ctx, c, systems)
	if err != nil {
		return nil, err
	}

	hosts := make([]domain.HostFact, 0, len(systems))
	for _, hs := range systems {
		hosts = append(hosts, HostFactFromSystem(hs, dsNames))
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Hostname < hosts[j].Hostname })
	return hosts, nil
}

// datastoreNames resolves every datastore referenced by the hosts in one call
func datastoreNames(ctx context.Context, c *vim25.Client, systems []mo.HostSystem) (map[types.ManagedObjectReference]string, error) {
	seen := make(map[types.ManagedObjectReference]bool)
	var refs []types.ManagedObjectReference
	for _, hs := range systems {
		for _, ref := range hs.Datastore {
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}

	names := make(map[types.ManagedObjectReference]string, len(refs))
	if len(refs) == 0 {
		return names, nil
	}

	var stores []mo.Datastore
	pc := property.DefaultCollector(c)
	if err := pc.Retrieve(ctx, refs, []string{"name"}, &stores); err != nil {
		return nil, fmt.Errorf("retrieve datastore names: %w", err)
	}
	for _, ds := range stores {
		names[ds.Reference()] = ds.Name
	}
	return names, nil
}

// HostFactFromSystem converts retrieved HostSystem properties.
// Missing properties (disconnected hosts) leave the matching fields empty.
func HostFactFromSystem(hs mo.HostSystem, dsNames map[types.ManagedObjectReference]string) domain.HostFact {
	fact := domain.HostFact{Hostname: hs.Name}

	if hw := hs.Summary.Hardware; hw != nil {
		fact.CPUCores = domain.IntPtr(int(hw.NumCpuCores))
		fact.CPUThreads = domain.IntPtr(int(hw.NumCpuThreads))
		fact.RAMGB = domain.IntPtr(int(hw.MemorySize / bytesPerGB))
	}

	for _, ref := range hs.Datastore {
		if name := dsNames[ref]; name != "" {
			fact.Datastores = append(fact.Datastores, name)
		}
	}
	sort.Strings(fact.Datastores)

	if hs.Config == nil || hs.Config.Network == nil {
		return fact
	}
	network := hs.Config.Network

	for _, pnic := range network.Pnic {
		if pnic.Device != "" {
			fact.PhysicalNICs = append(fact.PhysicalNICs, pnic.Device)
		}
	}
	sort.Strings(fact.PhysicalNICs)

	portgroupVLAN := make(map[string]domain.VLAN, len(network.Portgroup))
	for _, pg := range network.Portgroup {
		vlan := standardVLAN(pg.Spec.VlanId)
		portgroupVLAN[pg.Spec.Name] = vlan
		fact.Portgroups = append(fact.Portgroups, domain.Portgroup{
			Name:   pg.Spec.Name,
			Switch: pg.Spec.VswitchName,
			VLAN:   vlan,
		})
	}

	for _, vnic := range network.Vnic {
		vmk := domain.VMKernel{Name: vnic.Device}
		if vnic.Spec.Ip != nil {
			vmk.IP = vnic.Spec.Ip.IpAddress
		}

		switch {
		case vnic.Spec.DistributedVirtualPort != nil:
			// VLANs on distributed portgroups are not resolved
			vmk.VLAN = domain.UnknownVLAN()
		case vnic.Portgroup != "":
			vmk.Portgroup = vnic.Portgroup
			if vlan, ok := portgroupVLAN[vnic.Portgroup]; ok {
				vmk.VLAN = vlan
			}
		}

		if vnic.Device == "vmk0" && vmk.IP != "" {
			fact.ManagementIP = vmk.IP
		}
		fact.VMKernels = append(fact.VMKernels, vmk)
	}
	sort.Slice(fact.VMKernels, func(i, j int) bool { return fact.VMKernels[i].Name < fact.VMKernels[j].Name })

	return fact
}

// standardVLAN maps a standard portgroup VLAN ID; 4095 trunks all VLANs
func standardVLAN(id int32) domain.VLAN {
	if id == domain.TrunkVLANID {
		return domain.UnknownVLAN()
	}
	return domain.TaggedVLAN(int(id))
}
