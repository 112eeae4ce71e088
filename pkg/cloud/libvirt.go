package cloud

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"cluster-drift-monitor/pkg/models"

	golibvirt "github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

const (
	// VIR_DOMAIN_INTERFACE_ADDRESSES_SRC_LEASE
	ifaceSourceLease = 0
	// VIR_IP_ADDR_TYPE_IPV4
	ipAddrTypeIPv4 = 0
)

// domainXML is the subset of the libvirt domain description we read.
// Tags live in a custom metadata element: <metadata><tags><tag key="" value=""/></tags></metadata>
type domainXML struct {
	Name     string `xml:"name"`
	UUID     string `xml:"uuid"`
	Metadata struct {
		Tags struct {
			Tag []struct {
				Key   string `xml:"key,attr"`
				Value string `xml:"value,attr"`
			} `xml:"tag"`
		} `xml:"tags"`
	} `xml:"metadata"`
}

// LibvirtStrategy lists running domains of KVM regions. Each region code maps
// to one libvirt URI; connections are opened lazily and reused across cycles.
type LibvirtStrategy struct {
	uris    map[string]string
	timeout time.Duration

	mu    sync.Mutex
	conns map[string]*golibvirt.Libvirt
}

// NewLibvirtStrategy maps region codes to libvirt URIs. A positive timeout
// bounds each region listing.
func NewLibvirtStrategy(uris map[string]string, timeout time.Duration) *LibvirtStrategy {
	copied := make(map[string]string, len(uris))
	for k, v := range uris {
		copied[k] = v
	}
	return &LibvirtStrategy{
		uris:    copied,
		timeout: timeout,
		conns:   make(map[string]*golibvirt.Libvirt),
	}
}

func (s *LibvirtStrategy) FetchRunningVMs(ctx context.Context, region models.CloudRegion) ([]models.VirtualMachine, error) {
	raw, ok := s.uris[region.Code]
	if !ok {
		return nil, fmt.Errorf("no libvirt URI configured for region %s", region.Code)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	client, err := s.client(raw)
	if err != nil {
		return nil, err
	}

	vms, err := listRunning(ctx, client, region.Provider)
	if err != nil {
		s.drop(raw)
		return nil, err
	}
	return vms, nil
}

// Close disconnects every cached connection
func (s *LibvirtStrategy) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for uri, c := range s.conns {
		if err := c.Disconnect(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.conns, uri)
	}
	return firstErr
}

func (s *LibvirtStrategy) client(raw string) (*golibvirt.Libvirt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.conns[raw]; ok {
		return c, nil
	}

	uri, err := parseURI(raw)
	if err != nil {
		return nil, err
	}
	c, err := golibvirt.ConnectToURI(uri)
	if err != nil {
		return nil, fmt.Errorf("connect libvirt %s: %w", uri.Redacted(), err)
	}
	klog.Infof("Connected to libvirt at %s", uri.Redacted())
	s.conns[raw] = c
	return c, nil
}

// drop forgets a connection after a failed call so the next cycle redials
func (s *LibvirtStrategy) drop(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.conns[raw]; ok {
		if err := c.Disconnect(); err != nil {
			klog.V(2).Infof("libvirt disconnect failed: %v", err)
		}
		delete(s.conns, raw)
	}
}

func listRunning(ctx context.Context, client *golibvirt.Libvirt, provider models.Provider) ([]models.VirtualMachine, error) {
	doms, _, err := client.ConnectListAllDomains(1, golibvirt.ConnectListDomainsRunning)
	if err != nil {
		return nil, fmt.Errorf("ConnectListAllDomains: %w", err)
	}

	vms := make([]models.VirtualMachine, 0, len(doms))
	for _, dom := range doms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		desc, err := client.DomainGetXMLDesc(dom, 0)
		if err != nil {
			klog.Warningf("Failed to read XML of domain %s: %v", dom.Name, err)
			continue
		}
		vm, err := vmFromDomainXML(desc)
		if err != nil {
			klog.Warningf("Failed to parse XML of domain %s: %v", dom.Name, err)
			continue
		}
		if vm.InstanceID == "" {
			vm.InstanceID = uuid.UUID(dom.UUID).String()
		}
		vm.Provider = provider

		ifaces, err := client.DomainInterfaceAddresses(dom, ifaceSourceLease, 0)
		if err != nil {
			klog.V(2).Infof("No interface addresses for domain %s: %v", dom.Name, err)
		}
		for _, iface := range ifaces {
			for _, addr := range iface.Addrs {
				if vm.PrivateIP == "" && addr.Type == ipAddrTypeIPv4 {
					vm.PrivateIP = addr.Addr
				}
			}
		}
		if vm.PrivateIP == "" {
			klog.V(2).Infof("Domain %s has no IPv4 lease yet, skipping", vm.Name)
			continue
		}

		vms = append(vms, vm)
	}
	return vms, nil
}

// vmFromDomainXML extracts name, UUID and metadata tags from a domain description
func vmFromDomainXML(desc string) (models.VirtualMachine, error) {
	var d domainXML
	if err := xml.Unmarshal([]byte(desc), &d); err != nil {
		return models.VirtualMachine{}, err
	}

	tags := make(map[string]string, len(d.Metadata.Tags.Tag))
	for _, t := range d.Metadata.Tags.Tag {
		key := strings.TrimSpace(t.Key)
		if key == "" {
			continue
		}
		tags[key] = t.Value
	}

	return models.VirtualMachine{
		InstanceID: strings.TrimSpace(d.UUID),
		Name:       strings.TrimSpace(d.Name),
		Tags:       tags,
	}, nil
}

func parseURI(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		raw = string(golibvirt.QEMUSystem)
	}
	uri, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse libvirt uri %q: %w", raw, err)
	}
	if uri.Scheme == "" {
		return nil, fmt.Errorf("libvirt uri %q has no scheme", raw)
	}
	return uri, nil
}
