package wireless

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/enbility/zeroconf/v3/api"
)

// ServiceType is the mDNS service Android's wireless-debugging pairing flow
// advertises once a device has been put into pairing mode.
const ServiceType = "_adb-tls-connect._tcp"

const domain = "local"

// BrowseTimeout bounds a single FindBySerial call; a shorter deadline on
// the caller's context takes precedence.
const BrowseTimeout = 10 * time.Second

// Service describes one advertised adb-tls-connect endpoint.
type Service struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string
}

// Addr returns the host:port pair adb connect expects, preferring the first
// resolved address over the advertised hostname.
func (s Service) Addr() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	return fmt.Sprintf("%s:%d", host, s.Port)
}

// BrowserConfig configures a Browser. The connection/interface overrides
// exist so tests can inject fakes instead of touching a real network.
type BrowserConfig struct {
	ConnectionFactory api.ConnectionFactory
	InterfaceProvider api.InterfaceProvider
}

// Browser finds adb-tls-connect services on the local network.
type Browser struct {
	cfg BrowserConfig
}

// NewBrowser returns a Browser.
func NewBrowser(cfg BrowserConfig) *Browser {
	return &Browser{cfg: cfg}
}

func (b *Browser) clientOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.cfg.ConnectionFactory != nil {
		opts = append(opts, zeroconf.WithClientConnFactory(b.cfg.ConnectionFactory))
	}
	if b.cfg.InterfaceProvider != nil {
		opts = append(opts, zeroconf.WithClientInterfaceProvider(b.cfg.InterfaceProvider))
	}
	return opts
}

// Browse streams every adb-tls-connect service seen until ctx is done. The
// returned channel is closed when browsing stops.
func (b *Browser) Browse(ctx context.Context) (<-chan Service, error) {
	out := make(chan Service)
	entries := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)
		for entry := range entries {
			select {
			case out <- entryToService(entry):
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, domain, entries, nil, b.clientOptions()...)
	}()

	return out, nil
}

// FindBySerial browses until a service whose instance name contains serial
// is seen, or ctx is done. Android advertises the instance name as the
// device's adb serial, so an exact match is the common case; a substring
// match tolerates vendors that append a suffix.
func (b *Browser) FindBySerial(ctx context.Context, serial string) (Service, bool) {
	ctx, cancel := context.WithTimeout(ctx, BrowseTimeout)
	defer cancel()

	services, err := b.Browse(ctx)
	if err != nil {
		return Service{}, false
	}
	for svc := range services {
		if strings.EqualFold(svc.InstanceName, serial) || strings.Contains(strings.ToLower(svc.InstanceName), strings.ToLower(serial)) {
			return svc, true
		}
	}
	return Service{}, false
}

func entryToService(entry *zeroconf.ServiceEntry) Service {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return Service{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         uint16(entry.Port),
		Addresses:    addrs,
	}
}
