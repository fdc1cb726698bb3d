package prober

import (
	"context"
	"time"

	"github.com/devicepool/devicepool/pkg/bridge"
	"github.com/devicepool/devicepool/pkg/devicestate"
	"github.com/devicepool/devicepool/pkg/filter"
	"github.com/devicepool/devicepool/pkg/registry"
)

// StabilityWindow is how long a newly-seen online device must stay online
// before it is admitted as available.
const StabilityWindow = 5 * time.Second

// Prober watches newly-connected online devices and admits them once they
// have proven stable.
type Prober struct {
	checking     *registry.Registry[string, struct{}]
	globalFilter filter.Filter
	props        filter.Properties
	window       time.Duration
	admit        func(h bridge.Handle)
}

// New returns a Prober. globalFilter is the policy filter installed at
// init, evaluated before a probe is even started. admit is invoked on the
// device once it survives the stability window.
func New(globalFilter filter.Filter, props filter.Properties, admit func(h bridge.Handle)) *Prober {
	if globalFilter == nil {
		globalFilter = filter.MatchesAny
	}
	return &Prober{
		checking:     registry.New[string, struct{}](),
		globalFilter: globalFilter,
		props:        props,
		window:       StabilityWindow,
		admit:        admit,
	}
}

// IsChecking reports whether serial currently has a probe in flight.
func (p *Prober) IsChecking(serial string) bool {
	return p.checking.Has(serial)
}

// Checking returns the serials currently under probe, for diagnostics.
func (p *Prober) Checking() []string {
	return p.checking.Keys()
}

// SetWindow overrides the stability window, mainly so tests don't have to
// wait out the production StabilityWindow.
func (p *Prober) SetWindow(d time.Duration) {
	p.window = d
}

// HandleOnline is called whenever an unknown serial is observed online. It
// rejects immediately against the global filter, then spawns a
// fire-and-forget probe if one is not already running for this serial.
// monitor is the per-device state monitor the caller maintains for h.
func (p *Prober) HandleOnline(ctx context.Context, h bridge.Handle, monitor *devicestate.Monitor) {
	if !p.globalFilter(ctx, h, p.props) {
		return
	}
	if err := p.checking.Add(h.Serial, struct{}{}); err != nil {
		// already probing this serial
		return
	}
	go p.probe(h, monitor)
}

func (p *Prober) probe(h bridge.Handle, monitor *devicestate.Monitor) {
	defer p.checking.Remove(h.Serial)

	if monitor.WaitForNotAvailable(p.window) {
		p.admit(h)
	}
}
