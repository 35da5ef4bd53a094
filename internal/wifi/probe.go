package wifi

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"github.com/rs/zerolog"
)

// ICMPProber sends one echo request per host through the given interface.
type ICMPProber struct {
	hosts      []string
	iface      string
	timeout    time.Duration
	privileged bool
	log        zerolog.Logger
	ping       func(ctx context.Context, host string) (bool, error)
}

func NewICMPProber(hosts []string, iface string, privileged bool, log zerolog.Logger) *ICMPProber {
	p := &ICMPProber{
		hosts:      hosts,
		iface:      iface,
		timeout:    3 * time.Second,
		privileged: privileged,
		log:        log,
	}
	p.ping = p.echo
	return p
}

// Reachable reports whether at least one host answered.
func (p *ICMPProber) Reachable(ctx context.Context) bool {
	for _, host := range p.hosts {
		ok, err := p.ping(ctx, host)
		if err != nil {
			p.log.Warn().Err(err).Str("host", host).Msg("probe failed")
		}
		p.log.Info().Str("host", host).Bool("reachable", ok).Msg("connection probe")
		if ok {
			return true
		}
	}
	p.log.Warn().Strs("hosts", p.hosts).Msg("none of the probe hosts is reachable")
	return false
}

func (p *ICMPProber) echo(ctx context.Context, host string) (bool, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return false, fmt.Errorf("failed to create pinger: %w", err)
	}
	defer pinger.Stop()
	pinger.SetPrivileged(p.privileged)

	pinger.InterfaceName = p.iface
	pinger.Count = 1
	pinger.Timeout = p.timeout

	if err := pinger.RunWithContext(ctx); err != nil {
		return false, err
	}
	return pinger.Statistics().PacketsRecv > 0, nil
}
