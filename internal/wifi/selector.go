// Package wifi keeps the inbound interface on the most preferred reachable
// wireless network.
package wifi

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"homenet-monitor/internal/config"
)

// Network is one entry of a wireless scan
type Network struct {
	SSID  string
	InUse bool
}

// Action is what a selector pass decided to do
type Action int

const (
	Stay Action = iota
	Connect
	Reconnect
)

func (a Action) String() string {
	switch a {
	case Connect:
		return "connect"
	case Reconnect:
		return "reconnect"
	default:
		return "stay"
	}
}

// Decision is the outcome of ranking a scan. Ranks are positions in the
// preference list; unlisted networks rank after every listed one.
type Decision struct {
	Action      Action
	Current     string
	CurrentRank int
	Best        string
	BestRank    int
}

// ErrNoPreferredNetwork means neither the current network nor any visible
// one is in the preference list.
var ErrNoPreferredNetwork = errors.New("none of the preferred networks is available")

// Decide picks the action for one pass. When the link works the current
// network is kept unless a strictly more preferred one is visible; when it
// does not, the best visible preferred network is joined.
func Decide(visible []Network, preferred []string, reachable bool) (Decision, error) {
	rank := func(ssid string) int {
		for i, p := range preferred {
			if p == ssid {
				return i
			}
		}
		return len(preferred)
	}

	d := Decision{CurrentRank: len(preferred), BestRank: len(preferred)}
	for _, n := range visible {
		if n.InUse {
			d.Current = n.SSID
			d.CurrentRank = rank(n.SSID)
		}
		if r := rank(n.SSID); r < d.BestRank {
			d.Best, d.BestRank = n.SSID, r
		}
	}

	if d.Best == "" {
		if d.Current == "" || !reachable {
			return d, ErrNoPreferredNetwork
		}
		return d, nil
	}

	switch {
	case !reachable:
		d.Action = Connect
	case d.BestRank < d.CurrentRank:
		d.Action = Reconnect
	}
	return d, nil
}

// Manager drives the network manager
type Manager interface {
	Scan(ctx context.Context) ([]Network, error)
	ProfileUUID(ctx context.Context, name string) (string, bool, error)
	Up(ctx context.Context, uuid string) error
	Connect(ctx context.Context, ssid, password string) error
}

// Prober reports whether any probe host answers
type Prober interface {
	Reachable(ctx context.Context) bool
}

// Selector runs single passes of the best-network policy.
type Selector struct {
	nm        Manager
	probe     Prober
	preferred []config.SSID
	log       zerolog.Logger
}

func NewSelector(nm Manager, probe Prober, preferred []config.SSID, log zerolog.Logger) *Selector {
	return &Selector{nm: nm, probe: probe, preferred: preferred, log: log}
}

// Run scans, decides and, if needed, switches networks.
func (s *Selector) Run(ctx context.Context) (Decision, error) {
	visible, err := s.nm.Scan(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("wifi scan: %w", err)
	}
	s.log.Debug().Int("visible", len(visible)).Msg("wifi scan complete")

	names := make([]string, len(s.preferred))
	for i, p := range s.preferred {
		names[i] = p.Name
	}

	reachable := s.probe.Reachable(ctx)
	d, err := Decide(visible, names, reachable)
	if err != nil {
		return d, err
	}

	log := s.log.Info().
		Str("current", d.Current).
		Int("current_rank", d.CurrentRank).
		Str("best", d.Best).
		Int("best_rank", d.BestRank).
		Bool("reachable", reachable)

	switch d.Action {
	case Stay:
		log.Msg("already connected to the best available network")
		return d, nil
	case Reconnect:
		log.Msg("more preferred network available, reconnecting")
	case Connect:
		log.Msg("no connectivity, connecting")
	}

	if err := s.join(ctx, d.Best); err != nil {
		return d, err
	}
	return d, nil
}

func (s *Selector) join(ctx context.Context, ssid string) error {
	uuid, ok, err := s.nm.ProfileUUID(ctx, ssid)
	if err != nil {
		return fmt.Errorf("look up profile %s: %w", ssid, err)
	}
	if ok {
		s.log.Info().Str("ssid", ssid).Str("uuid", uuid).Msg("reusing existing profile")
		if err := s.nm.Up(ctx, uuid); err != nil {
			return fmt.Errorf("activate %s: %w", ssid, err)
		}
		return nil
	}

	s.log.Info().Str("ssid", ssid).Msg("creating profile")
	if err := s.nm.Connect(ctx, ssid, s.password(ssid)); err != nil {
		return fmt.Errorf("connect %s: %w", ssid, err)
	}
	return nil
}

func (s *Selector) password(ssid string) string {
	for _, p := range s.preferred {
		if p.Name == ssid {
			return p.Password
		}
	}
	return ""
}
