package traffic

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	psnet "github.com/shirou/gopsutil/v3/net"

	"homenet-monitor/internal/config"
)

// Source emits raw throughput lines, one per second. With samples > 0 it
// stops after that many ticks, otherwise it runs until ctx is cancelled.
type Source interface {
	Stream(ctx context.Context, samples int, emit func(line string)) error
}

// CommandFunc builds the external process; exec.CommandContext in production.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// NewSource picks the throughput source named in the configuration.
func NewSource(cfg config.Config, clock clockwork.Clock) Source {
	if cfg.Sampling.TrafficSource == "counters" {
		return NewCounterSource(cfg.Interfaces.Outbound, clock)
	}
	return NewIfstatSource(cfg.Commands.Ifstat, cfg.Interfaces.Outbound)
}

// IfstatSource runs ifstat against one interface.
type IfstatSource struct {
	binary  string
	iface   string
	command CommandFunc
}

func NewIfstatSource(binary, iface string) *IfstatSource {
	return &IfstatSource{binary: binary, iface: iface, command: exec.CommandContext}
}

// Args returns the ifstat arguments: timestamps, bits, wide, no header
// repeat, one-second delay and an optional sample count.
func (s *IfstatSource) Args(samples int) []string {
	args := []string{"-i", s.iface, "-t", "-b", "-w", "-n", "1"}
	if samples > 0 {
		args = append(args, strconv.Itoa(samples))
	}
	return args
}

func (s *IfstatSource) Stream(ctx context.Context, samples int, emit func(string)) error {
	cmd := s.command(ctx, s.binary, s.Args(samples)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ifstat stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ifstat: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		emit(scanner.Text())
	}
	scanErr := scanner.Err()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return nil
	}
	if scanErr != nil {
		return fmt.Errorf("read ifstat output: %w", scanErr)
	}
	if waitErr != nil {
		return fmt.Errorf("ifstat: %w", waitErr)
	}
	return nil
}

// CounterSource derives per-second rates from the kernel interface counters
// and prints them in ifstat's layout (time, kbps in, kbps out).
type CounterSource struct {
	iface    string
	clock    clockwork.Clock
	counters func(ctx context.Context) ([]psnet.IOCountersStat, error)
}

func NewCounterSource(iface string, clock clockwork.Clock) *CounterSource {
	return &CounterSource{
		iface: iface,
		clock: clock,
		counters: func(ctx context.Context) ([]psnet.IOCountersStat, error) {
			return psnet.IOCountersWithContext(ctx, true)
		},
	}
}

var errInterfaceNotFound = errors.New("interface not found")

func (s *CounterSource) read(ctx context.Context) (psnet.IOCountersStat, error) {
	stats, err := s.counters(ctx)
	if err != nil {
		return psnet.IOCountersStat{}, fmt.Errorf("read interface counters: %w", err)
	}
	for _, st := range stats {
		if st.Name == s.iface {
			return st, nil
		}
	}
	return psnet.IOCountersStat{}, fmt.Errorf("%s: %w", s.iface, errInterfaceNotFound)
}

func (s *CounterSource) Stream(ctx context.Context, samples int, emit func(string)) error {
	prev, err := s.read(ctx)
	if err != nil {
		return err
	}
	prevAt := s.clock.Now()

	ticker := s.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for n := 0; samples <= 0 || n < samples; n++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
		}

		cur, err := s.read(ctx)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		elapsed := now.Sub(prevAt).Seconds()
		if elapsed <= 0 {
			elapsed = 1
		}

		in := kbps(prev.BytesRecv, cur.BytesRecv, elapsed)
		out := kbps(prev.BytesSent, cur.BytesSent, elapsed)
		emit(fmt.Sprintf("%s %.2f %.2f", now.Format("15:04:05"), in, out))

		prev, prevAt = cur, now
	}
	return nil
}

func kbps(before, after uint64, seconds float64) float64 {
	if after < before {
		// counter reset
		return 0
	}
	return float64(after-before) * 8 / 1000 / seconds
}
