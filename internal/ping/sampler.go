package ping

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/rs/zerolog"

	"homenet-monitor/internal/metrics"
)

// Recorder persists ping attempts
type Recorder interface {
	InsertPing(ctx context.Context, destination string, pingTime *float64, ttl, bytesReceived *int) error
}

// CommandFunc builds the external process; exec.CommandContext in production.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// RunStats summarizes one sampler run.
type RunStats struct {
	Attempts int
	Replies  int
	Dropped  int
}

// Sampler runs a ping burst against a destination and stores one row per attempt.
type Sampler struct {
	store   Recorder
	binary  string
	count   int
	log     zerolog.Logger
	command CommandFunc
}

// NewSampler creates a Sampler issuing count attempts per run with the given binary
func NewSampler(store Recorder, binary string, count int, log zerolog.Logger) *Sampler {
	return &Sampler{
		store:   store,
		binary:  binary,
		count:   count,
		log:     log,
		command: exec.CommandContext,
	}
}

// WithCommand replaces the process constructor.
func (s *Sampler) WithCommand(fn CommandFunc) *Sampler {
	s.command = fn
	return s
}

// Args returns the ping arguments for the current platform.
func Args(destination string, count int) []string {
	// iputils only reports unanswered attempts with -O; BSD ping prints
	// "Request timeout" lines on its own.
	if runtime.GOOS == "linux" {
		return []string{"-c", strconv.Itoa(count), "-O", destination}
	}
	return []string{"-c", strconv.Itoa(count), destination}
}

// Run spawns the ping burst and records its output until the process exits.
// Failure to start the process ends the run without writing anything.
func (s *Sampler) Run(ctx context.Context, destination string) (RunStats, error) {
	cmd := s.command(ctx, s.binary, Args(destination, s.count)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return RunStats{}, fmt.Errorf("ping stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return RunStats{}, fmt.Errorf("start ping: %w", err)
	}

	stats, readErr := s.Record(ctx, destination, stdout)
	waitErr := cmd.Wait()

	if readErr != nil {
		return stats, readErr
	}
	if waitErr != nil {
		// ping exits non-zero when replies were missing; only a run that
		// produced nothing at all is reported as a failure.
		if stats.Attempts == 0 {
			return stats, fmt.Errorf("ping %s: %w", destination, waitErr)
		}
		s.log.Debug().Err(waitErr).Str("destination", destination).Msg("ping exited with status")
	}

	s.log.Info().
		Str("destination", destination).
		Int("attempts", stats.Attempts).
		Int("replies", stats.Replies).
		Int("dropped", stats.Dropped).
		Msg("ping run finished")
	return stats, nil
}

// Record consumes ping output line by line. Each reply becomes a full row,
// each non-reply line an all-null row; banner and summary lines are skipped.
// An icmp_seq gets at most one row, so a reply arriving after its attempt was
// already reported missing is ignored. A failed insert drops that one sample.
func (s *Sampler) Record(ctx context.Context, destination string, r io.Reader) (RunStats, error) {
	var stats RunStats
	seen := make(map[int]struct{})
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		reply, kind := ParseLine(line)
		if kind != LineSkip {
			if seq, ok := Sequence(line); ok {
				if _, dup := seen[seq]; dup {
					kind = LineSkip
				} else {
					seen[seq] = struct{}{}
				}
			}
		}

		var err error
		switch kind {
		case LineSkip:
			metrics.LinesSkipped.WithLabelValues("ping").Inc()
			continue
		case LineReply:
			err = s.store.InsertPing(ctx, destination, &reply.Time, &reply.TTL, &reply.Bytes)
		case LineMiss:
			err = s.store.InsertPing(ctx, destination, nil, nil, nil)
		}

		stats.Attempts++
		if err != nil {
			stats.Dropped++
			metrics.SampleWriteErrors.WithLabelValues("ping").Inc()
			s.log.Warn().Err(err).Str("destination", destination).Msg("failed to save ping sample")
			continue
		}
		if kind == LineReply {
			stats.Replies++
		}
		metrics.SamplesInserted.WithLabelValues("ping", kind.String()).Inc()
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read ping output: %w", err)
	}
	return stats, nil
}
