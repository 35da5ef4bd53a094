package ping

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		kind  LineKind
		reply Reply
	}{
		{
			name:  "Linux reply",
			line:  "64 bytes from 1.2.3.4: icmp_seq=1 ttl=55 time=23.4 ms",
			kind:  LineReply,
			reply: Reply{Bytes: 64, TTL: 55, Time: 23.4},
		},
		{
			name:  "reply with hostname",
			line:  "64 bytes from fra16s56-in-f3.1e100.net (142.250.185.67): icmp_seq=3 ttl=117 time=12.8 ms",
			kind:  LineReply,
			reply: Reply{Bytes: 64, TTL: 117, Time: 12.8},
		},
		{
			name:  "integer time",
			line:  "64 bytes from 8.8.8.8: icmp_seq=0 ttl=118 time=5 ms",
			kind:  LineReply,
			reply: Reply{Bytes: 64, TTL: 118, Time: 5},
		},
		{
			name: "macOS timeout",
			line: "Request timeout for icmp_seq 5",
			kind: LineMiss,
		},
		{
			name: "iputils no answer",
			line: "no answer yet for icmp_seq=2",
			kind: LineMiss,
		},
		{
			name: "unreachable",
			line: "From 192.168.1.1 icmp_seq=4 Destination Host Unreachable",
			kind: LineMiss,
		},
		{
			name: "banner",
			line: "PING www.amazon.de (18.66.102.78) 56(84) bytes of data.",
			kind: LineSkip,
		},
		{
			name: "statistics header",
			line: "--- www.amazon.de ping statistics ---",
			kind: LineSkip,
		},
		{
			name: "transmitted summary",
			line: "60 packets transmitted, 58 received, 3.33333% packet loss, time 59080ms",
			kind: LineSkip,
		},
		{
			name: "Linux rtt summary",
			line: "rtt min/avg/max/mdev = 11.204/13.553/31.013/2.871 ms",
			kind: LineSkip,
		},
		{
			name: "macOS round-trip summary",
			line: "round-trip min/avg/max/stddev = 44.347/44.347/44.347/0.000 ms",
			kind: LineSkip,
		},
		{
			name: "duplicate reply",
			line: "64 bytes from 1.2.3.4: icmp_seq=1 ttl=55 time=23.9 ms (DUP!)",
			kind: LineSkip,
		},
		{
			name: "blank",
			line: "   ",
			kind: LineSkip,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, kind := ParseLine(tt.line)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.reply, reply)
		})
	}
}

func TestSequence(t *testing.T) {
	tests := []struct {
		line string
		seq  int
		ok   bool
	}{
		{"64 bytes from 1.2.3.4: icmp_seq=12 ttl=55 time=23.4 ms", 12, true},
		{"no answer yet for icmp_seq=2", 2, true},
		{"Request timeout for icmp_seq 5", 5, true},
		{"From 192.168.1.1 icmp_seq=4 Destination Host Unreachable", 4, true},
		{"ping: sendmsg: Network is unreachable", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			seq, ok := Sequence(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.seq, seq)
		})
	}
}

type row struct {
	destination string
	pingTime    *float64
	ttl         *int
	bytes       *int
}

type fakeRecorder struct {
	mu     sync.Mutex
	rows   []row
	failOn int // 1-based insert number that fails; 0 never
	calls  int
}

func (f *fakeRecorder) InsertPing(_ context.Context, destination string, pingTime *float64, ttl, bytes *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls == f.failOn {
		return errors.New("database is locked")
	}
	f.rows = append(f.rows, row{destination, pingTime, ttl, bytes})
	return nil
}

func burst(replies, misses int) string {
	var b strings.Builder
	b.WriteString("PING 1.2.3.4 (1.2.3.4) 56(84) bytes of data.\n")
	seq := 1
	for i := 0; i < replies; i++ {
		fmt.Fprintf(&b, "64 bytes from 1.2.3.4: icmp_seq=%d ttl=55 time=%d.5 ms\n", seq, 10+i)
		seq++
	}
	for i := 0; i < misses; i++ {
		fmt.Fprintf(&b, "no answer yet for icmp_seq=%d\n", seq)
		seq++
	}
	b.WriteString("\n--- 1.2.3.4 ping statistics ---\n")
	fmt.Fprintf(&b, "%d packets transmitted, %d received\n", replies+misses, replies)
	b.WriteString("rtt min/avg/max/mdev = 10.5/11.0/12.5/0.3 ms\n")
	return b.String()
}

func TestRecordOneRowPerAttempt(t *testing.T) {
	rec := &fakeRecorder{}
	s := NewSampler(rec, "ping", 60, zerolog.Nop())

	stats, err := s.Record(context.Background(), "1.2.3.4", strings.NewReader(burst(57, 3)))
	require.NoError(t, err)

	assert.Equal(t, RunStats{Attempts: 60, Replies: 57}, stats)
	require.Len(t, rec.rows, 60)

	var full, null int
	for _, r := range rec.rows {
		assert.Equal(t, "1.2.3.4", r.destination)
		if r.pingTime == nil {
			assert.Nil(t, r.ttl)
			assert.Nil(t, r.bytes)
			null++
			continue
		}
		require.NotNil(t, r.ttl)
		require.NotNil(t, r.bytes)
		full++
	}
	assert.Equal(t, 57, full)
	assert.Equal(t, 3, null)

	first := rec.rows[0]
	assert.InDelta(t, 10.5, *first.pingTime, 1e-9)
	assert.Equal(t, 55, *first.ttl)
	assert.Equal(t, 64, *first.bytes)
}

func TestRecordOneRowPerSequence(t *testing.T) {
	output := strings.Join([]string{
		"PING 1.2.3.4 (1.2.3.4) 56(84) bytes of data.",
		"64 bytes from 1.2.3.4: icmp_seq=1 ttl=55 time=10.5 ms",
		"no answer yet for icmp_seq=2",
		"64 bytes from 1.2.3.4: icmp_seq=2 ttl=55 time=1500 ms",
		"64 bytes from 1.2.3.4: icmp_seq=3 ttl=55 time=11.5 ms",
		"64 bytes from 1.2.3.4: icmp_seq=3 ttl=55 time=11.9 ms (DUP!)",
		"64 bytes from 1.2.3.4: icmp_seq=3 ttl=55 time=12.1 ms",
		"",
		"--- 1.2.3.4 ping statistics ---",
		"3 packets transmitted, 2 received, +1 duplicates, 33.3333% packet loss",
	}, "\n")

	rec := &fakeRecorder{}
	s := NewSampler(rec, "ping", 3, zerolog.Nop())

	stats, err := s.Record(context.Background(), "1.2.3.4", strings.NewReader(output))
	require.NoError(t, err)
	assert.Equal(t, RunStats{Attempts: 3, Replies: 2}, stats)
	require.Len(t, rec.rows, 3)
	assert.InDelta(t, 10.5, *rec.rows[0].pingTime, 1e-9)
	assert.Nil(t, rec.rows[1].pingTime)
	assert.InDelta(t, 11.5, *rec.rows[2].pingTime, 1e-9)
}

func TestRecordDropsFailedInsert(t *testing.T) {
	rec := &fakeRecorder{failOn: 2}
	s := NewSampler(rec, "ping", 3, zerolog.Nop())

	stats, err := s.Record(context.Background(), "1.2.3.4", strings.NewReader(burst(3, 0)))
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Attempts)
	assert.Equal(t, 2, stats.Replies)
	assert.Equal(t, 1, stats.Dropped)
	assert.Len(t, rec.rows, 2)
}

func TestRunStartFailureWritesNothing(t *testing.T) {
	rec := &fakeRecorder{}
	s := NewSampler(rec, "/nonexistent/ping-binary", 60, zerolog.Nop())

	_, err := s.Run(context.Background(), "1.2.3.4")
	require.Error(t, err)
	assert.Empty(t, rec.rows)
}

func TestRunStreamsProcessOutput(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	output := burst(2, 1)

	rec := &fakeRecorder{}
	s := NewSampler(rec, "ping", 3, zerolog.Nop()).WithCommand(
		func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
			return exec.CommandContext(ctx, "sh", "-c", `printf '%s' "$1"`, "sh", output)
		})

	stats, err := s.Run(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Attempts)
	assert.Equal(t, 2, stats.Replies)
	assert.Len(t, rec.rows, 3)
}

func TestArgsIncludeCount(t *testing.T) {
	args := Args("www.amazon.de", 60)
	assert.Contains(t, args, "60")
	assert.Equal(t, "www.amazon.de", args[len(args)-1])
}
