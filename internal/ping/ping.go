package ping

import (
	"regexp"
	"strconv"
	"strings"
)

// LineKind classifies one line of ping output
type LineKind int

const (
	// LineSkip is a banner, summary or blank line; it produces no row.
	LineSkip LineKind = iota
	// LineReply is a parsed echo reply.
	LineReply
	// LineMiss is any other line, treated as an attempt without reply.
	LineMiss
)

func (k LineKind) String() string {
	switch k {
	case LineReply:
		return "reply"
	case LineMiss:
		return "miss"
	default:
		return "skip"
	}
}

// Reply holds the fields parsed from an echo reply line
type Reply struct {
	Bytes int
	TTL   int
	Time  float64 // milliseconds
}

var (
	replyPattern = regexp.MustCompile(`(\d+) bytes from .* ttl=(\d+) time=(\d+\.?\d*) ms`)
	seqPattern   = regexp.MustCompile(`icmp_seq[= ](\d+)`)
)

// Markers of the banner and summary lines printed around the replies, and of
// duplicate replies to an attempt that already answered.
var skipMarkers = []string{"PING", "statistics", "transmitted", "rtt", "round-trip", "(DUP!)"}

// Sequence returns the icmp_seq a reply or miss line refers to.
func Sequence(line string) (int, bool) {
	m := seqPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	seq, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return seq, true
}

// ParseLine classifies a single line of ping output and extracts the reply
// fields when it is an echo reply.
func ParseLine(line string) (Reply, LineKind) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Reply{}, LineSkip
	}
	for _, marker := range skipMarkers {
		if strings.Contains(line, marker) {
			return Reply{}, LineSkip
		}
	}

	matches := replyPattern.FindStringSubmatch(line)
	if len(matches) != 4 {
		return Reply{}, LineMiss
	}

	bytes, err := strconv.Atoi(matches[1])
	if err != nil {
		return Reply{}, LineMiss
	}
	ttl, err := strconv.Atoi(matches[2])
	if err != nil {
		return Reply{}, LineMiss
	}
	rtt, err := strconv.ParseFloat(matches[3], 64)
	if err != nil {
		return Reply{}, LineMiss
	}

	return Reply{Bytes: bytes, TTL: ttl, Time: rtt}, LineReply
}
