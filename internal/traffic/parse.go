package traffic

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Tick is one per-second throughput reading in Mbps.
type Tick struct {
	Clock    string // HH:MM:SS as printed by the source
	Upload   float64
	Download float64
}

var tickPattern = regexp.MustCompile(`(\d\d:\d\d:\d\d)\s*(\d+\.\d+)\s*(\d+\.\d+)`)

// ParseLine extracts a tick from a `<HH:MM:SS> <upload> <download>` line with
// rates in kbps. Header and other lines report false.
func ParseLine(line string) (Tick, bool) {
	collapsed := strings.Join(strings.Fields(line), " ")
	m := tickPattern.FindStringSubmatch(collapsed)
	if m == nil {
		return Tick{}, false
	}
	up, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Tick{}, false
	}
	down, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Tick{}, false
	}
	return Tick{Clock: m[1], Upload: up / 1000, Download: down / 1000}, true
}

// FormatLive renders a tick for the live tail, download first. A line that
// did not parse yields empty fields.
func FormatLive(t Tick, ok bool) string {
	if !ok {
		return "  "
	}
	return fmt.Sprintf("%s %2.2fMbps %2.2fMbps", t.Clock, t.Download, t.Upload)
}
