package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"homenet-monitor/internal/models"
)

func (g *Generator) writeSummary(ctx context.Context, dir string, now time.Time) error {
	summaries, err := g.store.Summaries(ctx, now.Add(-g.opts.Window))
	if err != nil {
		return err
	}

	losses := make(map[string]models.PacketLoss, len(g.opts.Destinations))
	for _, dest := range g.opts.Destinations {
		loss, err := g.agg.PacketLoss(ctx, dest)
		if err != nil {
			return err
		}
		losses[dest] = loss
	}

	file, err := os.Create(filepath.Join(dir, "summary.txt"))
	if err != nil {
		return err
	}
	defer file.Close()

	WriteSummary(file, now, g.opts.Window, summaries, losses)
	return file.Close()
}

// WriteSummary prints per-destination latency statistics and packet loss.
// Destinations with a loss entry but no samples are listed as well.
func WriteSummary(w io.Writer, generated time.Time, window time.Duration, summaries []models.DestinationSummary, losses map[string]models.PacketLoss) {
	fmt.Fprintf(w, "Network Connectivity Report\n")
	fmt.Fprintf(w, "Generated: %s\n", generated.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Period: Last %s\n\n", window)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, "\nOVERALL STATISTICS")

	seen := make(map[string]bool, len(summaries))
	for _, s := range summaries {
		seen[s.Destination] = true

		fmt.Fprintf(w, "Destination: %s\n", s.Destination)
		fmt.Fprintf(w, "  Total Pings: %d\n", s.Count)
		fmt.Fprintf(w, "  Successful: %d\n", s.Successful)
		if loss, ok := losses[s.Destination]; ok {
			fmt.Fprintf(w, "  Packet Loss: %s\n", loss)
		}
		if s.Avg != nil {
			fmt.Fprintf(w, "  Average RTT: %.2f ms\n", *s.Avg)
			fmt.Fprintf(w, "  Min RTT: %.2f ms\n", *s.Min)
			fmt.Fprintf(w, "  Max RTT: %.2f ms\n", *s.Max)
		} else {
			fmt.Fprintln(w, "  RTT: no data")
		}
		fmt.Fprintln(w)
	}

	missing := make([]string, 0, len(losses))
	for dest := range losses {
		if !seen[dest] {
			missing = append(missing, dest)
		}
	}
	sort.Strings(missing)
	for _, dest := range missing {
		loss := losses[dest]
		fmt.Fprintf(w, "Destination: %s\n", dest)
		fmt.Fprintln(w, "  Total Pings: 0")
		fmt.Fprintf(w, "  Packet Loss: %s\n\n", loss)
	}

	fmt.Fprintln(w, strings.Repeat("=", 60))
}
