package models

import (
	"fmt"
	"time"
)

// Bucket is a fixed-width interval [BeginTime, EndTime) with latency
// aggregates over the ping samples recorded inside it. Min, Avg and Max are
// nil when the interval holds no successful sample.
type Bucket struct {
	BeginTime   time.Time `json:"begin_time"`
	EndTime     time.Time `json:"end_time"`
	Destination string    `json:"destination"`
	Count       int       `json:"count"`
	Successful  int       `json:"successful"`
	Min         *float64  `json:"min"`
	Avg         *float64  `json:"avg"`
	Max         *float64  `json:"max"`
}

// HasData reports whether the bucket carries latency aggregates.
func (b Bucket) HasData() bool {
	return b.Avg != nil
}

// DestinationSummary holds ungrouped latency statistics for one destination
type DestinationSummary struct {
	Destination string   `json:"destination"`
	Count       int      `json:"count"`
	Successful  int      `json:"successful"`
	Min         *float64 `json:"min"`
	Avg         *float64 `json:"avg"`
	Max         *float64 `json:"max"`
}

// PacketLoss is a fixed-denominator loss ratio over a window.
type PacketLoss struct {
	Destination string  `json:"destination"`
	Lost        int     `json:"lost"`
	Expected    int     `json:"expected"`
	Ratio       float64 `json:"ratio"`
}

// Percent returns the loss as a percentage.
func (p PacketLoss) Percent() float64 {
	return p.Ratio * 100
}

// String renders the loss as "D.DDD% (lost/expected)".
func (p PacketLoss) String() string {
	return fmt.Sprintf("%.3f%% (%d/%d)", p.Percent(), p.Lost, p.Expected)
}

// Snapshot is one event of the live chart stream. Ping and traffic values are
// the latest rows at emission time and are not necessarily co-temporal. A nil
// value means the latest attempt had no reply or the table is still empty.
type Snapshot struct {
	Time     string   `json:"time"`
	Ping     *float64 `json:"ping"`
	Download *float64 `json:"download"`
	Upload   *float64 `json:"upload"`
}

// PruneResult counts the rows removed by a retention pass.
type PruneResult struct {
	Pings   int64 `json:"pings"`
	Traffic int64 `json:"traffic"`
}
