package models

import "time"

// PingSample represents a single ping attempt against a destination.
// A nil PingTime means no reply was received for that attempt.
type PingSample struct {
	Destination   string    `json:"destination"`
	RecordedAt    time.Time `json:"recorded_at"`
	PingTime      *float64  `json:"pingtime"` // milliseconds
	TTL           *int      `json:"ttl"`
	BytesReceived *int      `json:"bytes_received"`
}

// Success reports whether the attempt produced a reply.
func (p PingSample) Success() bool {
	return p.PingTime != nil
}

// TrafficSample represents one throughput tick of the outbound interface.
type TrafficSample struct {
	RecordedAt time.Time `json:"recorded_at"`
	Upload     float64   `json:"upload"`   // Mbps
	Download   float64   `json:"download"` // Mbps
}
