package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds all configuration for the network monitor. It is built once at
// startup and handed to every component that needs it.
type Config struct {
	Interfaces     Interfaces    `yaml:"interfaces"`
	Database       Database      `yaml:"database"`
	Destinations   []string      `yaml:"destinations"`
	Sampling       Sampling      `yaml:"sampling"`
	Retention      time.Duration `yaml:"retention"`
	Loss           Loss          `yaml:"loss"`
	Server         Server        `yaml:"server"`
	MaxDownload    float64       `yaml:"max_download"` // Mbps
	MaxUpload      float64       `yaml:"max_upload"`   // Mbps
	PreferredSSIDs []SSID        `yaml:"preferred_ssids"`
	ProbeHosts     []string      `yaml:"probe_hosts"`
	Commands       Commands      `yaml:"commands"`
	Schedule       Schedule      `yaml:"schedule"`
	LogLevel       string        `yaml:"log_level"`
}

// Interfaces names the network interfaces the monitor works with
type Interfaces struct {
	Inbound  string `yaml:"inbound"`
	Outbound string `yaml:"outbound"`
}

// Database selects and configures the sample store.
type Database struct {
	Driver   string `yaml:"driver"` // sqlite or postgres
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

// DSN returns the PostgreSQL connection string.
func (d Database) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Sampling configures the ping and traffic samplers.
type Sampling struct {
	PingCount       int           `yaml:"ping_count"`
	TrafficDuration time.Duration `yaml:"traffic_duration"`
	TrafficSource   string        `yaml:"traffic_source"` // ifstat or counters
}

// Loss fixes the packet-loss window and its expected attempt count.
type Loss struct {
	Window   time.Duration `yaml:"window"`
	Expected int           `yaml:"expected"`
}

// Server configures the dashboard.
type Server struct {
	Addr           string        `yaml:"addr"`
	StreamInterval time.Duration `yaml:"stream_interval"`
	GraphWindow    time.Duration `yaml:"graph_window"`
	BucketWidth    time.Duration `yaml:"bucket_width"`
	TrafficWindow  time.Duration `yaml:"traffic_window"`
}

// SSID is one entry of the ordered Wi-Fi preference list; earlier wins.
type SSID struct {
	Name     string `yaml:"ssid"`
	Password string `yaml:"password"`
}

// Commands holds the external binaries the monitor spawns
type Commands struct {
	Ping      string `yaml:"ping"`
	Ifstat    string `yaml:"ifstat"`
	Speedtest string `yaml:"speedtest"`
	Nmcli     string `yaml:"nmcli"`
}

// Schedule holds cron specs for the in-process scheduler.
type Schedule struct {
	Ping    string `yaml:"ping"`
	Traffic string `yaml:"traffic"`
	Prune   string `yaml:"prune"`
	Jobs    int    `yaml:"jobs"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Interfaces: Interfaces{Inbound: "wlan0", Outbound: "eth0"},
		Database: Database{
			Driver:   "sqlite",
			Path:     "homenet.db",
			Host:     "localhost",
			Port:     5432,
			Name:     "homenet",
			User:     "homenet",
			MaxConns: 10,
		},
		Destinations: []string{"www.amazon.de"},
		Sampling: Sampling{
			PingCount:       60,
			TrafficDuration: 60 * time.Second,
			TrafficSource:   "ifstat",
		},
		Retention: 3 * time.Hour,
		Loss:      Loss{Window: time.Hour, Expected: 3600},
		Server: Server{
			Addr:           ":8080",
			StreamInterval: time.Second,
			GraphWindow:    time.Hour,
			BucketWidth:    time.Minute,
			TrafficWindow:  10 * time.Minute,
		},
		MaxDownload: 100,
		MaxUpload:   40,
		ProbeHosts:  []string{"www.google.de", "www.amazon.de"},
		Commands: Commands{
			Ping:      "ping",
			Ifstat:    "ifstat",
			Speedtest: "speedtest-cli",
			Nmcli:     "nmcli",
		},
		Schedule: Schedule{
			Ping:    "@every 1m",
			Traffic: "@every 1m",
			Prune:   "@every 3h",
			Jobs:    4,
		},
		LogLevel: "info",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Destinations) == 0 {
		return fmt.Errorf("at least one destination must be specified")
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path cannot be empty")
		}
	case "postgres":
		if c.Database.Name == "" || c.Database.User == "" {
			return fmt.Errorf("database name and user are required for postgres")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("database port must be between 1 and 65535")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("database max_conns must be positive")
	}
	if c.Sampling.PingCount <= 0 {
		return fmt.Errorf("ping count must be positive")
	}
	if c.Sampling.TrafficDuration < time.Second {
		return fmt.Errorf("traffic duration must be at least one second")
	}
	if c.Sampling.TrafficSource != "ifstat" && c.Sampling.TrafficSource != "counters" {
		return fmt.Errorf("unknown traffic source %q", c.Sampling.TrafficSource)
	}
	if c.Retention <= 0 {
		return fmt.Errorf("retention must be positive")
	}
	if c.Loss.Window <= 0 || c.Loss.Expected <= 0 {
		return fmt.Errorf("loss window and expected attempts must be positive")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.Server.StreamInterval <= 0 {
		return fmt.Errorf("stream interval must be positive")
	}
	if c.Server.BucketWidth <= 0 || c.Server.GraphWindow < c.Server.BucketWidth {
		return fmt.Errorf("graph window must hold at least one bucket")
	}
	if c.Server.TrafficWindow <= 0 {
		return fmt.Errorf("traffic window must be positive")
	}
	if c.Schedule.Jobs <= 0 {
		return fmt.Errorf("schedule jobs must be positive")
	}
	return nil
}
