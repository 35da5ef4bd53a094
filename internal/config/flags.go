package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	yaml "go.yaml.in/yaml/v3"
)

// Load builds the configuration from defaults, an optional YAML file and
// HOMENET_* environment variables, in that order. A .env file in the working
// directory is loaded first when present.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	str("HOMENET_INBOUND_INTERFACE", &cfg.Interfaces.Inbound)
	str("HOMENET_OUTBOUND_INTERFACE", &cfg.Interfaces.Outbound)
	str("HOMENET_DB_DRIVER", &cfg.Database.Driver)
	str("HOMENET_DB_PATH", &cfg.Database.Path)
	str("HOMENET_DB_HOST", &cfg.Database.Host)
	str("HOMENET_DB_NAME", &cfg.Database.Name)
	str("HOMENET_DB_USER", &cfg.Database.User)
	str("HOMENET_DB_PASSWORD", &cfg.Database.Password)
	str("HOMENET_ADDR", &cfg.Server.Addr)
	str("HOMENET_LOG_LEVEL", &cfg.LogLevel)

	if v, ok := os.LookupEnv("HOMENET_DB_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid HOMENET_DB_PORT %q: %w", v, err)
		}
		cfg.Database.Port = port
	}
	if v, ok := os.LookupEnv("HOMENET_DESTINATIONS"); ok {
		cfg.Destinations = splitList(v)
	}
	return nil
}

// RegisterFlags adds the overridable settings to a flag set.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("db", d.Database.Path, "SQLite database path")
	fs.String("db-driver", d.Database.Driver, "Sample store driver (sqlite or postgres)")
	fs.String("addr", d.Server.Addr, "Dashboard listen address")
	fs.String("interface", d.Interfaces.Outbound, "Outbound interface sampled for traffic")
	fs.String("destinations", strings.Join(d.Destinations, ","), "Comma-separated ping destinations")
	fs.Int("count", d.Sampling.PingCount, "Ping attempts per sampler run")
	fs.Duration("duration", d.Sampling.TrafficDuration, "Traffic sampler run length")
	fs.Duration("retention", d.Retention, "Sample retention horizon")
}

// ApplyFlags copies flags that were set explicitly on the command line into cfg.
func ApplyFlags(fs *pflag.FlagSet, cfg *Config) error {
	var err error
	set := func(name string, apply func() error) {
		if err != nil {
			return
		}
		if f := fs.Lookup(name); f != nil && f.Changed {
			err = apply()
		}
	}

	set("db", func() (e error) { cfg.Database.Path, e = fs.GetString("db"); return })
	set("db-driver", func() (e error) { cfg.Database.Driver, e = fs.GetString("db-driver"); return })
	set("addr", func() (e error) { cfg.Server.Addr, e = fs.GetString("addr"); return })
	set("interface", func() (e error) { cfg.Interfaces.Outbound, e = fs.GetString("interface"); return })
	set("destinations", func() error {
		v, e := fs.GetString("destinations")
		cfg.Destinations = splitList(v)
		return e
	})
	set("count", func() (e error) { cfg.Sampling.PingCount, e = fs.GetInt("count"); return })
	set("duration", func() (e error) { cfg.Sampling.TrafficDuration, e = fs.GetDuration("duration"); return })
	set("retention", func() (e error) { cfg.Retention, e = fs.GetDuration("retention"); return })
	return err
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
