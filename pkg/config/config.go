package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EffectiveConfigResult carries the merged configuration plus the resolved
// listen address, db path and a short description of where values came from.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCommandFlags defines and parses command-line flags and returns their
// values along with a map indicating which flags were explicitly set.
func ParseCommandFlags() (addr string, dbPath string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *dbPtr, *cfgPtr, setFlags
}

// ResolveConfigPath decides the config file path using the flag-provided
// value and the ATELIER_CONFIG environment variable when the flag was not
// set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("ATELIER_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

// LoadEnvOverrides applies environment overrides onto the provided cfg and
// reports whether any env vars were used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false
	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		parts := []string{}
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	if v := os.Getenv("ATELIER_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("ATELIER_DB_PATH"); v != "" {
		envUsed = true
		cfg.Server.DBPath = v
	}
	if v := os.Getenv("ATELIER_CORS_ORIGINS"); v != "" {
		envUsed = true
		cfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("ATELIER_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("ATELIER_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("ATELIER_API_BACKEND_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Backend = parseList(v)
	}
	if v := os.Getenv("ATELIER_API_FRONTEND_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Frontend = parseList(v)
	}
	if v := os.Getenv("ATELIER_GENERATION_PROVIDER"); v != "" {
		envUsed = true
		cfg.Generation.Provider = strings.TrimSpace(v)
	}
	if v := os.Getenv("ATELIER_GENERATION_MODEL"); v != "" {
		envUsed = true
		cfg.Generation.Model = strings.TrimSpace(v)
	}
	if v := os.Getenv("ATELIER_GENERATION_API_KEY"); v != "" {
		envUsed = true
		cfg.Generation.APIKey = strings.TrimSpace(v)
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Generation.APIKey == "" {
		cfg.Generation.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("ATELIER_REFRESH_INTERVAL"); v != "" {
		if td, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Client.RefreshInterval = Duration(td)
		}
	}
	if c := os.Getenv("ATELIER_TLS_CERT"); c != "" {
		envUsed = true
		cfg.Server.TLS.CertFile = c
	}
	if k := os.Getenv("ATELIER_TLS_KEY"); k != "" {
		envUsed = true
		cfg.Server.TLS.KeyFile = k
	}
	return envUsed
}

// ApplyDefaults fills unset values with working defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = "openai"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-4o"
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 4096
	}
	if cfg.Engine.QueueCapacity == 0 {
		cfg.Engine.QueueCapacity = 256
	}
	if cfg.Client.RefreshInterval == 0 {
		cfg.Client.RefreshInterval = Duration(5 * time.Second)
	}
	if cfg.Retention.Cron == "" {
		cfg.Retention.Cron = "0 3 * * *"
	}
	if cfg.Retention.MinAge == 0 {
		cfg.Retention.MinAge = Duration(24 * time.Hour)
	}
}

// LoadEffective loads the config file (missing file is not fatal), applies
// env overrides and defaults, and resolves addr/dbPath with flags winning
// over env and config.
func LoadEffective(cfgPath, flagAddr, flagDB string, setFlags map[string]bool) EffectiveConfigResult {
	srcs := []string{}
	cfg, err := Load(cfgPath)
	if err != nil {
		cfg = &Config{}
	} else {
		srcs = append(srcs, "config")
	}
	if LoadEnvOverrides(cfg) {
		srcs = append(srcs, "env")
	}
	if len(setFlags) > 0 {
		srcs = append(srcs, "flags")
	}
	ApplyDefaults(cfg)

	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = flagAddr
	}
	dbPath := cfg.Server.DBPath
	if dbPath == "" || setFlags["db"] {
		dbPath = flagDB
	}
	return EffectiveConfigResult{Config: cfg, Addr: addr, DBPath: dbPath, Source: strings.Join(srcs, ", ")}
}
