package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/hostsaccel/pkg/hosts"
	"github.com/cuemby/hostsaccel/pkg/types"
	"gopkg.in/yaml.v3"
)

// Config is the complete hostsaccel configuration
type Config struct {
	HostsFile string `yaml:"hosts_file"`
	StateDir  string `yaml:"state_dir"`
	CacheFile string `yaml:"cache_file"`

	Log       LogConfig       `yaml:"log"`
	Sources   SourcesConfig   `yaml:"sources"`
	Benchmark BenchmarkConfig `yaml:"benchmark"`
	Probe     ProbeConfig     `yaml:"probe"`
	Watchdog  WatchdogConfig  `yaml:"watchdog"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// LogConfig selects the log level and format
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Source is one remote hosts-format list
type Source struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// SourcesConfig lists where candidate addresses come from
type SourcesConfig struct {
	// Keyword selects domains from fetched lists (case-insensitive substring)
	Keyword string `yaml:"keyword"`

	// General sources are tried in order; the first non-empty one wins
	General []Source `yaml:"general"`

	// Remediation sources are all queried for the remediation target
	Remediation []Source `yaml:"remediation"`

	// DNSUpstreams are host:port resolvers queried for the remediation target
	DNSUpstreams []string `yaml:"dns_upstreams"`

	Timeout     time.Duration `yaml:"timeout"`
	CacheMaxAge time.Duration `yaml:"cache_max_age"`
}

// BenchmarkConfig bounds the ranking run
type BenchmarkConfig struct {
	Concurrency int           `yaml:"concurrency"`
	TopN        int           `yaml:"top_n"`
	Weights     types.Weights `yaml:"weights"`
}

// ProbeConfig holds the per-check timeouts
type ProbeConfig struct {
	Port               int           `yaml:"port"`
	TCPTimeout         time.Duration `yaml:"tcp_timeout"`
	PingCount          int           `yaml:"ping_count"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	HTTPTimeout        time.Duration `yaml:"http_timeout"`
	TLSTimeout         time.Duration `yaml:"tls_timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

// WatchdogConfig configures remediation of the target domain
type WatchdogConfig struct {
	Target   string        `yaml:"target"`
	Interval time.Duration `yaml:"interval"`
}

// MetricsConfig configures the Prometheus textfile export
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"`
}

// CacheFileName is the emergency cache file inside the state directory
const CacheFileName = "emergency_ips.json"

// Default returns the built-in configuration
func Default() *Config {
	stateDir := defaultStateDir()
	return &Config{
		HostsFile: hosts.DefaultPath(),
		StateDir:  stateDir,
		CacheFile: filepath.Join(stateDir, CacheFileName),
		Log: LogConfig{
			Level: "info",
		},
		Sources: SourcesConfig{
			Keyword: "github",
			General: []Source{
				{Name: "gitee", URL: "https://gitee.com/frankwuzp/github-host/raw/main/hosts"},
				{Name: "ghproxy", URL: "https://mirror.ghproxy.com/https://raw.githubusercontent.com/521xueweihan/GitHub520/main/hosts"},
				{Name: "jsdelivr", URL: "https://fastly.jsdelivr.net/gh/521xueweihan/GitHub520@main/hosts"},
			},
			Remediation: []Source{
				{Name: "gitlab", URL: "https://gitlab.com/ineo6/hosts/-/raw/master/hosts"},
				{Name: "jsdelivr", URL: "https://fastly.jsdelivr.net/gh/521xueweihan/GitHub520@main/hosts"},
				{Name: "ghproxy", URL: "https://ghproxy.com/https://raw.githubusercontent.com/justjavac/ReplaceGoogleCDN/master/hosts"},
			},
			DNSUpstreams: []string{"1.1.1.1:53", "8.8.8.8:53", "223.5.5.5:53"},
			Timeout:      5 * time.Second,
			CacheMaxAge:  30 * 24 * time.Hour,
		},
		Benchmark: BenchmarkConfig{
			Concurrency: 15,
			TopN:        types.DefaultTopN,
			Weights:     types.DefaultWeights(),
		},
		Probe: ProbeConfig{
			Port:        443,
			TCPTimeout:  3 * time.Second,
			PingCount:   3,
			PingTimeout: 2 * time.Second,
			HTTPTimeout: 3 * time.Second,
			TLSTimeout:  5 * time.Second,
		},
		Watchdog: WatchdogConfig{
			Target:   "objects.githubusercontent.com",
			Interval: time.Hour,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// a state_dir override moves the cache with it unless set explicitly
	var raw struct {
		StateDir  string `yaml:"state_dir"`
		CacheFile string `yaml:"cache_file"`
	}
	if err := yaml.Unmarshal(data, &raw); err == nil && raw.StateDir != "" && raw.CacheFile == "" {
		cfg.CacheFile = filepath.Join(raw.StateDir, CacheFileName)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetStateDir moves the state directory. The emergency cache follows it
// unless it was configured somewhere else.
func (c *Config) SetStateDir(dir string) {
	if c.CacheFile == filepath.Join(c.StateDir, CacheFileName) {
		c.CacheFile = filepath.Join(dir, CacheFileName)
	}
	c.StateDir = dir
}

// Validate checks every field for usable values
func (c *Config) Validate() error {
	var errs []error

	if c.HostsFile == "" {
		errs = append(errs, errors.New("hosts_file must not be empty"))
	}
	if c.StateDir == "" {
		errs = append(errs, errors.New("state_dir must not be empty"))
	}
	if c.Sources.Keyword == "" {
		errs = append(errs, errors.New("sources.keyword must not be empty"))
	}
	for _, list := range [][]Source{c.Sources.General, c.Sources.Remediation} {
		for _, s := range list {
			if err := validateSource(s); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for _, upstream := range c.Sources.DNSUpstreams {
		if _, _, err := net.SplitHostPort(upstream); err != nil {
			errs = append(errs, fmt.Errorf("sources.dns_upstreams: %q must be host:port", upstream))
		}
	}
	if c.Sources.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("sources.timeout must be positive, got %s", c.Sources.Timeout))
	}
	if c.Sources.CacheMaxAge < time.Hour {
		errs = append(errs, fmt.Errorf("sources.cache_max_age too small (%s), must be >=1h", c.Sources.CacheMaxAge))
	}

	if c.Benchmark.Concurrency < 1 || c.Benchmark.Concurrency > 256 {
		errs = append(errs, fmt.Errorf("benchmark.concurrency must be between 1 and 256, got %d", c.Benchmark.Concurrency))
	}
	if c.Benchmark.TopN < 1 {
		errs = append(errs, fmt.Errorf("benchmark.top_n must be at least 1, got %d", c.Benchmark.TopN))
	}
	w := c.Benchmark.Weights
	if w.Latency < 0 || w.Loss < 0 || w.HTTP < 0 {
		errs = append(errs, errors.New("benchmark.weights must not be negative"))
	}

	if c.Probe.Port < 1 || c.Probe.Port > 65535 {
		errs = append(errs, fmt.Errorf("probe.port out of range: %d", c.Probe.Port))
	}
	if c.Probe.PingCount < 1 {
		errs = append(errs, fmt.Errorf("probe.ping_count must be at least 1, got %d", c.Probe.PingCount))
	}
	for name, d := range map[string]time.Duration{
		"probe.tcp_timeout":  c.Probe.TCPTimeout,
		"probe.ping_timeout": c.Probe.PingTimeout,
		"probe.http_timeout": c.Probe.HTTPTimeout,
		"probe.tls_timeout":  c.Probe.TLSTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	if c.Watchdog.Target == "" {
		errs = append(errs, errors.New("watchdog.target must not be empty"))
	}
	if c.Watchdog.Interval < time.Minute {
		errs = append(errs, fmt.Errorf("watchdog.interval too small (%s), must be >=1m", c.Watchdog.Interval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func validateSource(s Source) error {
	if s.Name == "" {
		return fmt.Errorf("source %q: name must not be empty", s.URL)
	}
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("source %s: invalid url %q", s.Name, s.URL)
	}
	return nil
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "hostsaccel")
	}
	return filepath.Join(os.TempDir(), "hostsaccel")
}
