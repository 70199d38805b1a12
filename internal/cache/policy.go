package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"liquidations-api/pkg/confkit"
	"liquidations-api/pkg/params"
)

const (
	defaultTTLSeconds        = 300
	defaultSymbolsTTLSeconds = 3600
	defaultWarmLookback      = 24 * time.Hour
	defaultWarmRate          = 5.0

	envTTLSeconds    = "CACHE_TTL_SECONDS"
	envSymbolsTTL    = "CACHE_TTL_SYMBOLS"
	envEnabled       = "CACHE_ENABLED"
	envWarmOnStart   = "CACHE_WARM_ON_STARTUP"
	envRetryInterval = "CACHE_RETRY_INTERVAL"
)

var (
	defaultWarmSymbols    = []string{"BTCUSDT", "ETHUSDT", "ADAUSDT", "SOLUSDT", "XRPUSDT"}
	defaultWarmTimeframes = []string{"5m", "15m", "1h", "4h", "1d"}
)

// Policy holds cache behavior that is independent of the Redis address.
type Policy struct {
	Enabled           bool          `yaml:"-"`
	TTLSeconds        int           `yaml:"ttl_seconds"`
	SymbolsTTLSeconds int           `yaml:"symbols_ttl_seconds"`
	DialTimeout       time.Duration `yaml:"-"`
	ReadTimeout       time.Duration `yaml:"-"`
	WriteTimeout      time.Duration `yaml:"-"`
	RetryInterval     time.Duration `yaml:"-"`
	ScanCount         int64         `yaml:"scan_count"`
	Warm              WarmPolicy    `yaml:"warm"`
}

// WarmPolicy controls which entries are pre-populated.
type WarmPolicy struct {
	OnStartup     bool          `yaml:"on_startup"`
	Symbols       []string      `yaml:"symbols"`
	Timeframes    []string      `yaml:"timeframes"`
	Lookback      time.Duration `yaml:"-"`
	RatePerSecond float64       `yaml:"rate_per_second"`
}

// DefaultPolicy is used when no policy file is configured. Environment
// overrides still apply.
func DefaultPolicy() *Policy {
	confkit.LoadDotenvOnce()
	p := &Policy{Enabled: true}
	p.applyDefaults()
	p.applyEnvOverrides()
	return p
}

// TTLs returns the expiry set described by the policy.
func (p *Policy) TTLs() TTLSet {
	return TTLSet{
		Default: time.Duration(p.TTLSeconds) * time.Second,
		Symbols: time.Duration(p.SymbolsTTLSeconds) * time.Second,
	}
}

// Apply copies connection timings into opts.
func (p *Policy) Apply(opts Options) Options {
	opts.Disabled = opts.Disabled || !p.Enabled
	opts.DialTimeout = p.DialTimeout
	opts.ReadTimeout = p.ReadTimeout
	opts.WriteTimeout = p.WriteTimeout
	opts.RetryInterval = p.RetryInterval
	opts.ScanCount = p.ScanCount
	return opts
}

// LoadPolicy reads a policy file from disk.
func LoadPolicy(path string) (*Policy, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cache policy: %w", err)
	}
	defer file.Close()
	return LoadPolicyFromReader(file)
}

// LoadPolicyFromReader constructs a Policy from YAML.
func LoadPolicyFromReader(r io.Reader) (*Policy, error) {
	confkit.LoadDotenvOnce()
	var raw struct {
		Enabled           *bool  `yaml:"enabled"`
		TTLSeconds        int    `yaml:"ttl_seconds"`
		SymbolsTTLSeconds int    `yaml:"symbols_ttl_seconds"`
		DialTimeout       string `yaml:"dial_timeout"`
		ReadTimeout       string `yaml:"read_timeout"`
		WriteTimeout      string `yaml:"write_timeout"`
		RetryInterval     string `yaml:"retry_interval"`
		ScanCount         int64  `yaml:"scan_count"`
		Warm              struct {
			OnStartup     bool     `yaml:"on_startup"`
			Symbols       []string `yaml:"symbols"`
			Timeframes    []string `yaml:"timeframes"`
			Lookback      string   `yaml:"lookback"`
			RatePerSecond float64  `yaml:"rate_per_second"`
		} `yaml:"warm"`
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read cache policy: %w", err)
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal cache policy: %w", err)
	}

	p := &Policy{
		Enabled:           raw.Enabled == nil || *raw.Enabled,
		TTLSeconds:        raw.TTLSeconds,
		SymbolsTTLSeconds: raw.SymbolsTTLSeconds,
		ScanCount:         raw.ScanCount,
		Warm: WarmPolicy{
			OnStartup:     raw.Warm.OnStartup,
			Symbols:       raw.Warm.Symbols,
			Timeframes:    raw.Warm.Timeframes,
			RatePerSecond: raw.Warm.RatePerSecond,
		},
	}
	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"dial_timeout", raw.DialTimeout, &p.DialTimeout},
		{"read_timeout", raw.ReadTimeout, &p.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &p.WriteTimeout},
		{"retry_interval", raw.RetryInterval, &p.RetryInterval},
		{"warm.lookback", raw.Warm.Lookback, &p.Warm.Lookback},
	}
	for _, d := range durations {
		if err := parseDuration(d.name, d.raw, d.dst); err != nil {
			return nil, err
		}
	}

	p.applyDefaults()
	p.applyEnvOverrides()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the policy after defaults and overrides are applied.
func (p *Policy) Validate() error {
	if p.TTLSeconds <= 0 {
		return errors.New("cache policy: ttl_seconds must be positive")
	}
	if p.SymbolsTTLSeconds <= 0 {
		return errors.New("cache policy: symbols_ttl_seconds must be positive")
	}
	if p.DialTimeout <= 0 || p.ReadTimeout <= 0 || p.WriteTimeout <= 0 {
		return errors.New("cache policy: timeouts must be positive")
	}
	if p.Warm.RatePerSecond <= 0 {
		return errors.New("cache policy: warm.rate_per_second must be positive")
	}
	for _, tf := range p.Warm.Timeframes {
		if _, err := params.ParseTimeframe(tf); err != nil {
			return fmt.Errorf("cache policy: warm.timeframes: %w", err)
		}
	}
	for _, sym := range p.Warm.Symbols {
		if strings.TrimSpace(sym) == "" {
			return errors.New("cache policy: warm.symbols cannot contain blanks")
		}
	}
	return nil
}

func (p *Policy) applyDefaults() {
	if p.TTLSeconds <= 0 {
		p.TTLSeconds = defaultTTLSeconds
	}
	if p.SymbolsTTLSeconds <= 0 {
		p.SymbolsTTLSeconds = defaultSymbolsTTLSeconds
	}
	if p.DialTimeout <= 0 {
		p.DialTimeout = defaultOpTimeout
	}
	if p.ReadTimeout <= 0 {
		p.ReadTimeout = defaultOpTimeout
	}
	if p.WriteTimeout <= 0 {
		p.WriteTimeout = defaultOpTimeout
	}
	if p.RetryInterval <= 0 {
		p.RetryInterval = defaultRetryInterval
	}
	if p.ScanCount <= 0 {
		p.ScanCount = defaultScanCount
	}
	if len(p.Warm.Symbols) == 0 {
		p.Warm.Symbols = append([]string(nil), defaultWarmSymbols...)
	}
	if len(p.Warm.Timeframes) == 0 {
		p.Warm.Timeframes = append([]string(nil), defaultWarmTimeframes...)
	}
	if p.Warm.Lookback <= 0 {
		p.Warm.Lookback = defaultWarmLookback
	}
	if p.Warm.RatePerSecond <= 0 {
		p.Warm.RatePerSecond = defaultWarmRate
	}
}

func (p *Policy) applyEnvOverrides() {
	if v, ok := envInt(envTTLSeconds); ok {
		p.TTLSeconds = v
	}
	if v, ok := envInt(envSymbolsTTL); ok {
		p.SymbolsTTLSeconds = v
	}
	if raw := os.Getenv(envEnabled); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			p.Enabled = b
		}
	}
	if raw := os.Getenv(envWarmOnStart); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			p.Warm.OnStartup = b
		}
	}
	if raw := os.Getenv(envRetryInterval); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			p.RetryInterval = d
		}
	}
}

func envInt(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseDuration(name, raw string, dst *time.Duration) error {
	raw = strings.TrimSpace(os.ExpandEnv(raw))
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("cache policy: invalid %s %q: %w", name, raw, err)
	}
	*dst = d
	return nil
}
