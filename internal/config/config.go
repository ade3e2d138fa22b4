package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable consulted when no --config flag is given.
const EnvPath = "HIREWIRE_CONFIG"

// DefaultPath is used when neither the flag nor EnvPath is set.
const DefaultPath = "config.yaml"

// Source types understood by the adapter factory.
const (
	SourceGreenhouse      = "greenhouse"
	SourceLever           = "lever"
	SourceAshby           = "ashby"
	SourceGem             = "gem"
	SourceWorkday         = "workday"
	SourceSmartRecruiters = "smartrecruiters"
)

var sourceTypes = []string{SourceGreenhouse, SourceLever, SourceAshby, SourceGem, SourceWorkday, SourceSmartRecruiters}

// DefaultRecipient receives every match when no recipients registry is configured.
const DefaultRecipient = "demo"

// Config is the root configuration. It is loaded once and never mutated.
type Config struct {
	PollingInterval time.Duration
	Criteria        Criteria
	Recipients      []Recipient
	Sources         []SourceConfig
	Fetch           FetchConfig
	Storage         StorageConfig
	Ledger          LedgerConfig
	Redis           RedisConfig
	Realtime        RealtimeConfig
	Digest          DigestConfig
	HTTP            HTTPConfig
	LockFile        string
}

// Criteria is one set of interest keywords, lower-cased and trimmed.
type Criteria struct {
	RoleKeywords       []string
	EmploymentKeywords []string
	Locations          []string // empty = any location
}

// Recipient is a registry entry: who gets notified for which criteria.
type Recipient struct {
	ID       string
	Criteria Criteria
}

// SourceConfig describes a single board to poll.
type SourceConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	BoardToken string `yaml:"board_token"`
	URL        string `yaml:"url"` // workday CXS site, e.g. https://acme.wd5.myworkdayjobs.com/wday/cxs/acme/External
	Enabled    bool   `yaml:"enabled"`
}

// Board is what the adapter is built from: the token, or the site URL for workday.
func (s SourceConfig) Board() string {
	if s.Type == SourceWorkday {
		return s.URL
	}
	return s.BoardToken
}

// FetchConfig controls adapter decoration and candidate concurrency.
type FetchConfig struct {
	Timeout           time.Duration // per source attempt
	MaxRetries        int
	RetryDelay        time.Duration // base backoff
	RequestsPerSecond float64       // per provider host; 0 = unlimited
	Burst             int
	DescriptionLimit  int // runes
	Workers           int // pipeline candidate workers
}

// StorageConfig selects the job store.
type StorageConfig struct {
	Driver   string // "sqlite" or "postgres"
	Path     string // sqlite file
	DSN      string // postgres connection string
	MaxConns int
}

// LedgerConfig selects where seen fingerprints live.
type LedgerConfig struct {
	Backend string        // "store", "redis" or "memory"
	TTL     time.Duration // 0 disables expiry
}

type RedisConfig struct {
	URL string
}

// RealtimeConfig selects the realtime publisher.
type RealtimeConfig struct {
	Type      string // "redis", "hub" or "log"
	Recipient string
}

// DigestConfig selects the digest sender. No recipients disables the digest.
type DigestConfig struct {
	Type         string // "smtp", "slack" or "log"
	Recipients   []string
	PreviewLimit int
	Subject      string
	WebhookURL   string
	SMTP         SMTPConfig
}

// Enabled reports whether a digest should be dispatched at all.
func (d DigestConfig) Enabled() bool { return len(d.Recipients) > 0 }

type SMTPConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	KeyringAccount string `yaml:"keyring_account"`
	From           string `yaml:"from"`
}

type HTTPConfig struct {
	Addr string // empty disables the HTTP server
}

// commaList decodes either a YAML sequence or a single comma-separated string.
type commaList []string

func (c *commaList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*c = splitComma(node.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		var out []string
		for _, it := range items {
			out = append(out, splitComma(it)...)
		}
		*c = out
		return nil
	}
	return fmt.Errorf("line %d: expected a list or comma-separated string", node.Line)
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	PollingInterval string            `yaml:"polling_interval"`
	Criteria        rawCriteria       `yaml:"criteria"`
	Recipients      []rawRecipient    `yaml:"recipients"`
	Sources         []SourceConfig    `yaml:"sources"`
	Fetch           rawFetchConfig    `yaml:"fetch"`
	Storage         rawStorageConfig  `yaml:"storage"`
	Ledger          rawLedgerConfig   `yaml:"ledger"`
	Redis           RedisConfig       `yaml:"redis"`
	Realtime        rawRealtimeConfig `yaml:"realtime"`
	Digest          rawDigestConfig   `yaml:"digest"`
	HTTP            rawHTTPConfig     `yaml:"http"`
	LockFile        string            `yaml:"lock_file"`
}

type rawCriteria struct {
	RoleKeywords       commaList `yaml:"role_keywords"`
	EmploymentKeywords commaList `yaml:"employment_keywords"`
	Locations          commaList `yaml:"locations"`
}

type rawRecipient struct {
	ID          string `yaml:"id"`
	rawCriteria `yaml:",inline"`
}

type rawFetchConfig struct {
	Timeout           string  `yaml:"timeout"`
	MaxRetries        *int    `yaml:"max_retries"`
	RetryDelay        string  `yaml:"retry_delay"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	DescriptionLimit  int     `yaml:"description_limit"`
	Workers           int     `yaml:"workers"`
}

type rawStorageConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	DSN      string `yaml:"dsn"`
	MaxConns int    `yaml:"max_conns"`
}

type rawLedgerConfig struct {
	Backend string `yaml:"backend"`
	TTL     string `yaml:"ttl"`
}

type rawRealtimeConfig struct {
	Type      string `yaml:"type"`
	Recipient string `yaml:"recipient"`
}

type rawDigestConfig struct {
	Type         string     `yaml:"type"`
	Recipients   commaList  `yaml:"recipients"`
	PreviewLimit int        `yaml:"preview_limit"`
	Subject      string     `yaml:"subject"`
	WebhookURL   string     `yaml:"webhook_url"`
	SMTP         SMTPConfig `yaml:"smtp"`
}

type rawHTTPConfig struct {
	Addr *string `yaml:"addr"`
}

// ResolvePath applies flag > HIREWIRE_CONFIG > ./config.yaml.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env
	}
	return DefaultPath
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes, expanding ${ENV} references first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	interval, err := parseDuration("polling_interval", raw.PollingInterval, 5*time.Minute)
	if err != nil {
		return nil, err
	}
	timeout, err := parseDuration("fetch.timeout", raw.Fetch.Timeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	retryDelay, err := parseDuration("fetch.retry_delay", raw.Fetch.RetryDelay, 2*time.Second)
	if err != nil {
		return nil, err
	}
	ledgerTTL, err := parseDuration("ledger.ttl", raw.Ledger.TTL, 0)
	if err != nil {
		return nil, err
	}

	maxRetries := 3
	if raw.Fetch.MaxRetries != nil {
		maxRetries = *raw.Fetch.MaxRetries
	}

	httpAddr := ":8080"
	if raw.HTTP.Addr != nil {
		httpAddr = *raw.HTTP.Addr
	}

	cfg := &Config{
		PollingInterval: interval,
		Criteria:        raw.Criteria.build(),
		Sources:         raw.Sources,
		Fetch: FetchConfig{
			Timeout:           timeout,
			MaxRetries:        maxRetries,
			RetryDelay:        retryDelay,
			RequestsPerSecond: raw.Fetch.RequestsPerSecond,
			Burst:             orDefault(raw.Fetch.Burst, 1),
			DescriptionLimit:  orDefault(raw.Fetch.DescriptionLimit, 1000),
			Workers:           orDefault(raw.Fetch.Workers, 8),
		},
		Storage: StorageConfig{
			Driver:   orDefaultStr(raw.Storage.Driver, "sqlite"),
			Path:     orDefaultStr(raw.Storage.Path, "hirewire.db"),
			DSN:      raw.Storage.DSN,
			MaxConns: orDefault(raw.Storage.MaxConns, 4),
		},
		Ledger: LedgerConfig{
			Backend: orDefaultStr(raw.Ledger.Backend, "store"),
			TTL:     ledgerTTL,
		},
		Redis: RedisConfig{URL: orDefaultStr(raw.Redis.URL, "redis://127.0.0.1:6379")},
		Realtime: RealtimeConfig{
			Type:      orDefaultStr(raw.Realtime.Type, "log"),
			Recipient: orDefaultStr(raw.Realtime.Recipient, DefaultRecipient),
		},
		Digest: DigestConfig{
			Type:         orDefaultStr(raw.Digest.Type, "log"),
			Recipients:   raw.Digest.Recipients,
			PreviewLimit: orDefault(raw.Digest.PreviewLimit, 20),
			Subject:      raw.Digest.Subject,
			WebhookURL:   raw.Digest.WebhookURL,
			SMTP:         raw.Digest.SMTP,
		},
		HTTP:     HTTPConfig{Addr: httpAddr},
		LockFile: orDefaultStr(raw.LockFile, "hirewire.lock"),
	}
	if cfg.Digest.SMTP.Port == 0 {
		cfg.Digest.SMTP.Port = 587
	}

	for _, r := range raw.Recipients {
		cfg.Recipients = append(cfg.Recipients, Recipient{ID: strings.TrimSpace(r.ID), Criteria: r.rawCriteria.build()})
	}
	// Without a registry, the realtime recipient gets the global criteria.
	if len(cfg.Recipients) == 0 {
		cfg.Recipients = []Recipient{{ID: cfg.Realtime.Recipient, Criteria: cfg.Criteria}}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// EnabledSources returns the sources with enabled: true, in file order.
func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// RecipientIDs lists the registry ids in file order.
func (c *Config) RecipientIDs() []string {
	ids := make([]string, len(c.Recipients))
	for i, r := range c.Recipients {
		ids[i] = r.ID
	}
	return ids
}

func (r rawCriteria) build() Criteria {
	return Criteria{
		RoleKeywords:       lower(r.RoleKeywords),
		EmploymentKeywords: lower(r.EmploymentKeywords),
		Locations:          lower(r.Locations),
	}
}

func lower(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}

// parseDuration accepts Go durations ("5m") and bare integers as seconds.
func parseDuration(field, s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return d, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultStr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func validate(cfg *Config) error {
	if cfg.PollingInterval <= 0 {
		return fmt.Errorf("polling_interval must be positive, got %v", cfg.PollingInterval)
	}

	enabled := 0
	for i, s := range cfg.Sources {
		if !s.Enabled {
			continue
		}
		enabled++
		if !slices.Contains(sourceTypes, s.Type) {
			return fmt.Errorf("sources[%d]: unknown type %q (want one of %s)", i, s.Type, strings.Join(sourceTypes, ", "))
		}
		if s.Type == SourceWorkday && s.URL == "" {
			return fmt.Errorf("sources[%d]: url is required for workday", i)
		}
		if s.Type != SourceWorkday && s.BoardToken == "" {
			return fmt.Errorf("sources[%d]: board_token is required for %s", i, s.Type)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}

	seen := make(map[string]bool)
	for i, r := range cfg.Recipients {
		if r.ID == "" {
			return fmt.Errorf("recipients[%d]: id is required", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("recipients[%d]: duplicate id %q", i, r.ID)
		}
		seen[r.ID] = true
		if len(r.Criteria.RoleKeywords) == 0 {
			if len(cfg.Recipients) == 1 && r.ID == cfg.Realtime.Recipient && len(cfg.Criteria.RoleKeywords) == 0 {
				return fmt.Errorf("criteria.role_keywords is required")
			}
			return fmt.Errorf("recipients[%d] %q: role_keywords is required", i, r.ID)
		}
	}

	if cfg.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must not be negative, got %d", cfg.Fetch.MaxRetries)
	}
	if cfg.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive, got %v", cfg.Fetch.Timeout)
	}

	switch cfg.Storage.Driver {
	case "sqlite":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for sqlite")
		}
	case "postgres":
		if cfg.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("storage.driver must be \"sqlite\" or \"postgres\", got %q", cfg.Storage.Driver)
	}

	switch cfg.Ledger.Backend {
	case "store", "memory", "redis":
	default:
		return fmt.Errorf("ledger.backend must be \"store\", \"redis\" or \"memory\", got %q", cfg.Ledger.Backend)
	}
	if cfg.Ledger.TTL < 0 {
		return fmt.Errorf("ledger.ttl must not be negative, got %v", cfg.Ledger.TTL)
	}

	switch cfg.Realtime.Type {
	case "redis", "hub", "log":
	default:
		return fmt.Errorf("realtime.type must be \"redis\", \"hub\" or \"log\", got %q", cfg.Realtime.Type)
	}

	if (cfg.Ledger.Backend == "redis" || cfg.Realtime.Type == "redis") && cfg.Redis.URL == "" {
		return fmt.Errorf("redis.url is required when redis is used")
	}

	switch cfg.Digest.Type {
	case "log":
	case "slack":
		if cfg.Digest.WebhookURL == "" {
			return fmt.Errorf("digest.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Digest.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("digest.webhook_url must start with https://hooks.slack.com/")
		}
	case "smtp":
		if cfg.Digest.SMTP.Host == "" || cfg.Digest.SMTP.From == "" {
			return fmt.Errorf("digest.smtp.host and digest.smtp.from are required when type is \"smtp\"")
		}
	default:
		return fmt.Errorf("digest.type must be \"smtp\", \"slack\" or \"log\", got %q", cfg.Digest.Type)
	}

	return nil
}
