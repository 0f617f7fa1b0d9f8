package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable the scraper reads
const EnvPrefix = "MOODLESCRAPER_"

// Config holds all configuration options for the course scraper
type Config struct {
	// Portal connection settings
	Portal PortalConfig `yaml:"portal" toml:"portal" json:"portal"`

	// CSS selectors describing the portal's markup
	Selectors SelectorConfig `yaml:"selectors" toml:"selectors" json:"selectors"`

	// Download and staging settings
	Download DownloadConfig `yaml:"download" toml:"download" json:"download"`

	// Organizer settings
	Organize OrganizeConfig `yaml:"organize" toml:"organize" json:"organize"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit" json:"rate_limit"`

	// Retry policy for transfers
	Retry RetryConfig `yaml:"retry" toml:"retry" json:"retry"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" toml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" toml:"logging" json:"logging"`
}

// PortalConfig holds portal-specific configuration
type PortalConfig struct {
	BaseURL          string        `yaml:"base_url" toml:"base_url" json:"base_url"`
	LoginPath        string        `yaml:"login_path" toml:"login_path" json:"login_path"`
	ListingPath      string        `yaml:"listing_path" toml:"listing_path" json:"listing_path"`
	UserAgent        string        `yaml:"user_agent" toml:"user_agent" json:"user_agent"`
	RequestTimeout   time.Duration `yaml:"request_timeout" toml:"request_timeout" json:"request_timeout"`
	LoadDelay        time.Duration `yaml:"load_delay" toml:"load_delay" json:"load_delay"`
	SettleDelay      time.Duration `yaml:"settle_delay" toml:"settle_delay" json:"settle_delay"`
	MaxPages         int           `yaml:"max_pages" toml:"max_pages" json:"max_pages"`
	SkipLogin        bool          `yaml:"skip_login" toml:"skip_login" json:"skip_login"`
	CloudflareBypass bool          `yaml:"cloudflare_bypass" toml:"cloudflare_bypass" json:"cloudflare_bypass"`
}

// SelectorConfig names the elements the scraper looks for
type SelectorConfig struct {
	GroupingDropdown string `yaml:"grouping_dropdown" toml:"grouping_dropdown" json:"grouping_dropdown"`
	ShowAllOption    string `yaml:"show_all_option" toml:"show_all_option" json:"show_all_option"`
	Listing          string `yaml:"listing" toml:"listing" json:"listing"`
	EntryRow         string `yaml:"entry_row" toml:"entry_row" json:"entry_row"`
	NextPage         string `yaml:"next_page" toml:"next_page" json:"next_page"`
	AssignmentRow    string `yaml:"assignment_row" toml:"assignment_row" json:"assignment_row"`
	ResourceRow      string `yaml:"resource_row" toml:"resource_row" json:"resource_row"`
	RowLabel         string `yaml:"row_label" toml:"row_label" json:"row_label"`
	RowLink          string `yaml:"row_link" toml:"row_link" json:"row_link"`
	CollapsedToggle  string `yaml:"collapsed_toggle" toml:"collapsed_toggle" json:"collapsed_toggle"`
	Attachment       string `yaml:"attachment" toml:"attachment" json:"attachment"`
	LoginFailure     string `yaml:"login_failure" toml:"login_failure" json:"login_failure"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	StagingDirectory string        `yaml:"staging_directory" toml:"staging_directory" json:"staging_directory"`
	MaxAttempts      int           `yaml:"max_attempts" toml:"max_attempts" json:"max_attempts"`
	InProgressMarker string        `yaml:"in_progress_marker" toml:"in_progress_marker" json:"in_progress_marker"`
	PollInterval     time.Duration `yaml:"poll_interval" toml:"poll_interval" json:"poll_interval"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" toml:"idle_timeout" json:"idle_timeout"`
	DownloadTimeout  time.Duration `yaml:"download_timeout" toml:"download_timeout" json:"download_timeout"`
}

// OrganizeConfig holds file organizer configuration
type OrganizeConfig struct {
	SnapshotExtension string  `yaml:"snapshot_extension" toml:"snapshot_extension" json:"snapshot_extension"`
	FuzzyThreshold    float64 `yaml:"fuzzy_threshold" toml:"fuzzy_threshold" json:"fuzzy_threshold"`
	CheckpointFile    string  `yaml:"checkpoint_file" toml:"checkpoint_file" json:"checkpoint_file"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" toml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" toml:"burst_size" json:"burst_size"`
}

// RetryConfig holds retry configuration for transfers
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts" toml:"max_attempts" json:"max_attempts"`
	InitialDelay      time.Duration `yaml:"initial_delay" toml:"initial_delay" json:"initial_delay"`
	MaxDelay          time.Duration `yaml:"max_delay" toml:"max_delay" json:"max_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" toml:"backoff_multiplier" json:"backoff_multiplier"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	OnComplete       bool   `yaml:"on_complete" toml:"on_complete" json:"on_complete"`
	OnError          bool   `yaml:"on_error" toml:"on_error" json:"on_error"`
	NotificationType string `yaml:"notification_type" toml:"notification_type" json:"notification_type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level" json:"level"`
	File  string `yaml:"file" toml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Portal: PortalConfig{
			LoginPath:      "/login/index.php",
			ListingPath:    "/my/",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
			RequestTimeout: 30 * time.Second,
			LoadDelay:      time.Second,
			SettleDelay:    time.Second,
		},
		Selectors: DefaultSelectors(),
		Download: DownloadConfig{
			StagingDirectory: "./files",
			MaxAttempts:      64,
			InProgressMarker: ".crdownload",
			PollInterval:     500 * time.Millisecond,
			IdleTimeout:      30 * time.Minute,
			DownloadTimeout:  10 * time.Minute,
		},
		Organize: OrganizeConfig{
			SnapshotExtension: "html",
			FuzzyThreshold:    0,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         10,
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			InitialDelay:      time.Second,
			MaxDelay:          30 * time.Second,
			BackoffMultiplier: 2.0,
		},
		Notifications: NotificationConfig{
			Enabled:          true,
			OnComplete:       true,
			OnError:          true,
			NotificationType: "terminal",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultSelectors returns the selectors matching a stock Moodle theme
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		GroupingDropdown: "#groupingdropdown",
		ShowAllOption:    "a[data-value='all']",
		Listing:          "[data-region='courses-view']",
		EntryRow:         ".coursename",
		NextPage:         "li[data-control='next']",
		AssignmentRow:    ".assign",
		ResourceRow:      ".resource",
		RowLabel:         "span.instancename",
		RowLink:          "a",
		CollapsedToggle:  "a[aria-expanded='false']",
		Attachment:       "div.fileuploadsubmission > a",
		LoginFailure:     "#loginerrormessage",
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := getenv("BASE_URL"); v != "" {
		c.Portal.BaseURL = v
	}
	if v := getenv("USER_AGENT"); v != "" {
		c.Portal.UserAgent = v
	}
	if v := getenv("SKIP_LOGIN"); v != "" {
		c.Portal.SkipLogin = strings.ToLower(v) == "true"
	}
	if v := getenv("CLOUDFLARE_BYPASS"); v != "" {
		c.Portal.CloudflareBypass = strings.ToLower(v) == "true"
	}
	if v := getenv("MAX_PAGES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_PAGES: %w", EnvPrefix, err))
		} else {
			c.Portal.MaxPages = n
		}
	}

	if v := getenv("STAGING_DIR"); v != "" {
		c.Download.StagingDirectory = v
	}
	if v := getenv("IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sIDLE_TIMEOUT: %w", EnvPrefix, err))
		} else {
			c.Download.IdleTimeout = d
		}
	}
	if v := getenv("MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_ATTEMPTS: %w", EnvPrefix, err))
		} else if n > 0 {
			c.Download.MaxAttempts = n
		}
	}

	if v := getenv("FUZZY_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sFUZZY_THRESHOLD: %w", EnvPrefix, err))
		} else {
			c.Organize.FuzzyThreshold = f
		}
	}

	if v := getenv("REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREQUESTS_PER_MINUTE: %w", EnvPrefix, err))
		} else if n > 0 {
			c.RateLimit.RequestsPerMinute = n
		}
	}

	if v := getenv("NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.ToLower(v) == "true"
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

func getenv(name string) string {
	return os.Getenv(EnvPrefix + name)
}

// LoadFromFile loads configuration from a YAML or TOML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".moodlescraper.yaml",
		".moodlescraper.yml",
		".moodlescraper.toml",
		filepath.Join(home, ".config", "moodlescraper", "config.yaml"),
		filepath.Join(home, ".config", "moodlescraper", "config.yml"),
		filepath.Join(home, ".config", "moodlescraper", "config.toml"),
		filepath.Join(home, ".moodlescraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Portal.BaseURL == "" {
		errs = append(errs, errors.New("portal base URL is required"))
	} else if u, err := url.Parse(c.Portal.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("portal base URL %q is not an absolute URL", c.Portal.BaseURL))
	}
	if c.Portal.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Portal.SettleDelay < 0 || c.Portal.LoadDelay < 0 {
		errs = append(errs, errors.New("delays cannot be negative"))
	}
	if c.Portal.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}

	if c.Selectors.Listing == "" || c.Selectors.EntryRow == "" || c.Selectors.NextPage == "" {
		errs = append(errs, errors.New("listing, entry row and next page selectors are required"))
	}
	if c.Selectors.AssignmentRow == "" || c.Selectors.ResourceRow == "" {
		errs = append(errs, errors.New("assignment and resource row selectors are required"))
	}

	if c.Download.StagingDirectory == "" {
		errs = append(errs, errors.New("staging directory is required"))
	}
	if c.Download.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max attempts must be positive"))
	}
	if c.Download.InProgressMarker == "" {
		errs = append(errs, errors.New("in-progress marker is required"))
	}
	if c.Download.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.Download.IdleTimeout < 0 {
		errs = append(errs, errors.New("idle timeout cannot be negative"))
	}

	if c.Organize.SnapshotExtension == "" {
		errs = append(errs, errors.New("snapshot extension is required"))
	}
	if c.Organize.FuzzyThreshold < 0 || c.Organize.FuzzyThreshold > 1 {
		errs = append(errs, errors.New("fuzzy threshold must be between 0 and 1"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	validNotifTypes := map[string]bool{
		"terminal": true, "desktop": true, "none": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.NotificationType)] {
		errs = append(errs, errors.New("invalid notification type"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file, as TOML when the extension says so
func (c *Config) Save(path string) error {
	var data []byte
	var err error

	if strings.ToLower(filepath.Ext(path)) == ".toml" {
		var b strings.Builder
		err = toml.NewEncoder(&b).Encode(c)
		data = []byte(b.String())
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeOverrides merges non-zero fields of overrides into the configuration.
// Command line flags are collected into an override Config and applied here.
func (c *Config) MergeOverrides(overrides *Config) error {
	if overrides == nil {
		return nil
	}
	if err := mergo.Merge(c, overrides, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge overrides: %w", err)
	}
	return nil
}

// Load loads configuration from all sources with proper precedence and
// validates it.
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, overrides *Config) (*Config, error) {
	config, err := LoadUnvalidated(configPath, overrides)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// LoadUnvalidated is Load without validation, for commands that work
// offline and need no portal settings
func LoadUnvalidated(configPath string, overrides *Config) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".moodlescraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := config.MergeOverrides(overrides); err != nil {
		return nil, err
	}

	return config, nil
}
