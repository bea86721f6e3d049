package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/vertextoedge/romhustler-mirror/internal/domain"
)

// Config represents the entire application configuration
type Config struct {
	DataDir     string            `mapstructure:"data_dir"`
	LogDir      string            `mapstructure:"log_dir"`
	Debug       bool              `mapstructure:"debug"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Site        SiteConfig        `mapstructure:"site"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	Download    DownloadConfig    `mapstructure:"download"`
	Watcher     WatcherConfig     `mapstructure:"watcher"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Refresh     RefreshConfig     `mapstructure:"refresh"`
	Space       SpaceConfig       `mapstructure:"space"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Control     ControlConfig     `mapstructure:"control"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
}

// CatalogConfig contains game list settings
type CatalogConfig struct {
	// ListFile defaults to games_popular.txt next to the executable
	ListFile    string `mapstructure:"list_file"`
	ExcludeFile string `mapstructure:"exclude_file"`
}

// SiteConfig contains ROM site settings
type SiteConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	LinkTimeout       string `mapstructure:"link_timeout"`
}

// BrowserConfig contains Chrome settings
type BrowserConfig struct {
	Bin             string `mapstructure:"bin"`
	Headless        bool   `mapstructure:"headless"`
	NoSandbox       bool   `mapstructure:"no_sandbox"`
	NavigateTimeout string `mapstructure:"navigate_timeout"`
}

// DownloadConfig contains per-item download settings
type DownloadConfig struct {
	Mode              string   `mapstructure:"mode"`
	Probe             string   `mapstructure:"probe"`
	MaxAttempts       int      `mapstructure:"max_attempts"`
	MaxRetryDelay     string   `mapstructure:"max_retry_delay"`
	OnError           string   `mapstructure:"on_error"`
	RecheckAfter      string   `mapstructure:"recheck_after"`
	TempDirName       string   `mapstructure:"temp_dir_name"`
	PartialExtensions []string `mapstructure:"partial_extensions"`
}

// WatcherConfig contains download watcher thresholds
type WatcherConfig struct {
	PollInterval        string `mapstructure:"poll_interval"`
	StallPolls          int    `mapstructure:"stall_polls"`
	IdlePolls           int    `mapstructure:"idle_polls"`
	MaxWait             string `mapstructure:"max_wait"`
	ProgressLogInterval string `mapstructure:"progress_log_interval"`
}

// FetchConfig contains external fetch tool settings
type FetchConfig struct {
	Command           string   `mapstructure:"command"`
	Args              []string `mapstructure:"args"`
	ResumeArgs        []string `mapstructure:"resume_args"`
	NotFoundExitCodes []int    `mapstructure:"not_found_exit_codes"`
	RetryWait         string   `mapstructure:"retry_wait"`
}

// RefreshConfig contains settings of the second stage
type RefreshConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Min     int  `mapstructure:"min"`
	Max     int  `mapstructure:"max"`
}

// SpaceConfig contains data directory limits
type SpaceConfig struct {
	// MaxSizeGB of 0 disables the size limit
	MaxSizeGB           int `mapstructure:"max_size_gb"`
	MaxDiskUsagePercent int `mapstructure:"max_disk_usage_percent"`
}

// MaintenanceConfig contains startup sweep settings
type MaintenanceConfig struct {
	TempFileMaxAge string `mapstructure:"temp_file_max_age"`
	AttemptMaxAge  string `mapstructure:"attempt_max_age"`
}

// ControlConfig contains host socket settings
type ControlConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	SocketPath   string `mapstructure:"socket_path"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	FileName string `mapstructure:"file_name"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// Download modes and probes
const (
	ProbeDirectory = "directory"
	ProbeManager   = "manager"

	OnErrorAbort = "abort"
	OnErrorSkip  = "skip"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "")
	v.SetDefault("log_dir", "")
	v.SetDefault("debug", false)
	v.SetDefault("catalog.list_file", "")
	v.SetDefault("catalog.exclude_file", "")
	v.SetDefault("site.base_url", "https://romhustler.org/roms")
	v.SetDefault("site.requests_per_minute", 20)
	v.SetDefault("site.link_timeout", "2m")
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.navigate_timeout", "60s")
	v.SetDefault("download.mode", domain.ModeBrowser)
	v.SetDefault("download.probe", ProbeDirectory)
	v.SetDefault("download.max_attempts", 2)
	v.SetDefault("download.max_retry_delay", "1m")
	v.SetDefault("download.on_error", OnErrorAbort)
	v.SetDefault("download.recheck_after", "24h")
	v.SetDefault("download.temp_dir_name", "_tmp")
	v.SetDefault("download.partial_extensions", []string{".crdownload", ".part", ".partial"})
	v.SetDefault("watcher.poll_interval", "1s")
	v.SetDefault("watcher.stall_polls", 30)
	v.SetDefault("watcher.idle_polls", 30)
	v.SetDefault("watcher.max_wait", "6h")
	v.SetDefault("watcher.progress_log_interval", "30s")
	v.SetDefault("fetch.command", "wget")
	v.SetDefault("fetch.args", []string{
		"--tries=0", "--waitretry={waitretry}", "--random-wait", "--wait=2", "--timeout=60",
		"--passive-ftp", "--no-verbose", "-O", "{file}", "{url}",
	})
	v.SetDefault("fetch.resume_args", []string{"--continue"})
	v.SetDefault("fetch.not_found_exit_codes", []int{8})
	v.SetDefault("fetch.retry_wait", "10s")
	v.SetDefault("refresh.enabled", true)
	v.SetDefault("refresh.min", 10)
	v.SetDefault("refresh.max", 100)
	v.SetDefault("space.max_size_gb", 0)
	v.SetDefault("space.max_disk_usage_percent", 95)
	v.SetDefault("maintenance.temp_file_max_age", "72h")
	v.SetDefault("maintenance.attempt_max_age", "720h")
	v.SetDefault("control.enabled", true)
	v.SetDefault("control.socket_path", "/run/mirrors/api.socket")
	v.SetDefault("control.write_timeout", "5s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file_name", "romhustler.log")
	v.SetDefault("database.path", "")
}

// Load loads configuration from the specified file path and applies the
// invocation inputs on top. An empty path uses defaults only.
func Load(configPath string, inv *Invocation) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		// Read config file
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if inv != nil {
		inv.apply(v)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	switch c.Download.Mode {
	case domain.ModeBrowser, domain.ModeFetch:
	default:
		return fmt.Errorf("invalid download.mode: %s", c.Download.Mode)
	}
	switch c.Download.Probe {
	case ProbeDirectory, ProbeManager:
	default:
		return fmt.Errorf("invalid download.probe: %s", c.Download.Probe)
	}
	switch c.Download.OnError {
	case OnErrorAbort, OnErrorSkip:
	default:
		return fmt.Errorf("invalid download.on_error: %s", c.Download.OnError)
	}
	if c.Download.MaxAttempts < 1 {
		return fmt.Errorf("download.max_attempts must be at least 1")
	}
	if c.Download.TempDirName == "" || filepath.Base(c.Download.TempDirName) != c.Download.TempDirName {
		return fmt.Errorf("download.temp_dir_name must be a plain directory name")
	}

	if c.Watcher.StallPolls < 1 || c.Watcher.IdlePolls < 1 {
		return fmt.Errorf("watcher.stall_polls and watcher.idle_polls must be positive")
	}

	if c.Fetch.Command == "" {
		return fmt.Errorf("fetch.command is required")
	}

	if c.Refresh.Min < 0 || c.Refresh.Max < c.Refresh.Min {
		return fmt.Errorf("refresh.min must be >= 0 and <= refresh.max")
	}

	if c.Site.RequestsPerMinute < 0 {
		return fmt.Errorf("site.requests_per_minute must not be negative")
	}

	if c.Space.MaxSizeGB < 0 {
		return fmt.Errorf("space.max_size_gb must not be negative")
	}
	if c.Space.MaxDiskUsagePercent <= 0 || c.Space.MaxDiskUsagePercent > 100 {
		return fmt.Errorf("space.max_disk_usage_percent must be between 1 and 100")
	}

	// Validate durations
	durations := map[string]string{
		"site.link_timeout":             c.Site.LinkTimeout,
		"browser.navigate_timeout":      c.Browser.NavigateTimeout,
		"download.recheck_after":        c.Download.RecheckAfter,
		"download.max_retry_delay":      c.Download.MaxRetryDelay,
		"watcher.poll_interval":         c.Watcher.PollInterval,
		"watcher.max_wait":              c.Watcher.MaxWait,
		"watcher.progress_log_interval": c.Watcher.ProgressLogInterval,
		"fetch.retry_wait":              c.Fetch.RetryWait,
		"maintenance.temp_file_max_age": c.Maintenance.TempFileMaxAge,
		"maintenance.attempt_max_age":   c.Maintenance.AttemptMaxAge,
		"control.write_timeout":         c.Control.WriteTimeout,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	if d, _ := time.ParseDuration(c.Watcher.MaxWait); d <= 0 {
		return fmt.Errorf("watcher.max_wait must be positive")
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// GetDatabasePath returns the ledger path, defaulting into the data dir
func (c *Config) GetDatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.DataDir, "_mirror.db")
}

// GetLogFile returns the log file path, or "" when no log dir is set
func (c *Config) GetLogFile() string {
	if c.LogDir == "" || c.Logging.FileName == "" {
		return ""
	}
	return filepath.Join(c.LogDir, c.Logging.FileName)
}

// GetLinkTimeout returns how long to look for the download link
func (c *SiteConfig) GetLinkTimeout() time.Duration {
	d, _ := time.ParseDuration(c.LinkTimeout)
	if d == 0 {
		return 2 * time.Minute
	}
	return d
}

// GetNavigateTimeout returns the page load timeout
func (c *BrowserConfig) GetNavigateTimeout() time.Duration {
	d, _ := time.ParseDuration(c.NavigateTimeout)
	if d == 0 {
		return 60 * time.Second
	}
	return d
}

// GetRecheckAfter returns how long skipped items are left alone
func (c *DownloadConfig) GetRecheckAfter() time.Duration {
	d, _ := time.ParseDuration(c.RecheckAfter)
	return d
}

// GetPollInterval returns the watcher poll interval
func (c *WatcherConfig) GetPollInterval() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	if d == 0 {
		return time.Second
	}
	return d
}

// GetMaxRetryDelay returns the cap on the pause between attempts
func (c *DownloadConfig) GetMaxRetryDelay() time.Duration {
	d, _ := time.ParseDuration(c.MaxRetryDelay)
	if d <= 0 {
		return time.Minute
	}
	return d
}

// GetRetryWait returns the mean wait between fetch tool retries
func (c *FetchConfig) GetRetryWait() time.Duration {
	d, _ := time.ParseDuration(c.RetryWait)
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

// GetMaxWait returns the overall watcher deadline
func (c *WatcherConfig) GetMaxWait() time.Duration {
	d, _ := time.ParseDuration(c.MaxWait)
	if d <= 0 {
		return 6 * time.Hour
	}
	return d
}

// GetProgressLogInterval returns the progress log throttle interval
func (c *WatcherConfig) GetProgressLogInterval() time.Duration {
	d, _ := time.ParseDuration(c.ProgressLogInterval)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetTempFileMaxAge returns the age after which temp files are removed
func (c *MaintenanceConfig) GetTempFileMaxAge() time.Duration {
	d, _ := time.ParseDuration(c.TempFileMaxAge)
	if d == 0 {
		return 72 * time.Hour
	}
	return d
}

// GetAttemptMaxAge returns the age after which attempt rows are pruned
func (c *MaintenanceConfig) GetAttemptMaxAge() time.Duration {
	d, _ := time.ParseDuration(c.AttemptMaxAge)
	if d == 0 {
		return 30 * 24 * time.Hour
	}
	return d
}

// GetWriteTimeout returns the control socket write deadline
func (c *ControlConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(c.WriteTimeout)
	if d == 0 {
		return 5 * time.Second
	}
	return d
}

// GetMaxSizeBytes returns the data size limit in bytes, 0 when unlimited
func (c *SpaceConfig) GetMaxSizeBytes() int64 {
	return int64(c.MaxSizeGB) * 1024 * 1024 * 1024
}
