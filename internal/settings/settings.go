// Package settings loads and persists the pushover-dc configuration.
//
// Values resolve in three layers: built-in defaults, the TOML config
// file, then PUSHOVER_DC_* environment variables. Later layers win.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	appDirName     = "pushover-dc"
	configFileName = "config.toml"
	envPrefix      = "PUSHOVER_DC_"

	// DefaultAPIURL is the message API host.
	DefaultAPIURL = "https://api.pushover.net"
	// DefaultSocketURL is the persistent push socket endpoint.
	DefaultSocketURL = "wss://client.pushover.net/push"
	// DefaultIconURL is the host icons are downloaded from.
	DefaultIconURL = "https://client.pushover.net"

	// DefaultKeepAliveTimeout is how long the socket may stay silent
	// before the connection is considered dead.
	DefaultKeepAliveTimeout = 60 * time.Second
	// DefaultPollInterval is the safety-net sync period.
	DefaultPollInterval = 30 * time.Second
	// DefaultRequestTimeout bounds every HTTP request.
	DefaultRequestTimeout = 15 * time.Second
	// DefaultHistoryKeepDays is how long delivered messages stay in the
	// local archive.
	DefaultHistoryKeepDays = 30
)

// Settings is the resolved client configuration.
type Settings struct {
	// DeviceID and Secret identify this device against the relay.
	// Both are written by the setup command.
	DeviceID   string
	DeviceName string
	Secret     string

	APIURL    string
	SocketURL string
	IconURL   string

	KeepAliveTimeout time.Duration
	PollInterval     time.Duration
	RequestTimeout   time.Duration

	// IconCacheDir holds downloaded icons. Empty disables the cache
	// and notifications render without icons.
	IconCacheDir string

	// HistoryKeepDays is the retention window of the local delivery
	// archive. Zero disables archiving entirely.
	HistoryKeepDays int

	// StateDir holds the head file and the history database.
	StateDir string

	LogLevel string
	LogJSON  bool
	LogFile  string

	configPath string
}

// fileSettings mirrors the TOML config file. Pointer fields distinguish
// absent keys from explicit zero values, so icon_cache_dir = "" can
// disable the cache while an absent key keeps the default.
type fileSettings struct {
	DeviceID   *string `toml:"device_id"`
	DeviceName *string `toml:"device_name"`
	Secret     *string `toml:"secret"`

	APIURL    *string `toml:"api_url"`
	SocketURL *string `toml:"socket_url"`
	IconURL   *string `toml:"icon_url"`

	KeepAliveTimeoutSeconds *int `toml:"keepalive_timeout_seconds"`
	PollIntervalSeconds     *int `toml:"poll_interval_seconds"`
	RequestTimeoutSeconds   *int `toml:"request_timeout_seconds"`

	IconCacheDir    *string `toml:"icon_cache_dir"`
	HistoryKeepDays *int    `toml:"history_keep_days"`
	StateDir        *string `toml:"state_dir"`

	LogLevel *string `toml:"log_level"`
	LogJSON  *bool   `toml:"log_json"`
	LogFile  *string `toml:"log_file"`
}

// Load resolves settings from defaults, the config file at path, and
// environment overrides, in that order. An empty path means the default
// XDG location. A missing config file is not an error; setup creates it.
func Load(path string) (*Settings, error) {
	s := defaults()
	if path == "" {
		path = DefaultConfigPath()
	}
	s.configPath = path
	if err := s.applyFile(path); err != nil {
		return nil, err
	}
	s.applyEnv()
	s.normalize()
	return s, nil
}

func defaults() *Settings {
	return &Settings{
		APIURL:           DefaultAPIURL,
		SocketURL:        DefaultSocketURL,
		IconURL:          DefaultIconURL,
		KeepAliveTimeout: DefaultKeepAliveTimeout,
		PollInterval:     DefaultPollInterval,
		RequestTimeout:   DefaultRequestTimeout,
		IconCacheDir:     DefaultIconCacheDir(),
		HistoryKeepDays:  DefaultHistoryKeepDays,
		StateDir:         DefaultStateDir(),
		LogLevel:         "info",
	}
}

func (s *Settings) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("settings: read %s: %w", path, err)
	}
	var f fileSettings
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("settings: parse %s: %w", path, err)
	}

	setString(&s.DeviceID, f.DeviceID)
	setString(&s.DeviceName, f.DeviceName)
	setString(&s.Secret, f.Secret)
	setString(&s.APIURL, f.APIURL)
	setString(&s.SocketURL, f.SocketURL)
	setString(&s.IconURL, f.IconURL)
	setSeconds(&s.KeepAliveTimeout, f.KeepAliveTimeoutSeconds, "keepalive_timeout_seconds")
	setSeconds(&s.PollInterval, f.PollIntervalSeconds, "poll_interval_seconds")
	setSeconds(&s.RequestTimeout, f.RequestTimeoutSeconds, "request_timeout_seconds")
	setString(&s.IconCacheDir, f.IconCacheDir)
	setString(&s.StateDir, f.StateDir)
	setString(&s.LogLevel, f.LogLevel)
	setString(&s.LogFile, f.LogFile)
	if f.HistoryKeepDays != nil {
		if *f.HistoryKeepDays < 0 {
			warnInvalid("history_keep_days", strconv.Itoa(*f.HistoryKeepDays), strconv.Itoa(s.HistoryKeepDays))
		} else {
			s.HistoryKeepDays = *f.HistoryKeepDays
		}
	}
	if f.LogJSON != nil {
		s.LogJSON = *f.LogJSON
	}
	return nil
}

func (s *Settings) applyEnv() {
	envString(&s.DeviceID, "DEVICE_ID")
	envString(&s.DeviceName, "DEVICE_NAME")
	envString(&s.Secret, "SECRET")
	envString(&s.APIURL, "API_URL")
	envString(&s.SocketURL, "SOCKET_URL")
	envString(&s.IconURL, "ICON_URL")
	envSeconds(&s.KeepAliveTimeout, "KEEPALIVE_TIMEOUT_SECONDS")
	envSeconds(&s.PollInterval, "POLL_INTERVAL_SECONDS")
	envSeconds(&s.RequestTimeout, "REQUEST_TIMEOUT_SECONDS")
	envString(&s.IconCacheDir, "ICON_CACHE_DIR")
	envString(&s.StateDir, "STATE_DIR")
	envString(&s.LogLevel, "LOG_LEVEL")
	envString(&s.LogFile, "LOG_FILE")
	if v, ok := os.LookupEnv(envPrefix + "HISTORY_KEEP_DAYS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			warnInvalid("HISTORY_KEEP_DAYS", v, strconv.Itoa(s.HistoryKeepDays))
		} else {
			s.HistoryKeepDays = n
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "LOG_JSON"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			warnInvalid("LOG_JSON", v, strconv.FormatBool(s.LogJSON))
		} else {
			s.LogJSON = b
		}
	}
}

// normalize trims URL slashes and pushes out-of-range durations back to
// their defaults.
func (s *Settings) normalize() {
	s.APIURL = strings.TrimRight(strings.TrimSpace(s.APIURL), "/")
	s.SocketURL = strings.TrimSpace(s.SocketURL)
	s.IconURL = strings.TrimRight(strings.TrimSpace(s.IconURL), "/")
	s.LogLevel = strings.ToLower(strings.TrimSpace(s.LogLevel))
	if s.KeepAliveTimeout <= 0 {
		s.KeepAliveTimeout = DefaultKeepAliveTimeout
	}
	if s.PollInterval <= 0 {
		s.PollInterval = DefaultPollInterval
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = DefaultRequestTimeout
	}
}

// Validate checks that the settings are complete enough to talk to the
// relay. Setup must have run first.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.DeviceID) == "" || strings.TrimSpace(s.Secret) == "" {
		return fmt.Errorf("settings: no device registered in %s; run \"pushover-dc setup\" first", s.configPath)
	}
	if s.APIURL == "" {
		return errors.New("settings: api_url must not be empty")
	}
	if s.SocketURL == "" {
		return errors.New("settings: socket_url must not be empty")
	}
	return nil
}

// Save writes the settings to the config file, creating the directory
// as needed. The file is written with mode 0600 because it carries the
// device secret.
func (s *Settings) Save() error {
	f := fileSettings{
		DeviceID:                &s.DeviceID,
		DeviceName:              &s.DeviceName,
		Secret:                  &s.Secret,
		APIURL:                  &s.APIURL,
		SocketURL:               &s.SocketURL,
		IconURL:                 &s.IconURL,
		KeepAliveTimeoutSeconds: secondsOf(s.KeepAliveTimeout),
		PollIntervalSeconds:     secondsOf(s.PollInterval),
		RequestTimeoutSeconds:   secondsOf(s.RequestTimeout),
		IconCacheDir:            &s.IconCacheDir,
		HistoryKeepDays:         &s.HistoryKeepDays,
		StateDir:                &s.StateDir,
		LogLevel:                &s.LogLevel,
		LogJSON:                 &s.LogJSON,
		LogFile:                 &s.LogFile,
	}
	body, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("settings: encode config: %w", err)
	}
	header := "# pushover-dc configuration.\n# Written by \"pushover-dc setup\"; edit freely, the client reads it on start.\n\n"
	if err := os.MkdirAll(filepath.Dir(s.configPath), 0o755); err != nil {
		return fmt.Errorf("settings: create config directory: %w", err)
	}
	if err := os.WriteFile(s.configPath, append([]byte(header), body...), 0o600); err != nil {
		return fmt.Errorf("settings: write %s: %w", s.configPath, err)
	}
	return nil
}

// ConfigPath returns the path the settings were loaded from.
func (s *Settings) ConfigPath() string { return s.configPath }

// HeadPath is the file tracking the highest delivered message id.
func (s *Settings) HeadPath() string { return filepath.Join(s.StateDir, "head.json") }

// HistoryPath is the local delivery archive database.
func (s *Settings) HistoryPath() string { return filepath.Join(s.StateDir, "history.db") }

// DefaultConfigPath returns the XDG location of the config file.
func DefaultConfigPath() string {
	return filepath.Join(configHome(), appDirName, configFileName)
}

// DefaultStateDir returns the XDG location of mutable client state.
func DefaultStateDir() string {
	return filepath.Join(stateHome(), appDirName)
}

// DefaultIconCacheDir returns the XDG location of the icon cache.
func DefaultIconCacheDir() string {
	return filepath.Join(cacheHome(), appDirName, "icons")
}

func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(homeDir(), ".config")
}

func stateHome() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(homeDir(), ".local", "state")
}

func cacheHome() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setSeconds(dst *time.Duration, src *int, key string) {
	if src == nil {
		return
	}
	if *src <= 0 {
		warnInvalid(key, strconv.Itoa(*src), (*dst).String())
		return
	}
	*dst = time.Duration(*src) * time.Second
}

func envString(dst *string, suffix string) {
	if v, ok := os.LookupEnv(envPrefix + suffix); ok {
		*dst = v
	}
}

func envSeconds(dst *time.Duration, suffix string) {
	v, ok := os.LookupEnv(envPrefix + suffix)
	if !ok {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		warnInvalid(suffix, v, (*dst).String())
		return
	}
	*dst = time.Duration(n) * time.Second
}

func secondsOf(d time.Duration) *int {
	n := int(d / time.Second)
	return &n
}

// warnInvalid reports a rejected config value on stderr. Invalid values
// keep the previous setting instead of failing the load.
func warnInvalid(key, value, kept string) {
	fmt.Fprintf(os.Stderr, "warning: invalid value %q for %s, keeping %s\n", value, key, kept)
}
