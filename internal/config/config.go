package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/parrotnavy/rn-native-updates/pkg/appstore"
	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

const (
	KeyPlatform       = "platform"
	KeyPackageName    = "package"
	KeyCurrentVersion = "current-version"
	KeyBuildNumber    = "build"
	KeyCountry        = "country"
	KeyLookupURL      = "lookup-url"
	KeyCacheTTL       = "cache-ttl"
	KeyCacheDir       = "cache-dir"
	KeyBridgeURL      = "bridge"
	KeyDepth          = "depth"
	KeyForceRefresh   = "force-refresh"
	KeyCheckOnMount   = "check-on-mount"
	KeyLogLevel       = "log.level"
	KeyLogPretty      = "log.pretty"
	KeyOutput         = "output"

	envPrefix = "NATIVE_UPDATES"

	// BridgeSimulator selects the in-process Play Core simulator.
	BridgeSimulator = "sim"
)

// Config holds the settings of the native-updates CLI.
type Config struct {
	Platform       string
	PackageName    string
	CurrentVersion string
	BuildNumber    string
	Country        string
	LookupURL      string
	CacheTTL       time.Duration
	CacheDir       string // empty disables the on-disk lookup cache
	BridgeURL      string // ws:// URL of the device bridge, or "sim"
	Depth          int    // 0 compares every version segment
	ForceRefresh   bool
	CheckOnMount   bool
	LogLevel       string
	LogPretty      bool
	Output         string // text, json or yaml
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	cacheDir := ""
	if dir, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(dir, "native-updates")
	}
	return Config{
		Platform:     string(update.PlatformIOS),
		Country:      "US",
		LookupURL:    appstore.DefaultLookupURL,
		CacheTTL:     appstore.DefaultCacheDuration,
		CacheDir:     cacheDir,
		BridgeURL:    BridgeSimulator,
		CheckOnMount: true,
		LogLevel:     "warn",
		Output:       "text",
	}
}

// Load merges defaults, the config file at path (optional) and
// NATIVE_UPDATES_* environment variables. With an empty path the default
// user config file is read if it exists.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, Defaults())
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
			if explicit || !missing {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	return fromViper(v), nil
}

// DefaultPath returns the user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "native-updates", "config.yaml")
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault(KeyPlatform, d.Platform)
	v.SetDefault(KeyPackageName, d.PackageName)
	v.SetDefault(KeyCurrentVersion, d.CurrentVersion)
	v.SetDefault(KeyBuildNumber, d.BuildNumber)
	v.SetDefault(KeyCountry, d.Country)
	v.SetDefault(KeyLookupURL, d.LookupURL)
	v.SetDefault(KeyCacheTTL, d.CacheTTL)
	v.SetDefault(KeyCacheDir, d.CacheDir)
	v.SetDefault(KeyBridgeURL, d.BridgeURL)
	v.SetDefault(KeyDepth, d.Depth)
	v.SetDefault(KeyForceRefresh, d.ForceRefresh)
	v.SetDefault(KeyCheckOnMount, d.CheckOnMount)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogPretty, d.LogPretty)
	v.SetDefault(KeyOutput, d.Output)
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Platform:       strings.ToLower(v.GetString(KeyPlatform)),
		PackageName:    v.GetString(KeyPackageName),
		CurrentVersion: v.GetString(KeyCurrentVersion),
		BuildNumber:    v.GetString(KeyBuildNumber),
		Country:        v.GetString(KeyCountry),
		LookupURL:      v.GetString(KeyLookupURL),
		CacheTTL:       v.GetDuration(KeyCacheTTL),
		CacheDir:       v.GetString(KeyCacheDir),
		BridgeURL:      v.GetString(KeyBridgeURL),
		Depth:          v.GetInt(KeyDepth),
		ForceRefresh:   v.GetBool(KeyForceRefresh),
		CheckOnMount:   v.GetBool(KeyCheckOnMount),
		LogLevel:       v.GetString(KeyLogLevel),
		LogPretty:      v.GetBool(KeyLogPretty),
		Output:         strings.ToLower(v.GetString(KeyOutput)),
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, err := update.ParsePlatform(c.Platform); err != nil {
		return fmt.Errorf("platform must be ios or android, got %q", c.Platform)
	}
	if c.Depth < 0 {
		return fmt.Errorf("depth must be >= 0, got %d", c.Depth)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache-ttl must be positive, got %s", c.CacheTTL)
	}
	switch c.Output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("output must be text, json or yaml, got %q", c.Output)
	}
	return nil
}

// PlatformValue returns the parsed platform. Call Validate first.
func (c Config) PlatformValue() update.Platform {
	return update.Platform(c.Platform)
}
