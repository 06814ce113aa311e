// Package config loads assetpack settings using Viper for flexible
// configuration loading from files, environment variables, and command-line
// flags.
//
// Settings come from a YAML file (.assetpack.yml by default) with
// ASSETPACK_ prefixed environment overrides. They describe where the project
// lives, which ports the development server and proxy use, the inlining
// threshold for assets, the autoprefixer browser list and logging.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigName is the file name searched for in the working directory.
	DefaultConfigName = ".assetpack"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "ASSETPACK"
)

type Config struct {
	Env    string       `mapstructure:"env" yaml:"env"`
	Paths  PathsConfig  `mapstructure:"paths" yaml:"paths"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Proxy  ProxyConfig  `mapstructure:"proxy" yaml:"proxy"`
	Assets AssetsConfig `mapstructure:"assets" yaml:"assets"`
	Styles StylesConfig `mapstructure:"styles" yaml:"styles"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// PathsConfig locates the project. App, Build and Views are relative to Root;
// Entry and WatchScript are relative to App.
type PathsConfig struct {
	Root        string `mapstructure:"root" yaml:"root"`
	App         string `mapstructure:"app" yaml:"app"`
	Build       string `mapstructure:"build" yaml:"build"`
	Views       string `mapstructure:"views" yaml:"views"`
	Entry       string `mapstructure:"entry" yaml:"entry"`
	WatchScript string `mapstructure:"watch_script" yaml:"watch_script"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

type ProxyConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

type AssetsConfig struct {
	Limit int    `mapstructure:"limit" yaml:"limit"`
	Name  string `mapstructure:"name" yaml:"name"`
}

type StylesConfig struct {
	Browsers   []string `mapstructure:"browsers" yaml:"browsers"`
	SassBinary string   `mapstructure:"sass_binary" yaml:"sass_binary"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("env", "")
	v.SetDefault("paths.root", ".")
	v.SetDefault("paths.app", "src")
	v.SetDefault("paths.build", "dist")
	v.SetDefault("paths.views", "src/views")
	v.SetDefault("paths.entry", "./js/main.js")
	v.SetDefault("paths.watch_script", "../config/entry.js")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 3100)
	v.SetDefault("proxy.host", "localhost")
	v.SetDefault("proxy.port", 3000)
	v.SetDefault("assets.limit", 4096)
	v.SetDefault("assets.name", "[name].[hash:8].[ext]")
	v.SetDefault("styles.browsers", []string{"chrome58", "edge16", "firefox57", "safari11"})
	v.SetDefault("styles.sass_binary", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals v into a Config, applying defaults for unset keys and
// validating the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Slices set through the environment arrive as one string.
	if v.IsSet("styles.browsers") {
		config.Styles.Browsers = splitList(v.GetStringSlice("styles.browsers"))
	}

	root, err := filepath.Abs(config.Paths.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %q: %w", config.Paths.Root, err)
	}
	config.Paths.Root = root

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// splitList splits every item on commas and whitespace, dropping empty
// fields.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		out = append(out, strings.FieldsFunc(item, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		})...)
	}
	return out
}

// Dir joins a project-relative directory with Root.
func (c *Config) Dir(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.Paths.Root, rel)
}

func validateConfig(config *Config) error {
	if err := validatePort(config.Server.Port); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateHost(config.Server.Host); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validatePort(config.Proxy.Port); err != nil {
		return fmt.Errorf("proxy config: %w", err)
	}
	if err := validateHost(config.Proxy.Host); err != nil {
		return fmt.Errorf("proxy config: %w", err)
	}

	for name, path := range map[string]string{
		"app":   config.Paths.App,
		"build": config.Paths.Build,
		"views": config.Paths.Views,
	} {
		if err := validatePath(path); err != nil {
			return fmt.Errorf("paths config: invalid %s path '%s': %w", name, path, err)
		}
	}
	if config.Paths.Entry == "" {
		return fmt.Errorf("paths config: entry is required")
	}

	if config.Assets.Limit < 0 {
		return fmt.Errorf("assets config: limit %d is negative", config.Assets.Limit)
	}

	switch config.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log config: unknown format %q", config.Log.Format)
	}

	return nil
}

// validatePort allows 0 for system-assigned ports in testing.
func validatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", port)
	}
	return nil
}

func validateHost(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " "}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("host contains dangerous character: %q", char)
		}
	}
	return nil
}

// validatePath rejects empty paths and paths escaping the project root.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
