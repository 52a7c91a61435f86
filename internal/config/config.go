package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"hostkit/internal/paths"
)

const (
	InterpreterAuto     = "auto"
	InterpreterPortable = "portable"
	InterpreterSystem   = "system"

	envPrefix = "HOSTKIT"
)

// Config captures the provisioning settings for a hostkit installation.
type Config struct {
	InstallDir  string            `mapstructure:"install_dir"`
	Manifest    string            `mapstructure:"manifest"`
	Interpreter string            `mapstructure:"interpreter"`
	BuiltinZstd bool              `mapstructure:"builtin_zstd"`
	LockTimeout time.Duration     `mapstructure:"lock_timeout"`
	LogsDir     string            `mapstructure:"logs_dir"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Exec        ExecConfig        `mapstructure:"exec"`
	PyEnv       PyEnvConfig       `mapstructure:"pyenv"`
	Fixups      []Fixup           `mapstructure:"fixups"`
	Minimums    map[string]string `mapstructure:"minimums"`
}

// FetchConfig tunes the HTTP downloader.
type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Attempts  int           `mapstructure:"attempts"`
	UserAgent string        `mapstructure:"user_agent"`
}

// ExecConfig bounds external processes such as extractors and installers.
type ExecConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// PyEnvConfig lists what is installed into the isolated Python environment.
type PyEnvConfig struct {
	Packages     []string `mapstructure:"packages"`
	Requirements []string `mapstructure:"requirements"`
}

// Fixup copies files between two tool directories after every tool is
// installed. Paths are relative to the tools root.
type Fixup struct {
	From  string   `mapstructure:"from"`
	To    string   `mapstructure:"to"`
	Files []string `mapstructure:"files"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		InstallDir:  filepath.Join(xdg.DataHome, "hostkit"),
		Manifest:    "tools.yml",
		Interpreter: InterpreterAuto,
		LockTimeout: 5 * time.Second,
		LogsDir:     filepath.Join(xdg.StateHome, "hostkit", "logs"),
		Fetch: FetchConfig{
			Timeout:   10 * time.Minute,
			Attempts:  3,
			UserAgent: "hostkit/1.0",
		},
		Exec: ExecConfig{Timeout: 30 * time.Minute},
		PyEnv: PyEnvConfig{
			Packages: []string{"west", "pyelftools"},
		},
		Fixups: DefaultFixups(),
	}
}

// DefaultFixups returns the msys runtime copy needed by the dtc build.
func DefaultFixups() []Fixup {
	return []Fixup{{
		From:  "git/usr/bin",
		To:    "dtc/usr/bin",
		Files: []string{"msys-2.0.dll", "msys-gcc_s-seh-1.dll", "msys-yaml-0-2.dll"},
	}}
}

// DefaultPath returns the per-user configuration file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "hostkit", "hostkit.yaml")
}

// Load reads the YAML configuration at path if it exists and applies
// HOSTKIT_* environment overrides. A missing file yields the defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !isNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.expand(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("install_dir", d.InstallDir)
	v.SetDefault("manifest", d.Manifest)
	v.SetDefault("interpreter", d.Interpreter)
	v.SetDefault("builtin_zstd", d.BuiltinZstd)
	v.SetDefault("lock_timeout", d.LockTimeout)
	v.SetDefault("logs_dir", d.LogsDir)
	v.SetDefault("fetch.timeout", d.Fetch.Timeout)
	v.SetDefault("fetch.attempts", d.Fetch.Attempts)
	v.SetDefault("fetch.user_agent", d.Fetch.UserAgent)
	v.SetDefault("exec.timeout", d.Exec.Timeout)
	v.SetDefault("pyenv.packages", d.PyEnv.Packages)
	v.SetDefault("pyenv.requirements", []string{})
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	return errors.Is(err, fs.ErrNotExist)
}

// ApplyDefaults fills fields the YAML left empty.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if strings.TrimSpace(c.InstallDir) == "" {
		c.InstallDir = defaults.InstallDir
	}
	if strings.TrimSpace(c.Manifest) == "" {
		c.Manifest = defaults.Manifest
	}
	if strings.TrimSpace(c.Interpreter) == "" {
		c.Interpreter = defaults.Interpreter
	}
	c.Interpreter = strings.ToLower(strings.TrimSpace(c.Interpreter))
	if strings.TrimSpace(c.LogsDir) == "" {
		c.LogsDir = defaults.LogsDir
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaults.Fetch.UserAgent
	}
	if c.Fixups == nil {
		c.Fixups = defaults.Fixups
	}
}

func (c *Config) expand() error {
	for _, field := range []*string{&c.InstallDir, &c.LogsDir} {
		expanded, err := paths.ExpandHome(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	return nil
}
