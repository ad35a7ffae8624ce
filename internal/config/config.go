// Package config carga la configuración del daemon de nodo: YAML opcional,
// defaults y overrides por variables de entorno.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | prod
		Env     string `yaml:"env"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	HTTP struct {
		// Addr pisa bind-address:port del nodo si no está vacío.
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Node struct {
		// ConfigFile es el archivo de propiedades para el bootstrap.
		ConfigFile string `yaml:"config_file"`
	} `yaml:"node"`

	Store struct {
		// memory | bolt
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"store"`

	Protocol struct {
		OutcomeTTL     time.Duration `yaml:"outcome_ttl"`
		PrepareTimeout time.Duration `yaml:"prepare_timeout"`
	} `yaml:"protocol"`

	Manager struct {
		MinRestartDelay time.Duration `yaml:"min_restart_delay"`
	} `yaml:"manager"`
}

// Default devuelve la configuración sin YAML ni env.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "bolt"
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join("data", "changes.db")
	}
	if c.Protocol.OutcomeTTL == 0 {
		c.Protocol.OutcomeTTL = 10 * time.Minute
	}
	if c.Protocol.PrepareTimeout == 0 {
		c.Protocol.PrepareTimeout = 30 * time.Second
	}
	if c.Manager.MinRestartDelay == 0 {
		c.Manager.MinRestartDelay = time.Second
	}
}

// Load lee path (si existe), aplica defaults, overrides de entorno y valida.
// Un path vacío o inexistente deja sólo defaults + env.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("config: %s: %w", path, err)
			}
		}
	}
	c.applyDefaults()
	if err := c.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	// rutas relativas del YAML son relativas a su directorio
	if path != "" && c.Node.ConfigFile != "" && !filepath.IsAbs(c.Node.ConfigFile) {
		if _, err := os.Stat(path); err == nil {
			c.Node.ConfigFile = filepath.Clean(filepath.Join(filepath.Dir(path), c.Node.ConfigFile))
		}
	}
	return &c, nil
}

func getEnvStr(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func getEnvDur(key string) (time.Duration, bool, error) {
	s, ok := getEnvStr(key)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, true, nil
}

// applyEnvOverrides pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() error {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := getEnvStr("HTTP_ADDR"); ok {
		c.HTTP.Addr = v
	}
	if v, ok := getEnvStr("NODE_CONFIG_FILE"); ok {
		c.Node.ConfigFile = v
	}
	if v, ok := getEnvStr("STORE_DRIVER"); ok {
		c.Store.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORE_PATH"); ok {
		c.Store.Path = v
	}
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"PROTOCOL_OUTCOME_TTL", &c.Protocol.OutcomeTTL},
		{"PROTOCOL_PREPARE_TIMEOUT", &c.Protocol.PrepareTimeout},
		{"RESTART_MIN_DELAY", &c.Manager.MinRestartDelay},
	}
	for _, d := range durations {
		v, ok, err := getEnvDur(d.key)
		if err != nil {
			return err
		}
		if ok {
			*d.dst = v
		}
	}
	return nil
}

func (c *Config) Validate() error {
	var problems []string
	switch c.App.Env {
	case "dev", "prod":
	default:
		problems = append(problems, fmt.Sprintf("app.env must be dev or prod, got: %q", c.App.Env))
	}
	switch c.Store.Driver {
	case "memory":
	case "bolt":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the bolt driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.driver must be memory or bolt, got: %q", c.Store.Driver))
	}
	if c.Protocol.OutcomeTTL <= 0 {
		problems = append(problems, "protocol.outcome_ttl must be positive")
	}
	if c.Protocol.PrepareTimeout <= 0 {
		problems = append(problems, "protocol.prepare_timeout must be positive")
	}
	if c.Manager.MinRestartDelay <= 0 {
		problems = append(problems, "manager.min_restart_delay must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
