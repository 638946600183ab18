// internal/config/loader.go
//
// Configuration loader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `.env` file at `<root>/conf/.env`.
  2. `conf/global.yaml`.
  3. Environment variables prefixed `LEADS_`, where `__` maps to “.”
     (e.g., `LEADS_HTTP__LISTEN_ADDR → http.listen_addr`).

String values beginning with `vault:` are then resolved through Vault.  The
merged tree is unmarshalled into typed structs, defaulted, validated, and
cached in an `atomic.Pointer` for lock-free reads.

Instrumentation
---------------
  • DEBUG spans: root discovery, YAML read.
  • ERROR spans: YAML parse, env overlay, vault, unmarshal, validation.
  • INFO  span: final “config loaded” with key highlights.
  • Logs use the global sugared logger (`zap.S()`) so early boot issues
    surface before the file logger is installed.
*/
package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "LEADS_"

var current atomic.Pointer[Config]

var errNotLoaded = errors.New("config: not loaded")

/*──────────────────────────── root discovery ───────────────────────────────*/

// RootDir resolves LEADS_ROOT or climbs directories until conf/global.yaml
// is found.  Falls back to the executable layout used in production.
func RootDir() string {
	if r := os.Getenv("LEADS_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads configuration below RootDir() and caches it.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, RootDir(), nil)
}

// LoadFrom reads configuration below root.  secrets resolves `vault:`
// references; when nil and a reference is present, a Vault client is built
// from the environment.
func LoadFrom(ctx context.Context, root string, secrets SecretResolver) (*Config, error) {
	zap.S().Debugw("config root resolved", "root", root)

	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}
	zap.S().Debugw("config yaml loaded", "file", yamlPath)

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(s, EnvPrefix), "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	if err := resolveSecrets(ctx, k, secrets); err != nil {
		zap.S().Errorw("config vault resolution failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	cfg.applyDefaults()
	for i, d := range cfg.Forms.Dirs {
		if !filepath.IsAbs(d) {
			cfg.Forms.Dirs[i] = filepath.Join(root, d)
		}
	}
	if cfg.GeoIP.Path != "" && !filepath.IsAbs(cfg.GeoIP.Path) {
		cfg.GeoIP.Path = filepath.Join(root, cfg.GeoIP.Path)
	}

	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"force_https", cfg.HTTP.ForceHTTPS,
		"delivery_configured", cfg.DeliveryConfigured(),
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// Get returns the most recently loaded Config, or nil before the first Load.
func Get() *Config { return current.Load() }

// Reload re-reads configuration from the root of the current Config.
func Reload(ctx context.Context) (*Config, error) {
	cfg := Get()
	if cfg == nil {
		return nil, errNotLoaded
	}
	return LoadFrom(ctx, cfg.Paths.Root, nil)
}
