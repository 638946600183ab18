// internal/config/model.go
//
// Typed configuration model.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                         – dotenv values,
//   • `conf/global.yaml`                      – primary static file,
//   • `LEADS_`-prefixed environment overrides – highest precedence.
//
// Any string value beginning with `vault:` is resolved through Vault *before*
// unmarshalling (see vault.go), so the model never stores Vault URIs.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr   string        `koanf:"listen_addr"   validate:"required,hostname_port"`
	ForceHTTPS   bool          `koanf:"force_https"`
	ReadTimeout  time.Duration `koanf:"read_timeout"  validate:"gte=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gte=0"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"  validate:"gte=0"`
}

//
// Log section
//

// Log selects the minimum level written to the daily log.
type Log struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

//
// Database section
//

// Database is only required when the store action is enabled.
type Database struct {
	DSN     string `koanf:"dsn"`
	MaxOpen int    `koanf:"max_open" validate:"gte=0"`
	MaxIdle int    `koanf:"max_idle" validate:"gte=0"`
}

//
// Security section
//

// Security holds the CSRF HMAC key (base64url, ≥32 bytes decoded).  Usually a
// `vault:` reference.
type Security struct {
	CSRFKey string `koanf:"csrf_key"`
}

//
// Contact section
//

// Channel is one way to reach the agency, listed beside the form.
type Channel struct {
	Title       string `koanf:"title"       json:"title"       validate:"required"`
	Content     string `koanf:"content"     json:"content"     validate:"required"`
	Description string `koanf:"description" json:"description"`
	Action      string `koanf:"action"      json:"action,omitempty"`
}

// Contact carries the enumerations the contact form offers.  Empty lists fall
// back to the built-in defaults.
type Contact struct {
	Services []string  `koanf:"services" validate:"dive,required"`
	Budgets  []string  `koanf:"budgets"  validate:"dive,required"`
	Channels []Channel `koanf:"channels" validate:"dive"`
}

//
// Forms section
//

// Forms lists directories scanned for YAML form definitions, highest
// precedence first.  Relative paths resolve against Paths.Root.
type Forms struct {
	Dirs []string `koanf:"dirs"`
}

//
// Delivery section
//

// Store writes leads to a SQL table.
type Store struct {
	Enabled bool   `koanf:"enabled"`
	Table   string `koanf:"table" validate:"omitempty,sqlident"`
}

// Webhook posts leads as JSON.
type Webhook struct {
	URL     string            `koanf:"url"    validate:"omitempty,url"`
	Method  string            `koanf:"method" validate:"omitempty,oneof=POST PUT"`
	Headers map[string]string `koanf:"headers"`
}

// Email notifies an inbox.
type Email struct {
	To      []string `koanf:"to"      validate:"dive,email"`
	Subject string   `koanf:"subject"`
}

// Delivery configures the side effect run for accepted contact leads.  With
// nothing enabled the service falls back to simulated delivery.
type Delivery struct {
	Simulate      bool          `koanf:"simulate"`
	SimulateDelay time.Duration `koanf:"simulate_delay" validate:"gte=0"`
	Store         Store         `koanf:"store"`
	Webhook       Webhook       `koanf:"webhook"`
	Email         Email         `koanf:"email"`
}

// SMTP holds relay settings for the email action.
type SMTP struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port" validate:"gte=0,lte=65535"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from" validate:"omitempty,email"`
}

//
// Sessions section
//

// Sessions tunes the form-session cache.
type Sessions struct {
	IdleTTL       time.Duration `koanf:"idle_ttl"       validate:"gte=0"`
	MaxEntries    int           `koanf:"max_entries"    validate:"gte=0"`
	EvictInterval time.Duration `koanf:"evict_interval" validate:"gte=0"`
}

//
// GeoIP section
//

// GeoIP points at an optional GeoLite2-City database.
type GeoIP struct {
	Path string `koanf:"path"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Log      Log      `koanf:"log"`
	Database Database `koanf:"database"`
	Security Security `koanf:"security"`
	Contact  Contact  `koanf:"contact"`
	Forms    Forms    `koanf:"forms"`
	Delivery Delivery `koanf:"delivery"`
	SMTP     SMTP     `koanf:"smtp"`
	Sessions Sessions `koanf:"sessions"`
	GeoIP    GeoIP    `koanf:"geoip"`
	Paths    Paths    `koanf:"-"`
}

// applyDefaults fills zero values that have a sensible default.
func (c *Config) applyDefaults() {
	if c.HTTP.ListenAddr == "" {
		c.HTTP.ListenAddr = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.Database.MaxOpen == 0 {
		c.Database.MaxOpen = 15
	}
	if c.Database.MaxIdle == 0 {
		c.Database.MaxIdle = 5
	}
	if c.Delivery.Store.Table == "" {
		c.Delivery.Store.Table = "lead"
	}
	if c.Delivery.Email.Subject == "" {
		c.Delivery.Email.Subject = "New website inquiry"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.Sessions.IdleTTL == 0 {
		c.Sessions.IdleTTL = 30 * time.Minute
	}
	if c.Sessions.MaxEntries == 0 {
		c.Sessions.MaxEntries = 10000
	}
	if c.Sessions.EvictInterval == 0 {
		c.Sessions.EvictInterval = time.Minute
	}
	if len(c.Forms.Dirs) == 0 {
		c.Forms.Dirs = []string{"conf/forms"}
	}
}

// DeliveryConfigured reports whether any real delivery action is enabled.
func (c *Config) DeliveryConfigured() bool {
	return c.Delivery.Store.Enabled || c.Delivery.Webhook.URL != "" || len(c.Delivery.Email.To) > 0
}
