// internal/config/model.go
//
// Typed configuration model for the sync service.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                               – dotenv values,
//   • `conf/global.yaml`                            – primary static file,
//   • `PORTALSYNC_`-prefixed environment overrides  – highest precedence.
//
// Validation happens immediately after unmarshal; the service fails fast
// if required fields are missing, so a half-configured worker never
// reaches the run loop.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`—Koanf ignores `yaml`
//     tags unless configured otherwise.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Durations are expressed in seconds in YAML and converted by the
//     accessor methods below, matching the original operational knobs.

package config

import "time"

//
// HTTP section
//

// HTTP holds the listen address for the metrics/health endpoint.  The
// service exposes no other inbound surface.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
}

//
// Database section
//

// Database holds the control-plane DSN and pool bounds.  The DSN carries
// credentials; keep it in `.env` or an env override, not in YAML committed
// to version control.
type Database struct {
	DSN          string `koanf:"dsn" validate:"required"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
}

//
// Sync section
//

// Sync holds the reconciliation-loop tunables.  All intervals are whole
// seconds.
type Sync struct {
	PollIntervalSec int `koanf:"poll_interval" validate:"required,min=1"`
	MaxRetries      int `koanf:"max_retries"   validate:"required,min=1"`
	RetryDelaySec   int `koanf:"retry_delay"   validate:"required,min=1"`
	BatchSize       int `koanf:"batch_size"    validate:"required,min=1"`
}

// PollInterval returns the inter-cycle sleep as a time.Duration.
func (s Sync) PollInterval() time.Duration { return time.Duration(s.PollIntervalSec) * time.Second }

// RetryDelay returns the post-failure sleep as a time.Duration.
func (s Sync) RetryDelay() time.Duration { return time.Duration(s.RetryDelaySec) * time.Second }

//
// Paths section (runtime only)
//

// Paths is resolved at runtime—never set in YAML or env.  The loader
// discovers `Root` (repo root or PORTALSYNC_ROOT override) so later code
// can build absolute file paths for logs and published components.
type Paths struct {
	Root string // PORTALSYNC_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the service lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Database Database `koanf:"database"`
	Sync     Sync     `koanf:"sync"`
	Paths    Paths    `koanf:"-"` // not loaded from config files
}
