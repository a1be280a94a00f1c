// Package config provides configuration management for warden.
//
// Configuration is loaded from a YAML file, overlaid with environment
// variables and validated before use:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("warden.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention WARDEN_SECTION_FIELD:
//
//   - WARDEN_CONTAINMENT_LOCATION overrides containment.location
//   - WARDEN_STORE_BACKEND overrides store.backend
//   - WARDEN_STORE_SQLITE_PATH overrides store.sqlite.path
//   - WARDEN_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// There is no global configuration instance; the binary loads a Config once
// and passes the pieces each component needs.
//
// # Hot Reload
//
// Watcher observes the configuration file with fsnotify. Reloaded
// configurations that validate are handed to a callback; the binary uses it
// to update the LocationSource read by the containment controller, so the
// confinement area can move without a restart.
//
// # Example Configuration
//
//	containment:
//	  location: "prison;0.5;64;0.5;0;0"
//	  radius: 10
//	  boundary_interval: 1s
//	store:
//	  backend: sqlite
//	  sqlite:
//	    path: data/warden.db
//	cache:
//	  tombstone_retention: 5m
//	  prune_schedule: "@every 1m"
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
package config
