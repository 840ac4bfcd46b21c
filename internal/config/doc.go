// Package config handles configuration loading for pileup-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from PILEUP_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/pileup/gateway.yaml
//  3. ~/.config/pileup/gateway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${PILEUP_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to an empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	queue:
//	  worked_ttl: "1h"
//	  sweep_interval: "5m"
//	stream:
//	  keepalive_interval: "30s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/pileup/pileup.db"
//
// Queue and history retention:
//
//	queue:
//	  capacity: 15
//	  worked_ttl: "1h"
//	  sweep_interval: "5m"
//
// Authentication (both fields required to enable the admin API):
//
//	auth:
//	  jwt_secret: "${PILEUP_JWT_SECRET}"
//	  admin_password_hash: "$2a$10$..."  # pileup-gateway hash-password
//
// Callsign lookup:
//
//	enrichment:
//	  enabled: true
//	  base_url: "https://api.hamdb.org"
//	  timeout: "10s"
//
// Tailscale:
//
//	tailscale:
//	  enabled: false
//	  hostname: "pileup-gateway"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: true
//	  funnel: false
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - Queue capacity and retention durations are positive
//   - JWT secret minimum length (32 bytes)
//   - Tailscale hostname presence when tailscale is enabled
//   - Duration format validity
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
