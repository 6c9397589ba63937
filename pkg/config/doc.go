// Package config provides configuration management for RecordGuard.
//
// This package loads and validates configuration from YAML files with
// environment variable overrides. Each section reuses the configuration
// type of the package it configures, so component defaults and validation
// rules live in one place.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("recordguard.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("recordguard.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention RECORDGUARD_SECTION_FIELD.
// For example:
//
//   - RECORDGUARD_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - RECORDGUARD_ENGINE_STRICT_MODE overrides engine.strict_mode
//   - RECORDGUARD_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// A malformed value (e.g. RECORDGUARD_CACHE_TTL=soon) fails loading.
//
// # Configuration Precedence
//
//  1. Default values (Default and ApplyDefaults)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Validation
//
// Validation errors from every section are collected and reported together:
//
//	configuration validation failed with 2 errors:
//	  - security: invalid security configuration: special_char_ratio must be in (0, 1]
//	  - server.max_body_bytes: max body bytes must be positive
//
// Every ValidationError matches ErrInvalidConfig with errors.Is.
//
// # Example Configuration
//
//	engine:
//	  strict_mode: false
//	  batch_size: 20
//
//	schema:
//	  dir: "./schemas"
//	  watch: true
//
//	security:
//	  encryption_key: "${secret:field-key}"
//
//	secrets:
//	  dir: "/run/secrets"
//
//	audit:
//	  sqlite:
//	    enabled: true
//	    path: "data/audit.db"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//
//	server:
//	  listen_address: "0.0.0.0:8443"
//	  auth:
//	    enabled: true
//	    keys:
//	      - key: "${secret:ops-api-key}"
//	        user_id: ops-bot
//	        roles: [admin]
//	  tls:
//	    enabled: true
//	    cert_file: "/etc/recordguard/tls.crt"
//	    key_file: "/etc/recordguard/tls.key"
//	  rate_limit:
//	    enabled: true
//	    requests_per_second: 50
//
// Values written as ${secret:name} are resolved by app.New through package
// secrets, not by the loader.
package config
