// Package config handles configuration loading for the mindmatters worker
// and the foreground CLI.
//
// # Configuration File
//
// Default location:
//
//  1. Path from MINDMATTERS_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/mindmatters/config.yaml
//
// Databases live under MINDMATTERS_DATA_DIR or $XDG_DATA_HOME/mindmatters.
//
// # Environment Variable Expansion
//
//	sync:
//	  endpoint: "${MINDMATTERS_SYNC_ENDPOINT}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	sync:
//	  interval: "15m"
//	  timeout: "10s"
//	notifications:
//	  periodic_interval: "15m"
//
// # Sections
//
//	server:
//	  http_addr: "127.0.0.1:8787"   # worker listener
//	origin:
//	  url: "http://127.0.0.1:3000"  # app origin fronted by the worker
//	cache:
//	  name_prefix: "mindmatters-cache"
//	  version: "1"                  # bump to roll a new cache generation
//	  manifest: "/etc/mindmatters/manifest.toml"
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//	  file: ""        # rotated log file, optional
package config
