// Package config handles configuration loading for hitprobe.
//
// A run configuration is layered, each layer overriding only what it sets:
//   - DefaultConfig
//   - .hitprobe.json / .hitprobe.yaml (or --config)
//   - the process environment (BASE_URL, CI, HITPROBE_*), after .env is loaded
//   - explicit command-line flags
//
// On CI, retries default to 2 and scenarios marked "only" are rejected.
package config
