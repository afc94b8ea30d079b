// Package config manages configuration for the flox SDK process context.
//
// Configuration is resolved in layers, later layers overriding earlier ones:
//
//  1. Built-in defaults
//  2. An optional YAML config file (flox.yml in the config directory)
//  3. FLOX_* environment variables
//
// After the layers are applied, Finalize validates the result and fills in
// derived values (absolute paths, platform default directories). A Config
// is not usable until Finalize has succeeded.
package config
