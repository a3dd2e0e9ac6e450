// Package config loads, normalizes, and validates paperling configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and overlays the environment variables
// container deployments already set (PAPERLESS_API_URL, PAPERLESS_AUTH,
// TAG_NAME, CHECK_INTERVAL, DOCLING_*, PORT, NTFY_TOPIC). The Config type centralizes every
// knob the daemon and CLI need.
//
// Configuration is read once at startup and stays fixed for the process
// lifetime.
package config
