// Package config provides configuration loading and validation for the transcript worker.
// Settings come from a YAML file; connection secrets can be supplied through the
// environment or a .env file instead.
package config
