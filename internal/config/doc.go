// Package config loads the NewsCrew runtime configuration from a YAML file,
// fills in defaults, resolves relative paths against the config directory and
// lets a few deployment-specific fields be overridden from the environment.
// Provider credentials are read from environment variables unless set inline.
package config
