// Package config provides configuration structures and utilities for linkscan.
// It defines the scan settings, the per-site overrides read from the
// .linkscan YAML file and the environment variables read from .env.
package config
