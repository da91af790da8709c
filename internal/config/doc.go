// Package config loads, validates, and normalizes the vintner TOML
// configuration. All path fields are tilde-expanded and absolute after Load;
// missing config files fall back to Default().
package config
