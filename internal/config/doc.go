// Package config loads, validates, and watches the gwrotor YAML
// configuration. Files support ${VAR} and ${VAR:-default} environment
// substitution; a Watcher reloads and revalidates the file on change
// with debouncing, keeping the last good configuration when a reload
// fails.
package config
