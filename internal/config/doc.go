// Package config implements configuration loading for the fleet monitor
// container.
//
// Configuration is resolved in three layers: compiled-in defaults, FMC_*
// environment variable overrides, and an optional config.yaml in the working
// directory. Later layers win. The merged result is validated before use.
package config
