// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files). It provides type-safe
// access to the settings needed by the grading pipeline while keeping
// configuration details separate from business logic. The loaded Config is
// built once at process start and passed explicitly to every component.
package config
