// Package config handles configuration loading, parsing, and validation
// from defaults, an optional config file, a .env file and environment
// variables. The resulting Config is immutable and is passed explicitly to
// the components that need it.
package config
