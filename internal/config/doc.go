// Package config loads imgqueue settings.
//
// Values are layered: Default, then an optional TOML or YAML file (Load),
// then the positional command line arguments (ApplyArgs), then flags set by
// the caller. Validate runs last and checks the filesystem: the input
// directory must exist. PrepareOutput creates and locks the output directory.
package config
