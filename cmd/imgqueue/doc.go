// Package main hosts the imgqueue command.
//
// The command resolves configuration (defaults, an optional TOML or YAML
// file, positional arguments, then flags), validates it, locks the output
// directory and hands the run to the coordinator. SIGINT and SIGTERM cancel
// the run; the summary is printed either way. Configuration problems and
// fail-fast aborts exit with status 1.
package main
