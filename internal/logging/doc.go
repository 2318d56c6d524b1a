// Package logging builds the slog loggers used by imgqueue.
//
// Two handlers are available: a console handler that prints one
// "time LEVEL component: message key=value" line per record, and a JSON
// handler with ts, level and msg keys. The auto format picks console when
// the output is a terminal and JSON otherwise.
package logging
