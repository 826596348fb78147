// Package logging provides structured, rotating file-based logging for the
// memory engine. Logs are written under <project_root>/.store/logs/ using
// slog's JSON handler, mirrored to stderr unless suppressed.
package logging
