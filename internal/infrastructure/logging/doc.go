// Package logging provides structured logging for Hearthsync.
//
// It wraps Go's standard log/slog package to give consistent, structured
// logging across the module: JSON output for production, text for
// development, default service/version fields, and level-based filtering.
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log the account credential, access tokens, or broker passwords.
package logging
