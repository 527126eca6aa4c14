// Package log provides secure logging functionality built on top of the
// standard slog package.
//
// blurguard handles pages full of email addresses and IP addresses, and
// debug logs are routinely pasted into bug reports. The SecureHandler
// therefore makes sure the values the engine conceals on screen are also
// concealed in log output:
//   - values under content keys (text, html, match, ...) are replaced
//   - emails and IPv4/IPv6 addresses inside any other string are masked
//   - errors are masked the same way as strings
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("rendered", "path", "contact.html") // logged as is
//	logger.Warn("bad input", "error", err)          // addresses masked
//	slog.SetDefault(logger)
package log
