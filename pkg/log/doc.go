/*
Package log provides structured logging for hostsaccel using zerolog.

A single package-level zerolog.Logger is configured once by Init from the
command line flags and shared by every package. Interactive runs use the
console writer on stderr; --log-json switches to one JSON object per line,
which is what a timer unit or cron job usually wants to collect.

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false,
		Output:     os.Stderr,
	})

	log.Info("fetching candidate addresses")

Component loggers carry a component field so that output from the probe
workers can be told apart from session or watchdog messages:

	logger := log.WithComponent("benchmark")
	logger.Debug().
		Str("domain", "github.com").
		Int("candidates", 12).
		Msg("ranking domain")

	addrLogger := log.WithAddress("140.82.113.4")
	addrLogger.Warn().Err(err).Msg("tcp check failed")

Errors are always attached with .Err(err) rather than formatted into the
message.
*/
package log
