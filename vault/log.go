package vault

import "github.com/rs/zerolog"

// log is disabled until the caller hands over a logger with UseLogger.
var log = zerolog.Nop()

// DisableLog turns off all library log output.
func DisableLog() {
	log = zerolog.Nop()
}

// UseLogger routes library log output to logger.
func UseLogger(logger zerolog.Logger) {
	log = logger.With().Str("subsystem", "VLT").Logger()
}
