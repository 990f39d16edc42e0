package cli

import "github.com/rs/zerolog"

var log = zerolog.Nop()

func DisableLog() {
	log = zerolog.Nop()
}

func UseLogger(logger zerolog.Logger) {
	log = logger.With().Str("subsystem", "CLI").Logger()
}
