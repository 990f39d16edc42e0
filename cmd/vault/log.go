package main

import (
	"github.com/rs/zerolog"

	"github.com/fahmaliyi/govault/cli"
	"github.com/fahmaliyi/govault/vault"
)

// useLogger hands logger to every subsystem.
func useLogger(logger zerolog.Logger) {
	vault.UseLogger(logger)
	cli.UseLogger(logger)
}
