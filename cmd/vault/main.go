package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/pkg/errors"

	"github.com/fahmaliyi/govault/cli"
	"github.com/fahmaliyi/govault/config"
	"github.com/fahmaliyi/govault/logging"
	"github.com/fahmaliyi/govault/platform"
	"github.com/fahmaliyi/govault/vault"
)

const version = "0.3.0"

func main() {
	os.Exit(run())
}

func run() int {
	appName := strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))
	cfg, args, err := config.LoadConfig(appName, os.Args[1:])
	if err != nil {
		if config.IsHelp(err) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if cfg.ShowVersion {
		fmt.Println(appName, "version", version)
		return 0
	}

	logger, closer, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error setting up logging:", err)
		return 1
	}
	defer closer.Close()
	useLogger(logger)

	if err := platform.DisableCoreDumps(); err != nil {
		logger.Warn().Err(err).Msg("could not disable core dumps")
	}
	memguard.CatchInterrupt()
	defer memguard.Purge()

	opts, err := cfg.VaultOptions()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	clip := platform.NewClipboard()
	if !clip.Available() {
		logger.Warn().Msg("no clipboard utility found, copy will fail")
	}

	app := &cli.App{
		Store:     vault.NewStore(cfg.VaultDir),
		Options:   opts,
		Syncer:    &vault.DirSyncer{Dir: cfg.BackupDir},
		Clipboard: clip,
		ClipTTL:   cfg.ClipboardTTL,
		Prompt:    cli.NewPrompt(os.Stdin, os.Stdout),
	}

	if err := dispatch(app, args); err != nil {
		logger.Error().Err(err).Msg("command failed")
		if !errors.Is(err, vault.ErrWrongPasswordOrCorrupt) && err != cli.ErrAborted {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

func dispatch(app *cli.App, args []string) error {
	if len(args) == 0 {
		return app.Interactive()
	}

	cmd, rest := args[0], args[1:]
	if cmd == "ls" {
		if len(rest) != 0 {
			return errors.New("usage: ls")
		}
		return app.List()
	}

	handlers := map[string]func(string) error{
		"open":    app.OpenNamed,
		"backup":  app.Backup,
		"restore": app.Restore,
		"migrate": app.Migrate,
	}
	h, ok := handlers[cmd]
	if !ok {
		return errors.Errorf("unknown command %q", cmd)
	}
	if len(rest) != 1 {
		return errors.Errorf("usage: %s <name>", cmd)
	}
	return h(rest[0])
}
