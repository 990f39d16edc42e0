package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/fahmaliyi/govault/vault"
)

const (
	defaultDataDirname    = ".go-vault"
	defaultVaultDirname   = "vaults"
	defaultConfigFilename = "config.yaml"
	defaultLogFilename    = "vault.log"
	defaultLogLevel       = "info"
	defaultClipboardTTL   = 30 * time.Second

	usage = "[OPTIONS] [ls | open <name> | backup <name> | restore <name> | migrate <name>]"
)

// Config is built from defaults, then the yaml config file, then GOVAULT_*
// environment variables, then command line flags. Later sources win.
type Config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit" yaml:"-"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file" yaml:"-"`

	VaultDir  string `short:"D" long:"vaultdir" description:"Directory holding <name>.enc vault files" yaml:"vault_dir"`
	BackupDir string `long:"backupdir" description:"Directory used by backup and restore" yaml:"backup_dir"`
	Format    string `long:"format" description:"File format for new vaults {sealed, legacy}" yaml:"format"`

	LegacySalt       string `long:"legacysalt" description:"Fixed PBKDF2 salt of the legacy format" yaml:"legacy_salt"`
	LegacyIterations int    `long:"legacyiterations" description:"PBKDF2 iteration count of the legacy format" yaml:"legacy_iterations"`

	ArgonTime    uint32 `long:"argontime" description:"Argon2id passes for new sealed vaults" yaml:"argon_time"`
	ArgonMemory  uint32 `long:"argonmemory" description:"Argon2id memory in KiB for new sealed vaults" yaml:"argon_memory"`
	ArgonThreads uint8  `long:"argonthreads" description:"Argon2id parallelism for new sealed vaults" yaml:"argon_threads"`

	ClipboardTTL time.Duration `long:"clipttl" description:"Time before a copied password is cleared from the clipboard" yaml:"clipboard_ttl"`

	LogLevel   string `short:"d" long:"loglevel" description:"Logging level {trace, debug, info, warn, error}" yaml:"log_level"`
	LogFile    string `long:"logfile" description:"Log file path, empty to disable file logging" yaml:"log_file"`
	LogConsole bool   `long:"logconsole" description:"Also write logs to stderr" yaml:"log_console"`
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDirname
	}
	return filepath.Join(home, defaultDataDirname)
}

// Default returns the built-in configuration.
func Default() Config {
	kdf := vault.DefaultKDFParams()
	dir := dataDir()
	return Config{
		ConfigFile:       filepath.Join(dir, defaultConfigFilename),
		VaultDir:         filepath.Join(dir, defaultVaultDirname),
		Format:           vault.FormatSealed.String(),
		LegacySalt:       vault.DefaultLegacySalt,
		LegacyIterations: vault.DefaultLegacyIterations,
		ArgonTime:        kdf.Time,
		ArgonMemory:      kdf.Memory,
		ArgonThreads:     kdf.Threads,
		ClipboardTTL:     defaultClipboardTTL,
		LogLevel:         defaultLogLevel,
		LogFile:          filepath.Join(dir, defaultLogFilename),
	}
}

func newConfigParser(cfg *Config, appName string, options flags.Options) *flags.Parser {
	p := flags.NewNamedParser(appName, options)
	p.Usage = usage
	p.AddGroup("Application Options", "", cfg)
	return p
}

func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.Replace(path, "~", home, 1)
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}

func fileExists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// IsHelp reports whether err is the go-flags help request.
func IsHelp(err error) bool {
	var e *flags.Error
	return errors.As(err, &e) && e.Type == flags.ErrHelp
}

// LoadConfig parses args into a Config and returns the remaining positional
// arguments. When -V is given the config file is not read.
func LoadConfig(appName string, args []string) (*Config, []string, error) {
	cfg := Default()

	// Pre-parse for -C and -V only.
	preCfg := cfg
	preParser := newConfigParser(&preCfg, appName, flags.HelpFlag)
	if _, err := preParser.ParseArgs(args); err != nil {
		if IsHelp(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		return nil, nil, err
	}
	if preCfg.ShowVersion {
		return &preCfg, nil, nil
	}

	defaultFile := cfg.ConfigFile
	cfg.ConfigFile = cleanAndExpandPath(preCfg.ConfigFile)
	if cfg.ConfigFile != defaultFile || fileExists(cfg.ConfigFile) {
		if err := cfg.loadFile(cfg.ConfigFile); err != nil {
			return nil, nil, err
		}
	}

	cfg.applyEnv()

	// Parse the command line again so flags take precedence.
	parser := newConfigParser(&cfg, appName, flags.Default)
	remaining, err := parser.ParseArgs(args)
	if err != nil {
		return nil, nil, err
	}

	cfg.VaultDir = cleanAndExpandPath(cfg.VaultDir)
	cfg.BackupDir = cleanAndExpandPath(cfg.BackupDir)
	cfg.LogFile = cleanAndExpandPath(cfg.LogFile)

	if err := cfg.validate(); err != nil {
		return nil, nil, errors.Wrap(err, "loadConfig")
	}
	return &cfg, remaining, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config file %s", path)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return errors.Wrapf(err, "parse config file %s", path)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GOVAULT_DIR"); v != "" {
		c.VaultDir = v
	}
	if v := os.Getenv("GOVAULT_BACKUP_DIR"); v != "" {
		c.BackupDir = v
	}
	if v := os.Getenv("GOVAULT_FORMAT"); v != "" {
		c.Format = v
	}
	if v := os.Getenv("GOVAULT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) validate() error {
	if _, err := vault.ParseFormat(c.Format); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errors.Errorf("the specified log level [%v] is invalid", c.LogLevel)
	}
	if c.VaultDir == "" {
		return errors.New("vault directory must not be empty")
	}
	if c.LegacyIterations < 1 {
		return errors.Errorf("legacy iterations must be positive, got %d", c.LegacyIterations)
	}
	kdf := vault.KDFParams{Time: c.ArgonTime, Memory: c.ArgonMemory, Threads: c.ArgonThreads}
	if err := kdf.Validate(); err != nil {
		return err
	}
	if c.ClipboardTTL < 0 {
		return errors.New("clipboard ttl must not be negative")
	}
	return nil
}

// VaultOptions translates the configuration into vault.Options.
func (c *Config) VaultOptions() (vault.Options, error) {
	f, err := vault.ParseFormat(c.Format)
	if err != nil {
		return vault.Options{}, err
	}
	return vault.Options{
		Format: f,
		Legacy: vault.LegacyParams{
			Salt:       []byte(c.LegacySalt),
			Iterations: c.LegacyIterations,
		},
		KDF: vault.KDFParams{
			Time:    c.ArgonTime,
			Memory:  c.ArgonMemory,
			Threads: c.ArgonThreads,
		},
	}, nil
}
