package cli

import (
	"crypto/subtle"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/pkg/errors"

	"github.com/fahmaliyi/govault/platform"
	"github.com/fahmaliyi/govault/vault"
)

// ErrAborted is returned when the user gives up on a prompt.
var ErrAborted = errors.New("aborted")

// App wires the vault directory, key options and terminal together for the
// interactive loop and the one-shot subcommands.
type App struct {
	Store     *vault.Store
	Options   vault.Options
	Syncer    vault.Syncer
	Clipboard platform.Clipboard
	ClipTTL   time.Duration
	Prompt    *Prompt
}

// Interactive lets the user pick or create a vault and then runs the
// command loop on it.
func (a *App) Interactive() error {
	a.Prompt.Println("Welcome to go-vault.")
	name, err := a.Select()
	if err != nil {
		return err
	}
	return a.OpenNamed(name)
}

// Select lists the vaults and returns the chosen or newly named one.
// Selecting "new" asks for a name that must not exist yet.
func (a *App) Select() (string, error) {
	for {
		names, err := a.Store.Names()
		if err != nil {
			return "", err
		}
		if len(names) == 0 {
			a.Prompt.Println("No vaults found. Let's create one.")
			name, err := a.newName()
			if err == errRetry {
				continue
			}
			return name, err
		}

		a.Prompt.Println("Available vaults:")
		for i, n := range names {
			a.Prompt.Printf("  [%d] %s\n", i+1, n)
		}
		choice, err := a.Prompt.Line("Enter vault name or number (or type new to create one): ")
		if err != nil {
			return "", err
		}
		choice = strings.TrimSpace(choice)

		if strings.EqualFold(choice, "new") {
			name, err := a.newName()
			if err == errRetry {
				continue
			}
			return name, err
		}
		if i, err := strconv.Atoi(choice); err == nil && i >= 1 && i <= len(names) {
			return names[i-1], nil
		}
		for _, n := range names {
			if n == choice {
				return n, nil
			}
		}
		a.Prompt.Println("Invalid selection.")
	}
}

var errRetry = errors.New("retry selection")

func (a *App) newName() (string, error) {
	name, err := a.Prompt.Line("Enter new vault name: ")
	if err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if err := vault.ValidName(name); err != nil {
		a.Prompt.Println("Invalid vault name.")
		return "", errRetry
	}
	if a.Store.Exists(name) {
		a.Prompt.Println("Vault already exists.")
		return "", errRetry
	}
	return name, nil
}

// unlock asks for the password of name and opens it. A vault that does not
// exist yet gets its password confirmed first.
func (a *App) unlock(name string) (*vault.Vault, error) {
	if err := vault.ValidName(name); err != nil {
		return nil, err
	}
	isNew := !a.Store.Exists(name)

	pw, err := a.Prompt.Password("Enter password for vault '" + name + "': ")
	if err != nil {
		return nil, err
	}
	if isNew {
		confirm, err := a.Prompt.Password("Confirm password: ")
		if err != nil {
			memguard.WipeBytes(pw)
			return nil, err
		}
		match := subtle.ConstantTimeCompare(pw, confirm) == 1
		memguard.WipeBytes(confirm)
		if !match {
			memguard.WipeBytes(pw)
			a.Prompt.Println("Passwords do not match.")
			return nil, ErrAborted
		}
	}

	v, err := a.Store.Open(name, pw, a.Options)
	if err != nil {
		if errors.Is(err, vault.ErrWrongPasswordOrCorrupt) {
			a.Prompt.Println("Incorrect password or corrupt vault.")
		}
		return nil, err
	}
	if isNew {
		a.Prompt.Printf("Created new %s vault '%s'. It is written on the first save.\n", v.Format(), name)
	}
	return v, nil
}

// OpenNamed unlocks name and runs the command loop until exit.
func (a *App) OpenNamed(name string) error {
	v, err := a.unlock(name)
	if err != nil {
		return err
	}
	defer v.Close()

	return NewSession(name, v, a.Prompt, a.Clipboard, a.ClipTTL).Run()
}

// List prints the vault names, one per line.
func (a *App) List() error {
	names, err := a.Store.Names()
	if err != nil {
		return err
	}
	for _, n := range names {
		a.Prompt.Println(n)
	}
	return nil
}

func (a *App) existing(name string) (string, error) {
	if err := vault.ValidName(name); err != nil {
		return "", err
	}
	if !a.Store.Exists(name) {
		return "", errors.Errorf("vault %q does not exist", name)
	}
	return a.Store.Path(name), nil
}

// Backup pushes the encrypted file of name to the backup directory.
func (a *App) Backup(name string) error {
	path, err := a.existing(name)
	if err != nil {
		return err
	}
	if err := a.Syncer.Push(path); err != nil {
		return err
	}
	a.Prompt.Printf("Vault '%s' backed up.\n", name)
	return nil
}

// Restore replaces the file of name with its backup copy after asking.
func (a *App) Restore(name string) error {
	if err := vault.ValidName(name); err != nil {
		return err
	}
	if a.Store.Exists(name) {
		ok, err := a.Prompt.Confirm("Overwrite vault '" + name + "' with its backup? (y/n): ")
		if err != nil && err != io.EOF {
			return err
		}
		if !ok {
			return ErrAborted
		}
	}
	if err := a.Syncer.Pull(a.Store.Path(name)); err != nil {
		return err
	}
	a.Prompt.Printf("Vault '%s' restored.\n", name)
	return nil
}

// Migrate re-encrypts a legacy vault into the sealed format.
func (a *App) Migrate(name string) error {
	path, err := a.existing(name)
	if err != nil {
		return err
	}
	pw, err := a.Prompt.Password("Enter password for vault '" + name + "': ")
	if err != nil {
		return err
	}
	migrated, err := vault.Migrate(path, pw, a.Options)
	if err != nil {
		if errors.Is(err, vault.ErrWrongPasswordOrCorrupt) {
			a.Prompt.Println("Incorrect password or corrupt vault.")
		}
		return err
	}
	if !migrated {
		a.Prompt.Printf("Vault '%s' already uses the sealed format.\n", name)
		return nil
	}
	a.Prompt.Printf("Vault '%s' migrated. The old file is kept as %s.legacy.bak.\n", name, path)
	return nil
}
