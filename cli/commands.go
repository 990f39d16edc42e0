package cli

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-diceware/diceware"

	"github.com/fahmaliyi/govault/platform"
	"github.com/fahmaliyi/govault/vault"
)

const (
	defaultGenWords = 6
	maxGenWords     = 32

	commandsLine = "\nCommands: [add] [get] [list] [del] [copy] [gen] [browse] [save] [exit] [help] > "
)

// Session is one open vault and the terminal it is driven from.
type Session struct {
	Name  string
	Vault *vault.Vault

	prompt    *Prompt
	clipboard platform.Clipboard
	clipTTL   time.Duration
}

func NewSession(name string, v *vault.Vault, p *Prompt, cb platform.Clipboard, ttl time.Duration) *Session {
	return &Session{Name: name, Vault: v, prompt: p, clipboard: cb, clipTTL: ttl}
}

type handler func(s *Session, arg string) (quit bool, err error)

var handlers = map[string]handler{
	"add":    handleAdd,
	"get":    handleGet,
	"list":   handleList,
	"ls":     handleList,
	"del":    handleDelete,
	"copy":   handleCopy,
	"gen":    handleGen,
	"browse": handleBrowse,
	"save":   handleSave,
	"exit":   handleExit,
	"quit":   handleExit,
	"help":   handleHelp,
}

// Run reads commands until exit or end of input. Command failures are
// reported and the loop continues; only input errors end it early.
func (s *Session) Run() error {
	log.Info().Stringer("format", s.Vault.Format()).Int("entries", s.Vault.Len()).Msg("session started")
	defer log.Info().Msg("session ended")

	for {
		line, err := s.prompt.Line(commandsLine)
		if err == io.EOF {
			s.inputClosed()
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read command")
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := strings.ToLower(parts[0])
		arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), parts[0]))

		h, ok := handlers[cmd]
		if !ok {
			s.prompt.Println("Unknown command. Type help for the list of commands.")
			continue
		}
		quit, err := h(s, arg)
		if err == io.EOF {
			s.inputClosed()
			return nil
		}
		if err != nil {
			log.Warn().Str("command", cmd).Err(err).Msg("command failed")
			s.prompt.Println("Error:", err)
		}
		if quit {
			return nil
		}
	}
}

func (s *Session) inputClosed() {
	if s.Vault.Dirty() {
		s.prompt.Println("\nInput closed. Unsaved changes were discarded.")
	}
}

// site returns arg, or asks for the site when arg is empty.
func (s *Session) site(arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	site, err := s.prompt.Line("Website: ")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(site), nil
}

func (s *Session) save() error {
	if err := s.Vault.Save(); err != nil {
		return err
	}
	s.prompt.Println("Vault saved.")
	return nil
}

func handleAdd(s *Session, arg string) (bool, error) {
	site, err := s.site(arg)
	if err != nil {
		return false, err
	}
	if site == "" {
		s.prompt.Println("Website must not be empty.")
		return false, nil
	}
	username, err := s.prompt.Line("Username: ")
	if err != nil {
		return false, err
	}
	password, err := s.prompt.Password("Password: ")
	if err != nil {
		return false, err
	}
	defer memguard.WipeBytes(password)
	if _, exists := s.Vault.Get(site); exists {
		s.prompt.Printf("Replacing the existing entry for %s.\n", site)
	}
	if err := s.Vault.Add(site, username, string(password)); err != nil {
		return false, err
	}
	s.prompt.Println("Entry added.")
	return false, nil
}

func handleGet(s *Session, arg string) (bool, error) {
	site, err := s.site(arg)
	if err != nil {
		return false, err
	}
	c, ok := s.Vault.Get(site)
	if !ok {
		s.prompt.Println("Entry not found.")
		return false, nil
	}
	s.prompt.Printf("Username: %s\nPassword: %s\n", c.Username, c.Password)
	return false, nil
}

func handleList(s *Session, _ string) (bool, error) {
	sites := s.Vault.Sites()
	if len(sites) == 0 {
		s.prompt.Println("No entries.")
		return false, nil
	}
	for _, site := range sites {
		s.prompt.Println("  -", site)
	}
	return false, nil
}

func handleDelete(s *Session, arg string) (bool, error) {
	site, err := s.site(arg)
	if err != nil {
		return false, err
	}
	if err := s.Vault.Delete(site); err != nil {
		if errors.Is(err, vault.ErrNotFound) {
			s.prompt.Println("Entry not found.")
			return false, nil
		}
		return false, err
	}
	s.prompt.Println("Entry deleted.")
	return false, nil
}

func handleCopy(s *Session, arg string) (bool, error) {
	site, err := s.site(arg)
	if err != nil {
		return false, err
	}
	c, ok := s.Vault.Get(site)
	if !ok {
		s.prompt.Println("Entry not found.")
		return false, nil
	}
	if s.clipboard == nil {
		return false, errors.New("no clipboard available")
	}
	if err := s.clipboard.Set(c.Password, s.clipTTL); err != nil {
		return false, errors.Wrap(err, "copy to clipboard")
	}
	if s.clipTTL > 0 {
		s.prompt.Printf("Password copied to clipboard. Clearing in %s.\n", s.clipTTL)
	} else {
		s.prompt.Println("Password copied to clipboard.")
	}
	return false, nil
}

func handleGen(s *Session, arg string) (bool, error) {
	n := defaultGenWords
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 || v > maxGenWords {
			s.prompt.Printf("Word count must be between 1 and %d.\n", maxGenWords)
			return false, nil
		}
		n = v
	}
	words, err := diceware.Generate(n)
	if err != nil {
		return false, errors.Wrap(err, "generate passphrase")
	}
	s.prompt.Println(strings.Join(words, "-"))
	return false, nil
}

func handleBrowse(s *Session, _ string) (bool, error) {
	return false, RunTUI(s)
}

func handleSave(s *Session, _ string) (bool, error) {
	return false, s.save()
}

func handleExit(s *Session, _ string) (bool, error) {
	if s.Vault.Dirty() {
		ok, err := s.prompt.Confirm("Do you want to save your vault before exiting? (y/n): ")
		if err != nil && err != io.EOF {
			return false, err
		}
		if ok {
			if err := s.save(); err != nil {
				// stay in the loop so the user can retry or exit without saving
				return false, err
			}
		}
	}
	s.prompt.Println("Goodbye!")
	return true, nil
}

func handleHelp(s *Session, _ string) (bool, error) {
	s.prompt.Println(`add [site]     add or replace a credential
get [site]     show a credential
list           list sites
del [site]     delete a credential
copy [site]    copy a password to the clipboard
gen [words]    generate a diceware passphrase
browse         open the interactive browser
save           write the vault to disk
exit           leave, asking to save unsaved changes`)
	return false, nil
}
