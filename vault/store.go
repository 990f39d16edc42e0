package vault

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/pkg/errors"
)

// Store is a directory holding one <name>.enc file per vault.
type Store struct {
	Dir string
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// ValidName rejects names that would escape the store directory or collide
// with temp files.
func ValidName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New("vault: empty name")
	case strings.ContainsAny(name, `/\`) || name == "." || name == "..":
		return errors.Errorf("vault: invalid name %q", name)
	case strings.HasPrefix(name, "."):
		return errors.Errorf("vault: name %q must not start with a dot", name)
	}
	return nil
}

func (s *Store) ensureDir() error {
	if err := os.MkdirAll(s.Dir, 0700); err != nil {
		return ioErr("mkdir", s.Dir, err)
	}
	return nil
}

// Path returns the file path of the named vault.
func (s *Store) Path(name string) string {
	return filepath.Join(s.Dir, name+FileExt)
}

// Exists reports whether a file for name is present.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Names lists the vaults in the store, sorted. The directory is created if
// it does not exist yet.
func (s *Store) Names() ([]string, error) {
	if err := s.ensureDir(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, ioErr("readdir", s.Dir, err)
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasSuffix(n, FileExt) || strings.HasPrefix(n, ".") {
			continue
		}
		names = append(names, strings.TrimSuffix(n, FileExt))
	}
	sort.Strings(names)
	return names, nil
}

// Open opens or creates the named vault. Like the package-level Open it wipes
// password on every path.
func (s *Store) Open(name string, password []byte, opts Options) (*Vault, error) {
	if err := ValidName(name); err != nil {
		memguard.WipeBytes(password)
		return nil, err
	}
	if err := s.ensureDir(); err != nil {
		memguard.WipeBytes(password)
		return nil, err
	}
	return Open(s.Path(name), password, opts)
}
