package vault

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

type Syncer interface {
	// Pull replaces the local vault file with the mirrored copy
	Pull(vaultPath string) error

	// Push copies the local encrypted vault file to the mirror
	Push(vaultPath string) error
}

// DirSyncer mirrors encrypted vault files into another directory, such as a
// removable drive. Only ciphertext is copied.
type DirSyncer struct {
	Dir string
}

func (d *DirSyncer) mirrorPath(vaultPath string) string {
	return filepath.Join(d.Dir, filepath.Base(vaultPath))
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return ioErr("read", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0700); err != nil {
		return ioErr("mkdir", filepath.Dir(dst), err)
	}
	if err := atomicWriteFile(dst, data, 0600); err != nil {
		return ioErr("write", dst, err)
	}
	return nil
}

// Push copies vaultPath into the mirror directory.
func (d *DirSyncer) Push(vaultPath string) error {
	if d.Dir == "" {
		return errors.New("vault: no backup directory configured")
	}
	dst := d.mirrorPath(vaultPath)
	if err := copyFile(vaultPath, dst); err != nil {
		return err
	}
	log.Info().Str("path", vaultPath).Str("mirror", dst).Msg("vault pushed")
	return nil
}

// Pull restores vaultPath from the mirror directory.
func (d *DirSyncer) Pull(vaultPath string) error {
	if d.Dir == "" {
		return errors.New("vault: no backup directory configured")
	}
	src := d.mirrorPath(vaultPath)
	if _, err := os.Stat(src); err != nil {
		return errors.Wrapf(err, "vault: no mirrored copy of %s", filepath.Base(vaultPath))
	}
	if err := copyFile(src, vaultPath); err != nil {
		return err
	}
	log.Info().Str("path", vaultPath).Str("mirror", src).Msg("vault pulled")
	return nil
}
