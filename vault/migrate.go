package vault

import (
	"os"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Migrate re-encrypts a legacy vault into the sealed format under the same
// password and opts.KDF. The legacy file is kept next to it as
// <path>.legacy.bak. A vault that is already sealed is left alone.
// password is wiped.
func Migrate(path string, password []byte, opts Options) (bool, error) {
	pw := memguard.NewBufferFromBytes(password)
	defer pw.Destroy()

	copyPW := func() []byte { return append([]byte(nil), pw.Bytes()...) }

	if _, err := os.Stat(path); err != nil {
		return false, ioErr("stat", path, err)
	}
	v, err := Open(path, copyPW(), opts)
	if err != nil {
		return false, err
	}
	defer v.Close()
	if v.format == FormatSealed {
		return false, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return false, ioErr("read", path, err)
	}
	backup := path + ".legacy.bak"
	if err := atomicWriteFile(backup, raw, 0600); err != nil {
		return false, ioErr("write", backup, err)
	}

	salt, err := randBytes(16)
	if err != nil {
		return false, err
	}
	v.key.destroy()
	v.format = FormatSealed
	v.kdf = opts.KDF
	v.kdf.Salt = salt
	v.id = uuid.New()
	p := copyPW()
	err = v.establishKey(p)
	memguard.WipeBytes(p)
	if err != nil {
		return false, errors.Wrap(err, "vault: derive sealed key")
	}
	if err := v.Save(); err != nil {
		return false, err
	}
	log.Info().Str("path", path).Str("backup", backup).Msg("vault migrated to sealed format")
	return true, nil
}
