package vault

import (
	"crypto/sha256"
	"io"

	"github.com/awnumar/memguard"
	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// Argon2id parameter limits. Sealed headers outside them are rejected before
// any key derivation runs.
const (
	MaxArgonTime    = 64
	MaxArgonMemory  = 1024 * 1024 // KiB
	MaxArgonThreads = 16
)

func DefaultKDFParams() *KDFParams { return &KDFParams{Time: 3, Memory: 256 * 1024, Threads: 1} }

// Validate checks the argon2id cost parameters; the salt is not inspected.
func (p *KDFParams) Validate() error {
	switch {
	case p.Time < 1 || p.Time > MaxArgonTime:
		return errors.Errorf("vault: argon2 time %d outside 1..%d", p.Time, MaxArgonTime)
	case p.Threads < 1 || p.Threads > MaxArgonThreads:
		return errors.Errorf("vault: argon2 threads %d outside 1..%d", p.Threads, MaxArgonThreads)
	case p.Memory < 8*uint32(p.Threads) || p.Memory > MaxArgonMemory:
		return errors.Errorf("vault: argon2 memory %d KiB outside %d..%d", p.Memory, 8*uint32(p.Threads), MaxArgonMemory)
	}
	return nil
}

// DeriveLegacyKey stretches password with PBKDF2-HMAC-SHA256 over the fixed
// legacy salt. Equal inputs always produce equal keys; an empty password is
// accepted.
func DeriveLegacyKey(password []byte, p LegacyParams) []byte {
	return pbkdf2.Key(password, p.Salt, p.Iterations, KeyLen, sha256.New)
}

// DeriveKey runs argon2id over the vault's own salt and expands the result
// into the file encryption key with HKDF.
func DeriveKey(password []byte, p *KDFParams, info []byte) ([]byte, error) {
	if len(p.Salt) == 0 {
		return nil, errors.New("vault: missing kdf salt")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	master := argon2.IDKey(password, p.Salt, p.Time, p.Memory, p.Threads, KeyLen)
	defer memguard.WipeBytes(master)

	h := hkdf.New(sha256.New, master, nil, info)
	fek := make([]byte, KeyLen)
	if _, err := io.ReadFull(h, fek); err != nil {
		return nil, errors.Wrap(err, "vault: expand key")
	}
	return fek, nil
}

// Key is a session key kept in an encrypted memguard enclave. It is opened
// into locked memory only for the duration of one cipher call.
type Key struct {
	enclave *memguard.Enclave
}

// newKey seals b into an enclave. b is wiped.
func newKey(b []byte) (*Key, error) {
	if len(b) != KeyLen {
		memguard.WipeBytes(b)
		return nil, errors.Errorf("vault: key must be %d bytes, got %d", KeyLen, len(b))
	}
	return &Key{enclave: memguard.NewEnclave(b)}, nil
}

func (k *Key) use(fn func(key []byte) error) error {
	if k == nil || k.enclave == nil {
		return ErrClosed
	}
	buf, err := k.enclave.Open()
	if err != nil {
		return errors.Wrap(err, "vault: open key enclave")
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

func (k *Key) destroy() {
	if k != nil {
		k.enclave = nil
	}
}
