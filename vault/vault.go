package vault

import (
	"io/fs"
	"os"
	"sort"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Vault is one open credential store. It holds the session key and the
// decrypted record; nothing reaches disk until Save.
type Vault struct {
	Path string

	format Format
	legacy LegacyParams
	kdf    KDFParams
	id     uuid.UUID
	key    *Key
	record Record
	state  State
	dirty  bool
}

// Open loads the vault at path, or starts a new empty one if no file exists.
// password is wiped before Open returns.
//
// A file that cannot be decrypted or parsed yields an *OpenError matching
// ErrWrongPasswordOrCorrupt; other read failures yield an *IOError.
func Open(path string, password []byte, opts Options) (*Vault, error) {
	defer memguard.WipeBytes(password)

	if opts.Legacy.Iterations < 1 {
		return nil, errors.Errorf("vault: invalid legacy iteration count %d", opts.Legacy.Iterations)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return create(path, password, opts)
		}
		return nil, ioErr("read", path, err)
	}

	v := &Vault{Path: path, legacy: opts.Legacy}
	if isSealed(raw) {
		err = v.loadSealed(raw, password)
	} else {
		err = v.loadLegacy(raw, password)
	}
	if err != nil {
		v.Close()
		log.Debug().Str("path", path).Err(err).Msg("open failed")
		return nil, &OpenError{Path: path, Reason: WrongPasswordOrCorrupt, Err: err}
	}

	v.state = StateReady
	log.Info().Str("path", path).Stringer("format", v.format).Int("entries", len(v.record)).Msg("vault opened")
	return v, nil
}

func create(path string, password []byte, opts Options) (*Vault, error) {
	v := &Vault{
		Path:   path,
		format: opts.Format,
		legacy: opts.Legacy,
		record: Record{},
		dirty:  true,
	}
	if v.format == FormatSealed {
		salt, err := randBytes(16)
		if err != nil {
			return nil, err
		}
		v.kdf = opts.KDF
		v.kdf.Salt = salt
		v.id = uuid.New()
	}
	if err := v.establishKey(password); err != nil {
		return nil, err
	}
	v.state = StateReady
	log.Info().Str("path", path).Stringer("format", v.format).Msg("new vault")
	return v, nil
}

func (v *Vault) establishKey(password []byte) error {
	var (
		raw []byte
		err error
	)
	switch v.format {
	case FormatLegacy:
		raw = DeriveLegacyKey(password, v.legacy)
	case FormatSealed:
		raw, err = DeriveKey(password, &v.kdf, []byte(fileInfoV2))
		if err != nil {
			return err
		}
	default:
		return errors.Errorf("vault: unsupported format %v", v.format)
	}
	key, err := newKey(raw)
	if err != nil {
		return err
	}
	v.key = key
	v.state = StateKeyEstablished
	return nil
}

func (v *Vault) loadLegacy(raw, password []byte) error {
	v.format = FormatLegacy
	if err := v.establishKey(password); err != nil {
		return err
	}
	var pt []byte
	err := v.key.use(func(key []byte) error {
		var err error
		pt, err = DecryptLegacy(key, raw)
		return err
	})
	if err != nil {
		return err
	}
	defer memguard.WipeBytes(pt)

	v.record, err = DecodeRecord(pt)
	return err
}

func (v *Vault) loadSealed(raw, password []byte) error {
	h, ct, err := decodeHeader(raw)
	if err != nil {
		return err
	}
	kdf := KDFParams{Time: h.ArgonTime, Memory: h.ArgonMemory, Threads: h.ArgonThreads, Salt: h.Salt}
	if err := kdf.Validate(); err != nil {
		return errors.Wrap(ErrCorrupt, err.Error())
	}
	id, err := uuid.FromBytes(h.VaultID)
	if err != nil {
		return errors.Wrap(ErrCorrupt, "vault id")
	}

	v.format = FormatSealed
	v.id = id
	v.kdf = kdf
	if err := v.establishKey(password); err != nil {
		return errors.Wrap(ErrCorrupt, err.Error())
	}

	aad, err := headerAAD(h)
	if err != nil {
		return err
	}
	var pt []byte
	err = v.key.use(func(key []byte) error {
		var err error
		pt, err = Unseal(key, h.Nonce, aad, ct)
		return err
	})
	if err != nil {
		return err
	}
	defer memguard.WipeBytes(pt)

	v.record, err = DecodeRecord(pt)
	return err
}

func (v *Vault) header() fileHeader {
	return fileHeader{
		Flags:        defaultFlags,
		KDFAlgo:      kdfArgon2id,
		ArgonTime:    v.kdf.Time,
		ArgonMemory:  v.kdf.Memory,
		ArgonThreads: v.kdf.Threads,
		Salt:         v.kdf.Salt,
		VaultID:      v.id[:],
	}
}

func (v *Vault) encrypt(pt []byte) ([]byte, error) {
	var out []byte
	err := v.key.use(func(key []byte) error {
		if v.format == FormatLegacy {
			var err error
			out, err = EncryptLegacy(key, pt)
			return err
		}

		h := v.header()
		aad, err := headerAAD(h)
		if err != nil {
			return err
		}
		nonce, ct, err := Seal(key, pt, aad)
		if err != nil {
			return err
		}
		h.Nonce = nonce
		hdr, err := encodeHeader(h)
		if err != nil {
			return err
		}
		out = append(hdr, ct...)
		return nil
	})
	return out, err
}

// Save writes the vault back to its own path.
func (v *Vault) Save() error {
	return v.SaveAs(v.Path)
}

// SaveAs encrypts the record with the session key and atomically replaces
// the file at path. The vault keeps the format it was opened with.
func (v *Vault) SaveAs(path string) error {
	if v.state == StateClosed {
		return ErrClosed
	}
	pt, err := EncodeRecord(v.record)
	if err != nil {
		return err
	}
	defer memguard.WipeBytes(pt)

	out, err := v.encrypt(pt)
	if err != nil {
		return err
	}
	if err := atomicWriteFile(path, out, 0600); err != nil {
		return ioErr("write", path, err)
	}

	v.dirty = false
	v.state = StateSaved
	log.Info().Str("path", path).Stringer("format", v.format).Int("entries", len(v.record)).Msg("vault saved")
	return nil
}

// Add stores a credential for site, replacing any existing one.
func (v *Vault) Add(site, username, password string) error {
	if v.state == StateClosed {
		return ErrClosed
	}
	v.record[site] = Credential{Username: username, Password: password}
	v.touch()
	return nil
}

// Get returns the credential for site and whether it exists.
func (v *Vault) Get(site string) (Credential, bool) {
	c, ok := v.record[site]
	return c, ok
}

// Delete removes site. It returns ErrNotFound if site is absent.
func (v *Vault) Delete(site string) error {
	if v.state == StateClosed {
		return ErrClosed
	}
	if _, ok := v.record[site]; !ok {
		return ErrNotFound
	}
	delete(v.record, site)
	v.touch()
	return nil
}

// Sites lists all site names in sorted order.
func (v *Vault) Sites() []string {
	sites := make([]string, 0, len(v.record))
	for s := range v.record {
		sites = append(sites, s)
	}
	sort.Strings(sites)
	return sites
}

func (v *Vault) touch() {
	v.dirty = true
	v.state = StateReady
}

func (v *Vault) Len() int       { return len(v.record) }
func (v *Vault) Dirty() bool    { return v.dirty }
func (v *Vault) Format() Format { return v.format }
func (v *Vault) ID() uuid.UUID  { return v.id }
func (v *Vault) State() State   { return v.state }
func (v *Vault) Closed() bool   { return v.state == StateClosed }
func (v *Vault) KDF() KDFParams { return v.kdf }

// Close drops the session key and the decrypted record. Unsaved changes are
// lost.
func (v *Vault) Close() {
	v.key.destroy()
	v.key = nil
	v.record = nil
	v.dirty = false
	v.state = StateClosed
}
