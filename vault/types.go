package vault

import "fmt"

const (
	KeyLen       = 32
	IVLen        = 16
	NonceLen     = 24
	VaultIDLen   = 16
	Magic        = "GVLT"
	Version      = 0x02
	FileExt      = ".enc"
	kdfArgon2id  = 0x01
	fileInfoV2   = "vault v2"
	defaultFlags = 0
)

const (
	DefaultLegacySalt       = "go-vault/static-salt/v1"
	DefaultLegacyIterations = 100000
)

// Format identifies the on-disk encoding of a vault file.
type Format int

const (
	// FormatSealed is the argon2id + XChaCha20-Poly1305 binary format with a
	// per-vault salt.
	FormatSealed Format = iota
	// FormatLegacy is base64(iv || AES-CBC(space-padded JSON)) keyed by
	// PBKDF2 over a fixed salt.
	FormatLegacy
)

func (f Format) String() string {
	switch f {
	case FormatSealed:
		return "sealed"
	case FormatLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat maps a config value to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "sealed", "":
		return FormatSealed, nil
	case "legacy":
		return FormatLegacy, nil
	}
	return 0, fmt.Errorf("vault: unknown format %q", s)
}

// State tracks where a Vault is in its session lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateKeyEstablished
	StateReady
	StateSaved
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateKeyEstablished:
		return "key-established"
	case StateReady:
		return "ready"
	case StateSaved:
		return "saved"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Record maps a site name to its credential. Adding an existing site
// replaces the previous credential.
type Record map[string]Credential

// KDFParams are the argon2id parameters of a sealed vault. Memory is in KiB.
type KDFParams struct {
	Time, Memory uint32
	Threads      uint8
	Salt         []byte
}

// LegacyParams are the PBKDF2 inputs of the legacy format. The salt is shared
// by every legacy vault.
type LegacyParams struct {
	Salt       []byte
	Iterations int
}

// Options control how Open derives keys and which format a new vault gets.
type Options struct {
	Format Format
	Legacy LegacyParams
	KDF    KDFParams
}

func DefaultLegacyParams() LegacyParams {
	return LegacyParams{Salt: []byte(DefaultLegacySalt), Iterations: DefaultLegacyIterations}
}

func DefaultOptions() Options {
	return Options{
		Format: FormatSealed,
		Legacy: DefaultLegacyParams(),
		KDF:    *DefaultKDFParams(),
	}
}

type fileHeader struct {
	Flags        uint16
	KDFAlgo      uint8
	ArgonTime    uint32
	ArgonMemory  uint32
	ArgonThreads uint8
	Salt         []byte
	VaultID      []byte
	Nonce        []byte
}
