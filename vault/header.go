package vault

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// minHeaderLen covers magic, version, flags, algo, argon params and the
// three length bytes.
const minHeaderLen = 4 + 1 + 2 + 1 + 4 + 4 + 1 + 1 + 1 + 1

// isSealed reports whether raw starts with a sealed header. The version byte
// is outside the base64 alphabet, so legacy files never match.
func isSealed(raw []byte) bool {
	return len(raw) > len(Magic) && string(raw[:len(Magic)]) == Magic && raw[len(Magic)] == Version
}

func writeBlob(buf *bytes.Buffer, b []byte, what string) error {
	if len(b) > 255 {
		return errors.Errorf("vault: %s too long", what)
	}
	buf.WriteByte(uint8(len(b)))
	buf.Write(b)
	return nil
}

func encodeHeader(h fileHeader) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteString(Magic)
	buf.WriteByte(Version)
	// bytes.Buffer writes never fail
	_ = binary.Write(buf, binary.BigEndian, h.Flags)
	buf.WriteByte(h.KDFAlgo)
	_ = binary.Write(buf, binary.BigEndian, h.ArgonTime)
	_ = binary.Write(buf, binary.BigEndian, h.ArgonMemory)
	buf.WriteByte(h.ArgonThreads)

	if err := writeBlob(buf, h.Salt, "salt"); err != nil {
		return nil, err
	}
	if err := writeBlob(buf, h.VaultID, "vault id"); err != nil {
		return nil, err
	}
	if err := writeBlob(buf, h.Nonce, "nonce"); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// headerAAD is the header with an empty nonce; it binds the KDF parameters,
// salt and vault id to the ciphertext.
func headerAAD(h fileHeader) ([]byte, error) {
	h.Nonce = nil
	return encodeHeader(h)
}

func readBlob(r *bytes.Reader) ([]byte, error) {
	n, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// decodeHeader splits a sealed file into its header and ciphertext. Every
// structural problem is reported as ErrCorrupt.
func decodeHeader(raw []byte) (fileHeader, []byte, error) {
	var h fileHeader
	if len(raw) < minHeaderLen || !isSealed(raw) {
		return h, nil, ErrCorrupt
	}
	r := bytes.NewReader(raw[len(Magic)+1:])

	fixed := []interface{}{&h.Flags, &h.KDFAlgo, &h.ArgonTime, &h.ArgonMemory, &h.ArgonThreads}
	for _, f := range fixed {
		if err := binary.Read(r, binary.BigEndian, f); err != nil {
			return h, nil, errors.Wrap(ErrCorrupt, err.Error())
		}
	}
	if h.KDFAlgo != kdfArgon2id {
		return h, nil, errors.Wrapf(ErrCorrupt, "unknown kdf %#x", h.KDFAlgo)
	}

	var err error
	if h.Salt, err = readBlob(r); err != nil {
		return h, nil, errors.Wrap(ErrCorrupt, "salt")
	}
	if h.VaultID, err = readBlob(r); err != nil {
		return h, nil, errors.Wrap(ErrCorrupt, "vault id")
	}
	if h.Nonce, err = readBlob(r); err != nil {
		return h, nil, errors.Wrap(ErrCorrupt, "nonce")
	}

	ct := raw[len(raw)-r.Len():]
	return h, ct, nil
}
