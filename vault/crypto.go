package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

func randBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, errors.Wrap(err, "vault: read random")
	}
	return b, nil
}

// padSpaces extends b with ASCII spaces up to the next block boundary. An
// aligned input gets a full block of padding.
func padSpaces(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	out := make([]byte, len(b), len(b)+n)
	copy(out, b)
	return append(out, bytes.Repeat([]byte{' '}, n)...)
}

// EncryptLegacy encrypts plaintext with AES-CBC under a fresh IV and returns
// base64(iv || ciphertext). Trailing spaces in plaintext do not survive
// DecryptLegacy.
func EncryptLegacy(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "vault: new aes cipher")
	}
	iv, err := randBytes(IVLen)
	if err != nil {
		return nil, err
	}
	padded := padSpaces(plaintext)
	raw := make([]byte, IVLen+len(padded))
	copy(raw, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(raw[IVLen:], padded)

	out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(out, raw)
	return out, nil
}

// DecryptLegacy reverses EncryptLegacy. A wrong key is not detected here: it
// produces garbage that the record decoder rejects.
func DecryptLegacy(key, blob []byte) ([]byte, error) {
	blob = bytes.TrimSpace(blob)
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(blob)))
	n, err := base64.StdEncoding.Decode(raw, blob)
	if err != nil {
		return nil, errors.Wrap(ErrDecrypt, err.Error())
	}
	raw = raw[:n]
	if len(raw) < IVLen+aes.BlockSize || (len(raw)-IVLen)%aes.BlockSize != 0 {
		return nil, errors.Wrapf(ErrDecrypt, "ciphertext length %d", len(raw))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "vault: new aes cipher")
	}
	iv, ct := raw[:IVLen], raw[IVLen:]
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)
	return bytes.TrimRight(pt, " "), nil
}

// Seal encrypts plaintext with XChaCha20-Poly1305 under a random nonce.
func Seal(key, plaintext, aad []byte) ([]byte, []byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, errors.Wrap(err, "vault: new aead")
	}
	nonce, err := randBytes(NonceLen)
	if err != nil {
		return nil, nil, err
	}
	ct := aead.Seal(nil, nonce, plaintext, aad)
	return nonce, ct, nil
}

// Unseal authenticates and decrypts ciphertext. Any mismatch of key, nonce,
// aad or ciphertext yields ErrDecrypt.
func Unseal(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "vault: new aead")
	}
	if len(nonce) != aead.NonceSize() {
		return nil, errors.Wrapf(ErrDecrypt, "nonce length %d", len(nonce))
	}
	pt, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrDecrypt
	}
	return pt, nil
}
