package vault

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// EncodeRecord serializes r as a JSON object of {"username","password"}
// objects. Keys come out sorted.
func EncodeRecord(r Record) ([]byte, error) {
	if r == nil {
		r = Record{}
	}
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, errors.Wrap(err, "vault: encode record")
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeRecord parses text produced by EncodeRecord. Anything that is not a
// JSON object of credential objects fails with ErrParse.
func DecodeRecord(b []byte) (Record, error) {
	if !utf8.Valid(b) {
		return nil, errors.Wrap(ErrParse, "invalid utf-8")
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, errors.Wrap(ErrParse, err.Error())
	}
	if r == nil {
		return nil, errors.Wrap(ErrParse, "not an object")
	}
	return r, nil
}
