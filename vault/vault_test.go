package vault

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

// testOptions keeps key derivation cheap.
func testOptions(f Format) Options {
	return Options{
		Format: f,
		Legacy: LegacyParams{Salt: []byte(DefaultLegacySalt), Iterations: 1000},
		KDF:    KDFParams{Time: 1, Memory: 64, Threads: 1},
	}
}

var formats = []Format{FormatLegacy, FormatSealed}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	for _, f := range formats {
		path := filepath.Join(t.TempDir(), "new.enc")
		v, err := Open(path, []byte("pw"), testOptions(f))
		if err != nil {
			t.Fatalf("%v: open: %v", f, err)
		}
		if v.Len() != 0 || v.State() != StateReady || v.Format() != f {
			t.Fatalf("%v: unexpected new vault len=%d state=%v format=%v", f, v.Len(), v.State(), v.Format())
		}
		if !v.Dirty() {
			t.Fatalf("%v: new vault should be dirty until saved", f)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("%v: open must not create the file, stat err=%v", f, err)
		}
	}
}

func TestEndToEndCorrectHorse(t *testing.T) {
	for _, f := range formats {
		path := filepath.Join(t.TempDir(), "personal.enc")
		opts := testOptions(f)

		v, err := Open(path, []byte("correcthorse"), opts)
		if err != nil {
			t.Fatalf("%v: create: %v", f, err)
		}
		if err := v.Add("example.com", "alice", "s3cr3t"); err != nil {
			t.Fatalf("%v: add: %v", f, err)
		}
		if err := v.Save(); err != nil {
			t.Fatalf("%v: save: %v", f, err)
		}
		if v.State() != StateSaved || v.Dirty() {
			t.Fatalf("%v: state after save %v dirty=%v", f, v.State(), v.Dirty())
		}
		v.Close()

		v2, err := Open(path, []byte("correcthorse"), opts)
		if err != nil {
			t.Fatalf("%v: reopen: %v", f, err)
		}
		c, ok := v2.Get("example.com")
		if !ok || c != (Credential{Username: "alice", Password: "s3cr3t"}) {
			t.Fatalf("%v: got %+v ok=%v", f, c, ok)
		}
		if v2.Format() != f {
			t.Fatalf("%v: reopened as %v", f, v2.Format())
		}
		v2.Close()

		_, err = Open(path, []byte("wrongpass"), opts)
		if !errors.Is(err, ErrWrongPasswordOrCorrupt) {
			t.Fatalf("%v: expected ErrWrongPasswordOrCorrupt, got %v", f, err)
		}
		var oe *OpenError
		if !errors.As(err, &oe) || oe.Reason != WrongPasswordOrCorrupt || oe.Path != path {
			t.Fatalf("%v: expected *OpenError, got %#v", f, err)
		}
	}
}

func TestLegacyFileFormatOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.enc")
	opts := testOptions(FormatLegacy)

	// a file written by another implementation of the legacy format
	key := DeriveLegacyKey([]byte("correcthorse"), opts.Legacy)
	blob, err := EncryptLegacy(key, []byte(`{"example.com": {"username": "alice", "password": "s3cr3t"}}`))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if err := os.WriteFile(path, blob, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	v, err := Open(path, []byte("correcthorse"), opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()
	if c, ok := v.Get("example.com"); !ok || c.Password != "s3cr3t" {
		t.Fatalf("got %+v ok=%v", c, ok)
	}

	if err := v.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	saved, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	pt, err := DecryptLegacy(key, saved)
	if err != nil {
		t.Fatalf("saved file is not legacy format: %v", err)
	}
	if string(pt) != `{"example.com":{"username":"alice","password":"s3cr3t"}}` {
		t.Fatalf("unexpected plaintext %s", pt)
	}
}

// Space padding loses trailing spaces of the raw plaintext ("bob " comes
// back as "bob"). Inside a JSON record the closing brace protects them.
func TestTrailingSpaceUsername(t *testing.T) {
	opts := testOptions(FormatLegacy)
	key := DeriveLegacyKey([]byte("pw"), opts.Legacy)
	blob, err := EncryptLegacy(key, []byte("bob "))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := DecryptLegacy(key, blob)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(got) != "bob" {
		t.Fatalf("expected lossy round trip to %q, got %q", "bob", got)
	}

	for _, f := range formats {
		path := filepath.Join(t.TempDir(), "spaces.enc")
		v, err := Open(path, []byte("pw"), testOptions(f))
		if err != nil {
			t.Fatalf("%v: open: %v", f, err)
		}
		v.Add("site", "bob ", "pass ")
		if err := v.Save(); err != nil {
			t.Fatalf("%v: save: %v", f, err)
		}
		v.Close()

		v, err = Open(path, []byte("pw"), testOptions(f))
		if err != nil {
			t.Fatalf("%v: reopen: %v", f, err)
		}
		if c, _ := v.Get("site"); c.Username != "bob " || c.Password != "pass " {
			t.Fatalf("%v: got %+v", f, c)
		}
		v.Close()
	}
}

func TestAddOverwrites(t *testing.T) {
	v, err := Open(filepath.Join(t.TempDir(), "v.enc"), []byte("pw"), testOptions(FormatLegacy))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	v.Add("example.com", "alice", "one")
	v.Add("example.com", "alice2", "two")
	sites := v.Sites()
	if len(sites) != 1 || sites[0] != "example.com" {
		t.Fatalf("sites %v", sites)
	}
	if c, _ := v.Get("example.com"); c.Username != "alice2" || c.Password != "two" {
		t.Fatalf("got %+v", c)
	}
}

func TestGetMissingEntry(t *testing.T) {
	v, err := Open(filepath.Join(t.TempDir(), "v.enc"), []byte("pw"), testOptions(FormatLegacy))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	c, ok := v.Get("unknown-site")
	if ok {
		t.Fatalf("expected absent, got %+v", c)
	}
}

func TestSitesSortedAndDelete(t *testing.T) {
	v, err := Open(filepath.Join(t.TempDir(), "v.enc"), []byte("pw"), testOptions(FormatLegacy))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, s := range []string{"c", "a", "b"} {
		v.Add(s, "u", "p")
	}
	if got := v.Sites(); len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("sites %v", got)
	}
	if err := v.Delete("b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := v.Delete("b"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if v.Len() != 2 {
		t.Fatalf("len %d", v.Len())
	}
}

func TestOpenCorruptFile(t *testing.T) {
	opts := testOptions(FormatSealed)
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.enc")
	if err := os.WriteFile(garbage, []byte("this is not a vault"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(garbage, []byte("pw"), opts); !errors.Is(err, ErrWrongPasswordOrCorrupt) {
		t.Fatalf("garbage: expected ErrWrongPasswordOrCorrupt, got %v", err)
	}

	sealed := filepath.Join(dir, "sealed.enc")
	v, err := Open(sealed, []byte("pw"), opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	v.Add("a", "b", "c")
	if err := v.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := os.ReadFile(sealed)
	if err != nil {
		t.Fatal(err)
	}
	raw[len(raw)-1] ^= 0x01
	if err := os.WriteFile(sealed, raw, 0600); err != nil {
		t.Fatal(err)
	}
	_, err = Open(sealed, []byte("pw"), opts)
	if !errors.Is(err, ErrWrongPasswordOrCorrupt) || !errors.Is(err, ErrDecrypt) {
		t.Fatalf("tampered: expected decrypt failure, got %v", err)
	}
}

func TestOpenRejectsExcessiveKDFHeader(t *testing.T) {
	opts := testOptions(FormatSealed)
	path := filepath.Join(t.TempDir(), "sealed.enc")
	v, err := Open(path, []byte("pw"), opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	v.Add("a", "b", "c")
	if err := v.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	v.Close()
	orig, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	// offsets after magic, version, flags and algo
	tests := map[string]func(raw []byte){
		"time bit flip":  func(raw []byte) { raw[8] ^= 0x80 },
		"time over max":  func(raw []byte) { binary.BigEndian.PutUint32(raw[8:], MaxArgonTime+1) },
		"zero time":      func(raw []byte) { binary.BigEndian.PutUint32(raw[8:], 0) },
		"memory 4 GiB":   func(raw []byte) { binary.BigEndian.PutUint32(raw[12:], 4*1024*1024) },
		"memory too low": func(raw []byte) { binary.BigEndian.PutUint32(raw[12:], 7) },
		"many threads":   func(raw []byte) { raw[16] = MaxArgonThreads + 1 },
	}
	for name, corrupt := range tests {
		raw := append([]byte(nil), orig...)
		corrupt(raw)
		if err := os.WriteFile(path, raw, 0600); err != nil {
			t.Fatal(err)
		}
		_, err := Open(path, []byte("pw"), opts)
		if !errors.Is(err, ErrWrongPasswordOrCorrupt) || !errors.Is(err, ErrCorrupt) {
			t.Fatalf("%s: expected corrupt header error, got %v", name, err)
		}
	}
}

func TestOpenIOError(t *testing.T) {
	dir := t.TempDir()
	// reading a directory fails with something other than not-exist
	_, err := Open(dir, []byte("pw"), testOptions(FormatLegacy))
	var ioe *IOError
	if !errors.As(err, &ioe) {
		t.Fatalf("expected *IOError, got %#v", err)
	}
	if errors.Is(err, ErrWrongPasswordOrCorrupt) {
		t.Fatal("io failure must not be reported as wrong password")
	}
}

func TestSaveFailureLeavesFileIntact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.enc")
	v, err := Open(path, []byte("pw"), testOptions(FormatLegacy))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	v.Add("a", "b", "c")
	if err := v.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	before, _ := os.ReadFile(path)

	v.Add("d", "e", "f")
	err = v.SaveAs(filepath.Join(path+".missing-dir", "v.enc"))
	var ioe *IOError
	if !errors.As(err, &ioe) {
		t.Fatalf("expected *IOError, got %v", err)
	}
	if !v.Dirty() {
		t.Fatal("failed save must keep the vault dirty")
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Fatal("original file changed by failed save")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("stray files left behind: %d entries", len(entries))
	}
}

func TestSavedFileMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.enc")
	v, err := Open(path, []byte("pw"), testOptions(FormatSealed))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := v.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0600 {
		t.Fatalf("mode %v", fi.Mode().Perm())
	}
}

func TestSealedVaultKeepsIDAndSalt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.enc")
	opts := testOptions(FormatSealed)
	v, err := Open(path, []byte("pw"), opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id, salt := v.ID(), v.KDF().Salt
	if err := v.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	v.Close()

	v2, err := Open(path, []byte("pw"), opts)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v2.ID() != id || !bytes.Equal(v2.KDF().Salt, salt) {
		t.Fatal("id or salt changed across save/open")
	}

	other, err := Open(filepath.Join(t.TempDir(), "w.enc"), []byte("pw"), opts)
	if err != nil {
		t.Fatalf("open other: %v", err)
	}
	if bytes.Equal(other.KDF().Salt, salt) {
		t.Fatal("two sealed vaults share a salt")
	}
}

func TestClosedVault(t *testing.T) {
	v, err := Open(filepath.Join(t.TempDir(), "v.enc"), []byte("pw"), testOptions(FormatLegacy))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	v.Add("a", "b", "c")
	v.Close()
	if v.State() != StateClosed {
		t.Fatalf("state %v", v.State())
	}
	if err := v.Add("x", "y", "z"); err != ErrClosed {
		t.Fatalf("add: expected ErrClosed, got %v", err)
	}
	if err := v.Save(); err != ErrClosed {
		t.Fatalf("save: expected ErrClosed, got %v", err)
	}
	if _, ok := v.Get("a"); ok {
		t.Fatal("closed vault still exposes entries")
	}
	if len(v.Sites()) != 0 {
		t.Fatal("closed vault still lists sites")
	}
}

func TestOpenWipesPassword(t *testing.T) {
	pw := []byte("correcthorse")
	if _, err := Open(filepath.Join(t.TempDir(), "v.enc"), pw, testOptions(FormatLegacy)); err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(pw, make([]byte, len(pw))) {
		t.Fatal("password not wiped")
	}
}

func TestOpenRejectsBadIterations(t *testing.T) {
	opts := testOptions(FormatLegacy)
	opts.Legacy.Iterations = 0
	if _, err := Open(filepath.Join(t.TempDir(), "v.enc"), []byte("pw"), opts); err == nil {
		t.Fatal("expected error for zero iterations")
	}
}
