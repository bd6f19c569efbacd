package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"mactime-go/internal/config"
)

func newTestAgeEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	return NewAgeEncryptor(config.EncryptionConfig{
		PublicKeyPath:  filepath.Join(dir, "keys", "mactime.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "mactime.key"),
	})
}

func TestAgeEncryptor_IsConfigured_BeforeSetup(t *testing.T) {
	t.Parallel()
	if newTestAgeEncryptor(t).IsConfigured() {
		t.Error("IsConfigured() = true before Setup, want false")
	}
}

func TestAgeEncryptor_Setup(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)

	if err := e.Setup("test-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false after Setup, want true")
	}

	err := e.Setup("other-passphrase")
	if !errors.Is(err, ErrAlreadyConfigured) {
		t.Errorf("second Setup() = %v, want ErrAlreadyConfigured", err)
	}
	if _, err := e.Unlock("test-passphrase"); err != nil {
		t.Errorf("original key no longer unlocks: %v", err)
	}
}

func TestAgeEncryptor_Setup_EmptyPassphrase(t *testing.T) {
	t.Parallel()
	if err := newTestAgeEncryptor(t).Setup(""); err == nil {
		t.Error("Setup(\"\") expected error")
	}
}

func TestEncryptors_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "timeline line", input: []byte("1970-01-01T00:00:00+00:00      512 macb -rw-r--r--   0       0       42 /etc/passwd\n")},
		{name: "empty", input: []byte{}},
		{name: "binary name", input: []byte{'/', 0xe9, 0x00, 0xff}},
		{name: "large", input: bytes.Repeat([]byte("abcdef|"), 20000)},
	}

	encryptors := map[string]func(t *testing.T) Encryptor{
		"age": func(t *testing.T) Encryptor {
			e := newTestAgeEncryptor(t)
			if err := e.Setup("test-passphrase"); err != nil {
				t.Fatalf("Setup() error = %v", err)
			}
			return e
		},
		"test": func(*testing.T) Encryptor { return NewTestEncryptor() },
	}

	for kind, newEncryptor := range encryptors {
		for _, tt := range tests {
			t.Run(kind+"/"+tt.name, func(t *testing.T) {
				t.Parallel()
				e := newEncryptor(t)

				var encrypted bytes.Buffer
				if err := Encrypt(e, bytes.NewReader(tt.input), &encrypted); err != nil {
					t.Fatalf("Encrypt() error = %v", err)
				}
				if bytes.Equal(encrypted.Bytes(), tt.input) {
					t.Error("encrypted output is identical to plaintext")
				}

				dc, err := e.Unlock("test-passphrase")
				if err != nil {
					t.Fatalf("Unlock() error = %v", err)
				}

				var decrypted bytes.Buffer
				if err := dc.Decrypt(bytes.NewReader(encrypted.Bytes()), &decrypted); err != nil {
					t.Fatalf("Decrypt() error = %v", err)
				}
				if !bytes.Equal(decrypted.Bytes(), tt.input) {
					t.Errorf("round trip failed: got %d bytes, want %d bytes", decrypted.Len(), len(tt.input))
				}
			})
		}
	}
}

func TestAgeEncryptor_WrapStreams(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)
	if err := e.Setup("pw"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	var encrypted bytes.Buffer
	w, err := e.Wrap(&encrypted)
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}
	for range 100 {
		if _, err := io.WriteString(w, "line\n"); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	dc, err := e.Unlock("pw")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	var plain bytes.Buffer
	if err := dc.Decrypt(&encrypted, &plain); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if plain.String() != string(bytes.Repeat([]byte("line\n"), 100)) {
		t.Errorf("decrypted %d bytes, want %d", plain.Len(), 500)
	}
}

func TestAgeEncryptor_UnlockWrongPassphrase(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	if err := e.Setup("correct-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, err := e.Unlock("wrong-passphrase"); err == nil {
		t.Error("Unlock() with wrong passphrase should return error")
	}
}

func TestAgeEncryptor_BeforeSetup(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	if _, err := e.Wrap(io.Discard); err == nil {
		t.Error("Wrap() before Setup should return error")
	}
	if _, err := e.Unlock("passphrase"); err == nil {
		t.Error("Unlock() before Setup should return error")
	}
}

func TestTestDecryptionContext_RejectsForeignData(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := (&TestDecryptionContext{}).Decrypt(bytes.NewReader([]byte("plaintext!")), &out)
	if err == nil {
		t.Error("Decrypt() of unmarked data should return error")
	}
}

func TestNewEncryptorFromConfig(t *testing.T) {
	tests := []struct {
		typ     string
		want    string
		wantErr bool
	}{
		{typ: "", want: "*encryption.AgeEncryptor"},
		{typ: "age", want: "*encryption.AgeEncryptor"},
		{typ: "test", want: "*encryption.TestEncryptor"},
		{typ: "rot13", wantErr: true},
	}

	for _, tt := range tests {
		e, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: tt.typ})
		if tt.wantErr {
			if err == nil {
				t.Errorf("NewEncryptorFromConfig(%q) expected error", tt.typ)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig(%q) error = %v", tt.typ, err)
		}
		if got := fmt.Sprintf("%T", e); got != tt.want {
			t.Errorf("NewEncryptorFromConfig(%q) = %s, want %s", tt.typ, got, tt.want)
		}
	}
}
