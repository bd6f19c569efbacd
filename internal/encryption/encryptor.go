package encryption

import (
	"errors"
	"fmt"
	"io"

	"mactime-go/internal/config"
)

// ErrAlreadyConfigured is returned by Setup when a key pair exists already.
var ErrAlreadyConfigured = errors.New("encryption keys already exist")

// Encryptor protects timeline output at rest.
type Encryptor interface {
	// Setup creates the key pair, protecting the private key with passphrase.
	Setup(passphrase string) error
	// Wrap returns a writer that encrypts everything written to it into w.
	// Closing it finishes the ciphertext but leaves w open.
	Wrap(w io.Writer) (io.WriteCloser, error)
	// Unlock returns a context able to decrypt what Wrap produced.
	Unlock(passphrase string) (DecryptionContext, error)
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}

// Encrypt copies r through e into w.
func Encrypt(e Encryptor, r io.Reader, w io.Writer) error {
	enc, err := e.Wrap(w)
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, r); err != nil {
		enc.Close()
		return fmt.Errorf("encrypting data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
