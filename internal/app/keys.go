package app

import (
	"context"
	"fmt"
	"io"

	"mactime-go/internal/config"
	"mactime-go/internal/encryption"
	"mactime-go/internal/vault"
)

// InitKeys generates the key pair encrypted timelines are written to.
func InitKeys(cfg config.EncryptionConfig, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up encryption: %w", err)
	}
	return nil
}

// Decrypt unlocks the private key with passphrase and writes the plaintext
// of the encrypted timeline r to w.
func Decrypt(cfg config.EncryptionConfig, passphrase string, r io.Reader, w io.Writer) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if !enc.IsConfigured() {
		return fmt.Errorf("%w: encryption keys not found, run 'mactime keys init'", ErrConfig)
	}

	dc, err := enc.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking private key: %w", err)
	}
	return dc.Decrypt(r, w)
}

// FetchArtifact copies the timeline stored in the configured vault under
// name to w.
func FetchArtifact(ctx context.Context, cfg config.VaultConfig, name string, w io.Writer) error {
	if !cfg.Enabled() {
		return fmt.Errorf("%w: no vault configured", ErrConfig)
	}

	v, err := vault.NewVaultFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating vault: %w", err)
	}
	if err := v.GetArtifact(ctx, name, w); err != nil {
		return fmt.Errorf("fetching %s from vault %s: %w", name, v.Name(), err)
	}
	return nil
}
