package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryVault keeps artifacts in memory. Safe for concurrent use.
type MemoryVault struct {
	name      string
	artifacts map[string][]byte
	mu        sync.RWMutex
}

var _ Vault = (*MemoryVault)(nil)

func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:      name,
		artifacts: make(map[string][]byte),
	}
}

func (m *MemoryVault) Name() string { return m.name }

func (m *MemoryVault) PutArtifact(_ context.Context, name string, r io.Reader, size int64) error {
	if err := ValidateArtifactName(name); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}
	if err := checkSize(size, int64(len(data))); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[name] = data
	return nil
}

func (m *MemoryVault) GetArtifact(_ context.Context, name string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.artifacts[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

// Names returns the stored artifact names in no particular order.
func (m *MemoryVault) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.artifacts))
	for name := range m.artifacts {
		names = append(names, name)
	}
	return names
}

// ValidateSetup always succeeds for an in-memory vault.
func (m *MemoryVault) ValidateSetup(context.Context) error {
	return nil
}
