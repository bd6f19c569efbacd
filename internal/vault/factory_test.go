package vault

import (
	"context"
	"testing"

	"mactime-go/internal/config"
)

func TestNewVaultFromConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     config.VaultConfig
		wantErr bool
	}{
		{name: "memory", cfg: config.VaultConfig{Type: "memory", Name: "m"}},
		{name: "filesystem", cfg: config.VaultConfig{Type: "filesystem", Name: "fs", FSVaultRoot: t.TempDir()}},
		{name: "filesystem without root", cfg: config.VaultConfig{Type: "filesystem", Name: "fs"}, wantErr: true},
		{name: "s3 without bucket", cfg: config.VaultConfig{Type: "s3", Name: "s3"}, wantErr: true},
		{name: "unknown", cfg: config.VaultConfig{Type: "ftp"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewVaultFromConfig(ctx, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewVaultFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && v.Name() != tt.cfg.Name {
				t.Errorf("Name() = %q, want %q", v.Name(), tt.cfg.Name)
			}
		})
	}
}

func TestNewVaultFromConfig_S3(t *testing.T) {
	t.Setenv(EnvS3AccessKey, "minio")
	t.Setenv(EnvS3SecretKey, "minio-secret")

	v, err := NewVaultFromConfig(context.Background(), config.VaultConfig{
		Type:       "s3",
		Name:       "minio",
		S3Bucket:   "evidence",
		S3Prefix:   "timelines",
		S3Region:   "us-east-1",
		S3Endpoint: "http://127.0.0.1:9000",
	})
	if err != nil {
		t.Fatalf("NewVaultFromConfig() error = %v", err)
	}

	s3v, ok := v.(*S3Vault)
	if !ok {
		t.Fatalf("NewVaultFromConfig() = %T, want *S3Vault", v)
	}
	if s3v.Key("t.txt") != "timelines/t.txt" {
		t.Errorf("Key() = %q, want %q", s3v.Key("t.txt"), "timelines/t.txt")
	}
}
