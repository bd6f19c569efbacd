package vault

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 serves single-part uploads and downloads from memory. Multipart
// calls are left to the embedded nil interface and would panic.
type fakeS3 struct {
	S3Client

	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
}

func newFakeS3(buckets ...string) *fakeS3 {
	f := &fakeS3{buckets: make(map[string]bool), objects: make(map[string][]byte)}
	for _, b := range buckets {
		f.buckets[b] = true
	}
	return f
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.buckets[*in.Bucket] {
		return nil, &types.NoSuchBucket{}
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.buckets[*in.Bucket] {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestS3Vault_Key(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "", want: "t.csv"},
		{prefix: "timelines", want: "timelines/t.csv"},
		{prefix: "cases/42/", want: "cases/42/t.csv"},
	}

	for _, tt := range tests {
		v := NewS3VaultWithClient("s3", "bucket", tt.prefix, newFakeS3())
		if got := v.Key("t.csv"); got != tt.want {
			t.Errorf("Key() with prefix %q = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestS3Vault_StoresUnderPrefix(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3("evidence")
	v := NewS3VaultWithClient("s3", "evidence", "cases/42", client)

	if err := v.PutArtifact(ctx, "timeline.txt", bytes.NewReader([]byte("line\n")), 5); err != nil {
		t.Fatalf("PutArtifact() error = %v", err)
	}

	if got := string(client.objects["evidence/cases/42/timeline.txt"]); got != "line\n" {
		t.Errorf("object content = %q, want %q", got, "line\n")
	}
}

func TestS3Vault_ValidateSetup(t *testing.T) {
	ctx := context.Background()

	if err := NewS3VaultWithClient("s3", "evidence", "", newFakeS3("evidence")).ValidateSetup(ctx); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
	if err := NewS3VaultWithClient("s3", "missing", "", newFakeS3("evidence")).ValidateSetup(ctx); err == nil {
		t.Error("ValidateSetup() expected error for missing bucket")
	}
	if err := NewS3VaultWithClient("s3", "", "", newFakeS3()).ValidateSetup(ctx); err == nil {
		t.Error("ValidateSetup() expected error for empty bucket name")
	}
}
