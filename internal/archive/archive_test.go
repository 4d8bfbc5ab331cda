package archive

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/lexibloom/lexibloom/internal/database"
)

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data := f.objects[*input.Key]
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestArchiveNowAndFetch(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fake := &fakeS3{}
	m := NewManager(Config{
		S3:         S3Config{Bucket: "archives"},
		Passphrase: "test-passphrase",
		Interval:   time.Hour,
	}, db, slog.Default())
	m.client = fake
	m.status.Enabled = true

	if err := m.ArchiveNow(context.Background()); err != nil {
		t.Fatalf("archive: %v", err)
	}

	status := m.Status()
	if status.LastArchive == nil || status.LastKey == "" {
		t.Fatalf("status not updated: %+v", status)
	}
	if status.Error != "" {
		t.Errorf("status error = %q, want empty", status.Error)
	}

	sealed := fake.objects[status.LastKey]
	if len(sealed) == 0 {
		t.Fatal("no object uploaded")
	}
	// The uploaded snapshot must not be a readable SQLite file.
	if bytes.HasPrefix(sealed, []byte("SQLite format 3")) {
		t.Error("uploaded snapshot is not encrypted")
	}

	plaintext, err := m.Fetch(context.Background(), status.LastKey)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !bytes.HasPrefix(plaintext, []byte("SQLite format 3")) {
		t.Error("fetched snapshot is not a SQLite database")
	}
}

func TestManagerDisabledWithoutConfig(t *testing.T) {
	m := NewManager(Config{}, nil, slog.Default())
	if m.Enabled() {
		t.Error("manager with empty config should be disabled")
	}
	if err := m.ArchiveNow(context.Background()); err == nil {
		t.Error("archive on a disabled manager should fail")
	}
}
