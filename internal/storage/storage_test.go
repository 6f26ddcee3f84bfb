package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cleanupghent/cleanup-backend/internal/config"
	"github.com/google/uuid"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		contentType string
		wantKind    string
		wantExt     string
		wantErr     bool
	}{
		{"image/jpeg", KindImage, ".jpg", false},
		{"IMAGE/PNG", KindImage, ".png", false},
		{"video/mp4; codecs=avc1", KindVideo, ".mp4", false},
		{"video/quicktime", KindVideo, ".mov", false},
		{"application/pdf", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			kind, ext, err := Classify(tt.contentType)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedType) {
					t.Errorf("err = %v, want ErrUnsupportedType", err)
				}
				return
			}
			if err != nil || kind != tt.wantKind || ext != tt.wantExt {
				t.Errorf("Classify = %q %q %v", kind, ext, err)
			}
		})
	}
}

func TestLocalBackendPut(t *testing.T) {
	dir := t.TempDir()
	b := NewLocalBackend(dir, "http://localhost:8080/uploads")
	key := ObjectKey(uuid.New(), ".jpg")

	url, err := b.Put(context.Background(), key, "image/jpeg", strings.NewReader("jpeg-bytes"), 10)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "http://localhost:8080/uploads/"+key {
		t.Errorf("url = %s", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("stored %q", data)
	}
}

func TestLocalBackendCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := NewLocalBackend(t.TempDir(), "")
	if _, err := b.Put(ctx, "k.jpg", "image/jpeg", strings.NewReader("x"), 1); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestNewSelectsDriver(t *testing.T) {
	if _, err := New(&config.Config{StorageDriver: "local", UploadDir: t.TempDir()}); err != nil {
		t.Errorf("local: %v", err)
	}
	if _, err := New(&config.Config{StorageDriver: "s3"}); err == nil {
		t.Error("s3 without bucket should fail")
	}
	if _, err := New(&config.Config{StorageDriver: "cloudinary"}); err == nil {
		t.Error("cloudinary without credentials should fail")
	}
	if _, err := New(&config.Config{StorageDriver: "ftp"}); err == nil {
		t.Error("unknown driver should fail")
	}
}
