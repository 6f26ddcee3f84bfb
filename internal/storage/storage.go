// Package storage persists report media (photos and short videos) and
// returns the public URL stored on the report row.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cleanupghent/cleanup-backend/internal/config"
	"github.com/google/uuid"
)

const (
	KindImage = "image"
	KindVideo = "video"
)

var (
	ErrUnsupportedType = errors.New("unsupported media type")
	ErrFileTooLarge    = errors.New("file size exceeds maximum allowed")
)

type mediaType struct {
	kind string
	ext  string
}

var allowedMediaTypes = map[string]mediaType{
	"image/jpeg":      {KindImage, ".jpg"},
	"image/png":       {KindImage, ".png"},
	"image/heic":      {KindImage, ".heic"},
	"image/webp":      {KindImage, ".webp"},
	"video/mp4":       {KindVideo, ".mp4"},
	"video/quicktime": {KindVideo, ".mov"},
}

// Classify maps a Content-Type to its media kind and file extension.
func Classify(contentType string) (kind, ext string, err error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	mt, ok := allowedMediaTypes[ct]
	if !ok {
		return "", "", ErrUnsupportedType
	}
	return mt.kind, mt.ext, nil
}

// ObjectKey places media under reports/<user>/<random><ext>.
func ObjectKey(userID uuid.UUID, ext string) string {
	return fmt.Sprintf("reports/%s/%s%s", userID, uuid.New(), ext)
}

type Backend interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// New selects the backend named by STORAGE_DRIVER.
func New(cfg *config.Config) (Backend, error) {
	switch cfg.StorageDriver {
	case "s3":
		return NewS3Backend(S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicURL:       cfg.S3PublicURL,
		})
	case "cloudinary":
		return NewCloudinaryBackend(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	case "local", "":
		return NewLocalBackend(cfg.UploadDir, strings.TrimRight(cfg.PublicBaseURL, "/")+"/uploads"), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
