package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const cloudinaryFolder = "trash-images"

type CloudinaryBackend struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryBackend(cloudName, apiKey, apiSecret string) (*CloudinaryBackend, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, errors.New("cloudinary configuration is missing")
	}

	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	return &CloudinaryBackend{cld: cld}, nil
}

func (b *CloudinaryBackend) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	resourceType := "image"
	if strings.HasPrefix(contentType, "video/") {
		resourceType = "video"
	}

	// Cloudinary appends its own extension.
	publicID := strings.TrimSuffix(key, path.Ext(key))

	result, err := b.cld.Upload.Upload(ctx, body, uploader.UploadParams{
		PublicID:     publicID,
		Folder:       cloudinaryFolder,
		ResourceType: resourceType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to cloudinary: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected upload: %s", result.Error.Message)
	}
	return result.SecureURL, nil
}
