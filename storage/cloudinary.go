// Package storage stores applicant documents. The contract is deliberately
// thin: store bytes, hand back a URL, delete on demand. The submission
// pipeline relies on Destroy for compensating cleanup when a record fails to
// persist after its file was staged.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Uploader stages and deletes applicant documents.
type Uploader interface {
	Upload(ctx context.Context, file io.Reader, publicID string) (string, error)
	Destroy(ctx context.Context, publicID string) error
}

// CloudinaryUploader stores documents in Cloudinary as raw assets.
type CloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryUploader creates an uploader from a CLOUDINARY_URL style URL.
func NewCloudinaryUploader(cloudinaryURL, folder string) (*CloudinaryUploader, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary client: %w", err)
	}
	return &CloudinaryUploader{cld: cld, folder: folder}, nil
}

// Upload implements Uploader.
func (u *CloudinaryUploader) Upload(ctx context.Context, file io.Reader, publicID string) (string, error) {
	resp, err := u.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		PublicID:     publicID,
		Folder:       u.folder,
		ResourceType: "raw",
	})
	if err != nil {
		return "", err
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload failed: %s", resp.Error.Message)
	}
	return resp.SecureURL, nil
}

// Destroy implements Uploader.
func (u *CloudinaryUploader) Destroy(ctx context.Context, publicID string) error {
	resp, err := u.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: "raw",
	})
	if err != nil {
		return err
	}
	if resp.Result != "ok" && resp.Result != "not found" {
		return fmt.Errorf("cloudinary destroy returned %q", resp.Result)
	}
	return nil
}
