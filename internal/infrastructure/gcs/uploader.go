package gcs

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"account-api/internal/application"
	"account-api/pkg/helpers"
)

// Uploader stores media objects in a GCS bucket. Object names are
// <folder>/<ownerID>/<uuid><ext>; the object path doubles as the durable
// asset id so the remote object can be addressed later.
type Uploader struct {
	Client *storage.Client
	Bucket string
}

func NewUploader(client *storage.Client, bucket string) *Uploader {
	return &Uploader{Client: client, Bucket: bucket}
}

func (u *Uploader) Upload(ctx context.Context, folder, ownerID, filename, contentType string, r io.Reader) (*application.Asset, error) {
	if u.Client == nil || u.Bucket == "" {
		return nil, errors.New("gcs not configured")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join(folder, ownerID, uuid.NewString()+ext))
	url, err := helpers.UploadObject(ctx, u.Client, u.Bucket, objectPath, contentType, r)
	if err != nil {
		return nil, err
	}
	return &application.Asset{URL: url, AssetID: objectPath}, nil
}

var _ application.MediaUploader = (*Uploader)(nil)
