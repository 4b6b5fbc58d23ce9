package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

// Storage keeps archived upload originals.
type Storage interface {
	Save(ctx context.Context, key string, reader io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	GetSize(ctx context.Context, key string) (int64, error)
}

type Config struct {
	Type      string // local, cloudflare_r2
	BasePath  string
	BaseURL   string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

func NewStorage(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStorage(cfg.BasePath, cfg.BaseURL)
	case "cloudflare_r2":
		return NewCloudflareR2Storage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// ArchiveKey is where an upload's original lives once OCR succeeded.
func ArchiveKey(userID, fileID, ext string) string {
	return fmt.Sprintf("ocr/%s/%s%s", userID, fileID, ext)
}
