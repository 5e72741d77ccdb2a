package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/drivetest-backend/internal/storage"
)

// Sentinel errors for media uploads.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
)

// Allowed image MIME types.
var allowedMIMETypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// MediaService stores question and answer images.
type MediaService struct {
	store    storage.ObjectStore
	maxBytes int64
	now      func() time.Time
}

// NewMediaService creates a new MediaService.
func NewMediaService(store storage.ObjectStore, maxBytes int64) *MediaService {
	return &MediaService{store: store, maxBytes: maxBytes, now: time.Now}
}

// SaveUpload validates an uploaded image and stores it under a fresh key
// grouped by month. Returns the URL of the stored object.
func (s *MediaService) SaveUpload(ctx context.Context, file multipart.File, header *multipart.FileHeader) (string, error) {
	contentType := header.Header.Get("Content-Type")
	ext, ok := allowedMIMETypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s (allowed: %s)",
			ErrUnsupportedFileType, contentType, strings.Join(allowedTypes(), ", "))
	}

	if header.Size > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, header.Size, s.maxBytes)
	}

	key := path.Join("questions", s.now().UTC().Format("2006-01"), uuid.New().String()+ext)
	url, err := s.store.Put(ctx, key, file, header.Size, contentType)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return url, nil
}

// MaxBytes is the largest accepted image.
func (s *MediaService) MaxBytes() int64 { return s.maxBytes }

func allowedTypes() []string {
	types := make([]string, 0, len(allowedMIMETypes))
	for t := range allowedMIMETypes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
