// Package blobstore stores injection-site photos attached to dose records.
// It defines the PhotoStore interface, an in-memory implementation suitable
// for development and testing, and Echo HTTP handlers for multipart upload
// and download. Uploads return a URL the dose endpoints accept as photoUrl.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var (
	ErrPhotoNotFound      = errors.New("photo not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
)

// MaxFileSize is the maximum allowed photo size in bytes (10 MB).
const MaxFileSize = 10 * 1024 * 1024

// AllowedContentTypes lists accepted image MIME types.
var AllowedContentTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
	"image/heic": true,
}

// PhotoMetadata describes a stored photo.
type PhotoMetadata struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	UploadedBy  string    `json:"uploadedBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// URL returns the path the photo is served from.
func (m PhotoMetadata) URL() string {
	return "/photos/" + m.ID
}

// PhotoStore defines the contract for photo storage backends.
type PhotoStore interface {
	Upload(ctx context.Context, meta PhotoMetadata, content io.Reader) (*PhotoMetadata, error)
	Download(ctx context.Context, id string) (io.ReadCloser, *PhotoMetadata, error)
	Delete(ctx context.Context, id string) error
}

type storedPhoto struct {
	metadata PhotoMetadata
	content  []byte
}

// InMemoryPhotoStore is a thread-safe, in-memory PhotoStore.
type InMemoryPhotoStore struct {
	mu     sync.RWMutex
	photos map[string]*storedPhoto
}

func NewInMemoryPhotoStore() *InMemoryPhotoStore {
	return &InMemoryPhotoStore{photos: make(map[string]*storedPhoto)}
}

// Upload validates inputs, reads the content, computes a SHA-256 hash, and
// stores the photo in memory.
func (s *InMemoryPhotoStore) Upload(_ context.Context, meta PhotoMetadata, content io.Reader) (*PhotoMetadata, error) {
	if meta.FileName == "" {
		return nil, ErrMissingFileName
	}
	if !AllowedContentTypes[strings.ToLower(meta.ContentType)] {
		return nil, ErrInvalidContentType
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	h := sha256.Sum256(data)

	meta.ID = uuid.New().String()
	meta.Size = int64(len(data))
	meta.Hash = fmt.Sprintf("%x", h)
	meta.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	s.photos[meta.ID] = &storedPhoto{metadata: meta, content: data}
	s.mu.Unlock()

	out := meta // copy
	return &out, nil
}

func (s *InMemoryPhotoStore) Download(_ context.Context, id string) (io.ReadCloser, *PhotoMetadata, error) {
	s.mu.RLock()
	photo, ok := s.photos[id]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrPhotoNotFound
	}

	meta := photo.metadata // copy
	return io.NopCloser(bytes.NewReader(photo.content)), &meta, nil
}

func (s *InMemoryPhotoStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.photos[id]; !ok {
		return ErrPhotoNotFound
	}
	delete(s.photos, id)
	return nil
}

// PhotoHandler provides Echo HTTP handlers for photo operations.
type PhotoHandler struct {
	store PhotoStore
}

func NewPhotoHandler(store PhotoStore) *PhotoHandler {
	return &PhotoHandler{store: store}
}

// RegisterUpload mounts the upload route on the clinician API group.
func (h *PhotoHandler) RegisterUpload(g *echo.Group) {
	g.POST("/photos", h.handleUpload)
}

// RegisterDownload mounts the download route on the root server group.
func (h *PhotoHandler) RegisterDownload(g *echo.Group) {
	g.GET("/photos/:id", h.handleDownload)
}

func (h *PhotoHandler) handleUpload(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "file is required"})
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to open uploaded file"})
	}
	defer src.Close()

	meta := PhotoMetadata{
		FileName:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		UploadedBy:  c.FormValue("uploaded_by"),
	}

	result, err := h.store.Upload(c.Request().Context(), meta, src)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooLarge):
			return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrMissingFileName):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrInvalidContentType):
			return c.JSON(http.StatusUnsupportedMediaType, map[string]string{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"id":  result.ID,
		"url": result.URL(),
	})
}

func (h *PhotoHandler) handleDownload(c echo.Context) error {
	rc, meta, err := h.store.Download(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrPhotoNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, meta.FileName))
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}
