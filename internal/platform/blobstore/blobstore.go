// Package blobstore stores uploaded files (X-ray images, audio chunks) under
// server-generated names. Client file names only contribute their extension.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBlobNotFound    = errors.New("blob not found")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrMissingFileName = errors.New("file name is required")
	ErrInvalidCategory = errors.New("invalid blob category")
)

// Categories used by the application. Each maps to a subdirectory.
const (
	CategoryXRay  = "xray"
	CategoryAudio = "audio"
)

var categoryPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// BlobMetadata describes a stored blob. ID is the stored file name.
type BlobMetadata struct {
	ID           string    `json:"id"`
	Category     string    `json:"category"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	Hash         string    `json:"hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// BlobStore defines the contract for blob storage backends.
type BlobStore interface {
	Save(ctx context.Context, category, fileName string, content io.Reader) (*BlobMetadata, error)
	Open(ctx context.Context, category, id string) (io.ReadCloser, error)
	Delete(ctx context.Context, category, id string) error
}

// newMetadata validates the inputs and assigns the generated name.
func newMetadata(category, fileName string) (BlobMetadata, error) {
	if !categoryPattern.MatchString(category) {
		return BlobMetadata{}, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	base := filepath.Base(fileName)
	if fileName == "" || base == "." || base == "/" {
		return BlobMetadata{}, ErrMissingFileName
	}
	return BlobMetadata{
		ID:           uuid.NewString() + Ext(base),
		Category:     category,
		OriginalName: base,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Ext returns the lower-cased extension of name, or "" if it has none or it
// contains anything but letters and digits.
func Ext(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// validID guards Open and Delete against names that could escape the category
// directory.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}

// ---------------------------------------------------------------------------
// Disk implementation
// ---------------------------------------------------------------------------

// DiskStore writes blobs to <root>/<category>/<uuid><ext>.
type DiskStore struct {
	root    string
	maxSize int64
}

// NewDiskStore creates root if needed. maxSize <= 0 disables the size check.
func NewDiskStore(root string, maxSize int64) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create upload directory %s: %w", root, err)
	}
	return &DiskStore{root: root, maxSize: maxSize}, nil
}

// Path returns where a blob lives on disk.
func (s *DiskStore) Path(category, id string) string {
	return filepath.Join(s.root, category, id)
}

func (s *DiskStore) Save(_ context.Context, category, fileName string, content io.Reader) (*BlobMetadata, error) {
	meta, err := newMetadata(category, fileName)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(s.root, category)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create %s directory: %w", category, err)
	}

	path := filepath.Join(dir, meta.ID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("create blob file: %w", err)
	}

	h := sha256.New()
	src := content
	if s.maxSize > 0 {
		src = io.LimitReader(content, s.maxSize+1)
	}
	n, err := io.Copy(io.MultiWriter(f, h), src)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && s.maxSize > 0 && n > s.maxSize {
		err = ErrFileTooLarge
	}
	if err != nil {
		os.Remove(path)
		if errors.Is(err, ErrFileTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("write blob: %w", err)
	}

	meta.Size = n
	meta.Hash = fmt.Sprintf("%x", h.Sum(nil))
	return &meta, nil
}

func (s *DiskStore) Open(_ context.Context, category, id string) (io.ReadCloser, error) {
	if !validID(id) {
		return nil, ErrBlobNotFound
	}
	f, err := os.Open(s.Path(category, id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

func (s *DiskStore) Delete(_ context.Context, category, id string) error {
	if !validID(id) {
		return ErrBlobNotFound
	}
	err := os.Remove(s.Path(category, id))
	if errors.Is(err, os.ErrNotExist) {
		return ErrBlobNotFound
	}
	if err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedBlob struct {
	metadata BlobMetadata
	content  []byte
}

// InMemoryBlobStore is a thread-safe, in-memory BlobStore for tests.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob // category/id -> blob
}

func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{blobs: make(map[string]*storedBlob)}
}

func (s *InMemoryBlobStore) Save(_ context.Context, category, fileName string, content io.Reader) (*BlobMetadata, error) {
	meta, err := newMetadata(category, fileName)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}

	h := sha256.Sum256(data)
	meta.Size = int64(len(data))
	meta.Hash = fmt.Sprintf("%x", h)

	s.mu.Lock()
	s.blobs[category+"/"+meta.ID] = &storedBlob{metadata: meta, content: data}
	s.mu.Unlock()

	out := meta
	return &out, nil
}

func (s *InMemoryBlobStore) Open(_ context.Context, category, id string) (io.ReadCloser, error) {
	s.mu.RLock()
	blob, ok := s.blobs[category+"/"+id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(blob.content)), nil
}

func (s *InMemoryBlobStore) Delete(_ context.Context, category, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := category + "/" + id
	if _, ok := s.blobs[key]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, key)
	return nil
}

// Count returns the number of stored blobs.
func (s *InMemoryBlobStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
