package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/priyav/docshare/internal/models"
	"github.com/priyav/docshare/internal/storage"
)

// In-memory stand-ins for the MinIO, MySQL and Redis clients. They keep
// the same semantics the handlers rely on: ErrFileNotFound from the
// metadata store, and first-caller-wins grant consumption.

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) UploadChunk(_ context.Context, objectKey string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut {
		return errors.New("minio unavailable")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	f.objects[objectKey] = buf
	return nil
}

func (f *fakeObjects) DownloadChunk(_ context.Context, objectKey string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[objectKey]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (f *fakeObjects) DeleteChunks(_ context.Context, objectKeys []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range objectKeys {
		delete(f.objects, key)
	}
}

func (f *fakeObjects) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type fakeMetadata struct {
	mu         sync.Mutex
	files      map[string]*models.File
	chunks     map[string][]*models.Chunk
	order      []string
	failCreate bool
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{
		files:  make(map[string]*models.File),
		chunks: make(map[string][]*models.Chunk),
	}
}

func (f *fakeMetadata) CreateFile(_ context.Context, file *models.File, chunks []*models.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errors.New("mysql unavailable")
	}
	f.files[file.ID] = file
	f.chunks[file.ID] = chunks
	f.order = append(f.order, file.ID)
	return nil
}

func (f *fakeMetadata) GetFile(_ context.Context, fileID string) (*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fileID]
	if !ok {
		return nil, storage.ErrFileNotFound
	}
	return file, nil
}

func (f *fakeMetadata) ListFiles(_ context.Context) ([]*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	files := make([]*models.File, 0, len(f.order))
	for _, id := range f.order {
		files = append(files, f.files[id])
	}
	return files, nil
}

func (f *fakeMetadata) GetChunks(_ context.Context, fileID string) ([]*models.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chunks[fileID], nil
}

func (f *fakeMetadata) fileCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

// fakeCache always misses, pushing every lookup through the store.
type fakeCache struct{}

func (fakeCache) GetFileMetadata(context.Context, string) (*models.File, error) { return nil, nil }
func (fakeCache) SetFileMetadata(context.Context, string, *models.File) error  { return nil }
func (fakeCache) InvalidateFileMetadata(context.Context, string) error         { return nil }

// fakeGrants mirrors the Redis SET NX semantics under a mutex.
type fakeGrants struct {
	mu   sync.Mutex
	used map[string]bool
}

func newFakeGrants() *fakeGrants {
	return &fakeGrants{used: make(map[string]bool)}
}

func (f *fakeGrants) ConsumeGrant(_ context.Context, grantID string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.used[grantID] {
		return false, nil
	}
	f.used[grantID] = true
	return true, nil
}
