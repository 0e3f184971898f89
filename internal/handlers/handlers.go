package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/priyav/docshare/internal/models"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("docshare-handlers")

// ObjectStore is the chunk-level object storage the handlers write to
// and read from. Satisfied by storage.MinioClient.
type ObjectStore interface {
	UploadChunk(ctx context.Context, objectKey string, data []byte) error
	DownloadChunk(ctx context.Context, objectKey string) ([]byte, error)
	DeleteChunks(ctx context.Context, objectKeys []string)
}

// MetadataStore is the durable file/chunk metadata store. Satisfied by
// storage.MySQLClient.
type MetadataStore interface {
	CreateFile(ctx context.Context, file *models.File, chunks []*models.Chunk) error
	GetFile(ctx context.Context, fileID string) (*models.File, error)
	ListFiles(ctx context.Context) ([]*models.File, error)
	GetChunks(ctx context.Context, fileID string) ([]*models.Chunk, error)
}

// MetadataCache is the read-through cache in front of MetadataStore.
// Satisfied by storage.RedisClient.
type MetadataCache interface {
	GetFileMetadata(ctx context.Context, fileID string) (*models.File, error)
	SetFileMetadata(ctx context.Context, fileID string, file *models.File) error
	InvalidateFileMetadata(ctx context.Context, fileID string) error
}

// GrantStore claims single-use download grants. Exactly one concurrent
// caller per grant id may ever see true. Satisfied by storage.RedisClient.
type GrantStore interface {
	ConsumeGrant(ctx context.Context, grantID string, ttl time.Duration) (bool, error)
}

// contentTypeByExt maps the allow-listed extensions to their MIME types
// for download responses.
var contentTypeByExt = map[string]string{
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

func contentTypeFor(ext string) string {
	if ct, ok := contentTypeByExt[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// resolveFile looks a file up through the cache, falling back to the
// metadata store and repopulating the cache on a miss. A missing file
// surfaces as storage.ErrFileNotFound from the store.
func resolveFile(ctx context.Context, cache MetadataCache, store MetadataStore, fileID string) (*models.File, error) {
	file, err := cache.GetFileMetadata(ctx, fileID)
	if err != nil {
		log.Printf("Warning: cache lookup failed for file %s: %v", fileID, err)
	}
	if file != nil {
		return file, nil
	}

	file, err = store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if err := cache.SetFileMetadata(ctx, fileID, file); err != nil {
		log.Printf("Warning: failed to update cache: %v", err)
	}
	return file, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
