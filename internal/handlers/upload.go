package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/priyav/docshare/internal/chunker"
	"github.com/priyav/docshare/internal/config"
	"github.com/priyav/docshare/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UploadHandler handles ops document uploads.
type UploadHandler struct {
	objects  ObjectStore
	metadata MetadataStore
	cache    MetadataCache
	chunker  *chunker.Chunker
	cfg      *config.Config
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(
	objects ObjectStore,
	metadata MetadataStore,
	cache MetadataCache,
	chunker *chunker.Chunker,
	cfg *config.Config,
) *UploadHandler {
	return &UploadHandler{
		objects:  objects,
		metadata: metadata,
		cache:    cache,
		chunker:  chunker,
		cfg:      cfg,
	}
}

// UploadResponse represents the response for an upload operation
type UploadResponse struct {
	FileID     string `json:"file_id"`
	FileName   string `json:"filename"`
	FileSize   int64  `json:"file_size"`
	ChunkCount int    `json:"chunk_count"`
	Message    string `json:"message"`
}

// ServeHTTP handles POST /ops/upload with a multipart "file" field.
// The file lands under its generated id, never its uploaded name, and
// metadata commits only after every chunk object is stored: a failed
// upload is invisible to listing and download.
func (uh *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, span := tracer.Start(ctx, "upload_file",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	identity := IdentityFrom(ctx)
	if identity == nil {
		http.Error(w, "could not validate credentials", http.StatusUnauthorized)
		return
	}

	part, err := filePart(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer part.Close()

	filename := filepath.Base(part.FileName())
	ext := strings.ToLower(filepath.Ext(filename))

	// Reject before reading a single content byte.
	if !uh.cfg.ExtensionAllowed(ext) {
		span.SetAttributes(attribute.String("rejected_extension", ext))
		http.Error(w, "only .pptx, .docx, .xlsx files are allowed", http.StatusBadRequest)
		return
	}

	fileID := uuid.New().String()
	span.SetAttributes(
		attribute.String("file_id", fileID),
		attribute.String("file_name", filename),
	)

	log.Printf("Uploading file: %s (ID: %s) by %s", filename, fileID, identity.Username)

	chunks, totalSize, err := uh.storeChunks(ctx, fileID, part)
	if err != nil {
		span.RecordError(err)
		log.Printf("Upload of %s failed: %v", fileID, err)
		http.Error(w, "failed to store file", http.StatusInternalServerError)
		return
	}

	file := &models.File{
		ID:         fileID,
		Name:       filename,
		UploadedBy: identity.Username,
		Size:       totalSize,
		ChunkCount: len(chunks),
		CreatedAt:  time.Now().UTC(),
	}

	if err := uh.metadata.CreateFile(ctx, file, chunks); err != nil {
		span.RecordError(err)
		log.Printf("Metadata commit for %s failed: %v", fileID, err)
		uh.cleanup(ctx, chunks)
		http.Error(w, "failed to store file", http.StatusInternalServerError)
		return
	}

	if err := uh.cache.InvalidateFileMetadata(ctx, fileID); err != nil {
		// Log error but don't fail the request
		log.Printf("Warning: failed to invalidate cache: %v", err)
	}

	span.SetAttributes(
		attribute.Int64("file_size", totalSize),
		attribute.Int("chunk_count", len(chunks)),
	)
	log.Printf("File upload completed: %s (ID: %s)", filename, fileID)

	writeJSON(w, http.StatusCreated, UploadResponse{
		FileID:     fileID,
		FileName:   filename,
		FileSize:   totalSize,
		ChunkCount: len(chunks),
		Message:    "File uploaded successfully",
	})
}

// storeChunks streams the request body into MinIO chunk by chunk. On any
// failure it sweeps the chunks already uploaded and reports the error.
func (uh *UploadHandler) storeChunks(ctx context.Context, fileID string, src io.Reader) ([]*models.Chunk, int64, error) {
	ctx, span := tracer.Start(ctx, "store_chunks")
	defer span.End()

	reader := uh.chunker.NewReader(src)

	var chunks []*models.Chunk
	var totalSize int64
	for {
		chunkData, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err == nil {
			// A dropped connection cancels the request context.
			err = ctx.Err()
		}
		if err != nil {
			uh.cleanup(ctx, chunks)
			return nil, 0, fmt.Errorf("failed to read upload stream: %w", err)
		}

		objectKey := fmt.Sprintf("chunks/%s/%d", fileID, chunkData.OrderIndex)
		if err := uh.objects.UploadChunk(ctx, objectKey, chunkData.Data); err != nil {
			uh.cleanup(ctx, chunks)
			return nil, 0, fmt.Errorf("failed to upload chunk %d: %w", chunkData.OrderIndex, err)
		}

		chunks = append(chunks, &models.Chunk{
			ID:             uuid.New().String(),
			FileID:         fileID,
			OrderIndex:     chunkData.OrderIndex,
			Hash:           chunkData.Hash,
			MinioObjectKey: objectKey,
			Size:           chunkData.Size,
		})
		totalSize += chunkData.Size
	}

	span.SetAttributes(
		attribute.Int("chunks_uploaded", len(chunks)),
		attribute.Int64("total_size", totalSize),
	)
	return chunks, totalSize, nil
}

// cleanup removes already-uploaded chunk objects after a failed upload.
// Runs detached from the request context so an aborted connection still
// gets swept.
func (uh *UploadHandler) cleanup(ctx context.Context, chunks []*models.Chunk) {
	if len(chunks) == 0 {
		return
	}
	keys := make([]string, len(chunks))
	for i, c := range chunks {
		keys[i] = c.MinioObjectKey
	}
	uh.objects.DeleteChunks(context.WithoutCancel(ctx), keys)
}

// filePart returns the "file" part of a multipart upload without
// buffering the body.
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errors.New("expected multipart form upload")
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, errors.New("missing 'file' form field")
		}
		if err != nil {
			return nil, errors.New("malformed multipart body")
		}
		if part.FormName() == "file" && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}
