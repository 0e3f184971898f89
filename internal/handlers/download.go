package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/priyav/docshare/internal/auth"
	"github.com/priyav/docshare/internal/chunker"
	"github.com/priyav/docshare/internal/models"
	"github.com/priyav/docshare/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// fetchWindow bounds how many chunks are fetched in parallel and held
// in memory per download.
const fetchWindow = 4

// GrantVerifier checks a presented download grant. Satisfied by auth.Tokens.
type GrantVerifier interface {
	ParseDownloadGrant(token string) (*auth.GrantClaims, error)
}

// DownloadHandler redeems download grants. It is the only data route
// with no session gate: the grant itself is the credential.
type DownloadHandler struct {
	verifier GrantVerifier
	grants   GrantStore
	objects  ObjectStore
	metadata MetadataStore
	cache    MetadataCache
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(
	verifier GrantVerifier,
	grants GrantStore,
	objects ObjectStore,
	metadata MetadataStore,
	cache MetadataCache,
) *DownloadHandler {
	return &DownloadHandler{
		verifier: verifier,
		grants:   grants,
		objects:  objects,
		metadata: metadata,
		cache:    cache,
	}
}

// ServeHTTP handles GET /download-file/{token}. Verification order:
// signature and expiry first, then atomic single-use consumption, then
// file resolution. A grant whose file is gone fails closed with 404.
func (dh *DownloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, span := tracer.Start(ctx, "redeem_grant",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	claims, err := dh.verifier.ParseDownloadGrant(mux.Vars(r)["token"])
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrGrantExpired):
			log.Printf("Rejected expired download grant")
			http.Error(w, "download link expired", http.StatusGone)
		default:
			log.Printf("Rejected download grant: %v", err)
			http.Error(w, "invalid download link", http.StatusNotFound)
		}
		return
	}

	span.SetAttributes(
		attribute.String("grant_id", claims.ID),
		attribute.String("file_id", claims.FileID),
		attribute.Bool("single_use", claims.SingleUse),
	)

	if claims.SingleUse {
		won, err := dh.grants.ConsumeGrant(ctx, claims.ID, time.Until(claims.ExpiresAt.Time))
		if err != nil {
			span.RecordError(err)
			log.Printf("Grant consumption failed for %s: %v", claims.ID, err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if !won {
			log.Printf("Rejected already-used download grant %s", claims.ID)
			http.Error(w, "download link already used", http.StatusConflict)
			return
		}
	}

	file, err := resolveFile(ctx, dh.cache, dh.metadata, claims.FileID)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			// Dangling grant: never serve a different file.
			log.Printf("Grant %s references missing file %s", claims.ID, claims.FileID)
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		span.RecordError(err)
		log.Printf("File lookup failed for %s: %v", claims.FileID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	chunks, err := dh.metadata.GetChunks(ctx, file.ID)
	if err != nil {
		span.RecordError(err)
		log.Printf("Chunk lookup failed for %s: %v", file.ID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	span.SetAttributes(
		attribute.String("file_name", file.Name),
		attribute.Int64("file_size", file.Size),
		attribute.Int("chunk_count", len(chunks)),
	)

	w.Header().Set("Content-Type", contentTypeFor(strings.ToLower(filepath.Ext(file.Name))))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", file.Size))
	w.WriteHeader(http.StatusOK)

	if err := dh.streamChunks(ctx, w, chunks); err != nil {
		// Headers are gone; all we can do is drop the connection.
		span.RecordError(err)
		log.Printf("Streaming %s aborted: %v", file.ID, err)
		return
	}

	log.Printf("Served file %s (%s) via grant %s", file.ID, file.Name, claims.ID)
}

// streamChunks writes chunks to the response in order, fetching up to
// fetchWindow of them from MinIO in parallel. Memory use is bounded by
// the window, so one large download cannot crowd out other requests.
func (dh *DownloadHandler) streamChunks(ctx context.Context, w http.ResponseWriter, chunks []*models.Chunk) error {
	ctx, span := tracer.Start(ctx, "stream_chunks",
		trace.WithAttributes(
			attribute.Int("chunk_count", len(chunks)),
		),
	)
	defer span.End()

	for start := 0; start < len(chunks); start += fetchWindow {
		end := start + fetchWindow
		if end > len(chunks) {
			end = len(chunks)
		}

		window, err := dh.fetchWindowParallel(ctx, chunks[start:end], start)
		if err != nil {
			return err
		}

		for i, data := range window {
			if _, err := w.Write(data); err != nil {
				return fmt.Errorf("failed to write chunk %d: %w", start+i, err)
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	span.SetAttributes(attribute.Bool("all_chunks_streamed", true))
	return nil
}

// fetchWindowParallel downloads one window of chunks concurrently,
// verifying each against its stored hash.
func (dh *DownloadHandler) fetchWindowParallel(ctx context.Context, window []*models.Chunk, offset int) ([][]byte, error) {
	ctx, span := tracer.Start(ctx, "fetch_chunks_parallel",
		trace.WithAttributes(
			attribute.Int("window_size", len(window)),
			attribute.Int("window_offset", offset),
		),
	)
	defer span.End()

	data := make([][]byte, len(window))
	var wg sync.WaitGroup
	errChan := make(chan error, len(window))

	for i, meta := range window {
		wg.Add(1)
		go func(idx int, chunkMeta *models.Chunk) {
			defer wg.Done()

			_, chunkSpan := tracer.Start(ctx, fmt.Sprintf("download_chunk_%d", offset+idx),
				trace.WithAttributes(
					attribute.Int("chunk_index", offset+idx),
					attribute.String("object_key", chunkMeta.MinioObjectKey),
					attribute.Int64("chunk_size", chunkMeta.Size),
				),
			)
			defer chunkSpan.End()

			chunkData, err := dh.objects.DownloadChunk(ctx, chunkMeta.MinioObjectKey)
			if err != nil {
				chunkSpan.RecordError(err)
				errChan <- fmt.Errorf("failed to download chunk %d: %w", offset+idx, err)
				return
			}

			if !chunker.VerifyChunkHash(chunkData, chunkMeta.Hash) {
				err := fmt.Errorf("hash mismatch for chunk %d", offset+idx)
				chunkSpan.RecordError(err)
				errChan <- err
				return
			}

			data[idx] = chunkData
		}(i, meta)
	}

	wg.Wait()
	close(errChan)

	if err := <-errChan; err != nil {
		span.RecordError(err)
		return nil, err
	}
	return data, nil
}
