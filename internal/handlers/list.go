package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/priyav/docshare/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ListHandler handles client file listing.
type ListHandler struct {
	metadata MetadataStore
}

// NewListHandler creates a new list handler
func NewListHandler(metadata MetadataStore) *ListHandler {
	return &ListHandler{metadata: metadata}
}

// ListedFile is one row of the listing. Internal fields like chunk
// layout stay out of the client view.
type ListedFile struct {
	FileID     string    `json:"file_id"`
	Filename   string    `json:"filename"`
	UploadedBy string    `json:"uploaded_by"`
	UploadDate time.Time `json:"upload_date"`
	Size       int64     `json:"size"`
}

// ServeHTTP handles GET /client/files.
func (lh *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, span := tracer.Start(ctx, "list_files",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	files, err := lh.metadata.ListFiles(ctx)
	if err != nil {
		span.RecordError(err)
		log.Printf("Listing failed: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	listed := make([]ListedFile, 0, len(files))
	for _, f := range files {
		listed = append(listed, listedFrom(f))
	}

	span.SetAttributes(attribute.Int("file_count", len(listed)))
	writeJSON(w, http.StatusOK, listed)
}

func listedFrom(f *models.File) ListedFile {
	return ListedFile{
		FileID:     f.ID,
		Filename:   f.Name,
		UploadedBy: f.UploadedBy,
		UploadDate: f.CreatedAt,
		Size:       f.Size,
	}
}
