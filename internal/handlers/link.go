package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/priyav/docshare/internal/auth"
	"github.com/priyav/docshare/internal/models"
	"github.com/priyav/docshare/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GrantIssuer mints download grants. Satisfied by auth.Tokens.
type GrantIssuer interface {
	NewDownloadGrant(fileID string, role models.Role) (string, *auth.GrantClaims, error)
}

// LinkHandler issues short-lived download links to clients.
type LinkHandler struct {
	grants   GrantIssuer
	metadata MetadataStore
	cache    MetadataCache
}

// NewLinkHandler creates a new link handler
func NewLinkHandler(grants GrantIssuer, metadata MetadataStore, cache MetadataCache) *LinkHandler {
	return &LinkHandler{grants: grants, metadata: metadata, cache: cache}
}

// LinkResponse carries the opaque download link and its expiry. The
// link works without a session; anyone holding it within the TTL can
// fetch exactly this one file.
type LinkResponse struct {
	DownloadLink string    `json:"download_link"`
	ExpiresAt    time.Time `json:"expires_at"`
	SingleUse    bool      `json:"single_use"`
}

// ServeHTTP handles GET /client/download/{file_id}.
func (lh *LinkHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, span := tracer.Start(ctx, "issue_link",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	identity := IdentityFrom(ctx)
	if identity == nil {
		http.Error(w, "could not validate credentials", http.StatusUnauthorized)
		return
	}

	fileID := mux.Vars(r)["file_id"]
	if fileID == "" {
		http.Error(w, "missing file_id in path", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("file_id", fileID))

	if _, err := resolveFile(ctx, lh.cache, lh.metadata, fileID); err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		span.RecordError(err)
		log.Printf("Link issuance lookup failed for %s: %v", fileID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	token, claims, err := lh.grants.NewDownloadGrant(fileID, identity.Role)
	if err != nil {
		span.RecordError(err)
		log.Printf("Failed to mint grant for %s: %v", fileID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.String("grant_id", claims.ID))
	log.Printf("Issued download link for file %s to %s (grant %s)", fileID, identity.Username, claims.ID)

	writeJSON(w, http.StatusOK, LinkResponse{
		DownloadLink: "/download-file/" + token,
		ExpiresAt:    claims.ExpiresAt.Time,
		SingleUse:    claims.SingleUse,
	})
}
