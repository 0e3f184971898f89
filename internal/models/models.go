package models

import "time"

// Role classifies what a user may do: ops users upload documents,
// client users list and download them.
type Role string

const (
	RoleOps    Role = "ops"
	RoleClient Role = "client"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleOps || r == RoleClient
}

// Identity is a provisioned user. Immutable after startup; the password
// is only ever held as a bcrypt hash.
type Identity struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

// File represents document metadata stored in MySQL. ID is the only
// handle ever exposed to clients; MinIO object keys derive from it.
type File struct {
	ID         string    `json:"file_id"`
	Name       string    `json:"filename"`
	UploadedBy string    `json:"uploaded_by"`
	Size       int64     `json:"size"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"upload_date"`
}

// Chunk is the metadata row for one stored piece of a file.
type Chunk struct {
	ID             string `json:"id"`
	FileID         string `json:"file_id"`
	OrderIndex     int    `json:"order_index"`
	Hash           string `json:"hash"`
	MinioObjectKey string `json:"minio_object_key"`
	Size           int64  `json:"size"`
}

// ChunkData holds chunk information during upload/download
type ChunkData struct {
	Data       []byte
	OrderIndex int
	Hash       string
	Size       int64
}
