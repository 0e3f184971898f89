package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/priyav/docshare/internal/models"
)

// Chunker splits an incoming byte stream into fixed-size chunks. Chunks
// are produced one at a time so an upload never buffers the whole file.
type Chunker struct {
	chunkSize int64
}

// NewChunker creates a new chunker with the specified chunk size
func NewChunker(chunkSize int64) *Chunker {
	return &Chunker{
		chunkSize: chunkSize,
	}
}

// Reader yields successive chunks of a stream via Next.
type Reader struct {
	src       io.Reader
	chunkSize int64
	index     int
	done      bool
}

// NewReader wraps src for chunk-at-a-time consumption.
func (c *Chunker) NewReader(src io.Reader) *Reader {
	return &Reader{src: src, chunkSize: c.chunkSize}
}

// Next returns the next chunk of the stream, hashed and numbered.
// It returns io.EOF after the final chunk. A zero-length stream yields
// io.EOF immediately (zero chunks is a valid file).
func (r *Reader) Next() (*models.ChunkData, error) {
	if r.done {
		return nil, io.EOF
	}

	buffer := make([]byte, r.chunkSize)
	n, err := io.ReadFull(r.src, buffer)

	switch {
	case err == io.EOF:
		r.done = true
		return nil, io.EOF
	case err == io.ErrUnexpectedEOF:
		r.done = true
	case err != nil:
		return nil, fmt.Errorf("error reading chunk: %w", err)
	}

	data := buffer[:n]
	chunk := &models.ChunkData{
		Data:       data,
		OrderIndex: r.index,
		Hash:       ComputeHash(data),
		Size:       int64(n),
	}
	r.index++
	return chunk, nil
}

// ComputeHash computes SHA256 hash of data
func ComputeHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// VerifyChunkHash verifies that chunk data matches the expected hash
func VerifyChunkHash(data []byte, expectedHash string) bool {
	actualHash := ComputeHash(data)
	return actualHash == expectedHash
}
