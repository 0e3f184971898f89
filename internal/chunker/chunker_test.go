package chunker

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r *Reader) ([][]byte, int64) {
	t.Helper()

	var chunks [][]byte
	var total int64
	for {
		chunk, err := r.Next()
		if err == io.EOF {
			return chunks, total
		}
		require.NoError(t, err)
		assert.True(t, VerifyChunkHash(chunk.Data, chunk.Hash))
		assert.Equal(t, len(chunks), chunk.OrderIndex)
		chunks = append(chunks, chunk.Data)
		total += chunk.Size
	}
}

func TestReader_SplitsAndRejoins(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("abcdefgh"), 100) // 800 bytes
	c := NewChunker(64)

	chunks, total := readAll(t, c.NewReader(bytes.NewReader(data)))
	require.Len(t, chunks, 13) // 12 full chunks + 32-byte tail
	assert.Equal(t, int64(len(data)), total)

	var rejoined []byte
	for _, chunk := range chunks {
		rejoined = append(rejoined, chunk...)
	}
	assert.Equal(t, data, rejoined)
}

func TestReader_ExactMultiple(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte{0x42}, 128)
	chunks, total := readAll(t, NewChunker(64).NewReader(bytes.NewReader(data)))
	assert.Len(t, chunks, 2)
	assert.Equal(t, int64(128), total)
}

func TestReader_EmptyStream(t *testing.T) {
	t.Parallel()

	chunks, total := readAll(t, NewChunker(64).NewReader(bytes.NewReader(nil)))
	assert.Empty(t, chunks)
	assert.Zero(t, total)
}

func TestReader_SmallerThanChunk(t *testing.T) {
	t.Parallel()

	chunks, total := readAll(t, NewChunker(64).NewReader(bytes.NewReader([]byte("hi"))))
	require.Len(t, chunks, 1)
	assert.Equal(t, []byte("hi"), chunks[0])
	assert.Equal(t, int64(2), total)
}

func TestVerifyChunkHash(t *testing.T) {
	t.Parallel()

	data := []byte("payload")
	hash := ComputeHash(data)
	assert.True(t, VerifyChunkHash(data, hash))
	assert.False(t, VerifyChunkHash([]byte("tampered"), hash))
}
