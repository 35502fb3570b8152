package model

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// Chunk represents a sentence-aligned fragment of a document.
// The ID is the hex SHA1 of the chunk text, so re-ingesting the
// same corpus merges into the same nodes.
type Chunk struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	Position      int    `json:"position"`
	Length        int    `json:"length"`
	FileName      string `json:"file_name"`
	PreviousID    string `json:"previous_id"`
	ContentOffset int    `json:"content_offset"`
	Tokens        int    `json:"tokens"`
}

// ChunkID returns the hex SHA1 of the UTF-8 bytes of text.
func ChunkID(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// NewChunks converts token chunks into Chunk records with positions,
// content offsets and the previous chunk id filled in.
func NewChunks(fileName string, tokenChunks [][]string) []*Chunk {
	chunks := make([]*Chunk, 0, len(tokenChunks))
	previousID := ""
	offset := 0
	for i, tokens := range tokenChunks {
		text := strings.Join(tokens, "")
		if i > 0 {
			offset += len(chunks[i-1].Text)
		}
		chunk := &Chunk{
			ID:            ChunkID(text),
			Text:          text,
			Position:      i + 1,
			Length:        len(text),
			FileName:      fileName,
			PreviousID:    previousID,
			ContentOffset: offset,
			Tokens:        len(tokens),
		}
		chunks = append(chunks, chunk)
		previousID = chunk.ID
	}
	return chunks
}
