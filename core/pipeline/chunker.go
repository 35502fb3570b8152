package pipeline

import (
	"fmt"
	"regexp"
	"strings"
)

var paragraphSplit = regexp.MustCompile(`[\r\n]+`)

// sentenceEnd reports whether a token terminates a sentence.
func sentenceEnd(token string) bool {
	return token == "。" || token == "！" || token == "？"
}

// findSentenceBoundaryForward returns the smallest cut position at or
// after chunkSize whose last token is a sentence terminator, or the
// buffer length when no terminator follows.
func findSentenceBoundaryForward(tokens []string, chunkSize int) int {
	for i := chunkSize - 1; i < len(tokens); i++ {
		if sentenceEnd(tokens[i]) {
			return i + 1
		}
	}
	return len(tokens)
}

// findSentenceBoundaryBackward returns the position just after the last
// sentence terminator before start, or 0 when there is none.
func findSentenceBoundaryBackward(tokens []string, start int) int {
	for i := start - 1; i >= 0; i-- {
		if sentenceEnd(tokens[i]) {
			return i + 1
		}
	}
	return 0
}

// SentenceChunker creates a chunker that splits tokenized text into
// chunks of roughly chunkSize tokens with roughly overlap shared tokens.
// Both sizes float: every chunk ends on a sentence terminator when one
// exists ahead, and the overlap starts on a sentence start when one
// exists behind. Paragraphs are atomic and enter the buffer whole.
func SentenceChunker(tokenize TokenizeFunc, chunkSize int, overlap int) ChunkFunc {
	return func(text string) ([][]string, error) {
		if chunkSize <= 0 || overlap <= 0 {
			return nil, fmt.Errorf("chunk size and overlap must be positive")
		}
		if chunkSize <= overlap {
			return nil, fmt.Errorf("chunk size must be greater than overlap")
		}

		paragraphs := []string{}
		for _, paragraph := range paragraphSplit.Split(text, -1) {
			if paragraph != "" {
				paragraphs = append(paragraphs, paragraph)
			}
		}

		chunks := [][]string{}
		buffer := []string{}
		i := 0
		for i < len(paragraphs) {
			for len(buffer) < chunkSize && i < len(paragraphs) {
				buffer = append(buffer, tokenize(paragraphs[i])...)
				i++
			}
			for len(buffer) >= chunkSize {
				end := findSentenceBoundaryForward(buffer, chunkSize)
				chunk := make([]string, end)
				copy(chunk, buffer[:end])
				chunks = append(chunks, chunk)

				startNext := findSentenceBoundaryBackward(buffer, end-overlap)
				if startNext == 0 {
					startNext = findSentenceBoundaryBackward(buffer, end-1)
				}
				if startNext == 0 {
					startNext = end - overlap
				}
				buffer = buffer[startNext:]
			}
		}

		if len(buffer) > 0 {
			if len(chunks) > 0 {
				// The leftover may just be the overlap tail of the last
				// chunk. Only genuinely new content becomes a chunk.
				lastChunk := chunks[len(chunks)-1]
				rest := strings.Join(buffer, "")
				tail := ""
				if len(buffer) <= len(lastChunk) {
					tail = strings.Join(lastChunk[len(lastChunk)-len(buffer):], "")
				}
				if tail != rest {
					chunks = append(chunks, buffer)
				}
			} else {
				chunks = append(chunks, buffer)
			}
		}

		return chunks, nil
	}
}
