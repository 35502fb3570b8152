package model

// Document represents a source text file in the graph.
// Documents are unique by file name and own their chunks.
type Document struct {
	FileName string `json:"file_name"`
	Type     string `json:"type"`
	URI      string `json:"uri"`
}
