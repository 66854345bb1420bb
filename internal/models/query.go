package models

// SourceNode is one attributed source chunk contributing to a query answer.
// Start and End are nil when position metadata is absent on the chunk.
// NodeID is serialized as doc_id for compatibility with existing clients.
type SourceNode struct {
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
	NodeID     string  `json:"doc_id"`
	Start      *int    `json:"start"`
	End        *int    `json:"end"`
}

// QueryResponse is the synthesized answer plus its source attributions.
type QueryResponse struct {
	Text    string       `json:"text"`
	Sources []SourceNode `json:"sources"`
}
