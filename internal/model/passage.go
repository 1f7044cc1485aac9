// Package model contains the application's data model definitions.
package model

// Passage is the unit of retrievable text produced at ingestion time.
// Passages are immutable; a re-ingestion rebuilds all of them from scratch.
type Passage struct {
	// DocID identifies the source document (the PDF file name).
	DocID string `json:"doc_id"`
	// Page is the 1-based page the passage was cut from.
	Page int `json:"page"`
	// Index is the sequential passage number within the document.
	Index int `json:"index"`
	// Text is the raw passage text.
	Text string `json:"text"`
	// Overlap is the number of characters shared with the preceding
	// passage on the same page (0 for the first passage of a page).
	Overlap int `json:"overlap"`
}

// SearchResult pairs a passage with its similarity score for a query.
type SearchResult struct {
	Passage Passage `json:"passage"`
	Score   float64 `json:"score"`
}
