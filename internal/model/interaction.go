package model

import "time"

// InteractionRecord is one query/response/context triple appended to the
// interactions log. Records are append-only and never mutated.
type InteractionRecord struct {
	Timestamp        time.Time `json:"timestamp"`
	UserQuery        string    `json:"user_query"`
	RetrievedContext []string  `json:"retrieved_context"`
	AgentResponse    string    `json:"agent_response"`
}
