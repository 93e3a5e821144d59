package domain

// SearchHit is a single result of a vector similarity search over one collection.
type SearchHit struct {
	ID      string            `json:"id"`
	Score   float64           `json:"score"`
	Payload map[string]string `json:"payload,omitempty"`
}
