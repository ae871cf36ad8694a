package audit

import "time"

// Record is one anonymization audit entry. It stores counts and grades,
// never the original or anonymized text.
type Record struct {
	ID            int64     `db:"id" json:"id"`
	RequestID     string    `db:"request_id" json:"request_id"`
	SessionID     string    `db:"session_id" json:"session_id"`
	Provider      string    `db:"provider" json:"provider"`
	Policy        string    `db:"policy" json:"policy"`
	EntityCounts  string    `db:"entity_counts" json:"entity_counts"` // JSON object: entity type -> count
	TotalEntities int       `db:"total_entities" json:"total_entities"`
	Risk          string    `db:"risk" json:"risk"`
	TextChars     int       `db:"text_chars" json:"text_chars"`
	DurationMS    float64   `db:"duration_ms" json:"duration_ms"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// TypeCount is an aggregate row for reporting.
type TypeCount struct {
	EntityType string `db:"entity_type" json:"entity_type"`
	Count      int64  `db:"count" json:"count"`
}
