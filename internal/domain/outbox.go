package domain

import (
	"encoding/json"
	"time"
)

// QueueKind identifies which outbox queue an item belongs to.
type QueueKind string

// Outbox queue kinds.
const (
	QueueReport QueueKind = "report"
	QueueReview QueueKind = "review"
)

// Report types carried by outbox items.
const (
	ReportFalsePositive = "false_positive"
	ReportFalseNegative = "false_negative"
	ReportTruePositive  = "true_positive"
	ReportTrueNegative  = "true_negative"
	ReportReview        = "review"
)

// OutboxItem is a single buffered feedback record. Items are immutable
// once created and survive process restarts until acknowledged by the
// remote endpoint.
type OutboxItem struct {
	Queue      QueueKind       `json:"queue"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	UserID     string          `json:"user_id"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// ReportPayload is the payload shape for user feedback reports.
type ReportPayload struct {
	PostID string   `json:"post_id"`
	Links  []string `json:"links,omitempty"`
	URL    string   `json:"url,omitempty"`
	Source string   `json:"source,omitempty"`
}

// ReviewPayload is the payload shape for borderline-score review items.
type ReviewPayload struct {
	PostID     string  `json:"post_id"`
	URL        string  `json:"url"`
	FinalScore float64 `json:"final_score"`
}
