package domain

import "time"

// LinkVerdict is a cached classification result for a single link.
// URL is the normalized (lowercased) form used as the cache key.
type LinkVerdict struct {
	URL        string    `json:"url"`
	IsPhishing bool      `json:"is_phishing"`
	ObservedAt time.Time `json:"observed_at"`
}

// Prediction is a per-link result from the classification service.
// FinalScore is the fused model score; it drives review-band routing.
type Prediction struct {
	URL        string  `json:"url"`
	IsPhishing bool    `json:"is_phishing"`
	FinalScore float64 `json:"final_score"`
}
