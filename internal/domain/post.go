package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// PostStatus is the detection state of a post.
type PostStatus string

// Post detection states.
const (
	StatusUnscanned                PostStatus = "unscanned"
	StatusPending                  PostStatus = "pending"
	StatusClean                    PostStatus = "clean"
	StatusFlagged                  PostStatus = "flagged"
	StatusUserClearedFalsePositive PostStatus = "user_cleared_false_positive"
	StatusUserConfirmedMalicious   PostStatus = "user_confirmed_malicious"
)

// Post is a logical feed content unit tracked across rescans.
// ID is stable per content unit; LinksHash detects link-set mutations
// from lazy-loaded content.
type Post struct {
	ID           string     `json:"id"`
	Text         string     `json:"text"`
	Links        []string   `json:"links"`
	Status       PostStatus `json:"status"`
	LinksHash    string     `json:"links_hash"`
	FlaggedLinks []string   `json:"flagged_links,omitempty"`
}

// ScanPost is a post record supplied by the extraction collaborator.
type ScanPost struct {
	ID    string   `json:"id"    binding:"required"`
	Text  string   `json:"text"`
	Links []string `json:"links"`
}

// HashLinks returns a stable digest of a link set, insensitive to order
// and case.
func HashLinks(links []string) string {
	normalized := make([]string, 0, len(links))
	for _, l := range links {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(l)))
	}
	sort.Strings(normalized)

	h := sha256.New()
	for _, l := range normalized {
		h.Write([]byte(l))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
