package domain

import (
	"net/url"
	"time"
)

// NodeKind identifies the entity type behind a graph node.
type NodeKind string

// Graph node kinds.
const (
	NodeUser   NodeKind = "user"
	NodePost   NodeKind = "post"
	NodeDomain NodeKind = "domain"
)

// Edge types for interaction events.
const (
	EdgeContains = "contains"
	EdgeView     = "view"
	EdgeClick    = "click"
)

// GraphNode is an upsertable entity in the interaction graph.
// ID is a composite key of kind and natural id (e.g. "domain:bad.example").
type GraphNode struct {
	ID         string         `json:"id"`
	Kind       NodeKind       `json:"kind"`
	Attributes map[string]any `json:"attributes"`
}

// GraphEdge is an append-only interaction event between two nodes.
type GraphEdge struct {
	Src      string    `json:"src"`
	Dst      string    `json:"dst"`
	EdgeType string    `json:"edge_type"`
	UserID   string    `json:"user_id"`
	At       time.Time `json:"at"`
}

// UserNodeID returns the composite node id for a user.
func UserNodeID(userID string) string { return "user:" + userID }

// PostNodeID returns the composite node id for a post.
func PostNodeID(postID string) string { return "post:" + postID }

// DomainNodeID returns the composite node id for a domain.
func DomainNodeID(domain string) string { return "domain:" + domain }

// LinkDomains extracts the unique hostnames from a set of links,
// skipping anything that does not parse as an absolute URL.
func LinkDomains(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	domains := make([]string, 0, len(links))
	for _, l := range links {
		u, err := url.Parse(l)
		if err != nil || u.Hostname() == "" {
			continue
		}
		host := u.Hostname()
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		domains = append(domains, host)
	}
	return domains
}
