// Package graph records interaction signal (user, post, domain nodes
// and view/contains/click edges) in the persistent document store for
// future training. Writes are best-effort telemetry: failures are
// logged and swallowed, never surfaced to the caller.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/feedguard/internal/domain"
	"github.com/jonesrussell/feedguard/internal/logger"
	"github.com/jonesrussell/feedguard/internal/telemetry"
)

// Ingestor writes graph nodes and edges through the document store.
type Ingestor struct {
	db     *sqlx.DB
	userID string
	log    logger.Logger
	now    func() time.Time
}

// NewIngestor creates a graph ingestor acting as the given user.
func NewIngestor(db *sqlx.DB, userID string, log logger.Logger) *Ingestor {
	return &Ingestor{
		db:     db,
		userID: userID,
		log:    log,
		now:    time.Now,
	}
}

// IngestPost upserts the user, post, and domain nodes for a scanned
// post, then appends contains edges for each domain and one view edge.
// Re-ingesting the same post merges attributes and never duplicates
// nodes; edges are events and append unconditionally.
func (g *Ingestor) IngestPost(ctx context.Context, postID string, domains []string, meta map[string]any) {
	userNode := domain.UserNodeID(g.userID)
	postNode := domain.PostNodeID(postID)

	if meta == nil {
		meta = map[string]any{}
	}
	meta["post_id"] = postID

	g.upsert(ctx, userNode, domain.NodeUser, map[string]any{"user_id": g.userID})
	g.upsert(ctx, postNode, domain.NodePost, meta)

	for _, d := range domains {
		g.upsert(ctx, domain.DomainNodeID(d), domain.NodeDomain, map[string]any{"domain": d})
		g.append(ctx, postNode, domain.DomainNodeID(d), domain.EdgeContains)
	}
	g.append(ctx, userNode, postNode, domain.EdgeView)
}

// IngestClick records that the user followed a link to a domain.
func (g *Ingestor) IngestClick(ctx context.Context, clickDomain, postID string) {
	if clickDomain == "" {
		return
	}
	userNode := domain.UserNodeID(g.userID)
	domainNode := domain.DomainNodeID(clickDomain)

	g.upsert(ctx, userNode, domain.NodeUser, map[string]any{"user_id": g.userID})
	g.upsert(ctx, domainNode, domain.NodeDomain, map[string]any{"domain": clickDomain})
	g.append(ctx, userNode, domainNode, domain.EdgeClick)

	if postID != "" {
		g.append(ctx, domain.PostNodeID(postID), domainNode, domain.EdgeClick)
	}
}

// EnsureForReport makes sure the nodes and edges behind a user report
// exist, so training data joins do not dangle.
func (g *Ingestor) EnsureForReport(ctx context.Context, postID string, links []string) {
	g.IngestPost(ctx, postID, domain.LinkDomains(links), nil)
}

// upsert merges a node into the graph: new attributes overlay old ones,
// unspecified fields are preserved.
func (g *Ingestor) upsert(ctx context.Context, id string, kind domain.NodeKind, attrs map[string]any) {
	raw, err := json.Marshal(attrs)
	if err != nil {
		g.dropped(id, fmt.Errorf("marshal attributes: %w", err))
		return
	}

	const query = `
		INSERT INTO graph_nodes (id, kind, attributes, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET attributes = graph_nodes.attributes || EXCLUDED.attributes,
		    updated_at = EXCLUDED.updated_at`

	if _, err := g.db.ExecContext(ctx, query, id, string(kind), raw, g.now().UTC()); err != nil {
		g.dropped(id, err)
	}
}

// append writes one append-only edge event.
func (g *Ingestor) append(ctx context.Context, src, dst, edgeType string) {
	const query = `
		INSERT INTO graph_edges (src, dst, edge_type, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := g.db.ExecContext(ctx, query, src, dst, edgeType, g.userID, g.now().UTC()); err != nil {
		g.dropped(src+"->"+dst, err)
	}
}

func (g *Ingestor) dropped(target string, err error) {
	telemetry.GraphWriteFailures.Inc()
	g.log.Warn("Graph write failed, dropping",
		logger.String("target", target),
		logger.Error(err),
	)
}
