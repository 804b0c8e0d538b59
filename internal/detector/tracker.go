// Package detector owns the per-post detection state machine and the
// scan orchestration around it: classification, UI effects, feedback
// enqueueing, and interaction-graph ingestion.
package detector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/feedguard/internal/domain"
	"github.com/jonesrussell/feedguard/internal/logger"
	"github.com/jonesrussell/feedguard/internal/mlclient"
	"github.com/jonesrussell/feedguard/internal/telemetry"
)

// ErrUnknownPost is returned for user actions on posts never scanned.
var ErrUnknownPost = errors.New("unknown post")

// ErrInvalidTransition is returned when a user action does not apply to
// the post's current state.
var ErrInvalidTransition = errors.New("invalid transition for current post state")

// Classifier resolves link verdicts for a post.
type Classifier interface {
	Classify(ctx context.Context, postID string, links []string) mlclient.Result
}

// Effects is the UI collaborator seam. Implementations own all
// rendering; the tracker only requests blur state changes.
type Effects interface {
	RequestBlur(postID string)
	RequestUnblur(postID string)
}

// Enqueuer buffers one feedback record for eventual delivery.
type Enqueuer interface {
	Enqueue(item domain.OutboxItem)
}

// FlagSink stores confirmed phishing links long-term.
type FlagSink interface {
	Add(ctx context.Context, url, userID string) error
}

// GraphSink records interaction-graph signal. Best-effort: failures are
// handled inside the implementation, never surfaced here.
type GraphSink interface {
	IngestPost(ctx context.Context, postID string, domains []string, meta map[string]any)
	IngestClick(ctx context.Context, domain, postID string)
	EnsureForReport(ctx context.Context, postID string, links []string)
}

// trackedPost pairs the post record with a scan generation counter.
// The counter increments whenever a new classification round starts;
// results from a superseded round are discarded, so a late-arriving
// response can never override a more recent user decision.
type trackedPost struct {
	domain.Post
	gen     int
	blurred bool
}

// Tracker owns all post state for one page context. All mutations are
// serialized behind one mutex; network calls happen outside it.
type Tracker struct {
	classifier Classifier
	effects    Effects
	reports    Enqueuer
	reviews    Enqueuer
	flags      FlagSink
	graph      GraphSink
	log        logger.Logger

	userID    string
	reviewMin float64
	reviewMax float64

	mu    sync.Mutex
	posts map[string]*trackedPost

	now func() time.Time
}

// Config holds the tracker's static settings.
type Config struct {
	UserID    string
	ReviewMin float64
	ReviewMax float64
}

// NewTracker creates a tracker.
func NewTracker(
	classifier Classifier,
	effects Effects,
	reports, reviews Enqueuer,
	flags FlagSink,
	graph GraphSink,
	cfg Config,
	log logger.Logger,
) *Tracker {
	return &Tracker{
		classifier: classifier,
		effects:    effects,
		reports:    reports,
		reviews:    reviews,
		flags:      flags,
		graph:      graph,
		log:        log,
		userID:     cfg.UserID,
		reviewMin:  cfg.ReviewMin,
		reviewMax:  cfg.ReviewMax,
		posts:      make(map[string]*trackedPost),
		now:        time.Now,
	}
}

// Scan processes a batch of extracted posts. New posts and posts whose
// link set changed enter Pending and are classified; settled posts are
// re-checked idempotently; posts in user-decided states are left alone.
func (t *Tracker) Scan(ctx context.Context, scans []domain.ScanPost) {
	for _, scan := range scans {
		t.scanOne(ctx, scan)
	}
}

func (t *Tracker) scanOne(ctx context.Context, scan domain.ScanPost) {
	t.mu.Lock()
	p, gen, fresh, ok := t.beginScanLocked(scan)
	t.mu.Unlock()

	if !ok {
		return
	}

	if fresh {
		t.graph.IngestPost(ctx, p.ID, domain.LinkDomains(p.Links), map[string]any{
			"links": len(p.Links),
			"text":  len(p.Text),
		})
	}

	// Suspension point: the post may transition by user action while
	// this request is in flight.
	result := t.classifier.Classify(ctx, scan.ID, scan.Links)

	t.applyResult(ctx, scan.ID, gen, result)
	t.enqueueBorderline(scan.ID, result.Fresh)
}

// beginScanLocked registers or refreshes a post and decides whether a
// classification round should start. Returns the tracked post, the
// round generation, whether the post is new or mutated, and whether to
// classify at all.
func (t *Tracker) beginScanLocked(scan domain.ScanPost) (*trackedPost, int, bool, bool) {
	hash := domain.HashLinks(scan.Links)

	p, exists := t.posts[scan.ID]
	if !exists {
		p = &trackedPost{Post: domain.Post{
			ID:     scan.ID,
			Text:   scan.Text,
			Links:  scan.Links,
			Status: domain.StatusUnscanned,
		}}
		t.posts[scan.ID] = p
	}

	changed := p.LinksHash != "" && p.LinksHash != hash
	p.Text = scan.Text
	p.Links = scan.Links
	p.LinksHash = hash

	// Posts without links never leave Unscanned.
	if len(scan.Links) == 0 {
		return p, 0, false, false
	}

	switch p.Status {
	case domain.StatusUnscanned:
		t.transitionLocked(p, domain.StatusPending)
		p.gen++
		return p, p.gen, true, true

	case domain.StatusClean, domain.StatusFlagged:
		if changed {
			t.transitionLocked(p, domain.StatusPending)
			p.gen++
			return p, p.gen, true, true
		}
		// Unchanged settled post: re-check against current verdicts,
		// applying the self-loop rule.
		p.gen++
		return p, p.gen, false, true

	case domain.StatusPending:
		// A round is already in flight; start a new one that
		// supersedes it.
		p.gen++
		return p, p.gen, false, true

	default:
		// User-decided states are authoritative until the user acts
		// again; automatic rescans never touch them.
		return p, 0, false, false
	}
}

// applyResult folds a classification result into the state machine.
// Results from superseded rounds are dropped.
func (t *Tracker) applyResult(ctx context.Context, postID string, gen int, result mlclient.Result) {
	t.mu.Lock()

	p, ok := t.posts[postID]
	if !ok || p.gen != gen {
		t.mu.Unlock()
		t.log.Debug("Dropping stale classification result",
			logger.String("post_id", postID),
		)
		return
	}

	var flagSinkLinks []string

	switch {
	case p.Status == domain.StatusPending && result.IsPhishing:
		p.FlaggedLinks = result.FlaggedLinks
		t.transitionLocked(p, domain.StatusFlagged)
		t.blurLocked(p)
		flagSinkLinks = result.FlaggedLinks

	case p.Status == domain.StatusPending:
		t.transitionLocked(p, domain.StatusClean)
		t.unblurLocked(p)

	case p.Status == domain.StatusClean && result.IsPhishing:
		p.FlaggedLinks = result.FlaggedLinks
		t.transitionLocked(p, domain.StatusFlagged)
		t.blurLocked(p)
		flagSinkLinks = result.FlaggedLinks

	case p.Status == domain.StatusFlagged && !result.IsPhishing:
		p.FlaggedLinks = nil
		t.transitionLocked(p, domain.StatusClean)
		t.unblurLocked(p)

	default:
		// Re-confirmed verdict: no transition, no side effect.
	}

	t.mu.Unlock()

	for _, link := range flagSinkLinks {
		if err := t.flags.Add(ctx, link, t.userID); err != nil {
			t.log.Warn("Failed to store flagged link",
				logger.String("url", link),
				logger.Error(err),
			)
		}
	}
}

// enqueueBorderline routes fresh predictions inside the review band to
// the review queue. Cache hits never reach here, so idempotent rescans
// do not produce duplicate review items.
func (t *Tracker) enqueueBorderline(postID string, fresh []domain.Prediction) {
	for _, p := range fresh {
		if p.FinalScore < t.reviewMin || p.FinalScore > t.reviewMax {
			continue
		}
		t.reviews.Enqueue(t.newItem(domain.QueueReview, domain.ReportReview, domain.ReviewPayload{
			PostID:     postID,
			URL:        p.URL,
			FinalScore: p.FinalScore,
		}))
	}
}

// ReportSafe handles the user action "report safe" on a flagged post:
// Flagged -> UserClearedFalsePositive, false_positive report, unblur.
func (t *Tracker) ReportSafe(ctx context.Context, postID string) error {
	t.mu.Lock()
	p, ok := t.posts[postID]
	if !ok {
		t.mu.Unlock()
		return ErrUnknownPost
	}
	if p.Status != domain.StatusFlagged {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidTransition, p.Status)
	}

	// Invalidate any in-flight classification round.
	p.gen++
	links := append([]string(nil), p.Links...)
	t.transitionLocked(p, domain.StatusUserClearedFalsePositive)
	t.unblurLocked(p)
	t.mu.Unlock()

	t.graph.EnsureForReport(ctx, postID, links)
	t.reports.Enqueue(t.newItem(domain.QueueReport, domain.ReportFalsePositive, domain.ReportPayload{
		PostID: postID,
		Links:  links,
	}))
	return nil
}

// ReportMalicious handles the user action "mark malicious":
// Clean -> UserConfirmedMalicious with a false_negative report (the
// model missed it), Flagged/UserClearedFalsePositive ->
// UserConfirmedMalicious with a true_positive report. Links are also
// forwarded to the long-term flagged store and the post is blurred.
func (t *Tracker) ReportMalicious(ctx context.Context, postID string) error {
	t.mu.Lock()
	p, ok := t.posts[postID]
	if !ok {
		t.mu.Unlock()
		return ErrUnknownPost
	}

	var reportType string
	switch p.Status {
	case domain.StatusClean:
		reportType = domain.ReportFalseNegative
	case domain.StatusFlagged, domain.StatusUserClearedFalsePositive:
		reportType = domain.ReportTruePositive
	case domain.StatusUserConfirmedMalicious:
		t.mu.Unlock()
		return nil // already confirmed; idempotent
	default:
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidTransition, p.Status)
	}

	p.gen++
	links := append([]string(nil), p.Links...)
	p.FlaggedLinks = links
	t.transitionLocked(p, domain.StatusUserConfirmedMalicious)
	t.blurLocked(p)
	t.mu.Unlock()

	t.graph.EnsureForReport(ctx, postID, links)
	t.reports.Enqueue(t.newItem(domain.QueueReport, reportType, domain.ReportPayload{
		PostID: postID,
		Links:  links,
		Source: "manual",
	}))
	for _, link := range links {
		if err := t.flags.Add(ctx, link, t.userID); err != nil {
			t.log.Warn("Failed to store flagged link",
				logger.String("url", link),
				logger.Error(err),
			)
		}
	}
	return nil
}

// ConfirmSafe records a true_negative report for a clean post the user
// explicitly vouches for. No transition occurs.
func (t *Tracker) ConfirmSafe(ctx context.Context, postID string) error {
	t.mu.Lock()
	p, ok := t.posts[postID]
	if !ok {
		t.mu.Unlock()
		return ErrUnknownPost
	}
	if p.Status != domain.StatusClean {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidTransition, p.Status)
	}
	links := append([]string(nil), p.Links...)
	t.mu.Unlock()

	t.graph.EnsureForReport(ctx, postID, links)
	t.reports.Enqueue(t.newItem(domain.QueueReport, domain.ReportTrueNegative, domain.ReportPayload{
		PostID: postID,
		Links:  links,
		Source: "manual",
	}))
	return nil
}

// Recheck re-enters Pending from UserClearedFalsePositive and runs a
// fresh classification round.
func (t *Tracker) Recheck(ctx context.Context, postID string) error {
	t.mu.Lock()
	p, ok := t.posts[postID]
	if !ok {
		t.mu.Unlock()
		return ErrUnknownPost
	}
	if p.Status != domain.StatusUserClearedFalsePositive {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidTransition, p.Status)
	}

	t.transitionLocked(p, domain.StatusPending)
	p.gen++
	gen := p.gen
	links := append([]string(nil), p.Links...)
	t.mu.Unlock()

	result := t.classifier.Classify(ctx, postID, links)
	t.applyResult(ctx, postID, gen, result)
	t.enqueueBorderline(postID, result.Fresh)
	return nil
}

// RecordClick appends a click edge for a domain the user followed.
func (t *Tracker) RecordClick(ctx context.Context, clickDomain, postID string) {
	t.graph.IngestClick(ctx, clickDomain, postID)
}

// Snapshot returns a copy of a tracked post.
func (t *Tracker) Snapshot(postID string) (domain.Post, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.posts[postID]
	if !ok {
		return domain.Post{}, false
	}
	cp := p.Post
	cp.Links = append([]string(nil), p.Links...)
	cp.FlaggedLinks = append([]string(nil), p.FlaggedLinks...)
	return cp, true
}

// Blurred reports the desired render state for a post.
func (t *Tracker) Blurred(postID string) (bool, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.posts[postID]
	if !ok {
		return false, false
	}
	return p.blurred, true
}

func (t *Tracker) transitionLocked(p *trackedPost, to domain.PostStatus) {
	from := p.Status
	p.Status = to
	telemetry.PostTransitions.WithLabelValues(string(to)).Inc()
	t.log.Debug("Post transition",
		logger.String("post_id", p.ID),
		logger.String("from", string(from)),
		logger.String("to", string(to)),
	)
}

// blurLocked requests a blur only on the edge into the blurred state,
// so re-confirmed verdicts cannot flicker the UI.
func (t *Tracker) blurLocked(p *trackedPost) {
	if p.blurred {
		return
	}
	p.blurred = true
	t.effects.RequestBlur(p.ID)
}

func (t *Tracker) unblurLocked(p *trackedPost) {
	if !p.blurred {
		return
	}
	p.blurred = false
	t.effects.RequestUnblur(p.ID)
}

func (t *Tracker) newItem(queue domain.QueueKind, reportType string, payload any) domain.OutboxItem {
	raw, err := json.Marshal(payload)
	if err != nil {
		// Payload shapes are fixed structs; this cannot fail in practice.
		raw = json.RawMessage(`{}`)
	}
	return domain.OutboxItem{
		Queue:      queue,
		Type:       reportType,
		Payload:    raw,
		UserID:     t.userID,
		EnqueuedAt: t.now(),
	}
}
