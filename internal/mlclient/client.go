// Package mlclient is the HTTP client for the remote phishing
// classification service. Classify never fails: batch errors degrade to
// per-link requests, and per-link errors degrade to a not-phishing
// verdict so legitimate content is never blocked by an outage.
package mlclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/feedguard/internal/domain"
	"github.com/jonesrussell/feedguard/internal/logger"
	"github.com/jonesrussell/feedguard/internal/predcache"
	"github.com/jonesrussell/feedguard/internal/telemetry"
)

func outcomeLabel(isPhishing bool) string {
	if isPhishing {
		return "phishing"
	}
	return "clean"
}

// ErrUnavailable indicates the classification service is unreachable.
var ErrUnavailable = errors.New("classification service unavailable")

// Client calls the classification service, consulting the prediction
// cache first and writing every resolved verdict back into it.
type Client struct {
	baseURL string
	httpc   *http.Client
	cache   *predcache.Cache
	limiter *rate.Limiter
	log     logger.Logger
}

// Result aggregates per-link verdicts for one post. FlaggedLinks holds
// every link resolved as phishing. Fresh holds only the predictions
// returned by the service on this call (cache hits and fail-open
// defaults excluded); the review band is applied over these.
type Result struct {
	IsPhishing   bool
	FlaggedLinks []string
	Fresh        []domain.Prediction
}

type predictRequest struct {
	URL    string `json:"url"`
	PostID string `json:"post_id"`
}

type predictResponse struct {
	IsPhishing bool    `json:"is_phishing"`
	FinalScore float64 `json:"final_score"`
}

type batchRequest struct {
	Items []predictRequest `json:"items"`
}

type batchResponse struct {
	Predictions []struct {
		URL        string  `json:"url"`
		IsPhishing bool    `json:"is_phishing"`
		FinalScore float64 `json:"final_score"`
	} `json:"predictions"`
}

// New creates a classification client. httpc may be nil, in which case
// a client with the package default timeout is used; callers that need
// a different timeout policy inject their own.
func New(baseURL string, cache *predcache.Cache, rps, burst int, httpc *http.Client, log logger.Logger) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: defaultTimeout}
	}
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = rps
	}
	return &Client{
		baseURL: baseURL,
		httpc:   httpc,
		cache:   cache,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log,
	}
}

// Classify resolves a verdict for every link of a post. It always
// returns a complete result, falling back to per-link requests when the
// batch endpoint fails and to not-phishing when an individual request
// fails.
func (c *Client) Classify(ctx context.Context, postID string, links []string) Result {
	if len(links) == 0 {
		return Result{}
	}

	flagged := make([]string, 0, len(links))
	unresolved := make([]string, 0, len(links))

	for _, link := range links {
		if verdict, ok := c.cache.Get(link); ok {
			telemetry.PredictionsTotal.WithLabelValues("cache", outcomeLabel(verdict.IsPhishing)).Inc()
			if verdict.IsPhishing {
				flagged = append(flagged, link)
			}
			continue
		}
		unresolved = append(unresolved, link)
	}

	var fresh []domain.Prediction
	if len(unresolved) > 0 {
		source := "batch"
		preds, err := c.predictBatch(ctx, postID, unresolved)
		if err != nil {
			c.log.Warn("Batch prediction failed, falling back per-link",
				logger.String("post_id", postID),
				logger.Int("links", len(unresolved)),
				logger.Error(err),
			)
			telemetry.BatchFallbacks.Inc()
			source = "single"
			preds = c.predictEach(ctx, postID, unresolved)
		}
		fresh = preds
		for _, p := range preds {
			telemetry.PredictionsTotal.WithLabelValues(source, outcomeLabel(p.IsPhishing)).Inc()
		}
		for i := len(preds); i < len(unresolved); i++ {
			telemetry.PredictionsTotal.WithLabelValues("failopen", "clean").Inc()
		}

		for _, p := range preds {
			c.cache.Put(p.URL, p.IsPhishing)
			if p.IsPhishing {
				flagged = append(flagged, p.URL)
			}
		}
	}

	return Result{
		IsPhishing:   len(flagged) > 0,
		FlaggedLinks: flagged,
		Fresh:        fresh,
	}
}

// predictBatch issues one batched request for all unresolved links.
func (c *Client) predictBatch(ctx context.Context, postID string, links []string) ([]domain.Prediction, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req := batchRequest{Items: make([]predictRequest, 0, len(links))}
	for _, link := range links {
		req.Items = append(req.Items, predictRequest{URL: link, PostID: postID})
	}

	var resp batchResponse
	if err := postJSON(ctx, c.httpc, c.baseURL+"/predict_batch", &req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	byURL := make(map[string]domain.Prediction, len(resp.Predictions))
	for _, p := range resp.Predictions {
		byURL[predcache.Normalize(p.URL)] = domain.Prediction{
			URL:        p.URL,
			IsPhishing: p.IsPhishing,
			FinalScore: p.FinalScore,
		}
	}

	// Links the service did not answer for resolve fail-open, uncached.
	preds := make([]domain.Prediction, 0, len(links))
	for _, link := range links {
		p, ok := byURL[predcache.Normalize(link)]
		if !ok {
			c.log.Warn("Batch response missing link, defaulting to not phishing",
				logger.String("url", link),
			)
			continue
		}
		p.URL = link
		preds = append(preds, p)
	}
	return preds, nil
}

// predictEach issues one request per link, in parallel. A failed
// request yields no fresh prediction; the link defaults to not
// phishing without poisoning the cache.
func (c *Client) predictEach(ctx context.Context, postID string, links []string) []domain.Prediction {
	results := make([]*domain.Prediction, len(links))

	var wg sync.WaitGroup
	for i, link := range links {
		wg.Add(1)
		go func(i int, link string) {
			defer wg.Done()

			p, err := c.predictOne(ctx, postID, link)
			if err != nil {
				c.log.Warn("Per-link prediction failed, defaulting to not phishing",
					logger.String("url", link),
					logger.Error(err),
				)
				return
			}
			results[i] = p
		}(i, link)
	}
	wg.Wait()

	preds := make([]domain.Prediction, 0, len(links))
	for _, p := range results {
		if p != nil {
			preds = append(preds, *p)
		}
	}
	return preds
}

func (c *Client) predictOne(ctx context.Context, postID, link string) (*domain.Prediction, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var resp predictResponse
	req := predictRequest{URL: link, PostID: postID}
	if err := postJSON(ctx, c.httpc, c.baseURL+"/predict", &req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return &domain.Prediction{
		URL:        link,
		IsPhishing: resp.IsPhishing,
		FinalScore: resp.FinalScore,
	}, nil
}

// Health probes the classification service root endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unhealthy status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}
