package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonesrussell/feedguard/internal/domain"
)

const submitTimeout = 10 * time.Second

// BulkSubmitter posts batches to a bulk ingestion endpoint
// (/report_bulk or /review_queue). Any non-2xx status fails the whole
// batch.
type BulkSubmitter struct {
	endpoint string
	httpc    *http.Client
}

// NewBulkSubmitter creates a submitter for the given endpoint. httpc
// may be nil.
func NewBulkSubmitter(endpoint string, httpc *http.Client) *BulkSubmitter {
	if httpc == nil {
		httpc = &http.Client{Timeout: submitTimeout}
	}
	return &BulkSubmitter{endpoint: endpoint, httpc: httpc}
}

type bulkRequest struct {
	Items []domain.OutboxItem `json:"items"`
}

// Submit delivers one batch. Implements Submitter.
func (s *BulkSubmitter) Submit(ctx context.Context, items []domain.OutboxItem) error {
	body, err := json.Marshal(bulkRequest{Items: items})
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("submit batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("ingestion endpoint returned %d", resp.StatusCode)
	}
	return nil
}
