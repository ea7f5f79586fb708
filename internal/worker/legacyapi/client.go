package legacyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"attendance.service/internal/ports/messaging"
	"github.com/rs/zerolog/log"
)

// LegacyAPIClient contract for the payroll system that still owns the
// official attendance ledger.
type LegacyAPIClient interface {
	RecordCorrection(ctx context.Context, event messaging.CorrectionApprovedEvent) error
}

// HTTPClient API client using HTTP
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient new HTTPClient
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
	}
}

// RecordCorrection sends an approved correction to the legacy API.
func (c *HTTPClient) RecordCorrection(ctx context.Context, event messaging.CorrectionApprovedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal legacy api payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create legacy api request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call legacy api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("legacy api returned non-successful status code: %d", resp.StatusCode)
	}

	log.Ctx(ctx).Info().Str("request_id", event.RequestID).Msg("Recorded approved correction in legacy system")
	return nil
}
