package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
	"attendance.service/internal/worker/legacyapi"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ExportProcessor handles jobs from the correction queue, which involves
// forwarding approved corrections to the legacy attendance API. It uses a
// circuit breaker to avoid hammering the legacy system if it's having issues.
type ExportProcessor struct {
	Repo      repository.Repository
	legacyapi legacyapi.LegacyAPIClient
	cb        *gobreaker.CircuitBreaker
}

// NewProcessor creates a new processor for the correction queue. It sets up a
// circuit breaker to protect the legacy API from being overwhelmed.
func NewProcessor(r repository.Repository, client legacyapi.LegacyAPIClient) *ExportProcessor {
	settings := gobreaker.Settings{
		Name:        "Legacy-API",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip if failure rate is bigger then 50% after at least 10 requests
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		},
	}

	return &ExportProcessor{
		Repo:      r,
		legacyapi: client,
		cb:        gobreaker.NewCircuitBreaker(settings),
	}
}

// Process is the core logic for handling a message from the correction queue.
// It calls the legacy API through a circuit breaker and handles retries with
// exponential backoff.
func (p *ExportProcessor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	var event messaging.CorrectionApprovedEvent
	if err := json.Unmarshal([]byte(*msg.Body), &event); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to unmarshal correction event")
		return false, 0, err // Do not retry on malformed message
	}

	log.Ctx(ctx).Info().
		Str("request_id", event.RequestID).
		Str("user_id", event.UserID).
		Msg("Exporting approved correction")

	req, err := p.Repo.GetCorrection(ctx, event.RequestID, repository.NoLock)
	if err != nil {
		return true, 10, fmt.Errorf("failed to get correction from db: %w", err)
	}

	// Redelivered messages for an already exported correction are a no-op.
	if req.ExportStatus == model.StatusExportCompleted {
		return false, 0, nil
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.legacyapi.RecordCorrection(ctx, event)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			log.Ctx(ctx).Warn().Msg("Circuit Breaker is OPEN; skipping Legacy API call")
		}
		newCount := req.ExportRetryCount + 1
		p.Repo.UpdateExportStatus(ctx, event.RequestID, model.StatusExportPending, newCount)

		delay := calculateBackoff(newCount)
		return true, delay, err
	}

	err = p.Repo.UpdateExportStatus(ctx, event.RequestID, model.StatusExportCompleted, 0)
	return false, 0, err
}

// calculateBackoff determines how long to wait before retrying a failed job.
// It increases the delay exponentially with each retry.
func calculateBackoff(retryCount int) int32 {
	backoff := int32(math.Pow(2, float64(retryCount)) * 10)
	if backoff > 3600 {
		return 3600 // max at 1 hour
	}
	return backoff
}
