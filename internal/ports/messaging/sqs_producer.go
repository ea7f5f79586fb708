package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"attendance.service/pkg/telemetry"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSProducer publishes domain events to AWS SQS queues.
type SQSProducer struct {
	client             SQSClient
	attendanceQueueURL string
	correctionQueueURL string
}

// NewSQSProducer creates a new instance of the SQS producer.
func NewSQSProducer(client SQSClient, attendanceQueueURL, correctionQueueURL string) *SQSProducer {
	return &SQSProducer{
		client:             client,
		attendanceQueueURL: attendanceQueueURL,
		correctionQueueURL: correctionQueueURL,
	}
}

// PublishClockOut sends a clock-out event to the attendance queue.
func (p *SQSProducer) PublishClockOut(ctx context.Context, event ClockOutEvent) error {
	return p.publish(ctx, p.attendanceQueueURL, "CLOCK_OUT", event)
}

// PublishCorrectionApproved sends an approval event to the correction queue
// consumed by the export worker.
func (p *SQSProducer) PublishCorrectionApproved(ctx context.Context, event CorrectionApprovedEvent) error {
	return p.publish(ctx, p.correctionQueueURL, "CORRECTION_APPROVED", event)
}

func (p *SQSProducer) publish(ctx context.Context, queueURL, eventType string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Carry the trace context in the message attributes so the consumer
	// continues the same trace.
	attrs := telemetry.InjectTraceContext(ctx)
	attrs["EventType"] = types.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(eventType),
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attrs,
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("failed to send %s message: %w", eventType, err)
	}
	return nil
}
