package messaging

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Producer defines the output port for publishing domain events.
type Producer interface {
	PublishClockOut(ctx context.Context, event ClockOutEvent) error
	PublishCorrectionApproved(ctx context.Context, event CorrectionApprovedEvent) error
}

// SQSClient defines the interface for the AWS SQS client.
type SQSClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}
