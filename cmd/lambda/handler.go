package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/iho/txconsumer/internal/usecase"
)

// batchProcessor is the part of the dispatcher the SQS handler drives.
type batchProcessor interface {
	ProcessBatch(ctx context.Context, msgs []usecase.Message) *usecase.BatchReport
}

// sqsHandler turns SQS batches into dispatcher batches.
type sqsHandler struct {
	processor batchProcessor
	requeue   bool
	logger    zerolog.Logger
}

// Handle processes every record. Business rejections are final and are
// never reported back. Storage failures are reported as batch item failures
// only when requeue is on, so SQS redelivers just those records.
func (h *sqsHandler) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	msgs := make([]usecase.Message, len(event.Records))
	for i, record := range event.Records {
		msgs[i] = usecase.Message{ID: record.MessageId, Body: []byte(record.Body)}
	}

	report := h.processor.ProcessBatch(ctx, msgs)

	h.logger.Info().
		Int("records", len(msgs)).
		Int("committed", report.Committed).
		Int("rejected", report.Rejected).
		Msg("batch processed")

	resp := events.SQSEventResponse{}
	if !h.requeue {
		return resp, nil
	}

	for _, res := range report.Retryable() {
		h.logger.Warn().
			Str("message_id", res.MessageID).
			Str("object_key", res.ObjectKey).
			Str("reason", res.Reason()).
			Msg("requeueing message")
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
			ItemIdentifier: res.MessageID,
		})
	}

	return resp, nil
}
