package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"event-director/internal/config"
	"event-director/internal/logger"
	"event-director/pkg/errors"
	"event-director/pkg/metrics"
	"event-director/pkg/retry"
)

const (
	HeaderDLQReason      = "dlq_reason"
	HeaderDLQSourceTopic = "dlq_source_topic"
	HeaderDLQTimestamp   = "dlq_timestamp"
)

// processor runs a handler with the configured retry policy and parks
// deliveries that still fail on the dead-letter destination.
type processor struct {
	policy      retry.Policy
	dlq         Producer
	dlqTopic    string
	logger      logger.Logger
	serviceName string
}

func newProcessor(cfg config.RetryConfig, dlq Producer, dlqTopic string, log logger.Logger) *processor {
	return &processor{
		policy:      retryPolicy(cfg),
		dlq:         dlq,
		dlqTopic:    dlqTopic,
		logger:      log,
		serviceName: "unknown",
	}
}

func retryPolicy(cfg config.RetryConfig) retry.Policy {
	policy := retry.Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}

	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialInterval > 0 {
		policy.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		policy.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		policy.Multiplier = cfg.Multiplier
	}
	if cfg.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = cfg.MaxElapsedTime
	}
	return policy
}

// handle returns nil once the delivery may be acknowledged: it either
// succeeded or was parked on the DLQ. A non-nil error means the delivery
// was neither processed nor parked.
func (p *processor) handle(ctx context.Context, d Delivery, handler HandlerFunc) error {
	err := p.processWithRetry(ctx, d, handler)
	if err == nil {
		return nil
	}

	p.logger.ErrorwCtx(ctx, "Failed to process message after retries",
		"error", err,
		"topic", d.Topic,
	)

	if p.dlq == nil || p.dlqTopic == "" {
		p.logger.WarnwCtx(ctx, "No DLQ configured, committing message to avoid blocking",
			"topic", d.Topic,
		)
		return nil
	}

	if dlqErr := p.sendToDLQ(ctx, d, err); dlqErr != nil {
		p.logger.ErrorwCtx(ctx, "Failed to send message to DLQ",
			"error", dlqErr,
			"topic", d.Topic,
		)
		return dlqErr
	}
	return nil
}

func (p *processor) processWithRetry(ctx context.Context, d Delivery, handler HandlerFunc) error {
	return retry.RetryWithCallback(ctx, p.policy, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.RecoverPanic(r)
				p.logger.ErrorwCtx(ctx, "Panic recovered during message processing",
					"error", err,
					"topic", d.Topic,
				)
			}
		}()
		return handler(ctx, d)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(p.serviceName, d.Topic).Inc()
		p.logger.WarnwCtx(ctx, "Retrying message processing",
			"attempt", attempt,
			"max_attempts", p.policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"topic", d.Topic,
		)
	})
}

// sendToDLQ forwards the original body untouched; the failure reason
// travels in headers.
func (p *processor) sendToDLQ(ctx context.Context, d Delivery, originalErr error) error {
	headers := make(map[string]string, len(d.Headers)+3)
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[HeaderDLQReason] = originalErr.Error()
	headers[HeaderDLQSourceTopic] = d.Topic
	headers[HeaderDLQTimestamp] = time.Now().UTC().Format(time.RFC3339Nano)

	err := p.dlq.Publish(ctx, p.dlqTopic, Message{
		Key:     d.Key,
		Payload: json.RawMessage(d.Body),
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	reason := "max_retries_exceeded"
	if retry.IsFatal(originalErr) {
		reason = "fatal"
	}
	metrics.DLQMessagesTotal.WithLabelValues(p.serviceName, d.Topic, reason).Inc()
	p.logger.InfowCtx(ctx, "Message sent to DLQ",
		"source_topic", d.Topic,
		"dlq_topic", p.dlqTopic,
		"reason", originalErr.Error(),
	)
	return nil
}
