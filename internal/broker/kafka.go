package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"planguard/internal/config"
	"planguard/internal/constants"
	"planguard/internal/logger"
	"planguard/pkg/metrics"
	"planguard/pkg/models"
	"planguard/pkg/retry"
	"planguard/pkg/tracing"
)

type KafkaProducer struct {
	writer *kafka.Writer
	cfg    config.KafkaConfig
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaProducer{writer: w, cfg: cfg, logger: log}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, event models.PackEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal pack event: %w", err)
	}

	headers := []kafka.Header{}
	headers = tracing.InjectTraceContext(ctx, headers)

	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(event.PackID),
		Value:   body,
		Headers: headers,
		Time:    time.Now(),
	}

	policy := retry.DefaultPolicy()
	if p.cfg.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = p.cfg.Retry.MaxAttempts
	}
	if p.cfg.Retry.InitialInterval > 0 {
		policy.InitialInterval = p.cfg.Retry.InitialInterval
	}
	if p.cfg.Retry.MaxInterval > 0 {
		policy.MaxInterval = p.cfg.Retry.MaxInterval
	}
	if p.cfg.Retry.Multiplier > 0 {
		policy.Multiplier = p.cfg.Retry.Multiplier
	}
	if p.cfg.Retry.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = p.cfg.Retry.MaxElapsedTime
	}

	err = retry.RetryWithCallback(ctx, policy, func() error {
		return p.writer.WriteMessages(ctx, msg)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues("broker", topic).Inc()
		p.logger.WarnwCtx(ctx, "Retrying pack event publish",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"topic", topic,
		)
	})
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
