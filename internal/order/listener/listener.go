package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/order"
	"github.com/fekuna/omnipos-stock-service/internal/order/dto"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
)

// Consumer is satisfied by broker.KafkaConsumer.
type Consumer interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessage(ctx context.Context, msg kafka.Message) error
}

// OrderListener applies status changes published by the POS front end.
type OrderListener struct {
	consumer Consumer
	uc       order.UseCase
	logger   logger.ZapLogger
}

func NewOrderListener(consumer Consumer, uc order.UseCase, logger logger.ZapLogger) *OrderListener {
	return &OrderListener{
		consumer: consumer,
		uc:       uc,
		logger:   logger,
	}
}

// Start consumes until ctx is cancelled.
func (l *OrderListener) Start(ctx context.Context) error {
	l.logger.Info("Starting Order Kafka Listener")
	for {
		msg, err := l.consumer.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("Stopping Order Kafka Listener")
				return nil
			}
			l.logger.Error("Failed to read kafka message", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		l.processMessage(ctx, msg.Value)
		if err := l.consumer.CommitMessage(ctx, msg); err != nil && ctx.Err() == nil {
			l.logger.Error("Failed to commit kafka message", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

type OrderStatusEvent struct {
	EventID   string             `json:"event_id"`
	EventType string             `json:"event_type"`
	Payload   OrderStatusPayload `json:"payload"`
	Timestamp time.Time          `json:"timestamp"`
}

type OrderStatusPayload struct {
	OrderID    string `json:"order_id"`
	MerchantID string `json:"merchant_id"`
	Status     string `json:"status"`
}

// processMessage never blocks the partition on a bad event: business
// rejections are logged and skipped, contention is retried a few times.
func (l *OrderListener) processMessage(ctx context.Context, value []byte) {
	var event OrderStatusEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	if event.EventType != dto.EventOrderStatusChanged {
		return
	}

	l.logger.Info("Processing OrderStatusChanged event",
		zap.String("order_id", event.Payload.OrderID),
		zap.String("status", event.Payload.Status),
	)

	input := &dto.UpdateStatusInput{
		ID:         event.Payload.OrderID,
		MerchantID: event.Payload.MerchantID,
		Status:     event.Payload.Status,
	}
	op := func() (struct{}, error) {
		_, err := l.uc.UpdateOrderStatus(ctx, input)
		if err != nil && !apperror.IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, op, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))
	if err != nil {
		l.logger.Error("Failed to apply order status event",
			zap.String("event_id", event.EventID),
			zap.String("order_id", event.Payload.OrderID),
			zap.String("code", string(apperror.CodeOf(err))),
			zap.Error(err),
		)
	}
}
