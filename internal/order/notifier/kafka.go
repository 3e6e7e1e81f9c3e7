package notifier

import (
	"context"
	"encoding/json"

	"github.com/fekuna/omnipos-stock-service/internal/order/dto"
)

// Publisher is satisfied by broker.KafkaProducer.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// KafkaNotifier publishes order events keyed by order id.
type KafkaNotifier struct {
	publisher Publisher
}

func NewKafkaNotifier(p Publisher) *KafkaNotifier {
	return &KafkaNotifier{publisher: p}
}

func (n *KafkaNotifier) OrderChanged(ctx context.Context, event *dto.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.publisher.Publish(ctx, event.OrderID, payload)
}
