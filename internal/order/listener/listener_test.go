package listener

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/order"
	"github.com/fekuna/omnipos-stock-service/internal/order/dto"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
)

type fakeUseCase struct {
	order.UseCase
	mu    sync.Mutex
	calls []dto.UpdateStatusInput
	errs  []error
}

func (f *fakeUseCase) UpdateOrderStatus(ctx context.Context, input *dto.UpdateStatusInput) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, *input)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &model.Order{}, nil
}

type fakeConsumer struct {
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (c *fakeConsumer) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(c.msgs) == 0 {
		c.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := c.msgs[0]
	c.msgs = c.msgs[1:]
	return msg, nil
}

func (c *fakeConsumer) CommitMessage(ctx context.Context, msg kafka.Message) error {
	c.committed = append(c.committed, msg.Offset)
	return nil
}

func statusEvent(t *testing.T, eventType, orderID, status string) []byte {
	t.Helper()
	b, err := json.Marshal(OrderStatusEvent{
		EventID:   "e-" + orderID,
		EventType: eventType,
		Payload:   OrderStatusPayload{OrderID: orderID, MerchantID: "m1", Status: status},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestProcessMessageAppliesStatus(t *testing.T) {
	uc := &fakeUseCase{}
	l := NewOrderListener(nil, uc, logger.NewNop())

	l.processMessage(context.Background(), statusEvent(t, dto.EventOrderStatusChanged, "o1", "COMPLETED"))

	if len(uc.calls) != 1 || uc.calls[0].ID != "o1" || uc.calls[0].Status != "COMPLETED" || uc.calls[0].MerchantID != "m1" {
		t.Fatalf("unexpected calls %+v", uc.calls)
	}
}

func TestProcessMessageSkipsOtherEventsAndGarbage(t *testing.T) {
	uc := &fakeUseCase{}
	l := NewOrderListener(nil, uc, logger.NewNop())

	l.processMessage(context.Background(), statusEvent(t, "OrderCreated", "o1", "PENDING"))
	l.processMessage(context.Background(), []byte("not json"))

	if len(uc.calls) != 0 {
		t.Fatalf("unexpected calls %+v", uc.calls)
	}
}

func TestProcessMessageRetriesConflicts(t *testing.T) {
	uc := &fakeUseCase{errs: []error{apperror.ErrConcurrencyConflict}}
	l := NewOrderListener(nil, uc, logger.NewNop())

	l.processMessage(context.Background(), statusEvent(t, dto.EventOrderStatusChanged, "o1", "ONGOING"))
	if len(uc.calls) != 2 {
		t.Fatalf("expected a retry, got %d calls", len(uc.calls))
	}
}

func TestProcessMessageDoesNotRetryRejections(t *testing.T) {
	uc := &fakeUseCase{errs: []error{apperror.ErrInvalidTransition}}
	l := NewOrderListener(nil, uc, logger.NewNop())

	l.processMessage(context.Background(), statusEvent(t, dto.EventOrderStatusChanged, "o1", "PENDING"))
	if len(uc.calls) != 1 {
		t.Fatalf("rejection was retried: %d calls", len(uc.calls))
	}
}

func TestStartCommitsEveryMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := &fakeConsumer{cancel: cancel, msgs: []kafka.Message{
		{Offset: 1, Value: statusEvent(t, dto.EventOrderStatusChanged, "o1", "ONGOING")},
		{Offset: 2, Value: []byte("garbage")},
	}}
	uc := &fakeUseCase{}

	if err := NewOrderListener(consumer, uc, logger.NewNop()).Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(consumer.committed) != 2 {
		t.Fatalf("expected 2 commits, got %v", consumer.committed)
	}
	if len(uc.calls) != 1 {
		t.Fatalf("expected 1 status update, got %d", len(uc.calls))
	}
}
