package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/factory"
	"github.com/vibast-solutions/ms-go-orders/app/metrics"
)

const eventVersion = 1

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderPayload struct {
	OrderID       string  `json:"order_id"`
	OrderNumber   string  `json:"order_number"`
	Kind          string  `json:"kind"`
	UserID        *string `json:"user_id"`
	ProductName   string  `json:"product_name"`
	TargetID      string  `json:"target_id"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
	PaymentMethod string  `json:"payment_method"`
	TotalPrice    string  `json:"total_price"`
	Amount        string  `json:"amount,omitempty"`
	ProviderTrxID *string `json:"provider_trx_id,omitempty"`
	ProviderSN    *string `json:"provider_sn,omitempty"`
}

type BalancePayload struct {
	UserID       string  `json:"user_id"`
	OrderID      *string `json:"order_id"`
	Type         string  `json:"type"`
	Amount       string  `json:"amount"`
	BalanceAfter string  `json:"balance_after"`
}

// KafkaNotifier publishes lifecycle events to the order-events topic, keyed
// by order id so one order's events stay ordered within a partition.
type KafkaNotifier struct {
	writer   messageWriter
	producer string
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewKafkaNotifier(brokers []string, topic, producer string) *KafkaNotifier {
	return newKafkaNotifier(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
	}, producer)
}

func newKafkaNotifier(writer messageWriter, producer string) *KafkaNotifier {
	return &KafkaNotifier{
		writer:   writer,
		producer: producer,
		logger:   factory.NewModuleLogger("kafka-notifier"),
		now:      time.Now,
	}
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

func (n *KafkaNotifier) publish(ctx context.Context, eventType, key string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		n.logger.WithError(err).WithField("event", eventType).Error("encode event payload failed")
		return
	}

	envelope := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		OccurredAt:    n.now().UTC(),
		Producer:      n.producer,
		CorrelationID: key,
		Payload:       raw,
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		n.logger.WithError(err).WithField("event", eventType).Error("encode event envelope failed")
		return
	}

	err = n.writer.WriteMessages(context.WithoutCancel(ctx), kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  envelope.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	})
	metrics.RecordNotification("kafka", eventType, err == nil)
	if err != nil {
		n.logger.WithError(err).WithFields(logrus.Fields{"event": eventType, "key": key}).Error("publish order event failed")
	}
}

func orderPayload(order *entity.Order) OrderPayload {
	return OrderPayload{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Kind:          string(order.Kind),
		UserID:        order.UserID,
		ProductName:   order.ProductName,
		TargetID:      order.TargetID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		PaymentMethod: order.PaymentMethod,
		TotalPrice:    order.TotalPrice.StringFixed(2),
		ProviderTrxID: order.ProviderTrxID,
		ProviderSN:    order.ProviderSN,
	}
}

func (n *KafkaNotifier) NotifyOrderCreated(ctx context.Context, order *entity.Order, _ string) {
	n.publish(ctx, EventOrderCreated, order.ID, orderPayload(order))
}

func (n *KafkaNotifier) NotifyOrderPaid(ctx context.Context, order *entity.Order, _ string) {
	n.publish(ctx, EventOrderPaid, order.ID, orderPayload(order))
}

func (n *KafkaNotifier) NotifyOrderSuccess(ctx context.Context, order *entity.Order, _ string) {
	n.publish(ctx, EventOrderSuccess, order.ID, orderPayload(order))
}

func (n *KafkaNotifier) NotifyOrderFailed(ctx context.Context, order *entity.Order, _ string) {
	n.publish(ctx, EventOrderFailed, order.ID, orderPayload(order))
}

func (n *KafkaNotifier) NotifyRefund(ctx context.Context, order *entity.Order, amount decimal.Decimal, _ string) {
	payload := orderPayload(order)
	payload.Amount = amount.StringFixed(2)
	n.publish(ctx, EventOrderRefund, order.ID, payload)
}

func (n *KafkaNotifier) NotifyTopupSuccess(ctx context.Context, txn *entity.BalanceTransaction, _ string) {
	key := txn.UserID
	if txn.OrderID != nil {
		key = *txn.OrderID
	}
	n.publish(ctx, EventTopupSuccess, key, BalancePayload{
		UserID:       txn.UserID,
		OrderID:      txn.OrderID,
		Type:         string(txn.Type),
		Amount:       txn.Amount.StringFixed(2),
		BalanceAfter: txn.BalanceAfter.StringFixed(2),
	})
}
