package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/factory"
	"github.com/vibast-solutions/ms-go-orders/app/metrics"
)

type WhatsAppConfig struct {
	APIURL     string
	APIKey     string
	AdminPhone string
	Workers    int
	QueueSize  int
}

type whatsAppMessage struct {
	event string
	phone string
	text  string
}

// WhatsAppNotifier queues messages and delivers them from a fixed pool of
// workers so the order flow never waits on the messaging API.
type WhatsAppNotifier struct {
	cfg    WhatsAppConfig
	client *http.Client
	logger logrus.FieldLogger
	inbox  chan whatsAppMessage
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewWhatsAppNotifier(cfg WhatsAppConfig) *WhatsAppNotifier {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	return &WhatsAppNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: factory.NewModuleLogger("whatsapp-notifier"),
		inbox:  make(chan whatsAppMessage, cfg.QueueSize),
	}
}

func (n *WhatsAppNotifier) Start() {
	for i := 0; i < n.cfg.Workers; i++ {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			for msg := range n.inbox {
				n.send(msg)
			}
		}()
	}
}

// Close stops accepting messages and waits for queued ones to be delivered.
func (n *WhatsAppNotifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.inbox)
	}
	n.mu.Unlock()
	n.wg.Wait()
}

func (n *WhatsAppNotifier) configured() bool {
	return strings.TrimSpace(n.cfg.APIURL) != "" && strings.TrimSpace(n.cfg.APIKey) != ""
}

func (n *WhatsAppNotifier) enqueue(event, phone, text string) {
	if phone == "" {
		return
	}
	if !n.configured() {
		n.logger.WithField("event", event).Debug("whatsapp api not configured, skipping notification")
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}

	select {
	case n.inbox <- whatsAppMessage{event: event, phone: phone, text: text}:
	default:
		metrics.RecordNotification("whatsapp", event, false)
		n.logger.WithField("event", event).Warn("whatsapp queue full, dropping notification")
	}
}

func (n *WhatsAppNotifier) send(msg whatsAppMessage) {
	body, _ := json.Marshal(map[string]string{"phone": msg.phone, "message": msg.text})

	req, err := http.NewRequest(http.MethodPost, n.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		n.logger.WithError(err).Error("whatsapp request build failed")
		return
	}
	req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		metrics.RecordNotification("whatsapp", msg.event, false)
		n.logger.WithError(err).WithField("event", msg.event).Error("whatsapp notification failed")
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		metrics.RecordNotification("whatsapp", msg.event, false)
		n.logger.WithFields(logrus.Fields{"event": msg.event, "status": resp.StatusCode}).Error("whatsapp notification rejected")
		return
	}

	metrics.RecordNotification("whatsapp", msg.event, true)
	n.logger.WithFields(logrus.Fields{"event": msg.event, "phone": maskPhone(msg.phone)}).Info("whatsapp notification sent")
}

func (n *WhatsAppNotifier) NotifyOrderCreated(_ context.Context, order *entity.Order, phone string) {
	var b strings.Builder
	fmt.Fprintf(&b, "*New Order*\n\nOrder: #%s\nProduct: %s\nTarget: %s\nTotal: %s\nMethod: %s\n\n",
		order.OrderNumber, order.ProductName, formatTarget(order), FormatRupiah(order.TotalPrice), order.PaymentMethod)
	if order.PaymentURL != nil && *order.PaymentURL != "" {
		fmt.Fprintf(&b, "Payment link:\n%s", *order.PaymentURL)
	} else {
		b.WriteString("Please complete your payment.")
	}
	n.enqueue(EventOrderCreated, phone, b.String())

	user := "Guest"
	if order.HasOwner() {
		user = *order.UserID
	}
	admin := fmt.Sprintf("*New Order Alert*\n\nOrder: #%s\nUser: %s\nProduct: %s\nTarget: %s\nAmount: %s\nPayment: %s\nTime: %s",
		order.OrderNumber, user, order.ProductName, formatTarget(order), FormatRupiah(order.TotalPrice), order.PaymentMethod,
		order.CreatedAt.Format("2 January 2006 15:04"))
	n.enqueue(EventOrderCreated, n.cfg.AdminPhone, admin)
}

func (n *WhatsAppNotifier) NotifyOrderPaid(_ context.Context, order *entity.Order, phone string) {
	n.enqueue(EventOrderPaid, phone, fmt.Sprintf("*Payment Received*\n\nOrder: #%s\nProduct: %s\nTotal: %s\n\nYour order is being processed.",
		order.OrderNumber, order.ProductName, FormatRupiah(order.TotalPrice)))
}

func (n *WhatsAppNotifier) NotifyOrderSuccess(_ context.Context, order *entity.Order, phone string) {
	sn := ""
	if order.ProviderSN != nil && *order.ProviderSN != "" {
		sn = "\nSN: " + *order.ProviderSN
	}
	n.enqueue(EventOrderSuccess, phone, fmt.Sprintf("*Order Completed*\n\nOrder: #%s\nProduct: %s\nTarget: %s%s\n\nYour order has been delivered.",
		order.OrderNumber, order.ProductName, formatTarget(order), sn))
}

func (n *WhatsAppNotifier) NotifyOrderFailed(_ context.Context, order *entity.Order, phone string) {
	reason := "The provider could not process this order"
	if order.ProviderMessage != nil && *order.ProviderMessage != "" {
		reason = *order.ProviderMessage
	}
	n.enqueue(EventOrderFailed, phone, fmt.Sprintf("*Order Failed*\n\nOrder: #%s\nProduct: %s\nReason: %s\n\nContact support if you have questions.",
		order.OrderNumber, order.ProductName, reason))
}

func (n *WhatsAppNotifier) NotifyRefund(_ context.Context, order *entity.Order, amount decimal.Decimal, phone string) {
	n.enqueue(EventOrderRefund, phone, fmt.Sprintf("*Refund Completed*\n\nOrder: #%s\nRefund: %s\n\nThe amount was returned to your balance.",
		order.OrderNumber, FormatRupiah(amount)))
}

func (n *WhatsAppNotifier) NotifyTopupSuccess(_ context.Context, txn *entity.BalanceTransaction, phone string) {
	n.enqueue(EventTopupSuccess, phone, fmt.Sprintf("*Top-up Successful*\n\nAmount: %s\nCurrent balance: %s",
		FormatRupiah(txn.Amount), FormatRupiah(txn.BalanceAfter)))
}

func formatTarget(order *entity.Order) string {
	if order.TargetServer != nil && *order.TargetServer != "" {
		return order.TargetID + " (" + *order.TargetServer + ")"
	}
	return order.TargetID
}

// FormatRupiah renders whole rupiah with dot thousands separators, e.g. "Rp 24.000".
func FormatRupiah(amount decimal.Decimal) string {
	digits := amount.Abs().Round(0).String()
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if amount.Round(0).IsNegative() {
		return "-Rp " + b.String()
	}
	return "Rp " + b.String()
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
