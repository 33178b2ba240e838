package gateway

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-orders/app/factory"
	"github.com/vibast-solutions/ms-go-orders/app/metrics"
)

type XenditConfig struct {
	BaseURL            string
	SecretKey          string
	CallbackToken      string
	SuccessRedirectURL string
	FailureRedirectURL string
	InvoiceDuration    time.Duration
	HTTPTimeout        time.Duration
}

type XenditGateway struct {
	cfg    XenditConfig
	client *http.Client
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewXenditGateway(cfg XenditConfig) *XenditGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cfg.InvoiceDuration <= 0 {
		cfg.InvoiceDuration = 24 * time.Hour
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.xendit.co"
	}

	return &XenditGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: factory.NewModuleLogger("xendit-gateway"),
		now:    time.Now,
	}
}

type invoicePayload struct {
	ExternalID         string            `json:"external_id"`
	Amount             int64             `json:"amount"`
	Description        string            `json:"description"`
	Customer           *invoiceCustomer  `json:"customer,omitempty"`
	SuccessRedirectURL string            `json:"success_redirect_url,omitempty"`
	FailureRedirectURL string            `json:"failure_redirect_url,omitempty"`
	InvoiceDuration    int64             `json:"invoice_duration"`
	Currency           string            `json:"currency"`
	Items              []invoiceItem     `json:"items"`
	Metadata           map[string]string `json:"metadata"`
}

type invoiceCustomer struct {
	Email string `json:"email"`
}

type invoiceItem struct {
	Name     string `json:"name"`
	Quantity int32  `json:"quantity"`
	Price    int64  `json:"price"`
}

type invoiceResponse struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	InvoiceURL string `json:"invoice_url"`
	ExpiryDate string `json:"expiry_date"`
	PaidAt     string `json:"paid_at"`
}

func (g *XenditGateway) CreateInvoice(ctx context.Context, req InvoiceRequest) InvoiceResult {
	start := time.Now()
	result := g.createInvoice(ctx, req)
	metrics.ObserveGatewayRequest("create_invoice", start, result.Success)
	if !result.Success {
		g.logger.WithFields(logrus.Fields{"order_number": req.OrderNumber, "error": result.Error}).Error("xendit invoice creation failed")
	}
	return result
}

func (g *XenditGateway) createInvoice(ctx context.Context, req InvoiceRequest) InvoiceResult {
	if strings.TrimSpace(g.cfg.SecretKey) == "" {
		return InvoiceResult{Error: "xendit secret key is not configured"}
	}

	externalID := fmt.Sprintf("%s-%d", req.OrderNumber, g.now().UnixMilli())
	amount := req.Amount.Round(0).IntPart()
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Payment for order " + req.OrderNumber
	}

	items := make([]invoiceItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, invoiceItem{Name: item.Name, Quantity: item.Quantity, Price: item.Price.Round(0).IntPart()})
	}
	if len(items) == 0 {
		items = append(items, invoiceItem{Name: description, Quantity: 1, Price: amount})
	}

	payload := invoicePayload{
		ExternalID:         externalID,
		Amount:             amount,
		Description:        description,
		SuccessRedirectURL: withOrderParam(g.cfg.SuccessRedirectURL, req.OrderNumber),
		FailureRedirectURL: withOrderParam(g.cfg.FailureRedirectURL, req.OrderNumber),
		InvoiceDuration:    int64(g.cfg.InvoiceDuration / time.Second),
		Currency:           "IDR",
		Items:              items,
		Metadata: map[string]string{
			"orderId":     req.OrderID,
			"orderNumber": req.OrderNumber,
			"userId":      req.UserID,
		},
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		payload.Customer = &invoiceCustomer{Email: email}
	}

	body, err := g.do(ctx, http.MethodPost, "/v2/invoices", payload, externalID)
	if err != nil {
		return InvoiceResult{Error: err.Error()}
	}

	var invoice invoiceResponse
	if err := json.Unmarshal(body, &invoice); err != nil {
		return InvoiceResult{Error: "invalid invoice response: " + err.Error()}
	}
	if strings.TrimSpace(invoice.ID) == "" || strings.TrimSpace(invoice.InvoiceURL) == "" {
		return InvoiceResult{Error: "invoice response missing id or url"}
	}

	result := InvoiceResult{
		Success:    true,
		InvoiceID:  invoice.ID,
		InvoiceURL: invoice.InvoiceURL,
		ExternalID: invoice.ExternalID,
		ExpiryDate: parseTime(invoice.ExpiryDate),
	}
	if result.ExternalID == "" {
		result.ExternalID = externalID
	}
	return result
}

func (g *XenditGateway) GetInvoice(ctx context.Context, invoiceID string) InvoiceStatusResult {
	start := time.Now()
	result := g.getInvoice(ctx, invoiceID)
	metrics.ObserveGatewayRequest("get_invoice", start, result.Success)
	return result
}

func (g *XenditGateway) getInvoice(ctx context.Context, invoiceID string) InvoiceStatusResult {
	if strings.TrimSpace(g.cfg.SecretKey) == "" {
		return InvoiceStatusResult{Error: "xendit secret key is not configured"}
	}
	if strings.TrimSpace(invoiceID) == "" {
		return InvoiceStatusResult{Error: "invoice id is required"}
	}

	body, err := g.do(ctx, http.MethodGet, "/v2/invoices/"+url.PathEscape(invoiceID), nil, "")
	if err != nil {
		return InvoiceStatusResult{Error: err.Error()}
	}

	var invoice invoiceResponse
	if err := json.Unmarshal(body, &invoice); err != nil {
		return InvoiceStatusResult{Error: "invalid invoice response: " + err.Error()}
	}

	return InvoiceStatusResult{
		Success: true,
		Status:  NormalizeStatus(invoice.Status),
		PaidAt:  parseTime(invoice.PaidAt),
	}
}

func (g *XenditGateway) ExpireInvoice(ctx context.Context, invoiceID string) Result {
	start := time.Now()
	result := g.expireInvoice(ctx, invoiceID)
	metrics.ObserveGatewayRequest("expire_invoice", start, result.Success)
	return result
}

func (g *XenditGateway) expireInvoice(ctx context.Context, invoiceID string) Result {
	if strings.TrimSpace(g.cfg.SecretKey) == "" {
		return Result{Error: "xendit secret key is not configured"}
	}
	if strings.TrimSpace(invoiceID) == "" {
		return Result{Error: "invoice id is required"}
	}

	if _, err := g.do(ctx, http.MethodPost, "/invoices/"+url.PathEscape(invoiceID)+"/expire!", nil, ""); err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Success: true}
}

// VerifyWebhookToken compares the x-callback-token header in constant time.
// An unconfigured token rejects everything.
func (g *XenditGateway) VerifyWebhookToken(token string) bool {
	expected := strings.TrimSpace(g.cfg.CallbackToken)
	if expected == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}

func (g *XenditGateway) NormalizeCallback(payload []byte) (*CallbackEvent, error) {
	var raw struct {
		ID             string          `json:"id"`
		ExternalID     string          `json:"external_id"`
		Status         string          `json:"status"`
		Amount         decimal.Decimal `json:"amount"`
		PaidAmount     decimal.Decimal `json:"paid_amount"`
		PaidAt         string          `json:"paid_at"`
		PaymentMethod  string          `json:"payment_method"`
		PaymentChannel string          `json:"payment_channel"`
		Metadata       struct {
			OrderID     string `json:"orderId"`
			OrderNumber string `json:"orderNumber"`
			UserID      string `json:"userId"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode invoice callback: %w", err)
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, errors.New("invoice callback missing id")
	}

	return &CallbackEvent{
		InvoiceID:      strings.TrimSpace(raw.ID),
		ExternalID:     raw.ExternalID,
		Status:         NormalizeStatus(raw.Status),
		Amount:         raw.Amount,
		PaidAmount:     raw.PaidAmount,
		PaidAt:         parseTime(raw.PaidAt),
		PaymentMethod:  raw.PaymentMethod,
		PaymentChannel: raw.PaymentChannel,
		OrderID:        raw.Metadata.OrderID,
		OrderNumber:    raw.Metadata.OrderNumber,
		UserID:         raw.Metadata.UserID,
	}, nil
}

// NormalizeStatus folds the gateway's invoice statuses into paid, expired,
// pending and unknown. SETTLED counts as paid.
func NormalizeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid", "settled":
		return InvoiceStatusPaid
	case "expired":
		return InvoiceStatusExpired
	case "pending":
		return InvoiceStatusPending
	default:
		return InvoiceStatusUnknown
	}
}

func (g *XenditGateway) do(ctx context.Context, method, path string, payload interface{}, idempotencyKey string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(g.cfg.SecretKey, "")
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("X-IDEMPOTENCY-KEY", idempotencyKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("xendit request failed: path=%s status=%d body=%s", path, resp.StatusCode, string(body))
	}

	return body, nil
}

func withOrderParam(base, orderNumber string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "order=" + url.QueryEscape(orderNumber)
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}
