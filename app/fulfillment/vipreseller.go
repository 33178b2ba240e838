package fulfillment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-orders/app/factory"
	"github.com/vibast-solutions/ms-go-orders/app/metrics"
)

type VIPResellerConfig struct {
	BaseURL                   string
	APIID                     string
	APIKey                    string
	CallbackSecret            string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
	RetryAttempts             int
	RetryBaseDelay            time.Duration
}

type VIPReseller struct {
	cfg    VIPResellerConfig
	client *http.Client
	logger logrus.FieldLogger
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

func NewVIPReseller(cfg VIPResellerConfig) *VIPReseller {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.SignatureToleranceSeconds <= 0 {
		cfg.SignatureToleranceSeconds = 300
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &VIPReseller{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: factory.NewModuleLogger("vipreseller-provider"),
		sleep:  sleepContext,
		now:    time.Now,
	}
}

type apiResponse struct {
	Result  bool            `json:"result"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type orderData struct {
	TrxID   string `json:"trxid"`
	Status  string `json:"status"`
	SN      string `json:"sn"`
	Message string `json:"message"`
}

// errRetryable marks failures worth another attempt: transport errors,
// 429 and 5xx responses.
type errRetryable struct{ err error }

func (e errRetryable) Error() string { return e.err.Error() }
func (e errRetryable) Unwrap() error { return e.err }

func (p *VIPReseller) PlaceOrder(ctx context.Context, req PlaceOrderRequest) PlaceOrderResult {
	start := time.Now()
	result := p.placeOrder(ctx, req)
	metrics.ObserveProviderRequest("place_order", start, result.Success)
	if !result.Success {
		p.logger.WithFields(logrus.Fields{"sku": req.SKU, "target_id": req.TargetID, "error": result.Error}).Error("vipreseller order failed")
	}
	return result
}

func (p *VIPReseller) placeOrder(ctx context.Context, req PlaceOrderRequest) PlaceOrderResult {
	dataNo := req.TargetID
	if req.TargetServer != "" {
		dataNo = req.TargetID + "|" + req.TargetServer
	}

	resp, err := p.request(ctx, "/order", map[string]string{
		"service": req.SKU,
		"data_no": dataNo,
	})
	if err != nil {
		return PlaceOrderResult{Status: StatusFailed, Error: err.Error()}
	}
	if !resp.Result {
		return PlaceOrderResult{Status: StatusFailed, Error: fallback(resp.Message, "order failed")}
	}

	var data orderData
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return PlaceOrderResult{Status: StatusFailed, Error: "invalid order response: " + err.Error()}
		}
	}

	return PlaceOrderResult{
		Success: true,
		TrxID:   data.TrxID,
		Status:  MapStatus(fallback(strings.ToLower(data.Status), "pending")),
		Message: resp.Message,
	}
}

func (p *VIPReseller) CheckStatus(ctx context.Context, trxID string) StatusResult {
	start := time.Now()
	result := p.checkStatus(ctx, trxID)
	metrics.ObserveProviderRequest("check_status", start, result.Success)
	return result
}

func (p *VIPReseller) checkStatus(ctx context.Context, trxID string) StatusResult {
	resp, err := p.request(ctx, "/status", map[string]string{"trxid": trxID})
	if err != nil {
		return StatusResult{Error: err.Error()}
	}
	if !resp.Result {
		return StatusResult{Error: fallback(resp.Message, "status check failed")}
	}

	var data orderData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return StatusResult{Error: "invalid status response: " + err.Error()}
	}

	return StatusResult{
		Success: true,
		TrxID:   data.TrxID,
		Status:  MapStatus(strings.ToLower(data.Status)),
		SN:      data.SN,
		Message: fallback(data.Message, resp.Message),
	}
}

func (p *VIPReseller) Services(ctx context.Context) ([]Service, error) {
	start := time.Now()
	resp, err := p.request(ctx, "/services", nil)
	if err == nil && !resp.Result {
		err = errors.New(fallback(resp.Message, "failed to get services"))
	}
	metrics.ObserveProviderRequest("services", start, err == nil)
	if err != nil {
		return nil, err
	}

	services := make([]Service, 0)
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &services); err != nil {
			return nil, err
		}
	}
	return services, nil
}

func (p *VIPReseller) Profile(ctx context.Context) (*Profile, error) {
	start := time.Now()
	resp, err := p.request(ctx, "/profile", nil)
	if err == nil && !resp.Result {
		err = errors.New(fallback(resp.Message, "failed to get profile"))
	}
	metrics.ObserveProviderRequest("profile", start, err == nil)
	if err != nil {
		return nil, err
	}

	profile := &Profile{}
	if err := json.Unmarshal(resp.Data, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// VerifyCallbackSignature checks a "t=<unix>,v1=<hex>" header carrying
// HMAC-SHA256 over "<t>.<payload>" with the shared callback secret.
func (p *VIPReseller) VerifyCallbackSignature(payload []byte, header string) bool {
	header = strings.TrimSpace(header)
	secret := strings.TrimSpace(p.cfg.CallbackSecret)
	if header == "" || secret == "" {
		return false
	}

	var ts string
	v1 := make([]string, 0, 1)
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "t=") {
			ts = strings.TrimSpace(strings.TrimPrefix(part, "t="))
		}
		if strings.HasPrefix(part, "v1=") {
			v1 = append(v1, strings.TrimSpace(strings.TrimPrefix(part, "v1=")))
		}
	}
	if ts == "" || len(v1) == 0 {
		return false
	}

	tsUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	now := p.now().Unix()
	tolerance := p.cfg.SignatureToleranceSeconds
	if now-tsUnix > tolerance || tsUnix-now > tolerance {
		return false
	}

	expected := SignCallback(secret, ts, payload)
	for _, sig := range v1 {
		candidate, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(candidate, expected) {
			return true
		}
	}

	return false
}

// SignCallback computes the MAC carried in the v1 field of a callback header.
func SignCallback(secret, ts string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(ts + "." + string(payload)))
	return mac.Sum(nil)
}

func (p *VIPReseller) NormalizeCallback(payload []byte) (*CallbackEvent, error) {
	var raw orderData
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode provider callback: %w", err)
	}
	if strings.TrimSpace(raw.TrxID) == "" {
		return nil, errors.New("provider callback missing trxid")
	}

	return &CallbackEvent{
		TrxID:   strings.TrimSpace(raw.TrxID),
		Status:  MapStatus(strings.ToLower(strings.TrimSpace(raw.Status))),
		SN:      raw.SN,
		Message: raw.Message,
	}, nil
}

func (p *VIPReseller) sign() string {
	sum := md5.Sum([]byte(p.cfg.APIID + p.cfg.APIKey))
	return hex.EncodeToString(sum[:])
}

func (p *VIPReseller) request(ctx context.Context, endpoint string, data map[string]string) (*apiResponse, error) {
	if p.cfg.BaseURL == "" || p.cfg.APIID == "" || p.cfg.APIKey == "" {
		return nil, errors.New("vipreseller credentials are not configured")
	}

	payload := map[string]string{
		"api_id": p.cfg.APIID,
		"sign":   p.sign(),
	}
	for k, v := range data {
		payload[k] = v
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= p.cfg.RetryAttempts; attempt++ {
		resp, err := p.post(ctx, endpoint, encoded)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var retryable errRetryable
		if !errors.As(err, &retryable) || attempt == p.cfg.RetryAttempts {
			break
		}

		p.logger.WithFields(logrus.Fields{"endpoint": endpoint, "attempt": attempt, "error": err.Error()}).Warn("vipreseller request failed, retrying")
		if err := p.sleep(ctx, time.Duration(attempt)*p.cfg.RetryBaseDelay); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

func (p *VIPReseller) post(ctx context.Context, endpoint string, body []byte) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errRetryable{err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errRetryable{err: err}
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, errRetryable{err: fmt.Errorf("vipreseller request failed: endpoint=%s status=%d body=%s", endpoint, resp.StatusCode, string(raw))}
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("vipreseller request failed: endpoint=%s status=%d body=%s", endpoint, resp.StatusCode, string(raw))
	}

	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode vipreseller response: %w", err)
	}
	return &decoded, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
