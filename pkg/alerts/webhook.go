package alerts

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Webhook request headers.
const (
	HeaderSubject   = "X-Spendwatch-Subject"
	HeaderTopic     = "X-Spendwatch-Topic"
	HeaderTimestamp = "X-Spendwatch-Timestamp"
	HeaderSignature = "X-Spendwatch-Signature"
)

// WebhookNotifier posts each daily alert as a flat JSON document to an HTTP endpoint.
type WebhookNotifier struct {
	url    string
	secret []byte
	client *http.Client
	now    func() time.Time
}

// NewWebhookNotifier creates a webhook notifier. With a non-empty secret every
// request carries HeaderSignature, "t=<unix>,v1=<hex>", an HMAC-SHA256 of
// "<unix>.<body>".
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

// dailyAlertPayload is the webhook body. Money is sent as fixed-point text.
type dailyAlertPayload struct {
	UserID    string `json:"userId"`
	Date      string `json:"date"`
	Total     string `json:"total"`
	Threshold string `json:"threshold"`
	OverBy    string `json:"overBy"`
	Topic     string `json:"topic"`
	Message   string `json:"message"`
	SentAt    string `json:"sentAt"`
}

func (w *WebhookNotifier) Publish(ctx context.Context, alert Alert) error {
	sentAt := w.now().UTC()
	body, err := json.Marshal(dailyAlertPayload{
		UserID:    alert.UserID,
		Date:      alert.Date,
		Total:     alert.Total.StringFixed(2),
		Threshold: alert.Threshold.StringFixed(2),
		OverBy:    alert.Total.Sub(alert.Threshold).StringFixed(2),
		Topic:     alert.Topic,
		Message:   alert.Message,
		SentAt:    sentAt.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSubject, alert.Subject)
	req.Header.Set(HeaderTopic, alert.Topic)

	ts := strconv.FormatInt(sentAt.Unix(), 10)
	req.Header.Set(HeaderTimestamp, ts)
	if len(w.secret) > 0 {
		req.Header.Set(HeaderSignature, "t="+ts+",v1="+SignWebhook(w.secret, ts, body))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook alert for %s: %w", alert.UserID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// SignWebhook returns the hex HMAC-SHA256 of "<timestamp>.<body>". Receivers
// recompute it to verify a delivery.
func SignWebhook(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
