package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/saferoute/internal/config"
	"github.com/sells-group/saferoute/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertUnsafeFeedback AlertType = "unsafe_feedback"
	AlertAIMockMode     AlertType = "ai_mock_mode"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.RetryConfig
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  resilience.DefaultRetryConfig(),
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	minFeedback := a.cfg.MinFeedback
	if minFeedback <= 0 {
		minFeedback = 3
	}

	// Routes whose recent feedback is dominated by unsafe votes.
	for _, rs := range snap.Routes {
		if rs.Total < minFeedback || rs.UnsafeRate <= a.cfg.UnsafeRateThreshold {
			continue
		}
		alerts = append(alerts, Alert{
			Type:     AlertUnsafeFeedback,
			Severity: "high",
			Message: fmt.Sprintf(
				"Route %s unsafe feedback rate %.1f%% exceeds threshold %.1f%% (%d unsafe / %d in last %dh)",
				rs.RouteID, rs.UnsafeRate*100, a.cfg.UnsafeRateThreshold*100,
				rs.Unsafe, rs.Total, snap.LookbackHours,
			),
			Details: map[string]any{
				"route_id":    rs.RouteID,
				"unsafe_rate": rs.UnsafeRate,
				"threshold":   a.cfg.UnsafeRateThreshold,
				"unsafe":      rs.Unsafe,
				"total":       rs.Total,
			},
			Timestamp: now,
		})
	}

	// A configured provider that has fallen back to templates.
	if snap.Quota.Enabled && snap.Quota.MockMode && !snap.Quota.UseMock {
		alerts = append(alerts, Alert{
			Type:     AlertAIMockMode,
			Severity: "medium",
			Message: fmt.Sprintf(
				"AI explanations switched to templates after %d of %d calls",
				snap.Quota.CallCount, snap.Quota.Budget,
			),
			Details: map[string]any{
				"call_count": snap.Quota.CallCount,
				"budget":     snap.Quota.Budget,
				"model":      snap.Quota.Model,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts one alert, retrying timeouts, refused connections and
// 408/429/5xx responses.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	retry := a.retry
	retry.OnRetry = resilience.RetryLogger("alert webhook")
	return resilience.Do(ctx, retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
		if err != nil {
			return eris.Wrap(err, "monitoring: create webhook request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			return eris.Wrap(err, "monitoring: webhook request")
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode >= 400 {
			return resilience.StatusError("monitoring: webhook", resp.StatusCode)
		}
		return nil
	})
}
