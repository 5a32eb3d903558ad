// Package notify forwards completion reports to interested collaborators.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aeropoint/aqfetch/internal/fetch"
)

// Notifier receives the finalized report of one run. Notification failures
// are logged by callers and never fail the run itself.
type Notifier interface {
	Notify(ctx context.Context, deployment string, report *fetch.Report) error
}

// LogNotifier writes a per-run summary line through the structured logger.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify logs the report summary.
func (n *LogNotifier) Notify(_ context.Context, deployment string, report *fetch.Report) error {
	logger := n.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("fetch report",
		zap.String("deployment", deployment),
		zap.Int("items_inserted", report.ItemsInserted),
		zap.Int("sources", len(report.Results)),
		zap.Int("error_causes", len(report.Errors)),
		zap.Duration("elapsed", report.TimeEnded.Sub(report.TimeStarted)),
		zap.Bool("dry_run", report.DryRun),
	)
	return nil
}

// WebhookNotifier POSTs the report as JSON to a configured endpoint.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

// NewWebhookNotifier builds a notifier with a bounded request timeout.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// Notify sends the report; non-2xx responses are errors.
func (n *WebhookNotifier) Notify(ctx context.Context, deployment string, report *fetch.Report) error {
	body, err := json.Marshal(struct {
		Deployment string        `json:"deployment"`
		Report     *fetch.Report `json:"report"`
	}{Deployment: deployment, Report: report})
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
