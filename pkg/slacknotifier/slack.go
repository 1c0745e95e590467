// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package slacknotifier sends operational alerts to Slack via an incoming
// webhook. Alerts cover storage outages and recovery, cache pressure and
// authentication failures against the metering service. An empty webhook URL
// disables the notifier; sends then return nil without any network activity.
package slacknotifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	gerrors "github.com/soothill/glow-data-logger/pkg/errors"
	"github.com/soothill/glow-data-logger/pkg/logger"
)

// Notifier sends notifications to Slack via webhook. It is safe for
// concurrent use.
type Notifier struct {
	mu         sync.RWMutex
	webhookURL string
	client     *http.Client
}

// Message represents a Slack webhook message payload
type Message struct {
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a Slack attachment
type Attachment struct {
	Color  string `json:"color,omitempty"`
	Title  string `json:"title,omitempty"`
	Text   string `json:"text,omitempty"`
	Footer string `json:"footer,omitempty"`
	Ts     int64  `json:"ts,omitempty"`
}

// New creates a new Slack notifier. An empty webhookURL yields a disabled
// notifier whose send methods are no-ops.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// IsEnabled returns whether Slack notifications are enabled
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.webhookURL != ""
}

// UpdateWebhookURL swaps the webhook destination, e.g. after a config reload.
func (n *Notifier) UpdateWebhookURL(webhookURL string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.webhookURL = webhookURL
}

// SendMessage sends a simple text message to Slack
func (n *Notifier) SendMessage(ctx context.Context, message string) error {
	if !n.IsEnabled() {
		logger.Debug().Msg("Slack notifications disabled, skipping message")
		return nil
	}

	return n.sendPayload(ctx, Message{Text: message})
}

// SendAlert sends a formatted alert to Slack
func (n *Notifier) SendAlert(ctx context.Context, severity, title, message string) error {
	if !n.IsEnabled() {
		logger.Debug().Msg("Slack notifications disabled, skipping alert")
		return nil
	}

	payload := Message{
		Attachments: []Attachment{
			{
				Color:  severityToColor(severity),
				Title:  title,
				Text:   message,
				Footer: "Glow Data Logger",
				Ts:     time.Now().Unix(),
			},
		},
	}

	return n.sendPayload(ctx, payload)
}

// SendStorageFailure sends an alert when writes to the storage backend fail
func (n *Notifier) SendStorageFailure(ctx context.Context, err error) error {
	return n.SendAlert(ctx, "danger", "⚠️ InfluxDB Write Failure",
		fmt.Sprintf("Failed to write to InfluxDB: %v\nUsage records will be spooled locally until the backend recovers.", err))
}

// SendStorageRecovery sends an alert when the storage backend recovers
func (n *Notifier) SendStorageRecovery(ctx context.Context) error {
	return n.SendAlert(ctx, "good", "✅ InfluxDB Connection Restored",
		"Connection to InfluxDB has been restored. Spooled usage records will be replayed.")
}

// SendCacheWarning sends an alert when the local spool is filling up
func (n *Notifier) SendCacheWarning(ctx context.Context, cacheSize int64, maxSize int64) error {
	percentage := float64(cacheSize) / float64(maxSize) * 100
	return n.SendAlert(ctx, "warning", "⚠️ Local Spool Usage High",
		fmt.Sprintf("Spooled records: %d (%.1f%% of max %d)\nInfluxDB may be unavailable for an extended period.",
			cacheSize, percentage, maxSize))
}

// SendAuthFailure sends an alert when authentication against the metering
// service fails
func (n *Notifier) SendAuthFailure(ctx context.Context, err error) error {
	return n.SendAlert(ctx, "danger", "⚠️ Glow Authentication Failure",
		fmt.Sprintf("Failed to authenticate with the Glow API: %v\nNo usage data will be collected until credentials are fixed.", err))
}

// sendPayload sends a payload to the Slack webhook
func (n *Notifier) sendPayload(ctx context.Context, payload Message) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return gerrors.NewNotificationError("slack", fmt.Errorf("failed to marshal payload: %w", err))
	}

	n.mu.RLock()
	url := n.webhookURL
	n.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return gerrors.NewNotificationError("slack", fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return gerrors.NewNotificationError("slack", fmt.Errorf("failed to send request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return gerrors.NewNotificationError("slack", fmt.Errorf("webhook returned status %d", resp.StatusCode))
	}

	if len(payload.Attachments) > 0 {
		logger.Debug().Str("title", payload.Attachments[0].Title).Msg("Slack notification sent")
	} else {
		logger.Debug().Str("text", payload.Text).Msg("Slack notification sent")
	}
	return nil
}

// severityToColor maps severity levels to Slack colors
func severityToColor(severity string) string {
	switch severity {
	case "danger", "error":
		return "danger"
	case "warning", "warn":
		return "warning"
	case "good", "success":
		return "good"
	default:
		return "#808080"
	}
}
