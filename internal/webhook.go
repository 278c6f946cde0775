package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Discord message component constants.
const (
	componentActionRow = 1
	componentButton    = 2

	buttonStyleSuccess = 3
	buttonStyleDanger  = 4

	embedColor = 5793266 // blurple
)

type WebhookEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type WebhookThumbnail struct {
	URL string `json:"url"`
}

type WebhookFooter struct {
	Text string `json:"text"`
}

type WebhookEmbed struct {
	Title     string              `json:"title"`
	Color     int                 `json:"color"`
	Fields    []WebhookEmbedField `json:"fields"`
	Thumbnail *WebhookThumbnail   `json:"thumbnail,omitempty"`
	Footer    WebhookFooter       `json:"footer"`
	Timestamp string              `json:"timestamp"`
}

type WebhookButton struct {
	Type     int    `json:"type"`
	Style    int    `json:"style"`
	Label    string `json:"label"`
	CustomID string `json:"custom_id"`
}

type WebhookComponentRow struct {
	Type       int             `json:"type"`
	Components []WebhookButton `json:"components"`
}

type WebhookMessage struct {
	Embeds     []WebhookEmbed        `json:"embeds"`
	Components []WebhookComponentRow `json:"components"`
}

// BuildWebhookMessage renders an application into the notification sent
// to Discord. Shared by the submission path and the standalone relay
// endpoint so both produce the same payload.
func BuildWebhookMessage(app Application) WebhookMessage {
	embed := WebhookEmbed{
		Title: "New Application Received",
		Color: embedColor,
		Fields: []WebhookEmbedField{
			{Name: "Applicant", Value: app.FullName, Inline: true},
			{Name: "Position", Value: app.Position, Inline: true},
			{Name: "Experience", Value: string(app.Experience) + " hours", Inline: true},
			{Name: "Email", Value: app.Email, Inline: true},
			{Name: "License Number", Value: app.LicenseNumber, Inline: true},
			{Name: "Motivation", Value: truncate(app.Motivation, embedFieldLimit)},
			{Name: "Experience Detail", Value: truncate(app.ExperienceDetail, embedFieldLimit)},
		},
		Footer:    WebhookFooter{Text: "Application ID: " + app.ID},
		Timestamp: nowISO(),
	}
	if app.UserAvatar != "" {
		embed.Thumbnail = &WebhookThumbnail{URL: app.UserAvatar}
	}

	return WebhookMessage{
		Embeds: []WebhookEmbed{embed},
		Components: []WebhookComponentRow{{
			Type: componentActionRow,
			Components: []WebhookButton{
				{Type: componentButton, Style: buttonStyleSuccess, Label: "Accept", CustomID: "accept_" + app.ID},
				{Type: componentButton, Style: buttonStyleDanger, Label: "Deny", CustomID: "deny_" + app.ID},
			},
		}},
	}
}

// Notifier delivers application notifications to Discord webhooks.
type Notifier struct {
	http *http.Client
	log  *zap.Logger
	wg   sync.WaitGroup
}

func NewNotifier(log *zap.Logger) *Notifier {
	return &Notifier{
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log,
	}
}

// Send posts the notification once and reports delivery failure to the
// caller. Used directly by the standalone relay endpoint.
func (n *Notifier) Send(ctx context.Context, webhookURL string, app Application) error {
	payload, err := json.Marshal(BuildWebhookMessage(app))
	if err != nil {
		return &UpstreamError{Op: "webhook delivery", Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return &UpstreamError{Op: "webhook delivery", Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return &UpstreamError{Op: "webhook delivery", Detail: err.Error()}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{Op: "webhook delivery", Detail: fmt.Sprintf("webhook returned status %d", resp.StatusCode)}
	}
	return nil
}

// Dispatch sends the notification in the background. Delivery failures
// are logged and counted, never returned: the submission that triggered
// the notification must not fail because Discord was unreachable.
func (n *Notifier) Dispatch(webhookURL string, app Application) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := n.Send(ctx, webhookURL, app); err != nil {
			webhookDeliveries.WithLabelValues("failure").Inc()
			n.log.Warn("webhook delivery failed",
				zap.String("applicationId", app.ID),
				zap.Error(err))
			return
		}
		webhookDeliveries.WithLabelValues("success").Inc()
	}()
}

// Wait blocks until in-flight deliveries finish. Used on shutdown and
// in tests.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
