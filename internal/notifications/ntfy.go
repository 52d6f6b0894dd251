package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"buildwatch/internal/auth"
	"buildwatch/internal/config"
)

const (
	userAgent        = "buildwatch/0.1"
	callbackTokenTTL = 24 * time.Hour
)

// NtfyService posts alerts to an ntfy topic URL.
type NtfyService struct {
	endpoint    string
	callbackURL string
	apiSecret   string
	client      *http.Client

	authorized atomic.Bool
	enabled    atomic.Bool

	mu      sync.RWMutex
	handler func(UserResponse)
}

// NewService builds an alert service backed by ntfy when a topic is configured.
// Without a topic the returned service never authorizes delivery.
func NewService(cfg *config.Config) AlertService {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	svc := &NtfyService{
		endpoint:    topic,
		callbackURL: strings.TrimRight(cfg.Notifications.CallbackURL, "/"),
		apiSecret:   cfg.Paths.APIToken,
		client:      &http.Client{Timeout: timeout},
	}
	svc.enabled.Store(cfg.Notifications.Enabled)
	return svc
}

// RequestAuthorization grants delivery; a configured topic is the user's consent.
func (n *NtfyService) RequestAuthorization(context.Context) (bool, error) {
	n.authorized.Store(true)
	return true, nil
}

// CurrentSettings reports the live authorization and mute state.
func (n *NtfyService) CurrentSettings(context.Context) (Settings, error) {
	return Settings{Authorized: n.authorized.Load(), AlertsEnabled: n.enabled.Load()}, nil
}

// SetAlertsEnabled mutes or unmutes alerts at runtime.
func (n *NtfyService) SetAlertsEnabled(enabled bool) {
	n.enabled.Store(enabled)
}

// OnUserResponse registers the handler invoked for alert actions.
func (n *NtfyService) OnUserResponse(handler func(UserResponse)) {
	n.mu.Lock()
	n.handler = handler
	n.mu.Unlock()
}

// Respond forwards a user action to the registered handler.
func (n *NtfyService) Respond(resp UserResponse) {
	n.mu.RLock()
	handler := n.handler
	n.mu.RUnlock()
	if handler == nil {
		return
	}
	if resp.At.IsZero() {
		resp.At = time.Now()
	}
	handler(resp)
}

// Deliver posts one alert. It never retries.
func (n *NtfyService) Deliver(ctx context.Context, content Content) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(content.Body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if content.Title != "" {
		req.Header.Set("Title", content.Title)
	}
	if len(content.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(content.Tags, ","))
	}
	if content.Priority != "" && content.Priority != "default" {
		req.Header.Set("Priority", content.Priority)
	}
	if content.ClickURL != "" {
		req.Header.Set("Click", content.ClickURL)
	}
	if actions := n.actions(content); actions != "" {
		req.Header.Set("Actions", actions)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// actions renders ntfy action buttons that call back into the API.
func (n *NtfyService) actions(content Content) string {
	if n.callbackURL == "" || content.PipelineID == "" {
		return ""
	}
	var parts []string
	if content.ClickURL != "" {
		parts = append(parts, "view, Open, "+content.ClickURL+", clear=true")
	}
	query := url.Values{}
	query.Set("pipeline", content.PipelineID)
	query.Set("action", ActionRefresh)
	if content.ChangeID != "" {
		query.Set("change", content.ChangeID)
	}
	refresh := "http, Refresh, " + n.callbackURL + "/api/alerts/respond?" + query.Encode() + ", method=POST"
	if n.apiSecret != "" {
		token, err := auth.GenerateToken(n.apiSecret, "ntfy", auth.ScopeAlerts, callbackTokenTTL)
		if err == nil {
			refresh += ", headers.Authorization=Bearer " + token
		}
	}
	parts = append(parts, refresh+", clear=true")
	return strings.Join(parts, "; ")
}

type noopService struct{}

func (noopService) RequestAuthorization(context.Context) (bool, error) { return false, nil }

func (noopService) CurrentSettings(context.Context) (Settings, error) { return Settings{}, nil }

func (noopService) Deliver(context.Context, Content) error { return nil }

func (noopService) OnUserResponse(func(UserResponse)) {}
