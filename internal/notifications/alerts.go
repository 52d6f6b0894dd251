package notifications

import (
	"context"
	"fmt"
	"time"
)

// Settings is the alert service's live view of whether alerts may be shown.
type Settings struct {
	Authorized    bool `json:"authorized"`
	AlertsEnabled bool `json:"alerts_enabled"`
}

// UserResponse records how a user acted on a delivered alert.
type UserResponse struct {
	ChangeID   string    `json:"change_id"`
	PipelineID string    `json:"pipeline_id"`
	Action     string    `json:"action"`
	At         time.Time `json:"at"`
}

const (
	ActionOpen    = "open"
	ActionRefresh = "refresh"
	ActionDismiss = "dismiss"
)

// AlertService is the outbound alert-delivery capability.
type AlertService interface {
	RequestAuthorization(ctx context.Context) (bool, error)
	CurrentSettings(ctx context.Context) (Settings, error)
	Deliver(ctx context.Context, content Content) error
	OnUserResponse(handler func(UserResponse))
}

// DeliveryError reports an alert the service failed to deliver.
type DeliveryError struct {
	PipelineID string
	ChangeID   string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("deliver alert for %s (change %s): %v", e.PipelineID, e.ChangeID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// SendTest delivers a fixed alert so users can confirm their setup.
func SendTest(ctx context.Context, svc AlertService) error {
	if svc == nil {
		return fmt.Errorf("alert service unavailable")
	}
	settings, err := svc.CurrentSettings(ctx)
	if err != nil {
		return fmt.Errorf("query alert settings: %w", err)
	}
	if !settings.Authorized {
		return fmt.Errorf("alerts are not authorized; set notifications.ntfy_topic")
	}
	return svc.Deliver(ctx, Content{
		Title: "buildwatch",
		Body:  "Test notification from buildwatch.",
		Tags:  []string{"buildwatch", "test_tube"},
	})
}
