package daemon

import (
	"context"
	"errors"
	"strings"
	"time"

	"buildwatch/internal/logging"
	"buildwatch/internal/notifications"
)

// ErrAlertsUnsupported is returned when the alert service cannot be muted at runtime.
var ErrAlertsUnsupported = errors.New("alert service does not support muting")

type alertToggler interface {
	SetAlertsEnabled(bool)
}

type alertResponder interface {
	Respond(notifications.UserResponse)
}

func (d *Daemon) preferences() notifications.Preferences {
	return notifications.Preferences{
		Start:      d.cfg.Notifications.Start,
		Completion: d.cfg.Notifications.Completion,
	}
}

// SetAlertsEnabled mutes or unmutes alerts without restarting the daemon.
func (d *Daemon) SetAlertsEnabled(enabled bool) error {
	toggler, ok := d.alerts.(alertToggler)
	if !ok {
		return ErrAlertsUnsupported
	}
	toggler.SetAlertsEnabled(enabled)
	d.logger.Info("alerts toggled",
		logging.Bool("enabled", enabled),
		logging.String(logging.FieldEventType, "alerts_toggled"),
	)
	return nil
}

// TestNotification sends a fixed alert through the configured service.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if _, err := d.alerts.RequestAuthorization(ctx); err != nil {
		return false, "alert authorization failed", err
	}
	if err := notifications.SendTest(ctx, d.alerts); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// RespondToAlert records a user action taken on a delivered alert.
func (d *Daemon) RespondToAlert(resp notifications.UserResponse) {
	if responder, ok := d.alerts.(alertResponder); ok {
		responder.Respond(resp)
		return
	}
	d.handleUserResponse(resp)
}

func (d *Daemon) handleUserResponse(resp notifications.UserResponse) {
	if resp.At.IsZero() {
		resp.At = time.Now()
	}
	logger := d.logger.With(
		logging.String(logging.FieldPipelineID, resp.PipelineID),
		logging.String(logging.FieldChangeID, resp.ChangeID),
		logging.String("action", resp.Action),
	)
	switch resp.Action {
	case notifications.ActionRefresh:
		if err := d.monitor.Trigger(resp.PipelineID); err != nil {
			logger.Warn("alert refresh ignored", logging.Error(err))
			return
		}
		logger.Info("refresh requested from alert")
	default:
		logger.Debug("alert action recorded")
	}
}
