package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"buildwatch/internal/logging"
	"buildwatch/internal/status"
)

// Preferences are the user's per-kind alert choices.
type Preferences struct {
	Start      bool `json:"start"`
	Completion bool `json:"completion"`
}

// Allows reports whether alerts of kind are wanted.
func (p Preferences) Allows(kind status.ChangeKind) bool {
	switch kind {
	case status.ChangeStart:
		return p.Start
	case status.ChangeCompletion:
		return p.Completion
	default:
		return false
	}
}

// PreferenceSource returns the current preferences. It is called once per
// change so runtime edits take effect immediately.
type PreferenceSource func() Preferences

// Outcome describes what the dispatcher did with one change.
type Outcome string

const (
	OutcomeDelivered  Outcome = "delivered"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeIgnored    Outcome = "ignored"
	OutcomeFailed     Outcome = "failed"
)

const defaultDeliveryTimeout = 10 * time.Second

// Dispatcher delivers at most one alert per change.
type Dispatcher struct {
	alerts  AlertService
	prefs   PreferenceSource
	logger  *slog.Logger
	timeout time.Duration
}

// NewDispatcher wires the dispatcher to an alert service. A nil prefs source
// allows every kind.
func NewDispatcher(alerts AlertService, prefs PreferenceSource, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if prefs == nil {
		prefs = func() Preferences { return Preferences{Start: true, Completion: true} }
	}
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	return &Dispatcher{
		alerts:  alerts,
		prefs:   prefs,
		logger:  logging.NewComponentLogger(logger, "notifier"),
		timeout: timeout,
	}
}

// Run requests authorization once, then handles changes in the order received
// until ctx ends or the stream closes.
func (d *Dispatcher) Run(ctx context.Context, changes <-chan status.StatusChange) error {
	granted, err := d.alerts.RequestAuthorization(ctx)
	switch {
	case err != nil:
		logging.WarnWithContext(d.logger, "alert authorization request failed", "alert_authorization_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "alerts stay suppressed until authorization is granted"),
		)
	case !granted:
		d.logger.Info("alerts not authorized; changes will be logged only")
	default:
		d.logger.Debug("alerts authorized")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			_, _ = d.Handle(ctx, change)
		}
	}
}

// Handle composes and, if the live settings and preferences allow it,
// delivers one change. Delivery failures are returned as *DeliveryError and
// are never retried.
func (d *Dispatcher) Handle(ctx context.Context, change status.StatusChange) (Outcome, error) {
	logger := d.logger.With(
		logging.String(logging.FieldPipelineID, change.Pipeline.ID),
		logging.String(logging.FieldChangeID, change.ID),
		logging.String("kind", string(change.Kind)),
	)

	content, ok := Compose(change)
	if !ok {
		logger.Debug("ignoring change of unknown kind")
		return OutcomeIgnored, nil
	}

	settings, err := d.alerts.CurrentSettings(ctx)
	if err != nil {
		logging.WarnWithContext(logger, "alert settings unavailable", "alert_settings_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "alert dropped"),
		)
		return OutcomeSuppressed, nil
	}
	if !settings.Authorized || !settings.AlertsEnabled || !d.prefs().Allows(change.Kind) {
		logger.Debug("alert suppressed",
			logging.Bool("authorized", settings.Authorized),
			logging.Bool("alerts_enabled", settings.AlertsEnabled),
		)
		return OutcomeSuppressed, nil
	}

	deliverCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.alerts.Deliver(deliverCtx, content); err != nil {
		deliveryErr := &DeliveryError{PipelineID: change.Pipeline.ID, ChangeID: change.ID, Err: err}
		if errors.Is(err, context.Canceled) {
			logger.Info("alert delivery cancelled", logging.Error(err))
		} else {
			logging.WarnWithContext(logger, "alert delivery failed", "alert_delivery_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
				logging.String(logging.FieldImpact, "this change was not announced"),
			)
		}
		return OutcomeFailed, deliveryErr
	}
	logger.Info("alert delivered", logging.String("body", content.Body))
	return OutcomeDelivered, nil
}
